// Package fsutil provides filesystem utilities for atomic writes and erasure.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWrite writes data to a temporary file, fsyncs, then renames to target path.
// The temporary file is created with mode 0600 before perm is applied, so
// secrets are never readable by others mid-write.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".lockview-tmp-*")
	if err != nil {
		return fmt.Errorf("atomic write create tmp: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("atomic write: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("atomic write chmod: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("atomic write fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("atomic write close: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("atomic write rename: %w", err)
	}
	if err := FsyncDir(dir); err != nil {
		return fmt.Errorf("atomic write fsync dir: %w", err)
	}

	success = true
	return nil
}

// Erase overwrites a regular file with zeros, fsyncs it and removes it.
// A missing file is not an error.
func Erase(path string) error {
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("erase stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("erase: %s is not a regular file", path)
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("erase open: %w", err)
	}
	zeros := make([]byte, info.Size())
	if _, err := f.WriteAt(zeros, 0); err != nil {
		f.Close()
		return fmt.Errorf("erase overwrite: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("erase fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("erase close: %w", err)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("erase remove: %w", err)
	}
	return FsyncDir(filepath.Dir(path))
}

// FsyncDir fsyncs a directory to ensure rename visibility is durable.
func FsyncDir(dirPath string) error {
	d, err := os.Open(dirPath)
	if err != nil {
		return fmt.Errorf("fsync dir open: %w", err)
	}
	defer d.Close()
	return d.Sync()
}
