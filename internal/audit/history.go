// Package audit keeps the launch history: an append-only JSONL file in
// which every record carries the hash of the one before it.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lockview-project/lockview/pkg/model"
)

// DefaultName is the history file name inside the settings directory.
const DefaultName = "launches.jsonl"

// ErrChainBroken reports a history whose hash chain does not verify.
var ErrChainBroken = errors.New("launch history chain broken")

// Log appends launch records to a JSONL file.
type Log struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewLog creates a Log writing to path. The file is created on first append.
func NewLog(path string) *Log {
	return &Log{path: path, now: time.Now}
}

// Path returns the history file path.
func (l *Log) Path() string { return l.path }

// Append chains rec onto the history. A zero Timestamp is set to now.
func (l *Log) Append(rec model.LaunchRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer file.Close()

	if err := lockFile(file); err != nil {
		return fmt.Errorf("lock history: %w", err)
	}
	defer unlockFile(file)

	prev, err := lastHash(file)
	if err != nil {
		return err
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now()
	}
	rec.Timestamp = rec.Timestamp.UTC()
	rec.PrevHash = prev
	if rec.RecordHash, err = recordHash(rec); err != nil {
		return fmt.Errorf("hash record: %w", err)
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek history: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return file.Sync()
}

// LastHash returns the hash of the newest record, or "" for an empty or
// missing history.
func (l *Log) LastHash() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("open history: %w", err)
	}
	defer file.Close()
	return lastHash(file)
}

// lastHash skips malformed lines so one torn write cannot block appends.
func lastHash(file *os.File) (string, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek history: %w", err)
	}
	var last string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec model.LaunchRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		last = rec.RecordHash
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan history: %w", err)
	}
	return last, nil
}

// Records returns every record, oldest first. A missing file yields none.
func (l *Log) Records() ([]model.LaunchRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var records []model.LaunchRecord
	err := l.scan(func(n int, rec model.LaunchRecord, err error) error {
		if err != nil {
			return fmt.Errorf("history line %d: %w", n, err)
		}
		records = append(records, rec)
		return nil
	})
	return records, err
}

// Verify walks the chain and returns the number of records checked. The
// first bad line yields an error wrapping ErrChainBroken.
func (l *Log) Verify() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	prev := ""
	err := l.scan(func(n int, rec model.LaunchRecord, err error) error {
		if err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrChainBroken, n, err)
		}
		if rec.PrevHash != prev {
			return fmt.Errorf("%w: line %d: prev_hash does not match line %d", ErrChainBroken, n, n-1)
		}
		want, herr := recordHash(rec)
		if herr != nil {
			return herr
		}
		if rec.RecordHash != want {
			return fmt.Errorf("%w: line %d: record_hash mismatch", ErrChainBroken, n)
		}
		prev = rec.RecordHash
		count++
		return nil
	})
	return count, err
}

func (l *Log) scan(fn func(line int, rec model.LaunchRecord, err error) error) error {
	file, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	n := 0
	for scanner.Scan() {
		n++
		var rec model.LaunchRecord
		uerr := json.Unmarshal(scanner.Bytes(), &rec)
		if err := fn(n, rec, uerr); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan history: %w", err)
	}
	return nil
}
