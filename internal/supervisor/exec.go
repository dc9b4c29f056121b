package supervisor

import (
	"os"
	"os/exec"
	"runtime"
)

func execLookPath(name string) (string, error) { return exec.LookPath(name) }

func goos() string { return runtime.GOOS }

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
