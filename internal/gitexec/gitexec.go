// Package gitexec runs git, and other command line tools the launcher
// drives the same way.
package gitexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/lockview-project/lockview/pkg/logging"
)

// Runner executes git with args in dir and returns trimmed stdout.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// Exec runs a real binary.
type Exec struct {
	// Binary defaults to "git".
	Binary string
	// Timeout bounds each invocation; zero means only ctx bounds it.
	Timeout time.Duration
}

// Run implements Runner.
func (e Exec) Run(ctx context.Context, dir string, args ...string) (string, error) {
	bin := e.Binary
	if bin == "" {
		bin = "git"
	}
	if len(args) == 0 {
		return "", errors.New(bin + ": no arguments")
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	logging.Debug("running command", map[string]any{"bin": bin, "args": strings.Join(args, " "), "dir": dir})

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%s %s: timeout after %v", bin, args[0], e.Timeout)
		}
		return "", fmt.Errorf("%s %s: %w: %s", bin, args[0], err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
