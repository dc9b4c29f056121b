package supervisor

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/lockview-project/lockview/pkg/errclass"
)

// Command is a child process invocation.
type Command struct {
	Path   string
	Args   []string
	Dir    string
	Env    []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Process is a started child.
type Process interface {
	// Wait blocks until the child exits and returns its exit code. A child
	// killed by a signal reports 1 with an E_CHILD_FAILED error.
	Wait() (int, error)
	Pid() int
}

// Launcher starts child processes.
type Launcher interface {
	Start(ctx context.Context, cmd Command) (Process, error)
}

// ExecLauncher starts real processes.
type ExecLauncher struct{}

// Start implements Launcher.
func (ExecLauncher) Start(ctx context.Context, c Command) (Process, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		return nil, errclass.ErrChildFailed.WithMessagef("start %s: %v", c.Path, err)
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return errclass.ExitChildFailed, errclass.ErrChildFailed.WithMessagef("wait: %v", err)
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return errclass.ExitChildFailed, errclass.ErrChildFailed.WithMessagef("child killed by %v", status.Signal())
	}
	return exitErr.ExitCode(), nil
}
