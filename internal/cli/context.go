package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/lockview-project/lockview/pkg/color"
	"github.com/lockview-project/lockview/pkg/errclass"
)

// exitError carries an exit status out of a command. A nil err means the
// status is the child's own and needs no message.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// exitCode maps err to the process status.
func exitCode(err error) int {
	var ex *exitError
	if errors.As(err, &ex) {
		return ex.code
	}
	return errclass.ExitCode(err)
}

func fmtErr(format string, args ...any) {
	// Colorize the error prefix
	prefix := "lockview: "
	if color.Enabled() {
		prefix = color.Error("lockview:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
