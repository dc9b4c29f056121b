package errclass

import (
	"errors"
	"fmt"
)

// LockviewError is a stable, machine-readable error class.
type LockviewError struct {
	Code    string
	Message string
}

func (e *LockviewError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LockviewError) Is(target error) bool {
	t, ok := target.(*LockviewError)
	return ok && e.Code == t.Code
}

// WithMessage returns a new LockviewError with the same Code but a specific message.
func (e *LockviewError) WithMessage(msg string) *LockviewError {
	return &LockviewError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new LockviewError with a formatted message.
func (e *LockviewError) WithMessagef(format string, args ...any) *LockviewError {
	return &LockviewError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Error classes. Every pre-launch failure maps to exactly one exit code.
var (
	ErrPrerequisiteMissing = &LockviewError{Code: "E_PREREQUISITE_MISSING"}
	ErrViewerDirMissing    = &LockviewError{Code: "E_VIEWER_DIR_MISSING"}
	ErrInstallFailed       = &LockviewError{Code: "E_INSTALL_FAILED"}
	ErrViewerMissing       = &LockviewError{Code: "E_VIEWER_MISSING"}
	ErrMissingCredential   = &LockviewError{Code: "E_MISSING_CREDENTIAL"}
	ErrMissingPassword     = &LockviewError{Code: "E_MISSING_PASSWORD"}
	ErrRemoteUnavailable   = &LockviewError{Code: "E_REMOTE_UNAVAILABLE"}
	ErrMalformedPayload    = &LockviewError{Code: "E_MALFORMED_PAYLOAD"}
	ErrInvalidJSON         = &LockviewError{Code: "E_INVALID_JSON"}
	ErrRefMismatch         = &LockviewError{Code: "E_REF_MISMATCH"}
	ErrConfigInvalid       = &LockviewError{Code: "E_CONFIG_INVALID"}
	ErrCheckoutFailed      = &LockviewError{Code: "E_CHECKOUT_FAILED"}
	ErrChildFailed         = &LockviewError{Code: "E_CHILD_FAILED"}
)

// Exit codes reported by the launcher before the window starts.
const (
	ExitOK                  = 0
	ExitPrerequisiteMissing = 1
	ExitViewerDirMissing    = 2
	ExitInstallFailed       = 3
	ExitViewerMissing       = 4
	ExitSecrets             = 5
	ExitMissingPassword     = 6
	ExitRefMismatch         = 7
	ExitConfigInvalid       = 8
	ExitCheckoutFailed      = 9
	ExitChildFailed         = 10
)

var exitCodes = []struct {
	class *LockviewError
	code  int
}{
	{ErrPrerequisiteMissing, ExitPrerequisiteMissing},
	{ErrViewerDirMissing, ExitViewerDirMissing},
	{ErrInstallFailed, ExitInstallFailed},
	{ErrViewerMissing, ExitViewerMissing},
	{ErrMissingCredential, ExitSecrets},
	{ErrRemoteUnavailable, ExitSecrets},
	{ErrMalformedPayload, ExitSecrets},
	{ErrInvalidJSON, ExitSecrets},
	{ErrMissingPassword, ExitMissingPassword},
	{ErrRefMismatch, ExitRefMismatch},
	{ErrConfigInvalid, ExitConfigInvalid},
	{ErrCheckoutFailed, ExitCheckoutFailed},
	{ErrChildFailed, ExitChildFailed},
}

// ExitCode maps err to the process exit code of its class.
// nil maps to 0; unclassified errors map to 1.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	for _, ec := range exitCodes {
		if errors.Is(err, ec.class) {
			return ec.code
		}
	}
	return 1
}
