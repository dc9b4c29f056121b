package cli

import (
	"errors"
	"fmt"

	"github.com/lockview-project/lockview/pkg/color"
	"github.com/lockview-project/lockview/pkg/errclass"
)

// suggestFix returns a one-line hint for err's class, or "".
func suggestFix(err error) string {
	var le *errclass.LockviewError
	if !errors.As(err, &le) {
		return ""
	}
	switch {
	case errors.Is(err, errclass.ErrPrerequisiteMissing):
		return fmt.Sprintf("Run %s for install instructions.", color.Code("lockview doctor --install-help"))
	case errors.Is(err, errclass.ErrViewerDirMissing):
		return fmt.Sprintf("Check %s or point %s at the viewer directory.", color.Code("--repo"), color.Code("--viewer-subdir"))
	case errors.Is(err, errclass.ErrInstallFailed):
		return fmt.Sprintf("Re-run with %s if the viewer is already built.", color.Code("--no-install"))
	case errors.Is(err, errclass.ErrViewerMissing):
		return fmt.Sprintf("Pass an executable with %s or drop it to use the built-in window.", color.Code("--viewer-bin"))
	case errors.Is(err, errclass.ErrMissingCredential):
		return fmt.Sprintf("Export %s or re-run with %s.", color.Code("GITHUB_TOKEN"), color.Code("--interactive"))
	case errors.Is(err, errclass.ErrRemoteUnavailable):
		return "Check the secrets repository, path and token scope."
	case errors.Is(err, errclass.ErrMalformedPayload), errors.Is(err, errclass.ErrInvalidJSON):
		return "The secrets document must be a JSON object stored as a regular file."
	case errors.Is(err, errclass.ErrMissingPassword):
		return fmt.Sprintf("Set %s (empty for timer-only) or re-run with %s.", color.Code("VIEWER_PASSWORD"), color.Code("--interactive"))
	case errors.Is(err, errclass.ErrRefMismatch):
		return fmt.Sprintf("Pass %s to launch anyway.", color.Code("--allow-ref-mismatch"))
	case errors.Is(err, errclass.ErrCheckoutFailed):
		return fmt.Sprintf("Use %s to run from an existing directory.", color.Code("--skip-checkout"))
	}
	return ""
}
