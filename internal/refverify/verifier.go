// Package refverify checks that a checkout sits at an expected revision.
package refverify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lockview-project/lockview/internal/gitexec"
	"github.com/lockview-project/lockview/pkg/errclass"
	"github.com/lockview-project/lockview/pkg/logging"
)

// Result describes one comparison.
type Result struct {
	Expected string `json:"expected"`
	Head     string `json:"head,omitempty"`
	Resolved string `json:"resolved,omitempty"`
	Match    bool   `json:"match"`
	Error    string `json:"error,omitempty"`
}

// Verifier resolves revisions through git.
type Verifier struct {
	git gitexec.Runner
}

// NewVerifier returns a verifier. A nil runner uses the git binary with a
// 30s per-call timeout.
func NewVerifier(git gitexec.Runner) *Verifier {
	if git == nil {
		git = gitexec.Exec{Timeout: 30 * time.Second}
	}
	return &Verifier{git: git}
}

// Verify resolves HEAD and expected to commit ids and compares them. A ref
// that cannot be resolved is reported as a non-match, never as an error.
func (v *Verifier) Verify(ctx context.Context, checkoutPath, expected string) Result {
	res := Result{Expected: expected}
	if strings.TrimSpace(expected) == "" {
		res.Error = "empty expected ref"
		return res
	}
	if strings.HasPrefix(expected, "-") {
		res.Error = fmt.Sprintf("invalid ref %q: must not start with '-'", expected)
		return res
	}

	head, err := v.resolve(ctx, checkoutPath, "HEAD")
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Head = head

	want, err := v.resolve(ctx, checkoutPath, expected)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Resolved = want
	res.Match = head == want
	return res
}

// Matches reports whether HEAD in checkoutPath equals expected.
func (v *Verifier) Matches(ctx context.Context, checkoutPath, expected string) bool {
	return v.Verify(ctx, checkoutPath, expected).Match
}

// Check is Verify as an error: nil on match, E_REF_MISMATCH otherwise.
func (v *Verifier) Check(ctx context.Context, checkoutPath, expected string) error {
	res := v.Verify(ctx, checkoutPath, expected)
	if res.Match {
		logging.Info("ref verified", map[string]any{"ref": expected, "commit": res.Head})
		return nil
	}
	if res.Error != "" {
		return errclass.ErrRefMismatch.WithMessagef("cannot resolve %s: %s", expected, res.Error)
	}
	return errclass.ErrRefMismatch.WithMessagef("HEAD %s does not match %s (%s)", short(res.Head), expected, short(res.Resolved))
}

func (v *Verifier) resolve(ctx context.Context, dir, ref string) (string, error) {
	// ^{commit} peels annotated tags to the commit they point at.
	out, err := v.git.Run(ctx, dir, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", ref, err)
	}
	if out == "" {
		return "", fmt.Errorf("resolve %s: empty output", ref)
	}
	return out, nil
}

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
