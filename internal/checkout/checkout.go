// Package checkout clones or refreshes the viewer source tree.
package checkout

import (
	"context"
	"os"
	"path/filepath"

	"github.com/lockview-project/lockview/internal/gitexec"
	"github.com/lockview-project/lockview/pkg/errclass"
	"github.com/lockview-project/lockview/pkg/logging"
)

// Syncer keeps a local checkout in step with its remote.
type Syncer struct {
	git gitexec.Runner
}

// NewSyncer returns a Syncer. A nil runner uses the git binary.
func NewSyncer(git gitexec.Runner) *Syncer {
	if git == nil {
		git = gitexec.Exec{}
	}
	return &Syncer{git: git}
}

// Sync clones repo into dest, or fetches and hard-resets an existing
// checkout to origin/branch (origin/HEAD when branch is empty).
func (s *Syncer) Sync(ctx context.Context, repo, dest, branch string) error {
	log := logging.WithFields(map[string]any{"component": "checkout", "dest": dest})

	if _, err := os.Stat(filepath.Join(dest, ".git")); err == nil {
		log.Info("repository exists, fetching and resetting")
		if _, err := s.git.Run(ctx, dest, "fetch", "--all"); err != nil {
			return errclass.ErrCheckoutFailed.WithMessage(err.Error())
		}
		if branch != "" {
			if _, err := s.git.Run(ctx, dest, "checkout", branch); err != nil {
				return errclass.ErrCheckoutFailed.WithMessage(err.Error())
			}
		}
		target := "origin/HEAD"
		if branch != "" {
			target = "origin/" + branch
		}
		if _, err := s.git.Run(ctx, dest, "reset", "--hard", target); err != nil {
			return errclass.ErrCheckoutFailed.WithMessage(err.Error())
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(filepath.Clean(dest)), 0755); err != nil {
		return errclass.ErrCheckoutFailed.WithMessagef("create parent of %s: %v", dest, err)
	}
	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, repo, dest)

	log.Info("cloning repository", map[string]any{"repo": repo, "branch": branch})
	if _, err := s.git.Run(ctx, "", args...); err != nil {
		return errclass.ErrCheckoutFailed.WithMessage(err.Error())
	}
	return nil
}
