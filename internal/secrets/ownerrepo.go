package secrets

import (
	"strings"

	"github.com/lockview-project/lockview/pkg/errclass"
)

// ParseOwnerRepo extracts "owner" and "repo" from "owner/repo",
// "https://host/owner/repo(.git)" or "git@host:owner/repo.git".
func ParseOwnerRepo(s string) (owner, repo string, err error) {
	in := strings.TrimSpace(s)
	in = strings.TrimSuffix(strings.TrimRight(in, "/"), ".git")

	switch {
	case strings.Contains(in, "://"):
		in = in[strings.Index(in, "://")+3:]
		parts := strings.Split(in, "/")
		if len(parts) >= 3 {
			owner, repo = parts[len(parts)-2], parts[len(parts)-1]
		}
	case strings.HasPrefix(in, "git@"):
		if _, path, ok := strings.Cut(in, ":"); ok {
			owner, repo, _ = strings.Cut(path, "/")
		}
	default:
		parts := strings.Split(in, "/")
		if len(parts) == 2 {
			owner, repo = parts[0], parts[1]
		}
	}

	if owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", errclass.ErrConfigInvalid.WithMessagef("not an owner/repo identifier: %q", s)
	}
	return owner, repo, nil
}
