package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lockview-project/lockview/pkg/errclass"
)

func TestParseOwnerRepo(t *testing.T) {
	tests := []struct {
		in          string
		owner, repo string
	}{
		{"acme/viewer", "acme", "viewer"},
		{"https://github.com/acme/viewer", "acme", "viewer"},
		{"https://github.com/acme/viewer.git", "acme", "viewer"},
		{"https://github.com/acme/viewer/", "acme", "viewer"},
		{"git@github.com:acme/viewer.git", "acme", "viewer"},
		{" acme/viewer ", "acme", "viewer"},
	}
	for _, tt := range tests {
		owner, repo, err := ParseOwnerRepo(tt.in)
		if assert.NoError(t, err, tt.in) {
			assert.Equal(t, tt.owner, owner, tt.in)
			assert.Equal(t, tt.repo, repo, tt.in)
		}
	}
}

func TestParseOwnerRepo_Invalid(t *testing.T) {
	for _, in := range []string{"", "acme", "a/b/c", "https://github.com/acme", "git@github.com:acme"} {
		_, _, err := ParseOwnerRepo(in)
		assert.ErrorIs(t, err, errclass.ErrConfigInvalid, in)
	}
}
