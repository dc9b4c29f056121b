package lockwindow

import (
	"strings"

	"github.com/lockview-project/lockview/pkg/model"
	"github.com/lockview-project/lockview/pkg/pathutil"
)

// VerifyIdentity reports whether identity appears on cfg's whitelist.
// Usernames compare case-insensitively after NFC normalization. A config
// without a whitelist admits nobody.
//
// The session never calls this; it is an advisory check for callers that
// know who is at the keyboard.
func VerifyIdentity(cfg *model.ViewerConfig, identity string) bool {
	if !cfg.HasWhitelist() {
		return false
	}
	want := pathutil.NormalizeIdentity(identity)
	if want == "" {
		return false
	}
	for _, id := range cfg.Whitelist() {
		if strings.EqualFold(pathutil.NormalizeIdentity(id), want) {
			return true
		}
	}
	return false
}
