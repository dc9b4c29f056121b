// Package pathutil provides identity and path validation utilities for lockview.
package pathutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/lockview-project/lockview/pkg/errclass"
)

// Usernames follow the hosting service rules: alphanumerics and single
// inner hyphens, at most 39 characters.
var identityRegex = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9]|-[A-Za-z0-9]){0,38}$`)

// NormalizeIdentity NFC-normalizes and trims an identity for comparison.
func NormalizeIdentity(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// ValidateIdentity checks a whitelist identity and returns its normalized form.
func ValidateIdentity(name string) (string, error) {
	name = NormalizeIdentity(name)
	if name == "" {
		return "", errclass.ErrConfigInvalid.WithMessage("identity must not be empty")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", errclass.ErrConfigInvalid.WithMessagef("identity must not contain control characters: %q", name)
		}
	}
	if !identityRegex.MatchString(name) {
		return "", errclass.ErrConfigInvalid.WithMessagef("invalid identity: %s", name)
	}
	return name, nil
}

// ValidateSubdir checks that a relative subdirectory is safe to join onto a
// checkout root.
func ValidateSubdir(sub string) error {
	if sub == "" {
		return errclass.ErrConfigInvalid.WithMessage("subdirectory must not be empty")
	}
	if filepath.IsAbs(sub) {
		return errclass.ErrConfigInvalid.WithMessagef("subdirectory must be relative: %s", sub)
	}
	clean := filepath.Clean(sub)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return errclass.ErrConfigInvalid.WithMessagef("subdirectory escapes checkout: %s", sub)
	}
	return nil
}

// ValidatePathSafety verifies target path does not escape root once
// symlinks are resolved.
func ValidatePathSafety(root, targetPath string) error {
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return errclass.ErrConfigInvalid.WithMessagef("cannot resolve root: %v", err)
	}

	resolvedTarget, err := filepath.EvalSymlinks(targetPath)
	if err != nil {
		if os.IsNotExist(err) {
			resolvedTarget = resolveClosestAncestor(targetPath)
		} else {
			return errclass.ErrConfigInvalid.WithMessagef("cannot resolve target: %v", err)
		}
	}

	sep := string(filepath.Separator)
	if !strings.HasPrefix(resolvedTarget+sep, resolvedRoot+sep) && resolvedTarget != resolvedRoot {
		return errclass.ErrConfigInvalid.WithMessagef("path escapes root: %s", targetPath)
	}

	return nil
}

// resolveClosestAncestor walks up from path to find the closest existing
// ancestor, resolves it, then appends the remaining components.
func resolveClosestAncestor(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if os.IsNotExist(err) && dir != path {
			resolved = resolveClosestAncestor(dir)
		} else {
			return filepath.Clean(path)
		}
	}
	return filepath.Join(resolved, base)
}
