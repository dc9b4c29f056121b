// Package resolver merges the window configuration from its sources.
//
// Sources are applied in a fixed order, later overriding earlier:
//
//	defaults < file < env < secrets
//
// Only recognized keys take part in the merge. The result is a single
// immutable model.ViewerConfig.
package resolver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lockview-project/lockview/pkg/errclass"
	"github.com/lockview-project/lockview/pkg/model"
	"github.com/lockview-project/lockview/pkg/pathutil"
)

// Source identifies where a layer came from. Its numeric value is its
// precedence.
type Source int

const (
	SourceDefaults Source = iota
	SourceFile
	SourceEnv
	SourceSecrets
)

func (s Source) String() string {
	switch s {
	case SourceDefaults:
		return "defaults"
	case SourceFile:
		return "file"
	case SourceEnv:
		return "env"
	case SourceSecrets:
		return "secrets"
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// Layer is one configuration source.
type Layer struct {
	Source Source
	Values map[string]string
}

// Defaults returns the bottom layer.
func Defaults() Layer {
	return Layer{Source: SourceDefaults, Values: map[string]string{
		model.KeyPassword:     "",
		model.KeyDuration:     strconv.Itoa(model.DefaultDuration),
		model.KeyASCIISeconds: strconv.Itoa(model.DefaultOverlaySeconds),
	}}
}

// Merged is the result of an ordered merge.
type Merged struct {
	Values map[string]string
	// Origin records which source supplied each value.
	Origin map[string]Source
}

// Merge overlays layers in order. Layers must be in non-decreasing
// precedence; anything else is a programming error surfaced as
// E_CONFIG_INVALID.
func Merge(layers ...Layer) (*Merged, error) {
	m := &Merged{Values: map[string]string{}, Origin: map[string]Source{}}
	prev := SourceDefaults
	for i, l := range layers {
		if i > 0 && l.Source < prev {
			return nil, errclass.ErrConfigInvalid.WithMessagef("layer %s applied after %s", l.Source, prev)
		}
		prev = l.Source
		for _, k := range model.RecognizedKeys {
			if v, ok := l.Values[k]; ok {
				m.Values[k] = v
				m.Origin[k] = l.Source
			}
		}
	}
	return m, nil
}

// Inputs are the sources for one resolution. Nil maps are absent layers.
type Inputs struct {
	File    map[string]string
	Env     map[string]string
	Secrets map[string]string
	// SecretsRequested means a remote document was (or should have been)
	// fetched. It lifts the explicit-password requirement.
	SecretsRequested bool
}

// Layers returns the ordered layers for in.
func (in Inputs) Layers() []Layer {
	layers := []Layer{Defaults()}
	if in.File != nil {
		layers = append(layers, Layer{Source: SourceFile, Values: in.File})
	}
	if in.Env != nil {
		layers = append(layers, Layer{Source: SourceEnv, Values: in.Env})
	}
	if in.Secrets != nil {
		layers = append(layers, Layer{Source: SourceSecrets, Values: in.Secrets})
	}
	return layers
}

// Resolve is resolve(defaults, file, env, secrets?) -> ViewerConfig.
func Resolve(in Inputs) (*model.ViewerConfig, error) {
	if in.SecretsRequested && in.Secrets == nil {
		return nil, errclass.ErrMissingCredential.WithMessage("secrets were requested but no document was retrieved")
	}

	merged, err := Merge(in.Layers()...)
	if err != nil {
		return nil, err
	}

	if !in.SecretsRequested && merged.Origin[model.KeyPassword] == SourceDefaults {
		return nil, errclass.ErrMissingPassword.WithMessage(
			"no PASSWORD in config file or environment; set PASSWORD= explicitly for a timer-only lock")
	}

	return Build(merged)
}

// Build converts merged values into a ViewerConfig.
func Build(m *Merged) (*model.ViewerConfig, error) {
	duration, err := parseSeconds(m, model.KeyDuration)
	if err != nil {
		return nil, err
	}
	overlay, err := parseSeconds(m, model.KeyASCIISeconds)
	if err != nil {
		return nil, err
	}

	var whitelist []string
	if raw, ok := m.Values[model.KeyWhitelist]; ok {
		whitelist, err = ParseWhitelist(raw)
		if err != nil {
			return nil, err
		}
	}

	cfg, err := model.NewViewerConfig(m.Values[model.KeyPassword], duration, overlay, whitelist)
	if err != nil {
		return nil, errclass.ErrConfigInvalid.WithMessage(err.Error())
	}
	return cfg, nil
}

func parseSeconds(m *Merged, key string) (int, error) {
	raw := strings.TrimSpace(m.Values[key])
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errclass.ErrConfigInvalid.WithMessagef("%s from %s is not an integer: %q", key, m.Origin[key], raw)
	}
	if n < 0 {
		return 0, errclass.ErrConfigInvalid.WithMessagef("%s from %s must be >= 0, got %d", key, m.Origin[key], n)
	}
	return n, nil
}

// ParseWhitelist splits a comma separated identity list. Blank entries are
// dropped, the rest are normalized and validated. Duplicates collapse.
func ParseWhitelist(raw string) ([]string, error) {
	out := []string{}
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		id, err := pathutil.ValidateIdentity(part)
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}
