package resolver

import (
	"strings"

	"github.com/lockview-project/lockview/pkg/model"
)

// ViewerEnvPrefix marks the launcher's own variable names.
const ViewerEnvPrefix = "VIEWER_"

// EnvLayer extracts recognized keys from environ ("K=V" entries). Bare
// names are read first and VIEWER_-prefixed names override them. A set
// but empty variable is present.
func EnvLayer(environ []string) map[string]string {
	all := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		all[k] = v
	}

	out := map[string]string{}
	for _, k := range model.RecognizedKeys {
		if v, ok := all[k]; ok {
			out[k] = v
		}
	}
	for _, k := range model.RecognizedKeys {
		if v, ok := all[ViewerEnvPrefix+k]; ok {
			out[k] = v
		}
	}
	return out
}

// BareEnvLayer reads only the bare names. A standalone window overlays them
// onto the file it was given; VIEWER_ names belong to the launcher.
func BareEnvLayer(environ []string) map[string]string {
	out := map[string]string{}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		for _, rk := range model.RecognizedKeys {
			if k == rk {
				out[k] = v
			}
		}
	}
	return out
}

// StripConfigEnv drops every recognized key, bare and VIEWER_-prefixed, from
// environ. The window child gets this environment so the materialized file
// is its only configuration source. The result is never nil: a nil Env
// would make exec inherit the full parent environment.
func StripConfigEnv(environ []string) []string {
	drop := make(map[string]bool, 2*len(model.RecognizedKeys))
	for _, k := range model.RecognizedKeys {
		drop[k] = true
		drop[ViewerEnvPrefix+k] = true
	}
	out := make([]string, 0, len(environ))
	for _, kv := range environ {
		k, _, _ := strings.Cut(kv, "=")
		if drop[k] {
			continue
		}
		out = append(out, kv)
	}
	return out
}
