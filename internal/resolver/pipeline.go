package resolver

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/lockview-project/lockview/internal/envfile"
	"github.com/lockview-project/lockview/internal/secrets"
	"github.com/lockview-project/lockview/pkg/errclass"
	"github.com/lockview-project/lockview/pkg/fsutil"
	"github.com/lockview-project/lockview/pkg/logging"
	"github.com/lockview-project/lockview/pkg/model"
)

// SecretsSource fetches the remote secrets document.
type SecretsSource interface {
	Fetch(ctx context.Context, ownerRepo, path, ref, token string) (secrets.Document, error)
}

// SecretsLocation names the remote document.
type SecretsLocation struct {
	Repo string
	Path string
	Ref  string
}

// Request describes one configuration acquisition.
type Request struct {
	// FilePath is an optional existing KEY=VALUE file. A missing file is an
	// absent layer.
	FilePath string
	Environ  []string
	// BareEnv reads only the bare keys from Environ, ignoring VIEWER_
	// names.
	BareEnv bool
	// Secrets is nil when no remote document is requested.
	Secrets *SecretsLocation
	// Token is the bearer credential for Secrets.
	Token string
	// PromptPassword is set only in interactive mode. It is consulted when
	// no password is configured and no secrets are requested.
	PromptPassword func() (string, error)
}

// WindowRequest is how the window process loads its configuration: the
// materialized file with the bare environment keys on top. A window started
// by the launcher has those keys stripped (StripConfigEnv), so it sees
// exactly what the launcher resolved.
func WindowRequest(path string, environ []string) Request {
	return Request{FilePath: path, Environ: environ, BareEnv: true}
}

// Result is the outcome of Acquire.
type Result struct {
	Config *model.ViewerConfig
	Merged *Merged
	// Base is the parsed source file, kept so Materialize can carry
	// unrecognized keys over. Nil when there was no file.
	Base *envfile.File
}

// Acquire gathers every layer and resolves them. No network call is made
// when the credential is missing.
func Acquire(ctx context.Context, req Request, src SecretsSource) (*Result, error) {
	log := logging.WithFields(map[string]any{"component": "resolver"})
	res := &Result{}
	in := Inputs{Env: EnvLayer(req.Environ)}
	if req.BareEnv {
		in.Env = BareEnvLayer(req.Environ)
	}

	if req.FilePath != "" {
		f, err := envfile.Load(req.FilePath)
		switch {
		case err == nil:
			res.Base = f
			in.File = f.Values()
		case os.IsNotExist(err):
			log.Debug("config file absent", map[string]any{"path": req.FilePath})
		default:
			return nil, errclass.ErrConfigInvalid.WithMessagef("read %s: %v", req.FilePath, err)
		}
	}

	if req.Secrets != nil {
		in.SecretsRequested = true
		if strings.TrimSpace(req.Token) == "" {
			return nil, errclass.ErrMissingCredential.WithMessage("secrets requested but GITHUB_TOKEN is not set")
		}
		if src == nil {
			return nil, fmt.Errorf("secrets requested without a fetcher")
		}
		doc, err := src.Fetch(ctx, req.Secrets.Repo, req.Secrets.Path, req.Secrets.Ref, req.Token)
		if err != nil {
			return nil, err
		}
		in.Secrets = doc.Strings()
		log.Info("secrets document retrieved", map[string]any{"repo": req.Secrets.Repo, "keys": len(in.Secrets)})
	} else if !hasKey(in.File, model.KeyPassword) && !hasKey(in.Env, model.KeyPassword) && req.PromptPassword != nil {
		pw, err := req.PromptPassword()
		if err != nil {
			return nil, errclass.ErrMissingPassword.WithMessagef("prompt: %v", err)
		}
		env := make(map[string]string, len(in.Env)+1)
		for k, v := range in.Env {
			env[k] = v
		}
		env[model.KeyPassword] = pw
		in.Env = env
	}

	merged, err := Merge(in.Layers()...)
	if err != nil {
		return nil, err
	}
	cfg, err := Resolve(in)
	if err != nil {
		return nil, err
	}
	res.Config = cfg
	res.Merged = merged
	return res, nil
}

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}

// Render produces the file contents for cfg on top of base.
func Render(cfg *model.ViewerConfig, base *envfile.File) ([]byte, error) {
	out := envfile.New()
	if base != nil {
		parsed, err := envfile.Parse(strings.NewReader(string(base.Bytes())))
		if err != nil {
			return nil, err
		}
		out = parsed
	}

	if err := out.Set(model.KeyPassword, cfg.Password()); err != nil {
		return nil, errclass.ErrConfigInvalid.WithMessage(err.Error())
	}
	if err := out.Set(model.KeyDuration, fmt.Sprint(cfg.Duration())); err != nil {
		return nil, err
	}
	if err := out.Set(model.KeyASCIISeconds, fmt.Sprint(cfg.OverlaySeconds())); err != nil {
		return nil, err
	}
	if cfg.HasWhitelist() {
		if err := out.Set(model.KeyWhitelist, strings.Join(cfg.Whitelist(), ",")); err != nil {
			return nil, err
		}
	} else {
		out.Delete(model.KeyWhitelist)
	}
	return out.Bytes(), nil
}

// Materialize writes cfg to path atomically with owner-only permissions.
func Materialize(path string, cfg *model.ViewerConfig, base *envfile.File) error {
	data, err := Render(cfg, base)
	if err != nil {
		return err
	}
	if err := fsutil.AtomicWrite(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
