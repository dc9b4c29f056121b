package cli

import (
	"context"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lockview-project/lockview/internal/audit"
	"github.com/lockview-project/lockview/internal/resolver"
	"github.com/lockview-project/lockview/internal/secrets"
	"github.com/lockview-project/lockview/internal/supervisor"
	"github.com/lockview-project/lockview/pkg/color"
	"github.com/lockview-project/lockview/pkg/config"
	"github.com/lockview-project/lockview/pkg/errclass"
	"github.com/lockview-project/lockview/pkg/model"
	"github.com/lockview-project/lockview/pkg/notify"
)

var launchFlags struct {
	repo             string
	branch           string
	dest             string
	viewerSubdir     string
	noInstall        bool
	plain            bool
	notify           bool
	cleanup          bool
	verifyRef        string
	allowRefMismatch bool
	secretsRepo      string
	secretsPath      string
	secretsRef       string
	installHelp      bool
	interactive      bool
	skipCheckout     bool
	configFile       string
	viewerBin        string
}

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Fetch the viewer, write its configuration, and run the window",
	Long: `Fetch the viewer, write its configuration, and run the window.

Configuration is merged from defaults, the config file, the environment
(PASSWORD, DURATION, ASCII_SECONDS, WHITELIST and their VIEWER_ forms), and
an optional remote secrets document, later sources winning.

The launcher exits with the window's status. Before the window starts it
exits with:
  1  prerequisite missing     6  missing password
  2  viewer dir missing       7  ref mismatch
  3  install failed           8  invalid configuration
  4  viewer missing           9  checkout failed
  5  credential or secrets   10  window failed to start`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := launchOptions(cmd)
		if err != nil {
			return err
		}

		apiURL := settings.APIURL
		if env := os.Getenv("LOCKVIEW_API_URL"); env != "" {
			apiURL = env
		}
		deps := supervisor.Deps{}
		if opts.Secrets != nil {
			deps.Secrets = secrets.NewFetcher(apiURL)
		}
		if opts.Notify {
			deps.Notifier = notify.NewClient(apiURL, notify.DefaultConfig())
		}
		if settings.History.Enabled {
			if path, err := historyPath(); err == nil {
				deps.History = audit.NewLog(path)
			}
		}
		if self, err := os.Executable(); err == nil {
			deps.Self = self
		}

		code, err := supervisor.New(opts, deps).Run(context.Background())
		if err != nil {
			if errclass.ExitCode(err) == code {
				return err
			}
			return &exitError{code: code, err: err}
		}
		if code != 0 {
			return &exitError{code: code}
		}
		if !jsonOutput {
			os.Stdout.WriteString(color.Success("Window closed.") + "\n")
		}
		return nil
	},
}

// launchOptions merges flags over the settings file.
func launchOptions(cmd *cobra.Command) (supervisor.Options, error) {
	f := launchFlags
	flags := cmd.Flags()

	pick := func(flag, value, setting, fallback string) string {
		if flags.Changed(flag) {
			return value
		}
		if setting != "" {
			return setting
		}
		return fallback
	}
	pickBool := func(flag string, value, setting bool) bool {
		if flags.Changed(flag) {
			return value
		}
		return setting
	}

	opts := supervisor.Options{
		Repo:             pick("repo", f.repo, settings.Repo, f.repo),
		Branch:           pick("branch", f.branch, settings.Branch, ""),
		Dest:             pick("dest", f.dest, settings.Dest, config.DefaultDest()),
		ViewerSubdir:     pick("viewer-subdir", f.viewerSubdir, settings.ViewerSubdir, "viewer"),
		SkipCheckout:     f.skipCheckout,
		ConfigFile:       f.configFile,
		Environ:          os.Environ(),
		Token:            strings.TrimSpace(os.Getenv("GITHUB_TOKEN")),
		VerifyRef:        f.verifyRef,
		AllowRefMismatch: f.allowRefMismatch,
		NoInstall:        f.noInstall,
		InstallHelp:      f.installHelp,
		ViewerBin:        f.viewerBin,
		Plain:            f.plain || !stdinIsTerminal(),
		Notify:           pickBool("notify", f.notify, settings.Notify),
		Cleanup:          pickBool("cleanup", f.cleanup, settings.Cleanup),
		RunID:            uuid.NewString(),
		Progress:         os.Stderr,
	}
	if jsonOutput {
		opts.Progress = nil
	}
	if host, err := os.Hostname(); err == nil {
		opts.Hostname = host
	}

	secretsRepo := pick("secrets-repo", f.secretsRepo, settings.Secrets.Repo, "")
	if secretsRepo != "" {
		opts.Secrets = &resolver.SecretsLocation{
			Repo: secretsRepo,
			Path: pick("secrets-path", f.secretsPath, settings.Secrets.Path, "viewer.json"),
			Ref:  pick("secrets-ref", f.secretsRef, settings.Secrets.Ref, ""),
		}
		if _, _, err := secrets.ParseOwnerRepo(secretsRepo); err != nil {
			return opts, err
		}
	}
	if opts.AllowRefMismatch && opts.VerifyRef == "" {
		return opts, errclass.ErrConfigInvalid.WithMessage("--allow-ref-mismatch requires --verify-ref")
	}

	if f.interactive {
		if !stdinIsTerminal() {
			return opts, errclass.ErrConfigInvalid.WithMessage("--interactive needs a terminal on stdin")
		}
		opts.PromptPassword = func() (string, error) {
			return promptSecret("Enter viewer password (stored in the viewer's .env): ")
		}
		opts.PromptToken = func() (string, error) {
			return promptSecret("Access token to create the launch issue (blank to skip): ")
		}
		if opts.Secrets != nil && opts.Token == "" {
			tok, err := promptSecret("Access token for the secrets repository: ")
			if err != nil {
				return opts, errclass.ErrMissingCredential.WithMessage(err.Error())
			}
			opts.Token = strings.TrimSpace(tok)
		}
		if needsWhitelistPrompt(opts.Environ) {
			wl, err := promptLine("Comma-separated whitelist of usernames (blank for none): ")
			if err != nil {
				return opts, err
			}
			if strings.TrimSpace(wl) != "" {
				opts.Environ = append(opts.Environ, "VIEWER_WHITELIST="+wl)
			}
		}
	}
	return opts, nil
}

// needsWhitelistPrompt is true only when no whitelist variable is set. A set
// but empty variable means "no whitelist" and is not asked again.
func needsWhitelistPrompt(environ []string) bool {
	env := resolver.EnvLayer(environ)
	_, ok := env[model.KeyWhitelist]
	return !ok
}

func init() {
	f := launchCmd.Flags()
	f.StringVar(&launchFlags.repo, "repo", "https://github.com/lockview-project/viewer", "git URL of the viewer repository")
	f.StringVar(&launchFlags.branch, "branch", "", "branch to check out")
	f.StringVar(&launchFlags.dest, "dest", "", "checkout directory (default ~/.local/lockview_run)")
	f.StringVar(&launchFlags.viewerSubdir, "viewer-subdir", "viewer", "viewer directory inside the checkout")
	f.BoolVar(&launchFlags.noInstall, "no-install", false, "skip building the viewer")
	f.BoolVar(&launchFlags.plain, "plain", false, "use the line-mode window instead of the full-screen one")
	f.BoolVar(&launchFlags.notify, "notify", false, "open an issue on the repository when the window starts")
	f.BoolVar(&launchFlags.cleanup, "cleanup", false, "erase the written configuration after the window exits")
	f.StringVar(&launchFlags.verifyRef, "verify-ref", "", "require the checkout HEAD to match this ref")
	f.BoolVar(&launchFlags.allowRefMismatch, "allow-ref-mismatch", false, "warn instead of failing on --verify-ref mismatch")
	f.StringVar(&launchFlags.secretsRepo, "secrets-repo", "", "owner/repo holding the secrets document")
	f.StringVar(&launchFlags.secretsPath, "secrets-path", "viewer.json", "path of the secrets document")
	f.StringVar(&launchFlags.secretsRef, "secrets-ref", "", "branch, tag or commit of the secrets document")
	f.BoolVar(&launchFlags.installHelp, "install-help", false, "print install hints for missing tools")
	f.BoolVar(&launchFlags.interactive, "interactive", false, "prompt for missing password, token and whitelist")
	f.BoolVar(&launchFlags.skipCheckout, "skip-checkout", false, "use --dest as-is without git")
	f.StringVar(&launchFlags.configFile, "config-file", "", "KEY=VALUE source file (default <viewer dir>/.env)")
	f.StringVar(&launchFlags.viewerBin, "viewer-bin", "", "window executable (default: built viewer, then lockview itself)")
	rootCmd.AddCommand(launchCmd)
}
