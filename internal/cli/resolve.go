package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lockview-project/lockview/internal/envfile"
	"github.com/lockview-project/lockview/internal/lockwindow"
	"github.com/lockview-project/lockview/internal/resolver"
	"github.com/lockview-project/lockview/internal/secrets"
	"github.com/lockview-project/lockview/pkg/color"
	"github.com/lockview-project/lockview/pkg/model"
)

var resolveFlags struct {
	envFile       string
	secretsRepo   string
	secretsPath   string
	secretsRef    string
	checkIdentity string
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the effective window configuration",
	Long: `Print the effective window configuration without starting anything.

The password is never printed. Each key shows the source that supplied it:
defaults, file, env or secrets.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := resolver.Request{
			FilePath: resolveFlags.envFile,
			Environ:  os.Environ(),
			Token:    os.Getenv("GITHUB_TOKEN"),
		}
		var src resolver.SecretsSource
		repo := resolveFlags.secretsRepo
		if repo == "" {
			repo = settings.Secrets.Repo
		}
		if repo != "" {
			path := resolveFlags.secretsPath
			if !cmd.Flags().Changed("secrets-path") && settings.Secrets.Path != "" {
				path = settings.Secrets.Path
			}
			req.Secrets = &resolver.SecretsLocation{Repo: repo, Path: path, Ref: resolveFlags.secretsRef}
			apiURL := settings.APIURL
			if env := os.Getenv("LOCKVIEW_API_URL"); env != "" {
				apiURL = env
			}
			src = secrets.NewFetcher(apiURL)
		}

		res, err := resolver.Acquire(context.Background(), req, src)
		if err != nil {
			return err
		}

		out := res.Config.Redacted()
		origins := map[string]string{}
		for k, s := range res.Merged.Origin {
			origins[k] = s.String()
		}
		out["sources"] = origins

		if resolveFlags.checkIdentity != "" {
			out["identity"] = resolveFlags.checkIdentity
			out["whitelisted"] = lockwindow.VerifyIdentity(res.Config, resolveFlags.checkIdentity)
		}

		if jsonOutput {
			return outputJSON(out)
		}
		printResolved(res, out)
		return nil
	},
}

func printResolved(res *resolver.Result, out map[string]any) {
	cfg := res.Config
	origin := func(k string) string {
		return color.Dim("(" + res.Merged.Origin[k].String() + ")")
	}

	pw := "(set)"
	if cfg.TimerOnly() {
		pw = "(none, timer only)"
	}
	fmt.Printf("%s %s %s\n", color.Header("password:"), pw, origin(model.KeyPassword))
	fmt.Printf("%s %ds %s\n", color.Header("duration:"), cfg.Duration(), origin(model.KeyDuration))
	fmt.Printf("%s %ds %s\n", color.Header("overlay:"), cfg.OverlaySeconds(), origin(model.KeyASCIISeconds))
	if cfg.HasWhitelist() {
		wl := append([]string{}, cfg.Whitelist()...)
		sort.Strings(wl)
		fmt.Printf("%s %s %s\n", color.Header("whitelist:"), strings.Join(wl, ", "), origin(model.KeyWhitelist))
	} else {
		fmt.Printf("%s (not set)\n", color.Header("whitelist:"))
	}
	if id, ok := out["identity"]; ok {
		if out["whitelisted"] == true {
			fmt.Printf("%s is %s\n", id, color.Success("whitelisted"))
		} else {
			fmt.Printf("%s is %s\n", id, color.Warning("not whitelisted"))
		}
	}
}

func init() {
	f := resolveCmd.Flags()
	f.StringVar(&resolveFlags.envFile, "env", envfile.DefaultName, "KEY=VALUE config file")
	f.StringVar(&resolveFlags.secretsRepo, "secrets-repo", "", "owner/repo holding the secrets document")
	f.StringVar(&resolveFlags.secretsPath, "secrets-path", "viewer.json", "path of the secrets document")
	f.StringVar(&resolveFlags.secretsRef, "secrets-ref", "", "branch, tag or commit of the secrets document")
	f.StringVar(&resolveFlags.checkIdentity, "check-identity", "", "report whether this username is on the whitelist")
	rootCmd.AddCommand(resolveCmd)
}
