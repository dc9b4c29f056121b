package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lockview-project/lockview/internal/envfile"
	"github.com/lockview-project/lockview/internal/lockwindow"
	"github.com/lockview-project/lockview/internal/resolver"
	"github.com/lockview-project/lockview/pkg/logging"
)

var (
	windowEnvFile string
	windowPlain   bool
)

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Show the lock window",
	Long: `Show the lock window.

Reads PASSWORD, DURATION, ASCII_SECONDS and WHITELIST from the env file,
with the same bare variables from the environment on top, then blocks until the password is entered or the countdown
ends. Close keys and interrupts are ignored while locked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := resolver.Acquire(context.Background(), resolver.WindowRequest(windowEnvFile, os.Environ()), nil)
		if err != nil {
			return err
		}
		cfg := res.Config

		plain := windowPlain || !stdinIsTerminal()
		reason, err := lockwindow.Run(context.Background(), cfg, lockwindow.Options{
			Plain:     plain,
			AltScreen: true,
		})
		if err != nil {
			return err
		}
		logging.Info("window finished", map[string]any{"reason": reason.String()})

		if jsonOutput {
			return outputJSON(map[string]any{"reason": reason.String()})
		}
		if !plain {
			switch reason {
			case lockwindow.ReasonPassword:
				fmt.Println("Unlocked.")
			case lockwindow.ReasonExpired:
				fmt.Println("Time is up.")
			}
		}
		return nil
	},
}

func init() {
	windowCmd.Flags().StringVar(&windowEnvFile, "env", envfile.DefaultName, "KEY=VALUE config file")
	windowCmd.Flags().BoolVar(&windowPlain, "plain", false, "line-mode window")
	rootCmd.AddCommand(windowCmd)
}
