package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lockview-project/lockview/internal/doctor"
	"github.com/lockview-project/lockview/pkg/color"
	"github.com/lockview-project/lockview/pkg/config"
	"github.com/lockview-project/lockview/pkg/errclass"
)

var (
	doctorInstallHelp bool
	doctorNoInstall   bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check launcher prerequisites",
	Long: `Check launcher prerequisites.

Looks for git and go on PATH and inspects the run directory for leftover
configuration and temp files, and verifies the launch history chain. Use --install-help for platform install
instructions.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := settings.Dest
		if dest == "" {
			dest = config.DefaultDest()
		}
		opts := doctor.Options{
			RequireGo:    !doctorNoInstall,
			InstallHelp:  doctorInstallHelp,
			Dest:         dest,
			ViewerSubdir: settings.ViewerSubdir,
		}
		if settings.History.Enabled {
			if path, err := historyPath(); err == nil {
				opts.HistoryPath = path
			}
		}
		result := doctor.NewDoctor().Check(opts)

		if jsonOutput {
			if err := outputJSON(result); err != nil {
				return err
			}
		} else if len(result.Findings) == 0 {
			fmt.Println(color.Success("All prerequisites found."))
		} else {
			fmt.Printf("Findings (%d):\n", len(result.Findings))
			for _, f := range result.Findings {
				fmt.Printf("  [%s] %s: %s\n", severity(f.Severity), f.Category, f.Description)
				if f.Path != "" {
					fmt.Printf("      %s\n", color.Dim(f.Path))
				}
				if f.Hint != "" {
					fmt.Printf("      %s\n", f.Hint)
				}
			}
		}

		if !result.Healthy {
			return &exitError{code: errclass.ExitPrerequisiteMissing}
		}
		return nil
	},
}

func severity(s string) string {
	switch s {
	case "critical", "error":
		return color.Error(s)
	case "warning":
		return color.Warning(s)
	}
	return color.Dim(s)
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorInstallHelp, "install-help", false, "print install hints for missing tools")
	doctorCmd.Flags().BoolVar(&doctorNoInstall, "no-install", false, "treat go as optional")
	rootCmd.AddCommand(doctorCmd)
}
