package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lockview-project/lockview/pkg/config"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for lockview.

  source <(lockview completion bash)        # bash, add to ~/.bashrc
  lockview completion zsh > "${fpath[1]}/_lockview"
  lockview completion fish | source
  lockview completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := cmd.Root()
		var err error
		switch args[0] {
		case "bash":
			err = root.GenBashCompletionV2(os.Stdout, true)
		case "zsh":
			err = root.GenZshCompletion(os.Stdout)
		case "fish":
			err = root.GenFishCompletion(os.Stdout, true)
		case "powershell":
			err = root.GenPowerShellCompletionWithDesc(os.Stdout)
		}
		if err != nil {
			return fmt.Errorf("generate completion for %s: %w", args[0], err)
		}
		return nil
	},
}

// completeSettingKeys offers settings keys as the first positional arg.
func completeSettingKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return config.Keys, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
