package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lockview-project/lockview/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config <command>",
	Short: "Manage launcher settings",
	Long: `Manage launcher settings stored in $XDG_CONFIG_HOME/lockview/config.yaml
(or the file given with --settings). Flags passed to launch override them.

Available commands:
  show              - Show current settings
  set <key> <value> - Set a value
  get <key>         - Get a value`,
	DisableFlagsInUseLine: true,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return outputJSON(settings)
		}
		path, err := resolveSettingsPath()
		if err != nil {
			return err
		}

		fmt.Println("# lockview settings")
		fmt.Printf("# Location: %s\n\n", path)
		for _, k := range config.Keys {
			v, _ := settings.Get(k)
			if v == "" {
				v = "(not set)"
			}
			fmt.Printf("%s: %s\n", k, v)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a settings value",
	Long: `Set a settings value.

Examples:
  lockview config set repo https://github.com/acme/viewer
  lockview config set secrets.repo acme/secrets
  lockview config set cleanup true
  lockview config set logging.level debug`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveSettingsPath()
		if err != nil {
			return err
		}
		if err := settings.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := config.Save(path, settings); err != nil {
			return err
		}
		fmt.Printf("Set %s = %s\n", args[0], args[1])
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:               "get <key>",
	Short:             "Get a settings value",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := settings.Get(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(map[string]string{args[0]: v})
		}
		fmt.Println(v)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	rootCmd.AddCommand(configCmd)
}
