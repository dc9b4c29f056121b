package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lockview-project/lockview/internal/audit"
	"github.com/lockview-project/lockview/pkg/color"
	"github.com/lockview-project/lockview/pkg/config"
	"github.com/lockview-project/lockview/pkg/logging"
)

var (
	jsonOutput   bool
	logLevel     string
	noColor      bool
	settingsPath string

	// settings is loaded by the root pre-run hook.
	settings = config.Default()

	rootCmd = &cobra.Command{
		Use:   "lockview",
		Short: "lockview - countdown lock window and launcher",
		Long: `lockview shows a window that cannot be dismissed until the configured
password is entered or the countdown runs out.

The launch command fetches the viewer, resolves its configuration from a
local file, the environment, or a remote secrets document, and supervises
the window process.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "launcher settings file (default $XDG_CONFIG_HOME/lockview/config.yaml)")
}

// setup applies the persistent flags: colors, settings, logging.
func setup(cmd *cobra.Command, args []string) error {
	color.Init(noColor)

	path, err := resolveSettingsPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	settings = cfg

	level := settings.Logging.Level
	if env := os.Getenv("LOCKVIEW_LOG_LEVEL"); env != "" {
		level = env
	}
	if logLevel != "" {
		level = logLevel
	}
	parsed, ok := logging.ParseLevel(level)
	logger := logging.NewLogger(parsed)
	logger.SetFormat(logging.Format(settings.Logging.Format))
	logging.SetGlobal(logger)
	if !ok && level != "" {
		logging.Warn("unknown log level, using info", map[string]any{"level": level})
	}
	return nil
}

func resolveSettingsPath() (string, error) {
	if settingsPath != "" {
		return settingsPath, nil
	}
	return config.DefaultPath()
}

// historyPath locates the launch history: the configured path, else next
// to the settings file.
func historyPath() (string, error) {
	if settings.History.Path != "" {
		return settings.History.Path, nil
	}
	path, err := resolveSettingsPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(path), audit.DefaultName), nil
}

// Execute runs the root command and exits with the command's status.
func Execute() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var ex *exitError
	if errors.As(err, &ex) && ex.err == nil {
		return ex.code
	}
	fmtErr("%v", err)
	if hint := suggestFix(err); hint != "" {
		fmt.Fprintln(os.Stderr, "  "+hint)
	}
	return exitCode(err)
}

// outputJSON prints v as JSON if --json flag is set, otherwise does nothing.
func outputJSON(v any) error {
	if !jsonOutput {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
