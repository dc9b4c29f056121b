package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lockview-project/lockview/internal/audit"
	"github.com/lockview-project/lockview/pkg/color"
	"github.com/lockview-project/lockview/pkg/model"
)

var (
	historyLimit  int
	historyRunID  string
	historyVerify bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past launches",
	Long: `Show past launches.

Every launch appends to a hash-chained JSONL file next to the settings
file (see history.path). Newest entries are printed last.

Examples:
  lockview history               # Show all launches
  lockview history -n 5          # Show the last 5 entries
  lockview history --run <id>    # Show one launch
  lockview history --verify      # Check the hash chain`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := historyPath()
		if err != nil {
			return err
		}
		log := audit.NewLog(path)

		if historyVerify {
			n, err := log.Verify()
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(map[string]any{"path": path, "records": n, "valid": true})
			}
			fmt.Printf("%s  %d records in %s\n", color.Success("OK"), n, color.Dim(path))
			return nil
		}

		records, err := log.Records()
		if err != nil {
			return err
		}
		if historyRunID != "" {
			var matched []model.LaunchRecord
			for _, r := range records {
				if r.RunID == historyRunID {
					matched = append(matched, r)
				}
			}
			records = matched
		}
		if historyLimit > 0 && len(records) > historyLimit {
			records = records[len(records)-historyLimit:]
		}

		if jsonOutput {
			if records == nil {
				records = []model.LaunchRecord{}
			}
			return outputJSON(records)
		}
		if len(records) == 0 {
			fmt.Println("No launches recorded.")
			return nil
		}
		for _, r := range records {
			fmt.Printf("%s  %-14s  %s  %s\n",
				color.Dim(r.Timestamp.Local().Format("2006-01-02 15:04:05")),
				r.Event,
				exitLabel(r),
				color.Dim(shortRunID(r.RunID)),
			)
		}
		return nil
	},
}

func exitLabel(r model.LaunchRecord) string {
	label := fmt.Sprintf("exit=%d", r.ExitCode)
	switch {
	case r.Event == model.EventLaunchStarted:
		return color.Dim("running")
	case r.ExitCode == 0:
		return color.Success(label)
	case r.Event == model.EventLaunchAborted:
		return color.Error(label)
	}
	return color.Warning(label)
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "limit number of entries (0 = all)")
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "show only entries of this run id")
	historyCmd.Flags().BoolVar(&historyVerify, "verify", false, "verify the hash chain instead of listing")
	rootCmd.AddCommand(historyCmd)
}
