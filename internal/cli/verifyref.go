package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lockview-project/lockview/internal/refverify"
	"github.com/lockview-project/lockview/pkg/color"
	"github.com/lockview-project/lockview/pkg/errclass"
)

var verifyRefCmd = &cobra.Command{
	Use:   "verify-ref <path> <ref>",
	Short: "Check that a checkout is at an expected revision",
	Long: `Check that a checkout is at an expected revision.

Resolves HEAD and <ref> (branch, tag or commit) in the checkout at <path>
and compares the commits. Exits 7 on mismatch or if either cannot be
resolved.

Examples:
  lockview verify-ref ~/.local/lockview_run v1.2.0
  lockview verify-ref . 3f2a9c1`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res := refverify.NewVerifier(nil).Verify(context.Background(), args[0], args[1])

		if jsonOutput {
			if err := outputJSON(res); err != nil {
				return err
			}
			if !res.Match {
				return &exitError{code: errclass.ExitRefMismatch}
			}
			return nil
		}

		if res.Match {
			fmt.Printf("%s  %s %s\n", color.Success("OK"), args[1], color.Dim(res.Head))
			return nil
		}
		if res.Error != "" {
			return errclass.ErrRefMismatch.WithMessage(res.Error)
		}
		fmt.Printf("%s  HEAD %s, %s %s\n", color.Error("MISMATCH"), res.Head, args[1], res.Resolved)
		return &exitError{code: errclass.ExitRefMismatch}
	},
}

func init() {
	rootCmd.AddCommand(verifyRefCmd)
}
