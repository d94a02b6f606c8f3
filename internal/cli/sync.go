package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	syncPush  bool
	syncFetch bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push and fetch semantic notes manually",
	Long: `Transports the notes ref by hand. Useful when auto_sync_notes is off
or a hook-time push failed and was flagged for retry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.close()

		push, fetch := syncPush, syncFetch
		if !push && !fetch {
			push, fetch = true, true
		}

		if err := rt.runner.Sync(cmd.Context(), push, fetch); err != nil {
			return err
		}
		fmt.Println(styles.Success.Render("✓") + " notes synchronized with " + rt.cfg.Remote)
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncPush, "push", false, "push the notes ref")
	syncCmd.Flags().BoolVar(&syncFetch, "fetch", false, "fetch the notes ref and import new events")
}
