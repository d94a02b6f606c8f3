package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	analyzeCommit string
	analyzeAll    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze commits into semantic events",
	Long: `Runs the layered differ over a commit (default HEAD) or over every
reachable commit missing from the store. Re-analysis is idempotent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.close()

		ctx := cmd.Context()
		if analyzeAll {
			analyzed, err := rt.runner.AnalyzeAll(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%s analyzed %d commit(s)\n", styles.Success.Render("✓"), analyzed)
			return nil
		}

		hash := analyzeCommit
		if hash == "" {
			hash, _, err = rt.git.Head(ctx)
			if err != nil {
				return err
			}
		}
		if err := rt.runner.AnalyzeCommit(ctx, hash); err != nil {
			return err
		}

		events, err := rt.store.EventsForCommit(ctx, hash)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s: %d event(s)\n", styles.Success.Render("✓"), hash[:8], len(events))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCommit, "commit", "", "commit hash to analyze (default HEAD)")
	analyzeCmd.Flags().BoolVar(&analyzeAll, "all", false, "analyze every unanalyzed commit reachable from HEAD")
}
