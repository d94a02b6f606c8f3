package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/svcs-dev/svcs/internal/infrastructure/store"
	"github.com/svcs-dev/svcs/internal/semantic"
)

var (
	eventsBranch   string
	eventsAuthor   string
	eventsTypes    []string
	eventsNode     string
	eventsPath     string
	eventsLayers   []string
	eventsMinConf  float64
	eventsLimit    int
	eventsOffset   int
	eventsOrderBy  string
	eventsDescend  bool
	evolutionLimit int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List semantic events with filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.close()

		filter := store.EventFilter{
			Branch:        eventsBranch,
			AuthorPattern: eventsAuthor,
			NodePattern:   eventsNode,
			PathPattern:   eventsPath,
			Limit:         eventsLimit,
			Offset:        eventsOffset,
			OrderBy:       eventsOrderBy,
			Descending:    eventsDescend,
		}
		for _, t := range eventsTypes {
			filter.EventTypes = append(filter.EventTypes, semantic.EventType(t))
		}
		for _, l := range eventsLayers {
			filter.Layers = append(filter.Layers, semantic.Layer(l))
		}
		if cmd.Flags().Changed("min-confidence") {
			filter.MinConfidence = &eventsMinConf
		}

		events, err := rt.store.QueryEvents(cmd.Context(), filter)
		if err != nil {
			return err
		}
		printEvents(events)
		return nil
	},
}

var evolutionCmd = &cobra.Command{
	Use:   "evolution <node-id>",
	Short: "Show the semantic history of one node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.close()

		events, err := rt.store.EvolutionOf(cmd.Context(), args[0],
			store.EventFilter{Limit: evolutionLimit})
		if err != nil {
			return err
		}
		printEvents(events)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the semantic store",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.close()

		stats, err := rt.store.Stats(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("%s %d commits, %d events, %d distinct event types\n",
			styles.Bold.Render("store:"), stats.Commits, stats.Events, stats.DistinctEventTypes)
		printDistribution("by layer", stats.ByLayer)
		printDistribution("by event type", stats.ByEventType)
		printDistribution("by author", stats.ByAuthor)
		printDistribution("by branch", stats.ByBranch)
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete events for commits unreachable from any ref",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.close()

		deleted, err := rt.runner.Cleanup(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s removed %d orphaned commit(s)\n", styles.Success.Render("✓"), deleted)
		return nil
	},
}

func printEvents(events []semantic.Event) {
	if len(events) == 0 {
		fmt.Println(styles.Subtle.Render("no events"))
		return
	}
	for _, e := range events {
		confidence := ""
		if e.Confidence != nil {
			confidence = fmt.Sprintf(" (%.2f)", *e.Confidence)
		}
		commit := e.CommitHash
		if len(commit) > 8 {
			commit = commit[:8]
		}
		fmt.Printf("%s %s %s%s  %s  %s\n",
			styles.Subtle.Render(commit),
			styles.Bold.Render(string(e.Type)),
			styles.Subtle.Render("L"+string(e.Layer)),
			confidence,
			e.NodeID,
			e.Details)
	}
}

func printDistribution(label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	fmt.Println(styles.Bold.Render(label + ":"))
	for _, k := range keys {
		fmt.Printf("  %-40s %d\n", strings.TrimSpace(k), counts[k])
	}
}

func init() {
	eventsCmd.Flags().StringVar(&eventsBranch, "branch", "", "filter by branch")
	eventsCmd.Flags().StringVar(&eventsAuthor, "author", "", "filter by author (SQL LIKE pattern)")
	eventsCmd.Flags().StringSliceVar(&eventsTypes, "type", nil, "filter by event type (repeatable)")
	eventsCmd.Flags().StringVar(&eventsNode, "node", "", "filter by node id (SQL LIKE pattern)")
	eventsCmd.Flags().StringVar(&eventsPath, "path", "", "filter by file path (SQL LIKE pattern)")
	eventsCmd.Flags().StringSliceVar(&eventsLayers, "layer", nil, "filter by layer (repeatable)")
	eventsCmd.Flags().Float64Var(&eventsMinConf, "min-confidence", 0, "minimum confidence")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "maximum rows")
	eventsCmd.Flags().IntVar(&eventsOffset, "offset", 0, "rows to skip")
	eventsCmd.Flags().StringVar(&eventsOrderBy, "order-by", "timestamp", "timestamp or confidence")
	eventsCmd.Flags().BoolVar(&eventsDescend, "desc", false, "descending order")

	evolutionCmd.Flags().IntVar(&evolutionLimit, "limit", 100, "maximum rows")
}
