package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/svcs-dev/svcs/internal/errors"
	"github.com/svcs-dev/svcs/internal/hooks"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show repository analysis state",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.close()
		ctx := cmd.Context()

		fmt.Println(styles.Bold.Render("repository: ") + rt.root)

		meta, err := rt.store.Meta(ctx)
		switch {
		case errors.IsKind(err, errors.KindNotFound):
			fmt.Println(styles.Error.Render("store not initialized — run `svcs init`"))
		case err != nil:
			return err
		default:
			fmt.Println(styles.Bold.Render("branch:     ") + meta.CurrentBranch)
			last := meta.LastAnalyzedCommit
			if last == "" {
				last = styles.Subtle.Render("(none)")
			} else if len(last) > 8 {
				last = last[:8]
			}
			fmt.Println(styles.Bold.Render("analyzed:   ") + last)
		}

		stats, err := rt.store.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s %d commits, %d events\n", styles.Bold.Render("store:     "), stats.Commits, stats.Events)

		pending, err := rt.store.NotePendingCommits(ctx)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			fmt.Printf("%s %d note write(s) pending — run `svcs sync --push`\n",
				styles.Error.Render("!"), len(pending))
		}

		installed := hooks.Installed(filepath.Join(rt.root, ".git"))
		for _, name := range []string{"post-commit", "post-merge", "post-checkout", "pre-push"} {
			mark := styles.Error.Render("✗")
			if installed[name] {
				mark = styles.Success.Render("✓")
			}
			fmt.Printf("%s hook %s\n", mark, name)
		}
		return nil
	},
}
