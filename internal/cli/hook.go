package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// exitUsage is the exit code for argument-handling programmer errors.
// Everything else exits 0: hooks must never fail the git operation.
const exitUsage = 2

// hookCmd is the hidden shim git invokes. Analysis failures are logged
// and swallowed; only an unknown hook name is a usage error.
var hookCmd = &cobra.Command{
	Use:    "hook <name> [args...]",
	Short:  "Internal entry point for installed git hooks",
	Hidden: true,
	Args:   cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		switch name {
		case "post-commit", "post-merge", "post-checkout", "pre-push":
		default:
			fmt.Fprintf(os.Stderr, "unknown hook %q\n", name)
			os.Exit(exitUsage)
		}

		// SIGINT finishes what is already appended and still exits 0,
		// so git is never blocked.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := setup()
		if err != nil {
			logger.Warn("hook skipped: repository not ready", "hook", name, "error", err)
			return nil
		}
		defer rt.close()

		if err := runHook(ctx, rt, name, args[1:]); err != nil {
			logger.Warn("hook finished with errors", "hook", name, "error", err)
		}
		return nil
	},
}

func runHook(ctx context.Context, rt *runtime, name string, args []string) error {
	switch name {
	case "post-commit":
		return rt.runner.PostCommit(ctx)
	case "post-merge":
		return rt.runner.PostMerge(ctx)
	case "post-checkout":
		// git passes <prev> <new> <flag>; flag "1" means a branch
		// checkout (including the initial clone).
		branchCheckout := len(args) >= 3 && args[2] == "1"
		return rt.runner.PostCheckout(ctx, branchCheckout)
	case "pre-push":
		return rt.runner.PrePush(ctx)
	default:
		return nil
	}
}
