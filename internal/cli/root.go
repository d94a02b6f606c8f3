// Package cli provides the command-line interface for SVCS. It is a
// thin shell: every command resolves the repository, wires the runtime
// from internal packages, and delegates.
package cli

import (
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/svcs-dev/svcs/internal/ai"
	"github.com/svcs-dev/svcs/internal/config"
	"github.com/svcs-dev/svcs/internal/hooks"
	"github.com/svcs-dev/svcs/internal/infrastructure/gitrepo"
	"github.com/svcs-dev/svcs/internal/infrastructure/notes"
	"github.com/svcs-dev/svcs/internal/infrastructure/store"
	"github.com/svcs-dev/svcs/internal/version"
)

var (
	// Global flags.
	verbose bool

	// Logger used by all commands.
	logger *log.Logger

	// Styles.
	styles = struct {
		Success lipgloss.Style
		Error   lipgloss.Style
		Subtle  lipgloss.Style
		Bold    lipgloss.Style
	}{
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Subtle:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Bold:    lipgloss.NewStyle().Bold(true),
	}
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "svcs",
	Short: "Semantic version control analysis for git repositories",
	Long: `SVCS records what a commit means, not just what it touched.

Git hooks analyze every commit into typed semantic events (signature
changes, error handling introduced, generators adopted, dependencies
added), persist them in a repository-local store, and attach them to
commits as git notes so the semantic history travels with the code.

Get started with 'svcs init' inside a git repository.`,
	Version:       version.Get(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger()
	},
}

func initLogger() {
	level := log.WarnLevel
	if verbose || os.Getenv("SVCS_DEBUG") != "" {
		level = log.DebugLevel
	}
	logger = log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: false,
		Prefix:          "svcs",
	})
	slog.SetDefault(slog.New(logger))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(evolutionCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(hookCmd)
}

// runtime bundles the wired dependencies for one repository.
type runtime struct {
	cfg    *config.Config
	git    *gitrepo.ServiceImpl
	store  *store.Store
	notes  *notes.Service
	runner *hooks.Runner
	root   string
}

// setup resolves the repository containing the working directory and
// wires the full pipeline.
func setup() (*runtime, error) {
	gitSvc, err := gitrepo.Open(".")
	if err != nil {
		return nil, err
	}
	root := gitSvc.Root()

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.StorePath(root))
	if err != nil {
		return nil, err
	}

	ns := notes.NewService(gitSvc, st, version.Analyzer(), slog.Default())

	var opts []hooks.Option
	if cfg.AIEnabled {
		analyzer, err := ai.NewAnalyzer(ai.ServiceConfig{
			Provider:       cfg.AIProvider,
			APIKey:         cfg.AIAPIKey,
			Model:          cfg.AIModel,
			MaxTokens:      1024,
			Temperature:    0.2,
			Timeout:        cfg.AITimeout(),
			RetryAttempts:  2,
			RateLimitRPM:   30,
			MaxSourceLines: ai.DefaultMaxSourceLines,
		})
		if err != nil {
			slog.Warn("model layer disabled", "error", err)
		} else {
			opts = append(opts, hooks.WithModel(analyzer, cfg.AIProvider+"/"+cfg.AIModel))
		}
	}

	return &runtime{
		cfg:    cfg,
		git:    gitSvc,
		store:  st,
		notes:  ns,
		runner: hooks.NewRunner(cfg, gitSvc, st, ns, opts...),
		root:   root,
	}, nil
}

func (rt *runtime) close() {
	if rt != nil && rt.store != nil {
		_ = rt.store.Close()
	}
}
