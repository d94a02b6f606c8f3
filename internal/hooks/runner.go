// Package hooks drives the analysis pipeline at the git lifecycle
// points: post-commit analyzes the new HEAD, post-merge and
// post-checkout import fetched notes, and pre-push ships the notes
// ref. Hook entry points never fail the surrounding git operation;
// they log and return so the CLI shim can exit 0.
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/svcs-dev/svcs/internal/ai"
	"github.com/svcs-dev/svcs/internal/config"
	"github.com/svcs-dev/svcs/internal/differ"
	"github.com/svcs-dev/svcs/internal/infrastructure/gitrepo"
	"github.com/svcs-dev/svcs/internal/infrastructure/notes"
	"github.com/svcs-dev/svcs/internal/infrastructure/store"
	"github.com/svcs-dev/svcs/internal/ir"
	"github.com/svcs-dev/svcs/internal/parser"
	"github.com/svcs-dev/svcs/internal/semantic"
)

// FileTimeout is the soft per-file budget for parse plus diff. Files
// exceeding it are skipped with a parse_degraded marker.
const FileTimeout = 30 * time.Second

// maxParallelFiles bounds concurrent file analysis; all writes go
// through the single store writer afterwards.
const maxParallelFiles = 4

// Runner owns the pipeline dependencies for one repository.
type Runner struct {
	cfg      *config.Config
	git      gitrepo.Service
	store    *store.Store
	notes    *notes.Service
	differ   *differ.Differ
	registry *parser.Registry
	model    ai.Analyzer
	modelID  string
	logger   *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithModel sets the layer-5b analyzer and its identifier.
func WithModel(analyzer ai.Analyzer, modelID string) Option {
	return func(r *Runner) {
		r.model = analyzer
		r.modelID = modelID
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner wires the pipeline for one repository.
func NewRunner(cfg *config.Config, git gitrepo.Service, st *store.Store, ns *notes.Service, opts ...Option) *Runner {
	depth := differ.DepthFull
	if cfg.AnalysisDepth == "shallow" {
		depth = differ.DepthShallow
	}

	r := &Runner{
		cfg:      cfg,
		git:      git,
		store:    st,
		notes:    ns,
		differ:   differ.New(differ.WithDepth(depth)),
		registry: parser.DefaultRegistry(),
		model:    nil,
		logger:   slog.Default().With("component", "hooks"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AnalyzeCommit runs the full pipeline for one commit. Re-running is
// idempotent: the store replaces the commit's event set atomically.
func (r *Runner) AnalyzeCommit(ctx context.Context, commitHash string) error {
	runID := uuid.NewString()
	log := r.logger.With("run_id", runID, "commit", commitHash)

	commit, err := r.git.Commit(ctx, commitHash)
	if err != nil {
		return err
	}
	if _, branch, headErr := r.git.Head(ctx); headErr == nil {
		commit.Branch = branch
	}
	if err := r.store.RecordCommit(ctx, *commit); err != nil {
		return err
	}

	diffs, err := r.git.ChangedFiles(ctx, commitHash)
	if err != nil {
		return err
	}

	// Merge commits are analyzed independently against each parent;
	// events from all parents are recorded against the merge commit,
	// deduplicated by the note identity key.
	seen := make(map[string]bool)
	var events []semantic.Event
	for _, parentDiff := range diffs {
		for _, e := range r.analyzeParentDiff(ctx, log, parentDiff) {
			key := string(e.Type) + "\x1f" + e.NodeID + "\x1f" + string(e.Layer) + "\x1f" + e.Details
			if seen[key] {
				continue
			}
			seen[key] = true
			events = append(events, e)
		}
	}

	if err := r.store.AppendEvents(ctx, commitHash, events); err != nil {
		return err
	}
	if err := r.store.MarkAnalyzed(ctx, commitHash); err != nil {
		return err
	}
	log.Info("commit analyzed", "events", len(events), "files", countFiles(diffs))

	if !r.cfg.AutoSyncNotes {
		return nil
	}
	if err := r.notes.Write(ctx, commitHash, events); err != nil {
		// Non-fatal: flagged for retry by the next sync (N1).
		log.Warn("note write failed, flagged for retry", "error", err)
		if flagErr := r.store.SetNotePending(ctx, commitHash, true); flagErr != nil {
			log.Error("failed to flag pending note", "error", flagErr)
		}
		return nil
	}
	if err := r.store.SetNotePending(ctx, commitHash, false); err != nil {
		log.Error("failed to clear pending note flag", "error", err)
	}
	return nil
}

// analyzeParentDiff analyzes every eligible file of one parent diff.
// Files run in parallel under a bounded group; results are flattened
// in file order so replay stays deterministic.
func (r *Runner) analyzeParentDiff(ctx context.Context, log *slog.Logger, diff gitrepo.ParentDiff) []semantic.Event {
	eligible := make([]gitrepo.FileChange, 0, len(diff.Files))
	for _, fc := range diff.Files {
		if r.cfg.Ignored(fc.Path) {
			continue
		}
		if !r.registry.Supported(fc.Path) {
			continue
		}
		eligible = append(eligible, fc)
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Path < eligible[j].Path })

	results := make([][]semantic.Event, len(eligible))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallelFiles)

	for i, fc := range eligible {
		group.Go(func() error {
			results[i] = r.analyzeFile(groupCtx, log, fc)
			return nil
		})
	}
	_ = group.Wait() // workers only log; they never return errors

	var events []semantic.Event
	for _, res := range results {
		events = append(events, res...)
	}
	return events
}

// analyzeFile parses both sides and runs the differ, under the soft
// per-file timeout. A timed-out or panicking file contributes only a
// parse_degraded marker.
func (r *Runner) analyzeFile(ctx context.Context, log *slog.Logger, fc gitrepo.FileChange) []semantic.Event {
	type outcome struct {
		events []semantic.Event
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("file analysis panicked", "path", fc.Path, "panic", fmt.Sprint(rec))
				done <- outcome{events: []semantic.Event{degradedMarker(fc.Path, "analysis panicked")}}
			}
		}()

		var before, after *ir.IR
		if fc.Before != nil {
			before = r.registry.ParseFile(fc.Path, fc.Before)
		}
		if fc.After != nil {
			after = r.registry.ParseFile(fc.Path, fc.After)
		}

		events := r.differ.Diff(differ.Input{
			Path:      fc.Path,
			Before:    before,
			After:     after,
			BeforeSrc: fc.Before,
			AfterSrc:  fc.After,
		})
		events = append(events, degradedMarkers(fc.Path, before, after)...)
		events = append(events, r.modelEvents(ctx, fc, events)...)
		done <- outcome{events: events}
	}()

	select {
	case out := <-done:
		return out.events
	case <-time.After(FileTimeout):
		log.Warn("file analysis timed out", "path", fc.Path)
		return []semantic.Event{degradedMarker(fc.Path, "analysis timed out")}
	case <-ctx.Done():
		return nil
	}
}

// modelEvents consults the layer-5b analyzer when it is enabled and the
// change produced enough deterministic signal. Provider failures are
// swallowed: the model layer contributes nothing on error.
func (r *Runner) modelEvents(ctx context.Context, fc gitrepo.FileChange, deterministic []semantic.Event) []semantic.Event {
	if r.model == nil || !r.model.IsAvailable() || !r.cfg.AIEnabled {
		return nil
	}
	if len(deterministic) < r.cfg.AIComplexityThreshold {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.AITimeout())
	defer cancel()

	findings, err := r.model.AnalyzeChange(ctx, ai.ChangeRequest{
		Path:         fc.Path,
		BeforeSource: ai.TruncateSource(string(fc.Before), ai.DefaultMaxSourceLines),
		AfterSource:  ai.TruncateSource(string(fc.After), ai.DefaultMaxSourceLines),
	})
	if err != nil {
		r.logger.Debug("model layer contributed nothing", "path", fc.Path, "error", err)
		return nil
	}
	return ai.Events(findings, r.modelID, semantic.FileNodeID(fc.Path), fc.Path)
}

// degradedMarkers emits one parse_degraded marker per degraded side.
func degradedMarkers(path string, before, after *ir.IR) []semantic.Event {
	var events []semantic.Event
	if before != nil && before.Degraded {
		events = append(events, degradedMarker(path, "before: "+before.DegradedDetail))
	}
	if after != nil && after.Degraded {
		events = append(events, degradedMarker(path, "after: "+after.DegradedDetail))
	}
	return events
}

func degradedMarker(path, details string) semantic.Event {
	return semantic.NewEvent(semantic.EventParseDegraded, semantic.FileNodeID(path), path, details)
}

func countFiles(diffs []gitrepo.ParentDiff) int {
	total := 0
	for _, d := range diffs {
		total += len(d.Files)
	}
	return total
}
