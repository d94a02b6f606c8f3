package hooks

import (
	"context"
)

// PostCommit analyzes the new HEAD commit. Errors are returned for
// logging only; the CLI shim always exits 0.
func (r *Runner) PostCommit(ctx context.Context) error {
	head, _, err := r.git.Head(ctx)
	if err != nil {
		return err
	}
	return r.AnalyzeCommit(ctx, head)
}

// PostMerge imports events for commits the merge introduced that the
// store has not analyzed yet. Ancestor commits already carry their
// events through history; no re-analysis happens here.
func (r *Runner) PostMerge(ctx context.Context) error {
	_, branch, err := r.git.Head(ctx)
	if err != nil {
		return err
	}

	if r.cfg.AutoSyncNotes {
		if err := r.notes.FetchRemote(ctx, r.cfg.Remote); err != nil {
			r.logger.Debug("note fetch after merge failed", "error", err)
		}
	}

	candidates, err := r.git.CommitsFromHead(ctx)
	if err != nil {
		return err
	}
	missing, err := r.store.UnanalyzedCommits(ctx, candidates)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	imported, err := r.notes.ImportIntoStore(ctx, missing, branch)
	if err != nil {
		return err
	}
	r.logger.Info("post-merge import finished",
		"candidates", len(missing), "events_imported", imported)

	// Commits without notes on either side still need local analysis,
	// most importantly the merge commit itself.
	head, _, err := r.git.Head(ctx)
	if err != nil {
		return err
	}
	stillMissing, err := r.store.UnanalyzedCommits(ctx, []string{head})
	if err != nil {
		return err
	}
	if len(stillMissing) > 0 {
		return r.AnalyzeCommit(ctx, head)
	}
	return nil
}

// PostCheckout updates branch metadata and, when the checkout lands in
// a freshly cloned repository, pulls the notes ref and imports the
// whole reachable history. A plain branch switch stays cheap.
func (r *Runner) PostCheckout(ctx context.Context, branchCheckout bool) error {
	_, branch, err := r.git.Head(ctx)
	if err != nil {
		return err
	}
	if err := r.store.SetCurrentBranch(ctx, branch); err != nil {
		r.logger.Debug("branch metadata update failed", "error", err)
	}
	if !branchCheckout {
		return nil
	}

	fresh, err := r.isFreshClone(ctx)
	if err != nil || !fresh {
		return err
	}

	if r.cfg.AutoSyncNotes {
		if err := r.notes.FetchRemote(ctx, r.cfg.Remote); err != nil {
			r.logger.Debug("note fetch after checkout failed", "error", err)
		}
	}

	candidates, err := r.git.CommitsFromHead(ctx)
	if err != nil {
		return err
	}
	imported, err := r.notes.ImportIntoStore(ctx, candidates, branch)
	if err != nil {
		return err
	}
	r.logger.Info("fresh clone import finished",
		"commits", len(candidates), "events_imported", imported)
	return nil
}

// isFreshClone detects a repository whose store has never recorded a
// commit: the post-checkout fired by the initial clone.
func (r *Runner) isFreshClone(ctx context.Context) (bool, error) {
	stats, err := r.store.Stats(ctx)
	if err != nil {
		return false, err
	}
	return stats.Commits == 0, nil
}

// PrePush ships the notes ref alongside the code push, retrying any
// note writes flagged as pending first. Failures never block the push.
func (r *Runner) PrePush(ctx context.Context) error {
	if !r.cfg.AutoSyncNotes {
		return nil
	}

	r.retryPendingNotes(ctx)

	if err := r.notes.PushRemote(ctx, r.cfg.Remote); err != nil {
		r.logger.Warn("notes push failed; retry with `svcs sync`", "error", err)
	}
	return nil
}

// retryPendingNotes re-attempts note writes that failed at commit time.
func (r *Runner) retryPendingNotes(ctx context.Context) {
	pending, err := r.store.NotePendingCommits(ctx)
	if err != nil {
		r.logger.Warn("failed to list pending notes", "error", err)
		return
	}
	for _, hash := range pending {
		events, err := r.store.EventsForCommit(ctx, hash)
		if err != nil {
			r.logger.Warn("failed to load events for pending note", "commit", hash, "error", err)
			continue
		}
		if err := r.notes.Write(ctx, hash, events); err != nil {
			r.logger.Warn("pending note write failed again", "commit", hash, "error", err)
			continue
		}
		if err := r.store.SetNotePending(ctx, hash, false); err != nil {
			r.logger.Warn("failed to clear pending flag", "commit", hash, "error", err)
		}
	}
}

// Sync is the manual transport entry point behind `svcs sync`.
func (r *Runner) Sync(ctx context.Context, push, fetch bool) error {
	_, branch, err := r.git.Head(ctx)
	if err != nil {
		return err
	}

	if fetch {
		if err := r.notes.FetchRemote(ctx, r.cfg.Remote); err != nil {
			return err
		}
		candidates, err := r.git.CommitsFromHead(ctx)
		if err != nil {
			return err
		}
		if _, err := r.notes.ImportIntoStore(ctx, candidates, branch); err != nil {
			return err
		}
	}
	if push {
		r.retryPendingNotes(ctx)
		if err := r.notes.PushRemote(ctx, r.cfg.Remote); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup removes events for commits no longer reachable from any ref.
func (r *Runner) Cleanup(ctx context.Context) (int, error) {
	reachable, err := r.git.ReachableSet(ctx)
	if err != nil {
		return 0, err
	}
	return r.store.CleanupUnreachable(ctx, reachable)
}

// AnalyzeAll analyzes every reachable commit missing from the store,
// oldest first so evolution queries read naturally.
func (r *Runner) AnalyzeAll(ctx context.Context) (int, error) {
	candidates, err := r.git.CommitsFromHead(ctx)
	if err != nil {
		return 0, err
	}
	missing, err := r.store.UnanalyzedCommits(ctx, candidates)
	if err != nil {
		return 0, err
	}

	// Log order is newest-first; reverse for chronological replay.
	analyzed := 0
	for i := len(missing) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return analyzed, err
		}
		if err := r.AnalyzeCommit(ctx, missing[i]); err != nil {
			r.logger.Warn("analysis failed for commit", "commit", missing[i], "error", err)
			continue
		}
		analyzed++
	}
	return analyzed, nil
}
