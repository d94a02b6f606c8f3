package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/svcs-dev/svcs/internal/errors"
	"github.com/svcs-dev/svcs/internal/semantic"
)

// AppendEvents stores a commit's event batch atomically. Idempotence is
// keyed by commit: any previously stored events for the commit are
// replaced inside the same transaction, so re-analysis converges on the
// single-run state. Events with unknown types are rejected before the
// transaction starts; the commit record must already exist.
func (s *Store) AppendEvents(ctx context.Context, commitHash string, events []semantic.Event) error {
	const op = "store.AppendEvents"

	commit, err := s.GetCommit(ctx, commitHash)
	if err != nil {
		return err
	}
	for i := range events {
		if !semantic.Known(events[i].Type) {
			return errors.Store(op, "unknown event type "+string(events[i].Type))
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StoreWrap(err, op, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM semantic_events WHERE commit_hash = ?", commitHash); err != nil {
		return errors.StoreWrap(err, op, "failed to clear previous events")
	}
	if err := insertEvents(ctx, tx, commit, events); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.StoreWrap(err, op, "failed to commit transaction")
	}
	return nil
}

// MergeEvents inserts only events not already present for the commit,
// judged by the note dedup key (commit, type, node, layer, details).
// Used when importing note payloads fetched from a remote.
func (s *Store) MergeEvents(ctx context.Context, commitHash string, events []semantic.Event) (int, error) {
	const op = "store.MergeEvents"

	commit, err := s.GetCommit(ctx, commitHash)
	if err != nil {
		return 0, err
	}

	existing, err := s.EventsForCommit(ctx, commitHash)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(existing))
	for i := range existing {
		seen[existing[i].DedupKey()] = true
	}

	var fresh []semantic.Event
	for _, e := range events {
		if !semantic.Known(e.Type) {
			s.logger.Warn("rejecting unknown event type at import",
				"event_type", e.Type, "commit", commitHash)
			continue
		}
		e.CommitHash = commitHash
		if seen[e.DedupKey()] {
			continue
		}
		seen[e.DedupKey()] = true
		fresh = append(fresh, e)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.StoreWrap(err, op, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := insertEvents(ctx, tx, commit, fresh); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.StoreWrap(err, op, "failed to commit transaction")
	}
	return len(fresh), nil
}

// insertEvents writes the batch inside an open transaction, preserving
// slice order so replay is deterministic.
func insertEvents(ctx context.Context, tx *sql.Tx, commit *semantic.Commit, events []semantic.Event) error {
	const op = "store.insertEvents"

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO semantic_events
			(commit_hash, branch, event_type, node_id, location, details,
			 layer, layer_description, confidence, reasoning, impact, created_at, author)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.StoreWrap(err, op, "failed to prepare insert")
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, e := range events {
		branch := e.Branch
		if branch == "" {
			branch = commit.Branch
		}
		author := e.Author
		if author == "" {
			author = commit.Author
		}
		createdAt := e.CreatedAt
		if createdAt == 0 {
			createdAt = now
		}

		var confidence any
		if e.Confidence != nil {
			confidence = *e.Confidence
		}

		if _, err := stmt.ExecContext(ctx,
			commit.Hash, branch, string(e.Type), e.NodeID, e.Location, e.Details,
			string(e.Layer), e.LayerDescription, confidence, e.Reasoning, e.Impact,
			createdAt, author); err != nil {
			return errors.StoreWrap(err, op, "failed to insert event "+string(e.Type))
		}
	}
	return nil
}

// CleanupUnreachable deletes commits (and, via cascade, their events)
// whose hash is not in the caller-supplied reachable set. The reachable
// set is computed from git by the caller.
func (s *Store) CleanupUnreachable(ctx context.Context, reachable map[string]bool) (int, error) {
	const op = "store.CleanupUnreachable"

	rows, err := s.db.QueryContext(ctx, "SELECT commit_hash FROM commits")
	if err != nil {
		return 0, errors.StoreWrap(err, op, "failed to list commits")
	}
	var doomed []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			rows.Close()
			return 0, errors.StoreWrap(err, op, "failed to scan commit")
		}
		if !reachable[hash] {
			doomed = append(doomed, hash)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, errors.StoreWrap(err, op, "failed to iterate commits")
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.StoreWrap(err, op, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, hash := range doomed {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM commits WHERE commit_hash = ?", hash); err != nil {
			return 0, errors.StoreWrap(err, op, "failed to delete commit "+hash)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.StoreWrap(err, op, "failed to commit transaction")
	}
	return len(doomed), nil
}
