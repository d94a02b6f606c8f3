package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/svcs-dev/svcs/internal/errors"
	"github.com/svcs-dev/svcs/internal/semantic"
)

// RecordCommit inserts a commit record if absent. Existing rows are
// left untouched so re-analysis keeps the original metadata.
func (s *Store) RecordCommit(ctx context.Context, c semantic.Commit) error {
	const op = "store.RecordCommit"

	if err := c.Validate(); err != nil {
		return errors.StoreWrap(err, op, "invalid commit record")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO commits
			(commit_hash, branch, author, timestamp, message, parent_hashes, analyzed, note_pending)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0)`,
		c.Hash, c.Branch, c.Author, c.Timestamp, c.Message,
		strings.Join(c.ParentHashes, " "))
	if err != nil {
		return errors.StoreWrap(err, op, "failed to insert commit")
	}
	return nil
}

// GetCommit returns the commit record, or a not-found error.
func (s *Store) GetCommit(ctx context.Context, hash string) (*semantic.Commit, error) {
	const op = "store.GetCommit"

	row := s.db.QueryRowContext(ctx, `
		SELECT commit_hash, branch, author, timestamp, message, parent_hashes, analyzed, note_pending
		FROM commits WHERE commit_hash = ?`, hash)

	var c semantic.Commit
	var parents string
	err := row.Scan(&c.Hash, &c.Branch, &c.Author, &c.Timestamp, &c.Message,
		&parents, &c.Analyzed, &c.NotePending)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(op, "commit "+hash+" not recorded")
	}
	if err != nil {
		return nil, errors.StoreWrap(err, op, "failed to read commit")
	}
	if parents != "" {
		c.ParentHashes = strings.Fields(parents)
	}
	return &c, nil
}

// MarkAnalyzed flips the analyzed flag and records the commit as the
// last analyzed one in the repository metadata.
func (s *Store) MarkAnalyzed(ctx context.Context, hash string) error {
	const op = "store.MarkAnalyzed"

	if _, err := s.db.ExecContext(ctx,
		"UPDATE commits SET analyzed = 1 WHERE commit_hash = ?", hash); err != nil {
		return errors.StoreWrap(err, op, "failed to mark commit analyzed")
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE repository_meta SET last_analyzed_commit = ? WHERE id = 1", hash); err != nil {
		return errors.StoreWrap(err, op, "failed to update metadata")
	}
	return nil
}

// SetNotePending flags or clears the note-retry marker for a commit.
func (s *Store) SetNotePending(ctx context.Context, hash string, pending bool) error {
	flag := 0
	if pending {
		flag = 1
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE commits SET note_pending = ? WHERE commit_hash = ?", flag, hash)
	if err != nil {
		return errors.StoreWrap(err, "store.SetNotePending", "failed to update note flag")
	}
	return nil
}

// NotePendingCommits lists commits whose note write still needs a retry.
func (s *Store) NotePendingCommits(ctx context.Context) ([]string, error) {
	const op = "store.NotePendingCommits"

	rows, err := s.db.QueryContext(ctx,
		"SELECT commit_hash FROM commits WHERE note_pending = 1 ORDER BY timestamp")
	if err != nil {
		return nil, errors.StoreWrap(err, op, "failed to query pending notes")
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, errors.StoreWrap(err, op, "failed to scan row")
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// UnanalyzedCommits returns, from the given candidates, those not yet
// marked analyzed (including commits the store has never seen).
func (s *Store) UnanalyzedCommits(ctx context.Context, candidates []string) ([]string, error) {
	var out []string
	for _, hash := range candidates {
		c, err := s.GetCommit(ctx, hash)
		if err != nil {
			if errors.IsKind(err, errors.KindNotFound) {
				out = append(out, hash)
				continue
			}
			return nil, err
		}
		if !c.Analyzed {
			out = append(out, hash)
		}
	}
	return out, nil
}

// Meta returns the repository metadata singleton.
func (s *Store) Meta(ctx context.Context) (*semantic.RepositoryMeta, error) {
	const op = "store.Meta"

	row := s.db.QueryRowContext(ctx, `
		SELECT repo_path, initialized_at, last_analyzed_commit, current_branch, schema_version, config_blob
		FROM repository_meta WHERE id = 1`)

	var m semantic.RepositoryMeta
	err := row.Scan(&m.RepoPath, &m.InitializedAt, &m.LastAnalyzedCommit,
		&m.CurrentBranch, &m.SchemaVersion, &m.ConfigBlob)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(op, "store not initialized")
	}
	if err != nil {
		return nil, errors.StoreWrap(err, op, "failed to read metadata")
	}
	return &m, nil
}
