// Package store persists commits and semantic events in the
// repository-local SQLite database at .svcs/semantic.db. The store is
// append-only for events; re-analysis of a commit replaces that
// commit's event set atomically so repeated runs converge.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/svcs-dev/svcs/internal/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	// journalMode enables concurrent reads while a hook writes.
	journalMode = "WAL"
	// busyTimeoutMS is how long to wait on locks before SQLITE_BUSY.
	busyTimeoutMS = 5000
)

// SchemaVersion is the current store schema version.
const SchemaVersion = 1

// Store wraps the repository-local database.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens (and if needed creates) the database at path, applies
// pending migrations, and returns the store. Opening is idempotent.
func Open(path string, opts ...Option) (*Store, error) {
	const op = "store.Open"

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.StoreWrap(err, op, "failed to create store directory")
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.StoreWrap(err, op, "failed to open database")
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = " + journalMode,
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS),
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.StoreWrap(err, op, "failed to apply "+pragma)
		}
	}

	s := &Store{db: db, path: path, logger: slog.Default().With("component", "store")}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate applies embedded migrations in name order. Migrations are
// forward-only and idempotent: applied versions are skipped.
func (s *Store) migrate() error {
	const op = "store.migrate"

	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return errors.StoreWrap(err, op, "failed to read embedded migrations")
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, filename := range files {
		version := strings.SplitN(filename, "_", 2)[0]

		var applied bool
		err := s.db.QueryRow(
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version,
		).Scan(&applied)
		if err != nil {
			// The migrations table is created by migration 000 itself.
			if version != "000" {
				return errors.Store(op, "schema_migrations missing before "+filename)
			}
		} else if applied {
			continue
		}

		blob, err := migrations.ReadFile("migrations/" + filename)
		if err != nil {
			return errors.StoreWrap(err, op, "failed to read "+filename)
		}
		if _, err := s.db.Exec(string(blob)); err != nil {
			return errors.StoreWrap(err, op, "failed to apply "+filename)
		}
		if _, err := s.db.Exec(
			"INSERT OR IGNORE INTO schema_migrations (version) VALUES (?)", version,
		); err != nil {
			return errors.StoreWrap(err, op, "failed to record "+filename)
		}
		s.logger.Debug("applied migration", "migration", filename)
	}
	return nil
}

// InitMeta writes the singleton repository metadata row if absent and
// refreshes the mutable columns otherwise.
func (s *Store) InitMeta(ctx context.Context, repoPath, branch, configBlob string, now int64) error {
	const op = "store.InitMeta"

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repository_meta (id, repo_path, initialized_at, current_branch, schema_version, config_blob)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			repo_path = excluded.repo_path,
			current_branch = excluded.current_branch,
			config_blob = excluded.config_blob`,
		repoPath, now, branch, SchemaVersion, configBlob)
	if err != nil {
		return errors.StoreWrap(err, op, "failed to write repository metadata")
	}
	return nil
}

// SetCurrentBranch records the checked-out branch.
func (s *Store) SetCurrentBranch(ctx context.Context, branch string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE repository_meta SET current_branch = ? WHERE id = 1", branch)
	if err != nil {
		return errors.StoreWrap(err, "store.SetCurrentBranch", "failed to update branch")
	}
	return nil
}
