// Package gitrepo provides the git operations SVCS needs: commit
// metadata, per-commit file pairs, reachability, and the notes-ref
// plumbing that carries semantic events alongside the repository.
package gitrepo

import (
	"context"
	"time"

	"github.com/svcs-dev/svcs/internal/semantic"
)

// NotesRef is the dedicated reference under which semantic payloads
// travel.
const NotesRef = "refs/notes/svcs-semantic"

// NotesRefSpec is the refspec used for both push and fetch of notes.
const NotesRefSpec = "+" + NotesRef + ":" + NotesRef

// Default timeouts, matching the cost of local versus network calls.
const (
	// DefaultLocalTimeout bounds read-only repository operations.
	DefaultLocalTimeout = 30 * time.Second
	// DefaultRemoteTimeout bounds push and fetch.
	DefaultRemoteTimeout = 60 * time.Second
)

// MaxBlobSize caps file contents loaded for analysis; larger blobs are
// treated as absent so one generated file cannot stall a hook.
const MaxBlobSize = 4 << 20 // 4MB

// FileChange is one changed path with both content versions. A nil
// side means the file does not exist in that version.
type FileChange struct {
	Path   string
	Before []byte
	After  []byte
}

// ParentDiff is the change set of a commit against one parent. Merge
// commits produce one ParentDiff per parent; root commits produce a
// single ParentDiff with an empty Parent.
type ParentDiff struct {
	Parent string
	Files  []FileChange
}

// Service is the git surface consumed by the hooks and the notes
// transport.
type Service interface {
	// Head returns the current HEAD hash and branch name.
	Head(ctx context.Context) (hash, branch string, err error)

	// Commit returns the metadata record for a commit.
	Commit(ctx context.Context, hash string) (*semantic.Commit, error)

	// ChangedFiles returns the per-parent file changes of a commit.
	ChangedFiles(ctx context.Context, hash string) ([]ParentDiff, error)

	// CommitsFromHead lists every commit hash reachable from HEAD.
	CommitsFromHead(ctx context.Context) ([]string, error)

	// ReachableSet lists every commit reachable from any local or
	// remote ref, for store cleanup.
	ReachableSet(ctx context.Context) (map[string]bool, error)

	// ReadNote returns the note payload for a commit, nil when absent.
	ReadNote(ctx context.Context, commitHash string) ([]byte, error)

	// WriteNote attaches (or overwrites) the note for a commit.
	WriteNote(ctx context.Context, commitHash string, payload []byte) error

	// NotedCommits lists the commits carrying a note.
	NotedCommits(ctx context.Context) ([]string, error)

	// HasNotesRef reports whether the local notes ref exists.
	HasNotesRef(ctx context.Context) (bool, error)

	// PushNotes pushes the notes ref to the remote.
	PushNotes(ctx context.Context, remote string) error

	// FetchNotes fetches the notes ref from the remote.
	FetchNotes(ctx context.Context, remote string) error

	// HasCommit reports whether the hash names a commit known to git.
	HasCommit(ctx context.Context, hash string) bool
}
