// Package notes serializes per-commit event batches into versioned
// JSON payloads attached under the svcs notes ref, and imports fetched
// payloads back into the store. Notes travel with the repository, so a
// clone that fetches the ref reconstructs the same semantic history.
package notes

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/svcs-dev/svcs/internal/errors"
	"github.com/svcs-dev/svcs/internal/infrastructure/gitrepo"
	"github.com/svcs-dev/svcs/internal/infrastructure/store"
	"github.com/svcs-dev/svcs/internal/semantic"
)

// PayloadVersion is the current note payload format version.
const PayloadVersion = "1.0"

// payloadConstraint accepts any 1.x payload on import.
var payloadConstraint = mustConstraint("^1")

func mustConstraint(expr string) *semver.Constraints {
	c, err := semver.NewConstraint(expr)
	if err != nil {
		panic(err)
	}
	return c
}

// Payload is the JSON document attached as a git note to one commit.
type Payload struct {
	Version        string           `json:"version"`
	CommitHash     string           `json:"commit_hash"`
	Timestamp      int64            `json:"timestamp"`
	Analyzer       string           `json:"analyzer"`
	SemanticEvents []semantic.Event `json:"semantic_events"`
}

// Encode renders the payload for a commit's event batch.
func Encode(commitHash, analyzer string, timestamp int64, events []semantic.Event) ([]byte, error) {
	// Store-assigned fields stay out of the payload; they are
	// reassigned on import.
	slim := make([]semantic.Event, len(events))
	for i, e := range events {
		e.ID = 0
		e.CommitHash = ""
		e.CreatedAt = 0
		slim[i] = e
	}

	payload := Payload{
		Version:        PayloadVersion,
		CommitHash:     commitHash,
		Timestamp:      timestamp,
		Analyzer:       analyzer,
		SemanticEvents: slim,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NotesWrap(err, "notes.Encode", "failed to marshal payload")
	}
	return data, nil
}

// Decode parses and version-checks a note payload.
func Decode(data []byte) (*Payload, error) {
	const op = "notes.Decode"

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.NotesWrap(err, op, "malformed note payload")
	}

	version, err := semver.NewVersion(p.Version)
	if err != nil {
		return nil, errors.Notes(op, "payload carries invalid version "+p.Version)
	}
	if !payloadConstraint.Check(version) {
		return nil, errors.Notes(op, "unsupported payload version "+p.Version)
	}
	return &p, nil
}

// Service ties the payload codec to the git transport and the store.
type Service struct {
	git      gitrepo.Service
	store    *store.Store
	analyzer string
	logger   *slog.Logger
}

// NewService creates the notes service. The analyzer string identifies
// the producer in payloads (e.g. "svcs-go/1.2.0").
func NewService(git gitrepo.Service, st *store.Store, analyzer string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		git:      git,
		store:    st,
		analyzer: analyzer,
		logger:   logger.With("component", "notes"),
	}
}

// Write attaches the event batch as a note on the commit, overwriting
// any existing note.
func (s *Service) Write(ctx context.Context, commitHash string, events []semantic.Event) error {
	payload, err := Encode(commitHash, s.analyzer, time.Now().Unix(), events)
	if err != nil {
		return err
	}
	if err := s.git.WriteNote(ctx, commitHash, payload); err != nil {
		return errors.NotesWrap(err, "notes.Write", "failed to attach note")
	}
	return nil
}

// Read returns the decoded note for a commit, nil when absent.
func (s *Service) Read(ctx context.Context, commitHash string) (*Payload, error) {
	raw, err := s.git.ReadNote(ctx, commitHash)
	if err != nil {
		return nil, errors.NotesWrap(err, "notes.Read", "failed to read note")
	}
	if raw == nil {
		return nil, nil
	}
	return Decode(raw)
}

// PushRemote pushes the notes ref so semantic history accompanies the
// code push.
func (s *Service) PushRemote(ctx context.Context, remote string) error {
	if err := s.git.PushNotes(ctx, remote); err != nil {
		return errors.NotesWrap(err, "notes.PushRemote", "failed to push notes ref")
	}
	return nil
}

// FetchRemote fetches the notes ref.
func (s *Service) FetchRemote(ctx context.Context, remote string) error {
	if err := s.git.FetchNotes(ctx, remote); err != nil {
		return errors.NotesWrap(err, "notes.FetchRemote", "failed to fetch notes ref")
	}
	return nil
}

// ImportIntoStore reads each commit's note and merges its events into
// the store. Events already present (by dedup key) are skipped, as are
// notes for commits unknown to git. Returns the number of events
// actually inserted.
func (s *Service) ImportIntoStore(ctx context.Context, commitHashes []string, branch string) (int, error) {
	imported := 0
	for _, hash := range commitHashes {
		if err := ctx.Err(); err != nil {
			return imported, errors.NotesWrap(err, "notes.ImportIntoStore", "canceled")
		}
		if !s.git.HasCommit(ctx, hash) {
			s.logger.Warn("skipping note for commit unknown to git", "commit", hash)
			continue
		}

		payload, err := s.Read(ctx, hash)
		if err != nil {
			s.logger.Warn("skipping unreadable note", "commit", hash, "error", err)
			continue
		}
		if payload == nil {
			continue
		}

		commit, err := s.git.Commit(ctx, hash)
		if err != nil {
			s.logger.Warn("skipping note for unloadable commit", "commit", hash, "error", err)
			continue
		}
		commit.Branch = branch
		if err := s.store.RecordCommit(ctx, *commit); err != nil {
			return imported, err
		}

		added, err := s.store.MergeEvents(ctx, hash, payload.SemanticEvents)
		if err != nil {
			return imported, err
		}
		if added > 0 {
			if err := s.store.MarkAnalyzed(ctx, hash); err != nil {
				return imported, err
			}
		}
		imported += added
	}
	return imported, nil
}
