package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svcs-dev/svcs/internal/errors"
	"github.com/svcs-dev/svcs/internal/semantic"
)

const (
	hashA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	hashB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	hashC = "cccccccccccccccccccccccccccccccccccccccc"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "semantic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testCommit(hash, branch, author string, ts int64) semantic.Commit {
	return semantic.Commit{
		Hash:      hash,
		Branch:    branch,
		Author:    author,
		Timestamp: ts,
		Message:   "change something",
	}
}

func testEvents(n int) []semantic.Event {
	events := make([]semantic.Event, 0, n)
	for i := 0; i < n; i++ {
		e := semantic.NewEvent(semantic.EventNodeAdded, "func:f", "a.py",
			fmt.Sprintf("node added %d", i))
		if i%2 == 1 {
			e = semantic.NewEvent(semantic.EventSignatureChanged, "func:f", "a.py",
				fmt.Sprintf("signature changed %d", i))
		}
		events = append(events, e)
	}
	return events
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "semantic.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestInitMetaAndBranch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.InitMeta(ctx, "/repo", "main", "{}", time.Now().Unix()))

	meta, err := s.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/repo", meta.RepoPath)
	assert.Equal(t, "main", meta.CurrentBranch)
	assert.Equal(t, SchemaVersion, meta.SchemaVersion)

	require.NoError(t, s.SetCurrentBranch(ctx, "feature"))
	meta, err = s.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, "feature", meta.CurrentBranch)

	// Re-init keeps the row a singleton.
	require.NoError(t, s.InitMeta(ctx, "/repo", "main", "{}", time.Now().Unix()))
	meta, err = s.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", meta.CurrentBranch)
}

func TestRecordCommitInsertIfAbsent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.RecordCommit(ctx, testCommit(hashA, "main", "alice <a@x>", 100)))
	// Second insert with different metadata is ignored.
	require.NoError(t, s.RecordCommit(ctx, testCommit(hashA, "other", "bob <b@x>", 200)))

	c, err := s.GetCommit(ctx, hashA)
	require.NoError(t, err)
	assert.Equal(t, "main", c.Branch)
	assert.Equal(t, "alice <a@x>", c.Author)
	assert.False(t, c.Analyzed)

	err = s.RecordCommit(ctx, testCommit("nothex", "main", "x", 1))
	require.Error(t, err)
}

func TestAppendEventsRequiresCommit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	err := s.AppendEvents(ctx, hashA, testEvents(1))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestAppendEventsRejectsUnknownType(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.RecordCommit(ctx, testCommit(hashA, "main", "alice <a@x>", 100)))

	bad := []semantic.Event{{Type: "made_up", NodeID: "func:f", Layer: semantic.LayerStructural}}
	err := s.AppendEvents(ctx, hashA, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")

	// Nothing was stored.
	events, err := s.EventsForCommit(ctx, hashA)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAppendEventsIsIdempotentPerCommit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.RecordCommit(ctx, testCommit(hashA, "main", "alice <a@x>", 100)))

	batch := testEvents(4)
	require.NoError(t, s.AppendEvents(ctx, hashA, batch))
	require.NoError(t, s.AppendEvents(ctx, hashA, batch))

	events, err := s.EventsForCommit(ctx, hashA)
	require.NoError(t, err)
	require.Len(t, events, 4, "re-analysis must not accumulate duplicates")

	// Insertion order is preserved and commit fields are inherited.
	assert.Equal(t, semantic.EventNodeAdded, events[0].Type)
	for _, e := range events {
		assert.Equal(t, hashA, e.CommitHash)
		assert.Equal(t, "main", e.Branch)
		assert.Equal(t, "alice <a@x>", e.Author)
		assert.Positive(t, e.ID)
		assert.Positive(t, e.CreatedAt)
	}
}

func TestMergeEventsDeduplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.RecordCommit(ctx, testCommit(hashA, "main", "alice <a@x>", 100)))
	require.NoError(t, s.AppendEvents(ctx, hashA, testEvents(2)))

	incoming := testEvents(3) // first two collide with stored ones
	added, err := s.MergeEvents(ctx, hashA, incoming)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	events, err := s.EventsForCommit(ctx, hashA)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	// Unknown types are skipped with a warning, not fatal.
	added, err = s.MergeEvents(ctx, hashA, []semantic.Event{
		{Type: "bogus", NodeID: "x", Layer: semantic.LayerStructural},
	})
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestQueryEventsFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.RecordCommit(ctx, testCommit(hashA, "main", "alice <a@x>", 100)))
	require.NoError(t, s.RecordCommit(ctx, testCommit(hashB, "feature", "bob <b@x>", 200)))

	conf := 0.8
	mainEvents := []semantic.Event{
		semantic.NewEvent(semantic.EventNodeAdded, "func:greet", "greet.py", "added"),
		semantic.NewEvent(semantic.EventSignatureChanged, "func:greet", "greet.py", "changed"),
	}
	featureEvents := []semantic.Event{
		semantic.NewScoredEvent(semantic.EventCodeSimplification, "file:calc.py", "calc.py", "simpler", conf),
		semantic.NewEvent(semantic.EventNodeRemoved, "func:old", "calc.py", "removed"),
	}
	require.NoError(t, s.AppendEvents(ctx, hashA, mainEvents))
	require.NoError(t, s.AppendEvents(ctx, hashB, featureEvents))

	byBranch, err := s.QueryEvents(ctx, EventFilter{Branch: "feature"})
	require.NoError(t, err)
	assert.Len(t, byBranch, 2)

	byAuthor, err := s.QueryEvents(ctx, EventFilter{AuthorPattern: "alice%"})
	require.NoError(t, err)
	assert.Len(t, byAuthor, 2)

	byType, err := s.QueryEvents(ctx, EventFilter{
		EventTypes: []semantic.EventType{semantic.EventSignatureChanged},
	})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, semantic.EventSignatureChanged, byType[0].Type)

	byNode, err := s.QueryEvents(ctx, EventFilter{NodePattern: "func:%"})
	require.NoError(t, err)
	assert.Len(t, byNode, 3)

	byPath, err := s.QueryEvents(ctx, EventFilter{PathPattern: "calc%"})
	require.NoError(t, err)
	assert.Len(t, byPath, 2)

	minConf := 0.5
	byConf, err := s.QueryEvents(ctx, EventFilter{
		MinConfidence: &minConf,
		Layers:        []semantic.Layer{semantic.LayerAIPattern},
	})
	require.NoError(t, err)
	require.Len(t, byConf, 1)
	require.NotNil(t, byConf[0].Confidence)
	assert.InDelta(t, 0.8, *byConf[0].Confidence, 1e-9)

	limited, err := s.QueryEvents(ctx, EventFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestEvolutionOfOrdersByCommitTime(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	// Inserted out of chronological order on purpose.
	require.NoError(t, s.RecordCommit(ctx, testCommit(hashB, "main", "bob <b@x>", 200)))
	require.NoError(t, s.RecordCommit(ctx, testCommit(hashA, "main", "alice <a@x>", 100)))

	require.NoError(t, s.AppendEvents(ctx, hashB, []semantic.Event{
		semantic.NewEvent(semantic.EventSignatureChanged, "func:greet", "greet.py", "later"),
	}))
	require.NoError(t, s.AppendEvents(ctx, hashA, []semantic.Event{
		semantic.NewEvent(semantic.EventNodeAdded, "func:greet", "greet.py", "earlier"),
	}))

	history, err := s.EvolutionOf(ctx, "func:greet", EventFilter{})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "earlier", history[0].Details)
	assert.Equal(t, "later", history[1].Details)
}

func TestBranchDiff(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.RecordCommit(ctx, testCommit(hashA, "main", "alice <a@x>", 100)))
	require.NoError(t, s.RecordCommit(ctx, testCommit(hashB, "feature", "bob <b@x>", 200)))

	shared := semantic.NewEvent(semantic.EventNodeAdded, "func:shared", "s.py", "added")
	require.NoError(t, s.AppendEvents(ctx, hashA, []semantic.Event{shared}))
	require.NoError(t, s.AppendEvents(ctx, hashB, []semantic.Event{
		shared,
		semantic.NewEvent(semantic.EventSignatureChanged, "func:only", "o.py", "changed"),
	}))

	diff, err := s.BranchDiff(ctx, "feature", "main")
	require.NoError(t, err)
	require.Len(t, diff, 1)
	assert.Equal(t, "func:only", diff[0].NodeID)
}

func TestStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.RecordCommit(ctx, testCommit(hashA, "main", "alice <a@x>", 100)))
	require.NoError(t, s.AppendEvents(ctx, hashA, []semantic.Event{
		semantic.NewEvent(semantic.EventNodeAdded, "func:a", "a.py", "added"),
		semantic.NewEvent(semantic.EventNodeAdded, "func:b", "a.py", "added b"),
		semantic.NewEvent(semantic.EventControlFlowChanged, "func:c", "a.py", "cf"),
	}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Commits)
	assert.Equal(t, 3, stats.Events)
	assert.Equal(t, 2, stats.DistinctEventTypes)
	assert.Equal(t, 2, stats.ByEventType["node_added"])
	assert.Equal(t, 2, stats.ByLayer["1"])
	assert.Equal(t, 1, stats.ByLayer["3"])
	assert.Equal(t, 3, stats.ByAuthor["alice <a@x>"])
	assert.Equal(t, 3, stats.ByBranch["main"])
}

func TestCleanupUnreachable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	for i, hash := range []string{hashA, hashB, hashC} {
		require.NoError(t, s.RecordCommit(ctx, testCommit(hash, "main", "alice <a@x>", int64(100*i+100))))
		require.NoError(t, s.AppendEvents(ctx, hash, testEvents(2)))
	}

	deleted, err := s.CleanupUnreachable(ctx, map[string]bool{hashA: true, hashC: true})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	// Exactly hashB is gone, events cascaded.
	_, err = s.GetCommit(ctx, hashB)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
	events, err := s.EventsForCommit(ctx, hashB)
	require.NoError(t, err)
	assert.Empty(t, events)

	for _, hash := range []string{hashA, hashC} {
		c, err := s.GetCommit(ctx, hash)
		require.NoError(t, err)
		events, err := s.EventsForCommit(ctx, c.Hash)
		require.NoError(t, err)
		assert.Len(t, events, 2)
	}

	// Everything reachable: no-op.
	deleted, err = s.CleanupUnreachable(ctx, map[string]bool{hashA: true, hashC: true})
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestNotePendingLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.RecordCommit(ctx, testCommit(hashA, "main", "alice <a@x>", 100)))
	require.NoError(t, s.RecordCommit(ctx, testCommit(hashB, "main", "alice <a@x>", 200)))

	require.NoError(t, s.SetNotePending(ctx, hashB, true))
	pending, err := s.NotePendingCommits(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{hashB}, pending)

	require.NoError(t, s.SetNotePending(ctx, hashB, false))
	pending, err = s.NotePendingCommits(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMarkAnalyzedAndUnanalyzed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.InitMeta(ctx, "/repo", "main", "{}", time.Now().Unix()))
	require.NoError(t, s.RecordCommit(ctx, testCommit(hashA, "main", "alice <a@x>", 100)))

	unanalyzed, err := s.UnanalyzedCommits(ctx, []string{hashA, hashB})
	require.NoError(t, err)
	assert.Equal(t, []string{hashA, hashB}, unanalyzed)

	require.NoError(t, s.MarkAnalyzed(ctx, hashA))

	unanalyzed, err = s.UnanalyzedCommits(ctx, []string{hashA, hashB})
	require.NoError(t, err)
	assert.Equal(t, []string{hashB}, unanalyzed)

	meta, err := s.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, hashA, meta.LastAnalyzedCommit)
}
