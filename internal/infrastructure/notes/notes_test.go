package notes

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svcs-dev/svcs/internal/infrastructure/gitrepo"
	"github.com/svcs-dev/svcs/internal/infrastructure/store"
	"github.com/svcs-dev/svcs/internal/semantic"
)

func testBatch() []semantic.Event {
	conf := 0.7
	scored := semantic.NewScoredEvent(semantic.EventCodeSimplification,
		"file:a.py", "a.py", "loop to comprehension", conf)
	scored.Reasoning = "loops decreased"
	return []semantic.Event{
		semantic.NewEvent(semantic.EventNodeAdded, "func:f", "a.py", "function f added"),
		semantic.NewEvent(semantic.EventSignatureChanged, "func:f", "a.py", "parameter added"),
		scored,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	const hash = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	events := testBatch()
	// Store-assigned fields must not leak into the payload.
	events[0].ID = 42
	events[0].CommitHash = hash
	events[0].CreatedAt = 12345

	data, err := Encode(hash, "svcs-go/1.0.0", 1700000000, events)
	require.NoError(t, err)

	payload, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, PayloadVersion, payload.Version)
	assert.Equal(t, hash, payload.CommitHash)
	assert.Equal(t, int64(1700000000), payload.Timestamp)
	assert.Equal(t, "svcs-go/1.0.0", payload.Analyzer)
	require.Len(t, payload.SemanticEvents, 3)

	first := payload.SemanticEvents[0]
	assert.Zero(t, first.ID)
	assert.Empty(t, first.CommitHash)
	assert.Zero(t, first.CreatedAt)
	assert.Equal(t, semantic.EventNodeAdded, first.Type)

	third := payload.SemanticEvents[2]
	require.NotNil(t, third.Confidence)
	assert.InDelta(t, 0.7, *third.Confidence, 1e-9)
	assert.Equal(t, "loops decreased", third.Reasoning)
}

func TestDecodeRejectsBadVersions(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"version":"2.0","commit_hash":"x","semantic_events":[]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported payload version")

	_, err = Decode([]byte(`{"version":"banana"}`))
	require.Error(t, err)

	_, err = Decode([]byte(`not json`))
	require.Error(t, err)

	// Any 1.x payload is importable.
	_, err = Decode([]byte(`{"version":"1.1","commit_hash":"x","semantic_events":[]}`))
	require.NoError(t, err)
}

type noteFixture struct {
	svc   *Service
	git   *gitrepo.ServiceImpl
	store *store.Store
	hash  string
}

func newNoteFixture(t *testing.T) *noteFixture {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.py"), []byte("x = 1\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(".")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "t@x", When: time.Now()},
	})
	require.NoError(t, err)

	gitSvc, err := gitrepo.Open(dir)
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(dir, ".svcs", "semantic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return &noteFixture{
		svc:   NewService(gitSvc, st, "svcs-go/test", nil),
		git:   gitSvc,
		store: st,
		hash:  hash.String(),
	}
}

func TestWriteReadNote(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newNoteFixture(t)

	require.NoError(t, f.svc.Write(ctx, f.hash, testBatch()))

	payload, err := f.svc.Read(ctx, f.hash)
	require.NoError(t, err)
	require.NotNil(t, payload)
	assert.Equal(t, f.hash, payload.CommitHash)
	assert.Len(t, payload.SemanticEvents, 3)

	// Absent commit reads as nil.
	missing, err := f.svc.Read(ctx, "0123456789abcdef0123456789abcdef01234567")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestImportIntoStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newNoteFixture(t)

	require.NoError(t, f.svc.Write(ctx, f.hash, testBatch()))

	imported, err := f.svc.ImportIntoStore(ctx, []string{f.hash}, "main")
	require.NoError(t, err)
	assert.Equal(t, 3, imported)

	stored, err := f.store.EventsForCommit(ctx, f.hash)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for _, e := range stored {
		assert.Equal(t, f.hash, e.CommitHash)
		assert.Equal(t, "main", e.Branch)
		assert.Equal(t, "Test <t@x>", e.Author)
	}

	commit, err := f.store.GetCommit(ctx, f.hash)
	require.NoError(t, err)
	assert.True(t, commit.Analyzed)

	// Importing again is a no-op: the dedup key already matches.
	imported, err = f.svc.ImportIntoStore(ctx, []string{f.hash}, "main")
	require.NoError(t, err)
	assert.Zero(t, imported)

	stored, err = f.store.EventsForCommit(ctx, f.hash)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestImportSkipsCommitsUnknownToGit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newNoteFixture(t)

	imported, err := f.svc.ImportIntoStore(ctx,
		[]string{"0123456789abcdef0123456789abcdef01234567"}, "main")
	require.NoError(t, err)
	assert.Zero(t, imported)
}

func TestImportSkipsCommitsWithoutNotes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newNoteFixture(t)

	imported, err := f.svc.ImportIntoStore(ctx, []string{f.hash}, "main")
	require.NoError(t, err)
	assert.Zero(t, imported)
}
