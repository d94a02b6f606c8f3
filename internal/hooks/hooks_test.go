package hooks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svcs-dev/svcs/internal/config"
	"github.com/svcs-dev/svcs/internal/infrastructure/gitrepo"
	"github.com/svcs-dev/svcs/internal/infrastructure/notes"
	"github.com/svcs-dev/svcs/internal/infrastructure/store"
	"github.com/svcs-dev/svcs/internal/semantic"
)

type fixture struct {
	t      *testing.T
	dir    string
	repo   *git.Repository
	git    *gitrepo.ServiceImpl
	store  *store.Store
	runner *Runner
	cfg    *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return attach(t, dir, repo)
}

func attach(t *testing.T, dir string, repo *git.Repository) *fixture {
	t.Helper()

	gitSvc, err := gitrepo.Open(dir)
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(dir, config.Dir, config.DBFileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	ns := notes.NewService(gitSvc, st, "svcs-go/test", nil)

	return &fixture{
		t:      t,
		dir:    dir,
		repo:   repo,
		git:    gitSvc,
		store:  st,
		runner: NewRunner(cfg, gitSvc, st, ns),
		cfg:    cfg,
	}
}

func (f *fixture) write(path, contents string) {
	f.t.Helper()
	full := filepath.Join(f.dir, path)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(f.t, os.WriteFile(full, []byte(contents), 0o644))
}

func (f *fixture) commit(message string) string {
	f.t.Helper()
	wt, err := f.repo.Worktree()
	require.NoError(f.t, err)
	_, err = wt.Add(".")
	require.NoError(f.t, err)
	hash, err := wt.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name: "Dev", Email: "dev@example.com", When: time.Now(),
		},
	})
	require.NoError(f.t, err)
	return hash.String()
}

func TestPostCommitAnalyzesHead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.write("greet.py", "def greet(name):\n    return f\"Hello, {name}!\"\n")
	hash := f.commit("add greet")

	require.NoError(t, f.runner.PostCommit(ctx))

	events, err := f.store.EventsForCommit(ctx, hash)
	require.NoError(t, err)
	require.NotEmpty(t, events)

	types := map[semantic.EventType]bool{}
	for _, e := range events {
		types[e.Type] = true
		assert.Equal(t, hash, e.CommitHash)
		assert.Equal(t, "Dev <dev@example.com>", e.Author)
	}
	assert.True(t, types[semantic.EventFileAdded])
	assert.True(t, types[semantic.EventNodeAdded])

	commit, err := f.store.GetCommit(ctx, hash)
	require.NoError(t, err)
	assert.True(t, commit.Analyzed)
	assert.False(t, commit.NotePending)

	// The note was attached with the same batch.
	payload, err := f.git.ReadNote(ctx, hash)
	require.NoError(t, err)
	require.NotNil(t, payload)
	decoded, err := notes.Decode(payload)
	require.NoError(t, err)
	assert.Len(t, decoded.SemanticEvents, len(events))
}

func TestAnalyzeCommitIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.write("a.py", "def f(x):\n    return x\n")
	hash := f.commit("one")

	require.NoError(t, f.runner.AnalyzeCommit(ctx, hash))
	first, err := f.store.EventsForCommit(ctx, hash)
	require.NoError(t, err)

	require.NoError(t, f.runner.AnalyzeCommit(ctx, hash))
	second, err := f.store.EventsForCommit(ctx, hash)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Type, second[i].Type)
		assert.Equal(t, first[i].NodeID, second[i].NodeID)
		assert.Equal(t, first[i].Details, second[i].Details)
	}
}

func TestPostCommitSecondCommitDiffsAgainstParent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.write("greet.py", "def greet(name):\n    return name\n")
	f.commit("initial")

	f.write("greet.py", "def greet(name, greeting=\"Hello\"):\n    return name\n")
	second := f.commit("add default param")

	require.NoError(t, f.runner.PostCommit(ctx))

	events, err := f.store.EventsForCommit(ctx, second)
	require.NoError(t, err)

	types := map[semantic.EventType]bool{}
	for _, e := range events {
		types[e.Type] = true
	}
	assert.True(t, types[semantic.EventSignatureChanged])
	assert.True(t, types[semantic.EventDefaultParametersAdded])
	assert.False(t, types[semantic.EventFileAdded])
}

func TestIgnorePatternsSkipFiles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.cfg.IgnorePatterns = []string{"vendor/*"}

	f.write("vendor/lib.py", "def vendored():\n    return 1\n")
	f.write("app.py", "def app():\n    return 2\n")
	hash := f.commit("mixed")

	require.NoError(t, f.runner.AnalyzeCommit(ctx, hash))

	events, err := f.store.EventsForCommit(ctx, hash)
	require.NoError(t, err)
	for _, e := range events {
		assert.NotContains(t, e.Location, "vendor/")
	}
}

func TestUnsupportedFilesAreSkipped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.write("README.md", "# readme\n")
	hash := f.commit("docs only")

	require.NoError(t, f.runner.AnalyzeCommit(ctx, hash))

	events, err := f.store.EventsForCommit(ctx, hash)
	require.NoError(t, err)
	assert.Empty(t, events)

	commit, err := f.store.GetCommit(ctx, hash)
	require.NoError(t, err)
	assert.True(t, commit.Analyzed)
}

func TestPrePushWithoutRemoteDoesNotFail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.write("a.py", "x = 1\n")
	f.commit("one")
	require.NoError(t, f.runner.PostCommit(ctx))

	// No remote configured: push fails internally, hook still succeeds.
	require.NoError(t, f.runner.PrePush(ctx))
}

func TestCloneThenImportReproducesEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	origin := newFixture(t)
	origin.write("greet.py", "def greet(name):\n    return f\"Hello, {name}!\"\n")
	hash := origin.commit("add greet")
	require.NoError(t, origin.runner.PostCommit(ctx))

	originEvents, err := origin.store.EventsForCommit(ctx, hash)
	require.NoError(t, err)
	require.NotEmpty(t, originEvents)

	// Fresh clone into a second directory.
	cloneDir := t.TempDir()
	cloneRepo, err := git.PlainClone(cloneDir, false, &git.CloneOptions{URL: origin.dir})
	require.NoError(t, err)

	clone := attach(t, cloneDir, cloneRepo)

	// The clone's post-checkout fetches the notes ref and imports.
	require.NoError(t, clone.runner.PostCheckout(ctx, true))

	cloneEvents, err := clone.store.EventsForCommit(ctx, hash)
	require.NoError(t, err)
	require.Len(t, cloneEvents, len(originEvents))

	originKeys := map[string]int{}
	for i := range originEvents {
		originKeys[originEvents[i].DedupKey()]++
	}
	cloneKeys := map[string]int{}
	for i := range cloneEvents {
		cloneKeys[cloneEvents[i].DedupKey()]++
	}
	assert.Equal(t, originKeys, cloneKeys, "clone reconstructs the same event multiset")
}

func TestPostCheckoutBranchSwitchIsCheap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.write("a.py", "x = 1\n")
	f.commit("one")
	require.NoError(t, f.runner.PostCommit(ctx))
	require.NoError(t, f.store.InitMeta(ctx, f.dir, "master", "{}", time.Now().Unix()))

	// A file checkout (flag false) only refreshes branch metadata.
	require.NoError(t, f.runner.PostCheckout(ctx, false))

	meta, err := f.store.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, "master", meta.CurrentBranch)
}

func TestCleanupRemovesOrphanedCommits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.write("a.py", "x = 1\n")
	hash := f.commit("one")
	require.NoError(t, f.runner.AnalyzeCommit(ctx, hash))

	// Record a commit that git does not know about.
	orphan := semantic.Commit{
		Hash: "1234567890123456789012345678901234567890", Branch: "gone",
	}
	require.NoError(t, f.store.RecordCommit(ctx, orphan))

	deleted, err := f.runner.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = f.store.GetCommit(ctx, hash)
	assert.NoError(t, err)
}

func TestAnalyzeAllBackfillsHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.write("a.py", "def f():\n    return 1\n")
	first := f.commit("one")
	f.write("a.py", "def f():\n    return 2\n")
	second := f.commit("two")

	analyzed, err := f.runner.AnalyzeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, analyzed)

	for _, hash := range []string{first, second} {
		c, err := f.store.GetCommit(ctx, hash)
		require.NoError(t, err)
		assert.True(t, c.Analyzed, hash)
	}

	// Everything analyzed: the second run is a no-op.
	analyzed, err = f.runner.AnalyzeAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, analyzed)
}

func TestMergeCommitAnalyzedPerParent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.write("a.py", "def f():\n    return 1\n")
	f.commit("base")

	wt, err := f.repo.Worktree()
	require.NoError(t, err)

	// Branch: change on a feature branch, then move master forward,
	// then merge with a synthetic two-parent commit.
	head, err := f.repo.Head()
	require.NoError(t, err)
	base := head.Hash()

	f.write("a.py", "def f():\n    return 1\n\ndef g():\n    return 2\n")
	featureTip := f.commit("feature work")

	require.NoError(t, wt.Checkout(&git.CheckoutOptions{Hash: base, Force: true}))
	f.write("b.py", "def h():\n    return 3\n")
	_, err = wt.Add(".")
	require.NoError(t, err)
	masterTip, err := wt.Commit("master work", &git.CommitOptions{
		Author: &object.Signature{Name: "Dev", Email: "dev@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	// Synthetic merge commit carrying both parents.
	f.write("a.py", "def f():\n    return 1\n\ndef g():\n    return 2\n")
	_, err = wt.Add(".")
	require.NoError(t, err)
	mergeHash, err := wt.Commit("merge feature", &git.CommitOptions{
		Parents: []plumbing.Hash{masterTip, plumbing.NewHash(featureTip)},
		Author: &object.Signature{
			Name: "Dev", Email: "dev@example.com", When: time.Now(),
		},
	})
	require.NoError(t, err)

	require.NoError(t, f.runner.AnalyzeCommit(ctx, mergeHash.String()))

	events, err := f.store.EventsForCommit(ctx, mergeHash.String())
	require.NoError(t, err)

	// Events exist and are unique by the dedup key even though two
	// parent diffs were analyzed.
	seen := map[string]bool{}
	for i := range events {
		key := events[i].DedupKey()
		assert.False(t, seen[key], "duplicate event after merge analysis: %s", key)
		seen[key] = true
	}
	assert.NotEmpty(t, events)
}
