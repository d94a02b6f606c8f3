package gitrepo

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/svcs-dev/svcs/internal/errors"
	"github.com/svcs-dev/svcs/internal/semantic"
)

// Ensure ServiceImpl implements Service.
var _ Service = (*ServiceImpl)(nil)

// ServiceImpl is the go-git implementation of the git service.
type ServiceImpl struct {
	repo *git.Repository
	path string
}

// Open opens the repository containing path.
func Open(path string) (*ServiceImpl, error) {
	const op = "gitrepo.Open"

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.GitWrap(err, op, "failed to resolve path")
	}
	repo, err := git.PlainOpenWithOptions(absPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.GitWrap(err, op, "failed to open repository")
	}
	return &ServiceImpl{repo: repo, path: absPath}, nil
}

// Root returns the worktree root directory.
func (s *ServiceImpl) Root() string {
	wt, err := s.repo.Worktree()
	if err != nil {
		return s.path
	}
	return wt.Filesystem.Root()
}

// Head returns the current HEAD hash and branch name.
func (s *ServiceImpl) Head(ctx context.Context) (string, string, error) {
	const op = "gitrepo.Head"
	if err := ctx.Err(); err != nil {
		return "", "", errors.GitWrap(err, op, "canceled")
	}

	ref, err := s.repo.Head()
	if err != nil {
		return "", "", errors.GitWrap(err, op, "failed to resolve HEAD")
	}
	branch := ""
	if ref.Name().IsBranch() {
		branch = ref.Name().Short()
	}
	return ref.Hash().String(), branch, nil
}

// Commit returns the metadata record for a commit.
func (s *ServiceImpl) Commit(ctx context.Context, hash string) (*semantic.Commit, error) {
	const op = "gitrepo.Commit"
	if err := ctx.Err(); err != nil {
		return nil, errors.GitWrap(err, op, "canceled")
	}

	c, err := s.repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, errors.GitWrap(err, op, "failed to load commit "+hash)
	}

	parents := make([]string, len(c.ParentHashes))
	for i, p := range c.ParentHashes {
		parents[i] = p.String()
	}

	return &semantic.Commit{
		Hash:         c.Hash.String(),
		Author:       fmt.Sprintf("%s <%s>", c.Author.Name, c.Author.Email),
		Timestamp:    c.Author.When.Unix(),
		Message:      c.Message,
		ParentHashes: parents,
	}, nil
}

// HasCommit reports whether the hash names a commit known to git.
func (s *ServiceImpl) HasCommit(_ context.Context, hash string) bool {
	_, err := s.repo.CommitObject(plumbing.NewHash(hash))
	return err == nil
}

// ChangedFiles returns the per-parent file changes of a commit. A root
// commit yields every file as an addition under an empty parent.
func (s *ServiceImpl) ChangedFiles(ctx context.Context, hash string) ([]ParentDiff, error) {
	const op = "gitrepo.ChangedFiles"

	commit, err := s.repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, errors.GitWrap(err, op, "failed to load commit "+hash)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, errors.GitWrap(err, op, "failed to load commit tree")
	}

	if commit.NumParents() == 0 {
		var files []FileChange
		err := tree.Files().ForEach(func(f *object.File) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			contents := fileContents(f)
			if contents == nil {
				return nil
			}
			files = append(files, FileChange{Path: f.Name, After: contents})
			return nil
		})
		if err != nil {
			return nil, errors.GitWrap(err, op, "failed to walk root tree")
		}
		return []ParentDiff{{Files: files}}, nil
	}

	var diffs []ParentDiff
	for i := 0; i < commit.NumParents(); i++ {
		parent, err := commit.Parent(i)
		if err != nil {
			return nil, errors.GitWrap(err, op, "failed to load parent")
		}
		parentTree, err := parent.Tree()
		if err != nil {
			return nil, errors.GitWrap(err, op, "failed to load parent tree")
		}

		changes, err := object.DiffTreeWithOptions(ctx, parentTree, tree, object.DefaultDiffTreeOptions)
		if err != nil {
			return nil, errors.GitWrap(err, op, "failed to diff trees")
		}

		diff := ParentDiff{Parent: parent.Hash.String()}
		for _, change := range changes {
			from, to, err := change.Files()
			if err != nil {
				continue
			}
			fc := FileChange{}
			switch {
			case to != nil:
				fc.Path = change.To.Name
			case from != nil:
				fc.Path = change.From.Name
			default:
				continue
			}
			if from != nil {
				fc.Before = fileContents(from)
			}
			if to != nil {
				fc.After = fileContents(to)
			}
			if fc.Before == nil && fc.After == nil {
				continue
			}
			diff.Files = append(diff.Files, fc)
		}
		diffs = append(diffs, diff)
	}
	return diffs, nil
}

// fileContents loads a blob's bytes, skipping binaries and blobs over
// the size cap.
func fileContents(f *object.File) []byte {
	if f == nil || f.Size > MaxBlobSize {
		return nil
	}
	if binary, err := f.IsBinary(); err != nil || binary {
		return nil
	}
	contents, err := f.Contents()
	if err != nil {
		return nil
	}
	return []byte(contents)
}

// CommitsFromHead lists every commit hash reachable from HEAD.
func (s *ServiceImpl) CommitsFromHead(ctx context.Context) ([]string, error) {
	const op = "gitrepo.CommitsFromHead"

	ref, err := s.repo.Head()
	if err != nil {
		return nil, errors.GitWrap(err, op, "failed to resolve HEAD")
	}

	iter, err := s.repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, errors.GitWrap(err, op, "failed to walk history")
	}
	defer iter.Close()

	var hashes []string
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		hashes = append(hashes, c.Hash.String())
		return nil
	})
	if err != nil {
		return nil, errors.GitWrap(err, op, "history walk aborted")
	}
	return hashes, nil
}

// ReachableSet lists every commit reachable from any local or remote
// ref. Used by cleanup to identify orphaned events.
func (s *ServiceImpl) ReachableSet(ctx context.Context) (map[string]bool, error) {
	const op = "gitrepo.ReachableSet"

	refs, err := s.repo.References()
	if err != nil {
		return nil, errors.GitWrap(err, op, "failed to list references")
	}

	reachable := make(map[string]bool)
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name := ref.Name()
		if name == plumbing.ReferenceName(NotesRef) {
			return nil
		}
		if !name.IsBranch() && !name.IsRemote() && !name.IsTag() && name != plumbing.HEAD {
			return nil
		}

		start, err := s.resolveToCommit(ref.Hash())
		if err != nil {
			return nil // annotated tag to a non-commit, or unrelated object
		}
		iter, err := s.repo.Log(&git.LogOptions{From: start})
		if err != nil {
			return nil
		}
		defer iter.Close()
		return iter.ForEach(func(c *object.Commit) error {
			if reachable[c.Hash.String()] {
				return nil
			}
			reachable[c.Hash.String()] = true
			return nil
		})
	})
	if err != nil {
		return nil, errors.GitWrap(err, op, "reachability walk aborted")
	}
	return reachable, nil
}

// resolveToCommit peels annotated tags down to their commit.
func (s *ServiceImpl) resolveToCommit(hash plumbing.Hash) (plumbing.Hash, error) {
	if _, err := s.repo.CommitObject(hash); err == nil {
		return hash, nil
	}
	tag, err := s.repo.TagObject(hash)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	commit, err := tag.Commit()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return commit.Hash, nil
}

// --- notes plumbing ---
//
// A notes ref points at a commit whose tree maps annotated commit
// hashes to payload blobs. SVCS writes flat entries; reads also follow
// the 2/38 fanout layout other tools may produce.

// ReadNote returns the note payload for a commit, nil when absent.
func (s *ServiceImpl) ReadNote(ctx context.Context, commitHash string) ([]byte, error) {
	const op = "gitrepo.ReadNote"
	if err := ctx.Err(); err != nil {
		return nil, errors.GitWrap(err, op, "canceled")
	}

	tree, err := s.notesTree()
	if err != nil || tree == nil {
		return nil, err
	}

	entry, err := tree.FindEntry(commitHash)
	if err != nil {
		// Fanout layout: ab/cdef...
		entry, err = tree.FindEntry(commitHash[:2] + "/" + commitHash[2:])
		if err != nil {
			return nil, nil
		}
	}

	blob, err := s.repo.BlobObject(entry.Hash)
	if err != nil {
		return nil, errors.GitWrap(err, op, "failed to load note blob")
	}
	reader, err := blob.Reader()
	if err != nil {
		return nil, errors.GitWrap(err, op, "failed to read note blob")
	}
	defer reader.Close()
	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.GitWrap(err, op, "failed to read note payload")
	}
	return payload, nil
}

// WriteNote attaches (or overwrites) the note for a commit.
func (s *ServiceImpl) WriteNote(ctx context.Context, commitHash string, payload []byte) error {
	const op = "gitrepo.WriteNote"
	if err := ctx.Err(); err != nil {
		return errors.GitWrap(err, op, "canceled")
	}

	blobHash, err := s.storeBlob(payload)
	if err != nil {
		return errors.GitWrap(err, op, "failed to store note blob")
	}

	// Collect surviving entries from the current notes tree.
	entries := map[string]plumbing.Hash{commitHash: blobHash}
	var parentHashes []plumbing.Hash
	if ref, err := s.repo.Reference(plumbing.ReferenceName(NotesRef), true); err == nil {
		parentHashes = append(parentHashes, ref.Hash())
		if tree, err := s.notesTree(); err == nil && tree != nil {
			for _, entry := range tree.Entries {
				if entry.Mode == filemode.Regular && entry.Name != commitHash {
					entries[entry.Name] = entry.Hash
				}
			}
		}
	}

	treeHash, err := s.storeTree(entries)
	if err != nil {
		return errors.GitWrap(err, op, "failed to store notes tree")
	}

	commit := &object.Commit{
		Author: object.Signature{
			Name:  "svcs",
			Email: "svcs@localhost",
			When:  time.Now(),
		},
		Message:      "Notes updated by svcs\n",
		TreeHash:     treeHash,
		ParentHashes: parentHashes,
	}
	commit.Committer = commit.Author

	obj := s.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return errors.GitWrap(err, op, "failed to encode notes commit")
	}
	commitHashNew, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return errors.GitWrap(err, op, "failed to store notes commit")
	}

	ref := plumbing.NewHashReference(plumbing.ReferenceName(NotesRef), commitHashNew)
	if err := s.repo.Storer.SetReference(ref); err != nil {
		return errors.GitWrap(err, op, "failed to update notes ref")
	}
	return nil
}

// NotedCommits lists the commits carrying a note.
func (s *ServiceImpl) NotedCommits(ctx context.Context) ([]string, error) {
	const op = "gitrepo.NotedCommits"
	if err := ctx.Err(); err != nil {
		return nil, errors.GitWrap(err, op, "canceled")
	}

	tree, err := s.notesTree()
	if err != nil || tree == nil {
		return nil, err
	}

	var commits []string
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.GitWrap(err, op, "failed to walk notes tree")
		}
		if entry.Mode != filemode.Regular {
			continue
		}
		commits = append(commits, strings.ReplaceAll(name, "/", ""))
	}
	sort.Strings(commits)
	return commits, nil
}

// HasNotesRef reports whether the local notes ref exists.
func (s *ServiceImpl) HasNotesRef(_ context.Context) (bool, error) {
	_, err := s.repo.Reference(plumbing.ReferenceName(NotesRef), true)
	if err == plumbing.ErrReferenceNotFound {
		return false, nil
	}
	if err != nil {
		return false, errors.GitWrap(err, "gitrepo.HasNotesRef", "failed to resolve notes ref")
	}
	return true, nil
}

// PushNotes pushes the notes ref to the remote.
func (s *ServiceImpl) PushNotes(ctx context.Context, remote string) error {
	const op = "gitrepo.PushNotes"

	ctx, cancel := context.WithTimeout(ctx, DefaultRemoteTimeout)
	defer cancel()

	err := s.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{config.RefSpec(NotesRefSpec)},
	})
	if err == git.NoErrAlreadyUpToDate {
		return nil
	}
	if err != nil {
		return errors.GitWrap(err, op, "failed to push notes ref")
	}
	return nil
}

// FetchNotes fetches the notes ref from the remote.
func (s *ServiceImpl) FetchNotes(ctx context.Context, remote string) error {
	const op = "gitrepo.FetchNotes"

	ctx, cancel := context.WithTimeout(ctx, DefaultRemoteTimeout)
	defer cancel()

	err := s.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{config.RefSpec(NotesRefSpec)},
	})
	if err == git.NoErrAlreadyUpToDate {
		return nil
	}
	if err != nil {
		return errors.GitWrap(err, op, "failed to fetch notes ref")
	}
	return nil
}

// notesTree loads the tree behind the notes ref, nil when the ref does
// not exist yet.
func (s *ServiceImpl) notesTree() (*object.Tree, error) {
	ref, err := s.repo.Reference(plumbing.ReferenceName(NotesRef), true)
	if err == plumbing.ErrReferenceNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.GitWrap(err, "gitrepo.notesTree", "failed to resolve notes ref")
	}
	commit, err := s.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, errors.GitWrap(err, "gitrepo.notesTree", "failed to load notes commit")
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, errors.GitWrap(err, "gitrepo.notesTree", "failed to load notes tree")
	}
	return tree, nil
}

// storeBlob writes a blob object and returns its hash.
func (s *ServiceImpl) storeBlob(payload []byte) (plumbing.Hash, error) {
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := writer.Write(payload); err != nil {
		writer.Close()
		return plumbing.ZeroHash, err
	}
	if err := writer.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return s.repo.Storer.SetEncodedObject(obj)
}

// storeTree writes a flat tree object mapping names to blob hashes.
func (s *ServiceImpl) storeTree(entries map[string]plumbing.Hash) (plumbing.Hash, error) {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	tree := &object.Tree{}
	for _, name := range names {
		tree.Entries = append(tree.Entries, object.TreeEntry{
			Name: name,
			Mode: filemode.Regular,
			Hash: entries[name],
		})
	}

	obj := s.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return s.repo.Storer.SetEncodedObject(obj)
}
