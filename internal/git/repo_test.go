package git_test

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/git"
	"github.com/rohankatakam/dropdays/internal/git/gittest"
)

func TestCommitsParentsFirst(t *testing.T) {
	ctx := context.Background()
	b := gittest.New(t)

	root := b.Commit(gittest.Spec{Message: "root", Files: map[string]string{"a": "1"}, Authored: gittest.At(t, "2024-05-01T10:00:00Z")})
	left := b.Commit(gittest.Spec{Message: "left", Files: map[string]string{"a": "2"}, Parents: []plumbing.Hash{root}, Authored: gittest.At(t, "2024-05-02T10:00:00Z")})
	right := b.Commit(gittest.Spec{Message: "right", Files: map[string]string{"a": "1", "b": "1"}, Parents: []plumbing.Hash{root}, Authored: gittest.At(t, "2024-05-03T10:00:00Z")})
	merge := b.Commit(gittest.Spec{Message: "merge", Files: map[string]string{"a": "2", "b": "1"}, Parents: []plumbing.Hash{left, right}, Authored: gittest.At(t, "2024-05-04T10:00:00Z")})

	commits, err := b.Git().Commits(ctx, []plumbing.Hash{merge})
	require.NoError(t, err)
	require.Len(t, commits, 4)

	pos := make(map[plumbing.Hash]int)
	for i, c := range commits {
		pos[c.Hash] = i
	}
	for _, c := range commits {
		for _, p := range c.Parents {
			assert.Less(t, pos[p], pos[c.Hash], "parent %s must precede %s", p, c.Hash)
		}
	}
	assert.Equal(t, []plumbing.Hash{root, left, right, merge},
		[]plumbing.Hash{commits[0].Hash, commits[1].Hash, commits[2].Hash, commits[3].Hash})
	assert.True(t, commits[3].IsMerge())
	assert.True(t, commits[0].IsRoot())
}

func TestCommitsMultipleTipsShareHistory(t *testing.T) {
	ctx := context.Background()
	b := gittest.New(t)

	root := b.Commit(gittest.Spec{Message: "root", Authored: gittest.At(t, "2024-05-01T10:00:00Z")})
	a := b.Commit(gittest.Spec{Message: "a", Parents: []plumbing.Hash{root}, Authored: gittest.At(t, "2024-05-02T10:00:00Z")})
	c := b.Commit(gittest.Spec{Message: "c", Parents: []plumbing.Hash{root}, Authored: gittest.At(t, "2024-05-03T10:00:00Z")})

	commits, err := b.Git().Commits(ctx, []plumbing.Hash{a, c, a})
	require.NoError(t, err)
	require.Len(t, commits, 3)
	assert.Equal(t, root, commits[0].Hash)
}

func TestCommitKeepsOffsets(t *testing.T) {
	ctx := context.Background()
	b := gittest.New(t)

	h := b.Commit(gittest.Spec{
		Message:   "offsets",
		Authored:  gittest.At(t, "2024-05-01T23:30:00-05:00"),
		Committed: gittest.At(t, "2024-05-10T08:00:00+09:00"),
	})

	c, err := b.Git().Commit(ctx, h)
	require.NoError(t, err)

	_, authorOffset := c.Author.When.Zone()
	_, committerOffset := c.Committer.When.Zone()
	assert.Equal(t, -5*3600, authorOffset)
	assert.Equal(t, 9*3600, committerOffset)
	assert.Equal(t, 1, c.Author.When.Day())
}

func TestRefsScopes(t *testing.T) {
	ctx := context.Background()
	b := gittest.New(t)

	root := b.Commit(gittest.Spec{Message: "root", Authored: gittest.At(t, "2024-05-01T10:00:00Z")})
	next := b.Commit(gittest.Spec{Message: "next", Parents: []plumbing.Hash{root}, Authored: gittest.At(t, "2024-05-02T10:00:00Z")})
	b.Branch("master", next)
	b.Branch("feature", root)
	b.Tag("v1", root, "")
	tagObj := b.Tag("v2", next, "release two")

	repo := b.Git()

	current, err := repo.Refs(ctx, git.ScopeCurrentBranch)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, plumbing.ReferenceName("refs/heads/master"), current[0].Name)

	all, err := repo.Refs(ctx, git.ScopeAll)
	require.NoError(t, err)
	require.Len(t, all, 4)

	byName := make(map[string]git.Ref)
	for _, r := range all {
		byName[r.Name.String()] = r
	}
	assert.False(t, byName["refs/tags/v1"].Annotated)
	assert.True(t, byName["refs/tags/v2"].Annotated)
	assert.Equal(t, tagObj, byName["refs/tags/v2"].Hash)
	assert.Equal(t, next, byName["refs/tags/v2"].Commit)

	assert.Equal(t, []plumbing.Hash{root, next}, git.Tips(all[:2]))
}

func TestCurrentBranchPreconditions(t *testing.T) {
	ctx := context.Background()

	empty := gittest.New(t)
	_, err := empty.Git().CurrentBranch(ctx)
	assert.True(t, stderrors.Is(err, errors.ErrPrecondition))

	b := gittest.New(t)
	root := b.Commit(gittest.Spec{Message: "root", Authored: gittest.At(t, "2024-05-01T10:00:00Z")})
	b.Branch("master", root)
	b.Detach(root)
	_, err = b.Git().CurrentBranch(ctx)
	assert.True(t, stderrors.Is(err, errors.ErrPrecondition))
	assert.Contains(t, err.Error(), "detached")
}

func TestUpdateRefCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	b := gittest.New(t)
	repo := b.Git()

	root := b.Commit(gittest.Spec{Message: "root", Authored: gittest.At(t, "2024-05-01T10:00:00Z")})
	next := b.Commit(gittest.Spec{Message: "next", Parents: []plumbing.Hash{root}, Authored: gittest.At(t, "2024-05-02T10:00:00Z")})
	name := plumbing.NewBranchReferenceName("work")

	require.NoError(t, repo.UpdateRef(ctx, name, root, plumbing.ZeroHash))
	assert.Equal(t, root, b.Ref(name))

	err := repo.UpdateRef(ctx, name, next, plumbing.ZeroHash)
	assert.True(t, stderrors.Is(err, git.ErrRefChanged))

	require.NoError(t, repo.UpdateRef(ctx, name, next, root))
	assert.Equal(t, next, b.Ref(name))

	err = repo.DeleteRef(ctx, name, root)
	assert.True(t, stderrors.Is(err, git.ErrRefChanged))

	require.NoError(t, repo.DeleteRef(ctx, name, next))
	got, err := repo.ResolveRef(ctx, name)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestCreateCommitAndRetargetTag(t *testing.T) {
	ctx := context.Background()
	b := gittest.New(t)
	repo := b.Git()

	root := b.Commit(gittest.Spec{Message: "root", Files: map[string]string{"a": "1"}, Authored: gittest.At(t, "2024-05-01T10:00:00+02:00")})
	orig, err := repo.Commit(ctx, root)
	require.NoError(t, err)

	copyHash, err := repo.CreateCommit(ctx, &git.Commit{
		Tree:      orig.Tree,
		Author:    orig.Author,
		Committer: orig.Committer,
		Message:   orig.Message,
	})
	require.NoError(t, err)
	assert.Equal(t, root, copyHash, "identical content hashes identically")

	child, err := repo.CreateCommit(ctx, &git.Commit{
		Tree:      orig.Tree,
		Parents:   []plumbing.Hash{root},
		Author:    orig.Author,
		Committer: orig.Committer,
		Message:   "child\n",
	})
	require.NoError(t, err)

	tagObj := b.Tag("v1", root, "first")
	newTag, err := repo.RetargetTag(ctx, tagObj, child)
	require.NoError(t, err)

	tag, err := b.Repo.TagObject(newTag)
	require.NoError(t, err)
	assert.Equal(t, "v1", tag.Name)
	assert.Equal(t, "first", tag.Message)
	assert.Equal(t, child, tag.Target)
}

func TestInMemoryRepoHasNoExecutable(t *testing.T) {
	ctx := context.Background()
	b := gittest.New(t)
	repo := b.Git()

	clean, err := repo.IsClean(ctx)
	require.NoError(t, err)
	assert.True(t, clean)
	assert.NoError(t, repo.SyncWorktree(ctx))

	_, err = repo.ApplyPatch(ctx, plumbing.ZeroHash, plumbing.ZeroHash, plumbing.ZeroHash)
	assert.True(t, stderrors.Is(err, git.ErrNoExecutable))
}

func TestOpenOutsideRepository(t *testing.T) {
	_, err := git.Open(t.TempDir())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrPrecondition))
}

func TestDiskWorktreeOperations(t *testing.T) {
	ctx := context.Background()
	d := gittest.NewDisk(t)
	d.CommitFile("a.txt", "one\n", "2024-05-01T10:00:00Z", "first")

	repo := d.Open()
	assert.Equal(t, mustEval(t, d.Dir), mustEval(t, repo.Root()))

	clean, err := repo.IsClean(ctx)
	require.NoError(t, err)
	assert.True(t, clean)

	d.Write("a.txt", "dirty\n")
	d.Write("new.txt", "untracked\n")
	clean, err = repo.IsClean(ctx)
	require.NoError(t, err)
	assert.False(t, clean)

	stashed, err := repo.StashPush(ctx, "dropdays test")
	require.NoError(t, err)
	assert.True(t, stashed)

	clean, err = repo.IsClean(ctx)
	require.NoError(t, err)
	assert.True(t, clean)

	require.NoError(t, repo.StashPop(ctx))
	content, err := os.ReadFile(filepath.Join(d.Dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "dirty\n", string(content))

	stashed, err = repo.StashPush(ctx, "dropdays test again")
	require.NoError(t, err)
	assert.True(t, stashed, "dirty tree is stashed again")
	require.NoError(t, repo.StashPop(ctx))

	gitDir, err := repo.GitDir(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(gitDir, ".git"))

	name, email, err := repo.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Test User", name)
	assert.Equal(t, "test@example.com", email)
}

func TestApplyPatch(t *testing.T) {
	ctx := context.Background()
	d := gittest.NewDisk(t)
	d.CommitFile("a.txt", "one\n", "2024-05-01T10:00:00Z", "first")
	first := d.Head()
	d.CommitFile("b.txt", "bee\n", "2024-05-02T10:00:00Z", "second")
	second := d.Head()
	d.CommitFile("b.txt", "bee\nmore\n", "2024-05-03T10:00:00Z", "third")
	third := d.Head()

	repo := d.Open()
	c1, err := repo.Commit(ctx, plumbing.NewHash(first))
	require.NoError(t, err)
	c3, err := repo.Commit(ctx, plumbing.NewHash(third))
	require.NoError(t, err)

	// third's change needs b.txt, which only second introduced.
	_, err = repo.ApplyPatch(ctx, c1.Tree, plumbing.NewHash(second), plumbing.NewHash(third))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, git.ErrPatchRejected))

	// second applies cleanly on first's tree and reproduces second's tree.
	c2, err := repo.Commit(ctx, plumbing.NewHash(second))
	require.NoError(t, err)
	tree, err := repo.ApplyPatch(ctx, c1.Tree, plumbing.NewHash(first), plumbing.NewHash(second))
	require.NoError(t, err)
	assert.Equal(t, c2.Tree, tree)

	// an empty change leaves the base untouched.
	tree, err = repo.ApplyPatch(ctx, c3.Tree, plumbing.NewHash(third), plumbing.NewHash(third))
	require.NoError(t, err)
	assert.Equal(t, c3.Tree, tree)

	clean, err := repo.IsClean(ctx)
	require.NoError(t, err)
	assert.True(t, clean, "apply never touches the real index")
}

func mustEval(t *testing.T, p string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(p)
	require.NoError(t, err)
	return resolved
}

func TestUpdateRefsOnPackedRefs(t *testing.T) {
	ctx := context.Background()
	d := gittest.NewDisk(t)
	d.CommitFile("a.txt", "a\n", "2024-05-01T10:00:00Z", "first")
	d.Git("branch", "side")
	d.CommitFile("b.txt", "b\n", "2024-05-02T10:00:00Z", "second")
	d.Git("pack-refs", "--all")
	repo := d.Open()

	first := plumbing.NewHash(strings.TrimSpace(d.Git("rev-parse", "HEAD~1")))
	second := plumbing.NewHash(d.Head())
	mainRef := plumbing.NewBranchReferenceName("main")
	side := plumbing.NewBranchReferenceName("side")

	err := repo.UpdateRef(ctx, mainRef, first, first)
	assert.True(t, stderrors.Is(err, git.ErrRefChanged))
	assert.Equal(t, second.String(), d.Head(), "a stale swap leaves the packed ref readable")
	_, statErr := os.Stat(filepath.Join(d.Dir, ".git", "refs", "heads", "main"))
	assert.True(t, os.IsNotExist(statErr), "no loose ref file is left behind")

	err = repo.UpdateRefs(ctx, []git.RefChange{
		{Name: side, Old: first, New: second},
		{Name: mainRef, Old: first, New: first},
	})
	assert.True(t, stderrors.Is(err, git.ErrRefChanged))
	assert.Equal(t, first.String(), strings.TrimSpace(d.Git("rev-parse", "side")), "one stale change moves nothing")

	require.NoError(t, repo.UpdateRefs(ctx, []git.RefChange{
		{Name: side, Old: first, New: second},
		{Name: mainRef, Old: second, New: first},
	}))
	assert.Equal(t, first.String(), d.Head())
	assert.Equal(t, second.String(), strings.TrimSpace(d.Git("rev-parse", "side")))

	got, err := repo.ResolveRef(ctx, mainRef)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	require.NoError(t, repo.DeleteRef(ctx, side, second))
	assert.Empty(t, strings.TrimSpace(d.Git("for-each-ref", "refs/heads/side")))
}

func TestUpdateRefsInMemoryRollsBack(t *testing.T) {
	ctx := context.Background()
	b := gittest.New(t)
	repo := b.Git()

	root := b.Commit(gittest.Spec{Message: "root", Authored: gittest.At(t, "2024-05-01T10:00:00Z")})
	next := b.Commit(gittest.Spec{Message: "next", Parents: []plumbing.Hash{root}, Authored: gittest.At(t, "2024-05-02T10:00:00Z")})
	b.Branch("a", root)
	b.Branch("b", root)
	b.Branch("c", next)

	err := repo.UpdateRefs(ctx, []git.RefChange{
		{Name: "refs/heads/a", Old: root, New: next},
		{Name: "refs/heads/b", Old: root},
		{Name: "refs/heads/c", Old: root, New: root},
	})
	assert.True(t, stderrors.Is(err, git.ErrRefChanged))

	assert.Equal(t, root, b.Ref("refs/heads/a"))
	assert.Equal(t, root, b.Ref("refs/heads/b"))
	assert.Equal(t, next, b.Ref("refs/heads/c"))
}
