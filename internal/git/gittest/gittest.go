// Package gittest builds small repositories for tests: in-memory go-git
// repositories with hand-picked timestamps, and on-disk repositories
// driven through the git executable.
package gittest

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/dropdays/internal/git"
)

// At parses an RFC 3339 timestamp and keeps its offset.
func At(t testing.TB, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

// Builder creates commits in an in-memory repository.
type Builder struct {
	t    testing.TB
	Repo *gogit.Repository
}

// New creates an empty in-memory repository whose HEAD points at
// refs/heads/master.
func New(t testing.TB) *Builder {
	t.Helper()
	r, err := gogit.Init(memory.NewStorage(), nil)
	require.NoError(t, err)
	return &Builder{t: t, Repo: r}
}

// Git wraps the repository in the module's capability type.
func (b *Builder) Git() *git.Repo {
	return git.FromRepository(b.Repo, "")
}

// Spec describes a commit to create. Zero Committed defaults to Authored.
type Spec struct {
	Message   string
	Files     map[string]string
	Parents   []plumbing.Hash
	Authored  time.Time
	Committed time.Time
}

// Commit stores a commit with a flat tree built from Files.
func (b *Builder) Commit(spec Spec) plumbing.Hash {
	b.t.Helper()

	tree := b.tree(spec.Files)
	committed := spec.Committed
	if committed.IsZero() {
		committed = spec.Authored
	}

	c := &object.Commit{
		Author:       object.Signature{Name: "Author", Email: "author@example.com", When: spec.Authored},
		Committer:    object.Signature{Name: "Committer", Email: "committer@example.com", When: committed},
		Message:      spec.Message,
		TreeHash:     tree,
		ParentHashes: spec.Parents,
	}

	obj := b.Repo.Storer.NewEncodedObject()
	require.NoError(b.t, c.Encode(obj))
	h, err := b.Repo.Storer.SetEncodedObject(obj)
	require.NoError(b.t, err)
	return h
}

func (b *Builder) tree(files map[string]string) plumbing.Hash {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	t := &object.Tree{}
	for _, name := range names {
		t.Entries = append(t.Entries, object.TreeEntry{
			Name: name,
			Mode: filemode.Regular,
			Hash: b.blob(files[name]),
		})
	}

	obj := b.Repo.Storer.NewEncodedObject()
	require.NoError(b.t, t.Encode(obj))
	h, err := b.Repo.Storer.SetEncodedObject(obj)
	require.NoError(b.t, err)
	return h
}

func (b *Builder) blob(content string) plumbing.Hash {
	obj := b.Repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	require.NoError(b.t, err)
	_, err = io.WriteString(w, content)
	require.NoError(b.t, err)
	require.NoError(b.t, w.Close())
	h, err := b.Repo.Storer.SetEncodedObject(obj)
	require.NoError(b.t, err)
	return h
}

// Branch points refs/heads/name at h.
func (b *Builder) Branch(name string, h plumbing.Hash) {
	b.t.Helper()
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), h)
	require.NoError(b.t, b.Repo.Storer.SetReference(ref))
}

// Checkout makes HEAD a symbolic ref to the named branch.
func (b *Builder) Checkout(name string) {
	b.t.Helper()
	ref := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(name))
	require.NoError(b.t, b.Repo.Storer.SetReference(ref))
}

// Detach points HEAD directly at h.
func (b *Builder) Detach(h plumbing.Hash) {
	b.t.Helper()
	require.NoError(b.t, b.Repo.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, h)))
}

// Tag creates a lightweight tag, or an annotated one when message is not
// empty, and returns the value stored in the ref.
func (b *Builder) Tag(name string, target plumbing.Hash, message string) plumbing.Hash {
	b.t.Helper()
	value := target
	if message != "" {
		tag := &object.Tag{
			Name:       name,
			Tagger:     object.Signature{Name: "Tagger", Email: "tagger@example.com", When: time.Unix(0, 0).UTC()},
			Message:    message,
			TargetType: plumbing.CommitObject,
			Target:     target,
		}
		obj := b.Repo.Storer.NewEncodedObject()
		require.NoError(b.t, tag.Encode(obj))
		h, err := b.Repo.Storer.SetEncodedObject(obj)
		require.NoError(b.t, err)
		value = h
	}
	ref := plumbing.NewHashReference(plumbing.NewTagReferenceName(name), value)
	require.NoError(b.t, b.Repo.Storer.SetReference(ref))
	return value
}

// Ref returns the value of a ref, failing the test if it is missing.
func (b *Builder) Ref(name plumbing.ReferenceName) plumbing.Hash {
	b.t.Helper()
	ref, err := b.Repo.Storer.Reference(name)
	require.NoError(b.t, err)
	return ref.Hash()
}

// CommitObject reads a commit back.
func (b *Builder) CommitObject(h plumbing.Hash) *object.Commit {
	b.t.Helper()
	c, err := b.Repo.CommitObject(h)
	require.NoError(b.t, err)
	return c
}

// CountObjects returns the number of commit objects in the store.
func (b *Builder) CountObjects() int {
	b.t.Helper()
	iter, err := b.Repo.Storer.IterEncodedObjects(plumbing.CommitObject)
	require.NoError(b.t, err)
	n := 0
	require.NoError(b.t, iter.ForEach(func(plumbing.EncodedObject) error {
		n++
		return nil
	}))
	return n
}

// Disk is a repository on disk operated through the git executable.
type Disk struct {
	t   testing.TB
	Dir string
}

// NewDisk initializes a repository in a temporary directory, or skips the
// test when git is not installed.
func NewDisk(t testing.TB) *Disk {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	d := &Disk{t: t, Dir: t.TempDir()}
	d.Git("init", "-q", "-b", "main")
	d.Git("config", "user.email", "test@example.com")
	d.Git("config", "user.name", "Test User")
	d.Git("config", "commit.gpgsign", "false")
	return d
}

// Git runs a git command in the repository and returns its output.
func (d *Disk) Git(args ...string) string {
	d.t.Helper()
	return d.GitEnv(nil, args...)
}

// GitEnv runs a git command with extra environment variables.
func (d *Disk) GitEnv(env []string, args ...string) string {
	d.t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = d.Dir
	cmd.Env = append(os.Environ(), env...)
	out, err := cmd.CombinedOutput()
	require.NoError(d.t, err, "git %v: %s", args, out)
	return string(out)
}

// Write creates or replaces a file in the working tree.
func (d *Disk) Write(name, content string) {
	d.t.Helper()
	path := filepath.Join(d.Dir, name)
	require.NoError(d.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(d.t, os.WriteFile(path, []byte(content), 0o644))
}

// CommitFile writes a file and commits it with both dates set to date
// (RFC 3339 or any format git accepts).
func (d *Disk) CommitFile(name, content, date, message string) {
	d.t.Helper()
	d.Write(name, content)
	d.Git("add", "--", name)
	d.GitEnv([]string{"GIT_AUTHOR_DATE=" + date, "GIT_COMMITTER_DATE=" + date}, "commit", "-q", "-m", message)
}

// Head returns the full hash of HEAD.
func (d *Disk) Head() string {
	d.t.Helper()
	return trim(d.Git("rev-parse", "HEAD"))
}

// Open opens the repository with the module's capability type.
func (d *Disk) Open() *git.Repo {
	d.t.Helper()
	r, err := git.Open(d.Dir)
	require.NoError(d.t, err)
	return r
}

func trim(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
