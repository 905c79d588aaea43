package rewrite

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/git/gittest"
)

type fakeWorktree struct {
	clean   bool
	pushErr error
	popErr  error
	syncErr error
	pushed  []string
	popped  int
	synced  int
}

func (w *fakeWorktree) IsClean(context.Context) (bool, error) { return w.clean, nil }

func (w *fakeWorktree) StashPush(_ context.Context, msg string) (bool, error) {
	if w.pushErr != nil {
		return false, w.pushErr
	}
	w.pushed = append(w.pushed, msg)
	return true, nil
}

func (w *fakeWorktree) StashPop(context.Context) error {
	w.popped++
	return w.popErr
}

func (w *fakeWorktree) SyncWorktree(context.Context) error {
	w.synced++
	return w.syncErr
}

func TestAcquireCleanTree(t *testing.T) {
	wt := &fakeWorktree{clean: true}
	s, err := Acquire(context.Background(), wt, quietLogger(), false, "id")
	require.NoError(t, err)
	assert.False(t, s.Stashed())

	assert.Empty(t, s.Release(context.Background(), true))
	assert.Equal(t, 1, wt.synced)
	assert.Zero(t, wt.popped)
}

func TestAcquireDirtyTreeWithoutAutostash(t *testing.T) {
	wt := &fakeWorktree{}
	_, err := Acquire(context.Background(), wt, quietLogger(), false, "id")
	assert.True(t, stderrors.Is(err, errors.ErrPrecondition))
	assert.Empty(t, wt.pushed)
}

func TestAcquireStashFailureIsPrecondition(t *testing.T) {
	wt := &fakeWorktree{pushErr: io.ErrClosedPipe}
	_, err := Acquire(context.Background(), wt, quietLogger(), true, "id")
	assert.True(t, stderrors.Is(err, errors.ErrPrecondition))
}

func TestReleasePopsStashOnce(t *testing.T) {
	wt := &fakeWorktree{}
	s, err := Acquire(context.Background(), wt, quietLogger(), true, "abc")
	require.NoError(t, err)
	assert.True(t, s.Stashed())
	assert.Equal(t, []string{"dropdays autostash abc"}, wt.pushed)

	assert.Empty(t, s.Release(context.Background(), false))
	assert.Empty(t, s.Release(context.Background(), false))
	assert.Equal(t, 1, wt.popped)
	assert.Zero(t, wt.synced, "nothing to sync when refs did not move")
}

func TestReleasePopFailureIsWarning(t *testing.T) {
	wt := &fakeWorktree{popErr: io.ErrUnexpectedEOF}
	s, err := Acquire(context.Background(), wt, quietLogger(), true, "abc")
	require.NoError(t, err)

	warnings := s.Release(context.Background(), true)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "git stash pop")
}

func TestRunStashesAroundRewrite(t *testing.T) {
	d := gittest.NewDisk(t)
	d.CommitFile("a.txt", "a\n", "2024-05-01T10:00:00Z", "add a")
	d.CommitFile("b.txt", "b\n", "2024-05-02T10:00:00Z", "add b")
	d.CommitFile("c.txt", "c\n", "2024-05-03T10:00:00Z", "add c")
	d.Write("notes.txt", "local work\n")
	d.Write("a.txt", "a\nedited\n")

	repo, p := diskPlan(t, d, "HEAD~1")
	res, err := NewEngine(repo, quietLogger()).Run(context.Background(), p, repo, true)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	_, err = os.Stat(filepath.Join(d.Dir, "b.txt"))
	assert.True(t, os.IsNotExist(err), "working tree follows the rewritten HEAD")

	notes, err := os.ReadFile(filepath.Join(d.Dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "local work\n", string(notes))

	a, err := os.ReadFile(filepath.Join(d.Dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a\nedited\n", string(a))

	assert.Empty(t, strings.TrimSpace(d.Git("stash", "list")))
}

func TestRunRejectsDirtyTreeWithoutAutostash(t *testing.T) {
	d := gittest.NewDisk(t)
	d.CommitFile("a.txt", "a\n", "2024-05-01T10:00:00Z", "add a")
	d.CommitFile("b.txt", "b\n", "2024-05-02T10:00:00Z", "add b")
	d.Write("a.txt", "dirty\n")
	head := d.Head()

	repo, p := diskPlan(t, d, "HEAD")
	_, err := NewEngine(repo, quietLogger()).Run(context.Background(), p, repo, false)
	assert.True(t, stderrors.Is(err, errors.ErrPrecondition))
	assert.Equal(t, head, d.Head())
}
