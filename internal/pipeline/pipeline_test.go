package pipeline

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/dropdays/internal/classifier"
	"github.com/rohankatakam/dropdays/internal/dates"
	"github.com/rohankatakam/dropdays/internal/dropset"
	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/git"
	"github.com/rohankatakam/dropdays/internal/git/gittest"
	"github.com/rohankatakam/dropdays/internal/journal"
	"github.com/rohankatakam/dropdays/internal/rewrite"
	"github.com/rohankatakam/dropdays/internal/sampler"
)

func logger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

type fixture struct {
	b       *gittest.Builder
	repo    *git.Repo
	hashes  map[string]plumbing.Hash
	scratch string
}

// newFixture builds master with a commit before the range, one on each of
// 2024-05-01..03 and a side branch with a commit on 05-02.
func newFixture(t *testing.T) *fixture {
	b := gittest.New(t)
	h := map[string]plumbing.Hash{}
	h["before"] = b.Commit(gittest.Spec{Message: "before", Files: map[string]string{"a": "0"}, Authored: gittest.At(t, "2024-04-20T10:00:00Z")})
	h["d1"] = b.Commit(gittest.Spec{Message: "d1", Files: map[string]string{"a": "1"}, Parents: []plumbing.Hash{h["before"]}, Authored: gittest.At(t, "2024-05-01T10:00:00Z")})
	h["d2"] = b.Commit(gittest.Spec{Message: "d2", Files: map[string]string{"a": "2"}, Parents: []plumbing.Hash{h["d1"]}, Authored: gittest.At(t, "2024-05-02T10:00:00Z")})
	h["d3"] = b.Commit(gittest.Spec{Message: "d3", Files: map[string]string{"a": "3"}, Parents: []plumbing.Hash{h["d2"]}, Authored: gittest.At(t, "2024-05-03T10:00:00Z")})
	h["side"] = b.Commit(gittest.Spec{Message: "side", Files: map[string]string{"s": "1"}, Parents: []plumbing.Hash{h["d1"]}, Authored: gittest.At(t, "2024-05-02T18:00:00Z")})
	b.Branch("master", h["d3"])
	b.Branch("side", h["side"])
	b.Checkout("master")
	return &fixture{b: b, repo: b.Git(), hashes: h, scratch: t.TempDir()}
}

func (f *fixture) options(t *testing.T, p float64) Options {
	r, err := dates.ParseRange("2024-05-01", "2024-05-03")
	require.NoError(t, err)
	return Options{
		Range:       r,
		Probability: p,
		Seed:        42,
		DropFile:    filepath.Join(f.scratch, dropset.FileName),
		JournalPath: filepath.Join(f.scratch, journal.FileName),
	}
}

func (f *fixture) refs(t *testing.T) map[plumbing.ReferenceName]plumbing.Hash {
	t.Helper()
	out := map[plumbing.ReferenceName]plumbing.Hash{}
	iter, err := f.b.Repo.Storer.IterReferences()
	require.NoError(t, err)
	require.NoError(t, iter.ForEach(func(r *plumbing.Reference) error {
		out[r.Name()] = r.Hash()
		return nil
	}))
	return out
}

func TestNewValidates(t *testing.T) {
	f := newFixture(t)

	opts := f.options(t, 1.5)
	_, err := New(f.repo, logger(), opts)
	assert.True(t, stderrors.Is(err, errors.ErrValidation))

	opts = f.options(t, 0.5)
	opts.Field = "tagger"
	_, err = New(f.repo, logger(), opts)
	assert.True(t, stderrors.Is(err, errors.ErrValidation))

	opts = f.options(t, 0.5)
	opts.Strategy = "squash"
	_, err = New(f.repo, logger(), opts)
	assert.True(t, stderrors.Is(err, errors.ErrValidation))

	p, err := New(f.repo, logger(), f.options(t, 0.5))
	require.NoError(t, err)
	assert.Equal(t, rewrite.Validated, p.State())

	opts = f.options(t, 0.5)
	opts.Range = dates.Range{}
	p, err = New(f.repo, logger(), opts)
	require.NoError(t, err)
	_, err = p.DryRun(context.Background())
	assert.True(t, stderrors.Is(err, errors.ErrValidation))
}

func TestDryRunNeverMutates(t *testing.T) {
	for _, prob := range []float64{0, 0.5, 1} {
		f := newFixture(t)
		refsBefore := f.refs(t)
		objectsBefore := f.b.CountObjects()

		p, err := New(f.repo, logger(), f.options(t, prob))
		require.NoError(t, err)
		_, err = p.DryRun(context.Background())
		require.NoError(t, err)

		assert.Equal(t, refsBefore, f.refs(t))
		assert.Equal(t, objectsBefore, f.b.CountObjects())
		entries, err := os.ReadDir(f.scratch)
		require.NoError(t, err)
		assert.Empty(t, entries, "dry run writes no scratch files")
	}
}

func TestDryRunFullProbabilityMarksEverything(t *testing.T) {
	f := newFixture(t)
	p, err := New(f.repo, logger(), f.options(t, 1))
	require.NoError(t, err)

	report, err := p.DryRun(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.DaysInRange)
	assert.Equal(t, []string{"2024-05-01", "2024-05-02", "2024-05-03"}, report.SelectedDays)
	assert.Equal(t, 4, report.CommitsClassified, "before is outside the range")
	assert.Equal(t, 4, report.CommitsMarked)
	assert.Equal(t, uint64(42), report.Seed)
	assert.Equal(t, rewrite.Classified, p.State())
}

func TestDryRunIsReproducibleForSeed(t *testing.T) {
	f := newFixture(t)
	opts := f.options(t, 0.5)
	opts.Universe = sampler.CommitDays

	var reports []string
	for i := 0; i < 3; i++ {
		p, err := New(f.repo, logger(), opts)
		require.NoError(t, err)
		report, err := p.DryRun(context.Background())
		require.NoError(t, err)
		reports = append(reports, strings.Join(report.SelectedDays, ","))
	}
	assert.Equal(t, reports[0], reports[1])
	assert.Equal(t, reports[0], reports[2])
}

func TestApplyZeroProbabilityIsNoop(t *testing.T) {
	f := newFixture(t)
	refsBefore := f.refs(t)
	objectsBefore := f.b.CountObjects()

	p, err := New(f.repo, logger(), f.options(t, 0))
	require.NoError(t, err)
	out, err := p.Apply(context.Background())
	require.NoError(t, err)

	assert.True(t, out.Result.NoOp())
	assert.Zero(t, out.Result.CommitsCreated)
	assert.Equal(t, refsBefore, f.refs(t))
	assert.Equal(t, objectsBefore, f.b.CountObjects())
}

func TestApplyDropsEveryDay(t *testing.T) {
	f := newFixture(t)
	opts := f.options(t, 1)

	p, err := New(f.repo, logger(), opts)
	require.NoError(t, err)
	out, err := p.Apply(context.Background())
	require.NoError(t, err)

	assert.Equal(t, rewrite.RefsUpdated, p.State())
	assert.Equal(t, 4, out.Report.CommitsMarked)
	assert.Equal(t, f.hashes["before"], f.b.Ref("refs/heads/master"))
	assert.Equal(t, f.hashes["before"], f.b.Ref("refs/heads/side"))

	_, err = os.Stat(opts.DropFile)
	assert.True(t, os.IsNotExist(err), "drop set is disposed after the rewrite")

	j, err := journal.Open(opts.JournalPath)
	require.NoError(t, err)
	defer j.Close()
	runs, err := j.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, journal.StatusUpdated, runs[0].Status)
}

func TestAuthorFieldChangesSelection(t *testing.T) {
	b := gittest.New(t)
	base := b.Commit(gittest.Spec{Message: "base", Authored: gittest.At(t, "2024-04-01T00:00:00Z")})
	moved := b.Commit(gittest.Spec{
		Message:   "rebased",
		Parents:   []plumbing.Hash{base},
		Authored:  gittest.At(t, "2024-05-01T12:00:00Z"),
		Committed: gittest.At(t, "2024-05-10T12:00:00Z"),
	})
	b.Branch("master", moved)
	b.Checkout("master")

	r, err := dates.ParseRange("2024-05-01", "2024-05-01")
	require.NoError(t, err)

	marked := func(field classifier.DateField) int {
		p, err := New(b.Git(), logger(), Options{Range: r, Probability: 1, Field: field, Seed: 1})
		require.NoError(t, err)
		report, err := p.DryRun(context.Background())
		require.NoError(t, err)
		return report.CommitsMarked
	}
	assert.Equal(t, 1, marked(classifier.Author))
	assert.Equal(t, 0, marked(classifier.Committer))
}

func TestPlanThenApplyDropFile(t *testing.T) {
	f := newFixture(t)
	opts := f.options(t, 1)
	opts.KeepDropFile = true

	p, err := New(f.repo, logger(), opts)
	require.NoError(t, err)
	report, path, err := p.WritePlan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, opts.DropFile, path)
	assert.Equal(t, 4, report.CommitsMarked)
	assert.Equal(t, f.hashes["d3"], f.b.Ref("refs/heads/master"), "planning does not rewrite")

	// Keep only d2 in the file.
	require.NoError(t, dropset.Write(path, git.NewHashSet(f.hashes["d2"])))

	// Replaying a file needs no range.
	opts.Range = dates.Range{}
	p, err = New(f.repo, logger(), opts)
	require.NoError(t, err)
	res, err := p.ApplyDropFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CommitsDropped)

	commits, err := f.repo.Commits(context.Background(), []plumbing.Hash{f.b.Ref("refs/heads/master")})
	require.NoError(t, err)
	var messages []string
	for _, c := range commits {
		messages = append(messages, c.Message)
	}
	assert.Equal(t, []string{"before", "d1", "d3"}, messages)
	assert.Equal(t, f.hashes["side"], f.b.Ref("refs/heads/side"))

	_, err = os.Stat(path)
	assert.NoError(t, err, "kept on request")
}

func TestApplyRefusesWhileRunIsPending(t *testing.T) {
	f := newFixture(t)
	opts := f.options(t, 1)

	j, err := journal.Open(opts.JournalPath)
	require.NoError(t, err)
	require.NoError(t, j.Begin(&journal.Run{ID: "stale", Strategy: "elision"}))
	require.NoError(t, j.Close())

	p, err := New(f.repo, logger(), opts)
	require.NoError(t, err)
	_, err = p.Apply(context.Background())
	assert.True(t, stderrors.Is(err, errors.ErrPrecondition))
	assert.Equal(t, f.hashes["d3"], f.b.Ref("refs/heads/master"))
}

func TestRecover(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.scratch, journal.FileName)
	ctx := context.Background()

	// A run that died after moving master and while its scratch ref existed.
	scratch := plumbing.ReferenceName(rewrite.ScratchPrefix + "dead")
	require.NoError(t, f.repo.UpdateRef(ctx, scratch, f.hashes["d1"], plumbing.ZeroHash))
	require.NoError(t, f.repo.UpdateRef(ctx, "refs/heads/master", f.hashes["d1"], f.hashes["d3"]))

	j, err := journal.Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Begin(&journal.Run{
		ID:         "dead",
		Strategy:   "linear-reconstruction",
		ScratchRef: scratch.String(),
		Refs:       []journal.RefState{{Name: "refs/heads/master", Old: f.hashes["d3"].String()}},
	}))
	require.NoError(t, j.Close())

	got, err := Recover(ctx, f.repo, logger(), path, RecoverOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].ScratchDeleted)
	assert.False(t, got[0].Closed)
	require.Len(t, got[0].Drift, 1)
	assert.False(t, got[0].Drift[0].Restored)

	h, err := f.repo.ResolveRef(ctx, scratch)
	require.NoError(t, err)
	assert.True(t, h.IsZero())

	got, err = Recover(ctx, f.repo, logger(), path, RecoverOptions{Restore: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Closed)
	assert.True(t, got[0].Drift[0].Restored)
	assert.Equal(t, f.hashes["d3"], f.b.Ref("refs/heads/master"))

	got, err = Recover(ctx, f.repo, logger(), path, RecoverOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecoverRejectsConflictingOptions(t *testing.T) {
	f := newFixture(t)
	_, err := Recover(context.Background(), f.repo, logger(), filepath.Join(f.scratch, journal.FileName),
		RecoverOptions{Restore: true, Accept: true})
	assert.True(t, stderrors.Is(err, errors.ErrValidation))
}

func TestApplyLinearOnDisk(t *testing.T) {
	d := gittest.NewDisk(t)
	d.CommitFile("a.txt", "a\n", "2024-04-30T10:00:00Z", "add a")
	d.CommitFile("b.txt", "b\n", "2024-05-01T10:00:00Z", "add b")
	d.CommitFile("c.txt", "c\n", "2024-05-02T10:00:00Z", "add c")
	d.Write("wip.txt", "unsaved\n")

	r, err := dates.ParseRange("2024-05-01", "2024-05-01")
	require.NoError(t, err)
	repo := d.Open()

	p, err := New(repo, logger(), Options{
		Range:       r,
		Probability: 1,
		Seed:        3,
		Strategy:    rewrite.Linear,
		AutoStash:   true,
	})
	require.NoError(t, err)
	out, err := p.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Report.CommitsMarked)
	assert.Empty(t, out.Result.Warnings)

	assert.Equal(t, "add c\nadd a\n", d.Git("log", "--format=%s"))
	assert.Equal(t, "?? wip.txt\n", d.Git("status", "--porcelain"))

	gitDir := strings.TrimSpace(d.Git("rev-parse", "--absolute-git-dir"))
	_, err = os.Stat(filepath.Join(gitDir, dropset.FileName))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(gitDir, journal.FileName))
	assert.NoError(t, err)
}
