package resolver

import (
	"context"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/dropdays/internal/classifier"
	"github.com/rohankatakam/dropdays/internal/dates"
	"github.com/rohankatakam/dropdays/internal/git"
	"github.com/rohankatakam/dropdays/internal/git/gittest"
	"github.com/rohankatakam/dropdays/internal/sampler"
)

type fixedSource struct {
	draws []float64
	i     int
}

func (s *fixedSource) Float64() float64 {
	v := s.draws[s.i%len(s.draws)]
	s.i++
	return v
}

// history creates one commit per timestamp on a single line and classifies
// it over r.
func history(t *testing.T, r dates.Range, stamps ...string) (*classifier.Index, []plumbing.Hash) {
	t.Helper()
	b := gittest.New(t)

	var hashes []plumbing.Hash
	var parents []plumbing.Hash
	for _, s := range stamps {
		h := b.Commit(gittest.Spec{Message: s, Parents: parents, Authored: gittest.At(t, s)})
		hashes = append(hashes, h)
		parents = []plumbing.Hash{h}
	}

	idx, err := classifier.Classify(context.Background(), b.Git(), []plumbing.Hash{hashes[len(hashes)-1]},
		classifier.Options{Range: r})
	require.NoError(t, err)
	return idx, hashes
}

func mustRange(t *testing.T, start, end string) dates.Range {
	t.Helper()
	r, err := dates.ParseRange(start, end)
	require.NoError(t, err)
	return r
}

func assertPartition(t *testing.T, idx *classifier.Index, res *Resolution) {
	t.Helper()
	for h := range res.Drop {
		_, kept := res.Keep[h]
		assert.False(t, kept, "%s is in both sets", h)
	}
	union := make(git.HashSet)
	for h := range res.Drop {
		union[h] = struct{}{}
	}
	for h := range res.Keep {
		union[h] = struct{}{}
	}
	assert.Equal(t, idx.All(), union)
}

func TestThreeDaysAllSelected(t *testing.T) {
	r := mustRange(t, "2024-05-01", "2024-05-03")
	idx, hashes := history(t, r,
		"2024-05-01T10:00:00Z",
		"2024-05-02T10:00:00Z",
		"2024-05-03T10:00:00Z",
	)

	universe := sampler.CalendarUniverse(r)
	selected, err := sampler.Sample(universe, 1, &fixedSource{draws: []float64{0.5}})
	require.NoError(t, err)

	res := Resolve(idx, universe, selected)
	assert.Equal(t, git.NewHashSet(hashes...), res.Drop)
	assert.Empty(t, res.Keep)
	assertPartition(t, idx, res)

	assert.Equal(t, Report{
		Start:             "2024-05-01",
		End:               "2024-05-03",
		DateField:         "committer",
		DaysInRange:       3,
		UniverseSize:      3,
		DaysSelected:      3,
		SelectedDays:      []string{"2024-05-01", "2024-05-02", "2024-05-03"},
		CommitsClassified: 3,
		CommitsMarked:     3,
	}, res.Report)
}

func TestZeroProbabilityDropsNothing(t *testing.T) {
	r := mustRange(t, "2024-05-01", "2024-05-03")
	idx, hashes := history(t, r, "2024-05-01T10:00:00Z", "2024-05-03T10:00:00Z")

	universe := sampler.CalendarUniverse(r)
	selected, err := sampler.Sample(universe, 0, &fixedSource{draws: []float64{0}})
	require.NoError(t, err)

	res := Resolve(idx, universe, selected)
	assert.True(t, res.Empty())
	assert.Equal(t, git.NewHashSet(hashes...), res.Keep)
	assert.Zero(t, res.Report.CommitsMarked)
	assert.Empty(t, res.Report.SelectedDays)
}

func TestSelectedDayWithoutCommitsContributesNothing(t *testing.T) {
	r := mustRange(t, "2024-05-01", "2024-05-03")
	idx, hashes := history(t, r, "2024-05-01T10:00:00Z", "2024-05-03T10:00:00Z")

	gap, err := dates.ParseDay("2024-05-02")
	require.NoError(t, err)

	res := Resolve(idx, sampler.CalendarUniverse(r), []dates.Day{gap})
	assert.True(t, res.Empty())
	assert.Equal(t, git.NewHashSet(hashes...), res.Keep)
	assert.Equal(t, 1, res.Report.DaysSelected)
	assertPartition(t, idx, res)
}

func TestPartitionHoldsForRandomSelections(t *testing.T) {
	r := mustRange(t, "2024-05-01", "2024-05-10")
	idx, _ := history(t, r,
		"2024-05-01T08:00:00Z",
		"2024-05-01T18:00:00Z",
		"2024-05-03T09:00:00+02:00",
		"2024-05-04T23:00:00-07:00",
		"2024-05-07T12:00:00Z",
		"2024-05-10T12:00:00Z",
		"2024-05-11T12:00:00Z",
	)

	for seed := uint64(1); seed <= 50; seed++ {
		src, _ := sampler.NewSource(seed)
		universe, selected, err := sampler.Select(sampler.Calendar, r, idx, 0.4, src)
		require.NoError(t, err)

		res := Resolve(idx, universe, selected)
		assertPartition(t, idx, res)
		assert.Equal(t, len(res.Drop), res.Report.CommitsMarked)
	}
}

func TestSelectedDaysAreSorted(t *testing.T) {
	r := mustRange(t, "2024-05-01", "2024-05-03")
	idx, _ := history(t, r, "2024-05-02T10:00:00Z")

	days := r.Days()
	res := Resolve(idx, days, []dates.Day{days[2], days[0]})
	assert.Equal(t, []string{"2024-05-01", "2024-05-03"}, res.Report.SelectedDays)
}
