// Package classifier maps commits to the calendar day of one of their
// timestamps.
package classifier

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/rohankatakam/dropdays/internal/dates"
	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/git"
)

// DateField chooses which timestamp places a commit on a day.
type DateField string

const (
	Author    DateField = "author"
	Committer DateField = "committer"
)

// ParseDateField validates a field name.
func ParseDateField(s string) (DateField, error) {
	switch DateField(s) {
	case Author, Committer:
		return DateField(s), nil
	default:
		return "", errors.ValidationErrorf("invalid date field %q (want %s or %s)", s, Author, Committer)
	}
}

// Day truncates the chosen timestamp of c to a date in the offset the
// timestamp was recorded with.
func (f DateField) Day(c *git.Commit) dates.Day {
	if f == Author {
		return dates.Of(c.Author.When)
	}
	return dates.Of(c.Committer.When)
}

// CommitSource enumerates commits reachable from tips, parents first.
type CommitSource interface {
	Commits(ctx context.Context, tips []plumbing.Hash) ([]*git.Commit, error)
}

// Options control classification.
type Options struct {
	Range         dates.Range
	Field         DateField
	ExcludeMerges bool
}

// Index is the day to commit-set mapping for one range.
type Index struct {
	Range dates.Range
	Field DateField
	Days  map[dates.Day]git.HashSet
	// Order holds the classified commits, parents first.
	Order []*git.Commit
}

// Classify reads every commit reachable from tips and indexes those whose
// chosen timestamp falls on a day within the range. Any repository error
// aborts the whole classification.
func Classify(ctx context.Context, src CommitSource, tips []plumbing.Hash, opts Options) (*Index, error) {
	if opts.Field == "" {
		opts.Field = Committer
	}

	idx := &Index{
		Range: opts.Range,
		Field: opts.Field,
		Days:  make(map[dates.Day]git.HashSet),
	}
	if len(tips) == 0 {
		return idx, nil
	}

	commits, err := src.Commits(ctx, tips)
	if err != nil {
		return nil, errors.SubsystemErrorf(err, "failed to enumerate commits")
	}

	for _, c := range commits {
		if opts.ExcludeMerges && c.IsMerge() {
			continue
		}
		d := opts.Field.Day(c)
		if !opts.Range.Contains(d) {
			continue
		}
		set, ok := idx.Days[d]
		if !ok {
			set = make(git.HashSet)
			idx.Days[d] = set
		}
		set[c.Hash] = struct{}{}
		idx.Order = append(idx.Order, c)
	}

	return idx, nil
}

// ActiveDays returns the days that have at least one commit, ascending.
func (idx *Index) ActiveDays() []dates.Day {
	days := make([]dates.Day, 0, len(idx.Days))
	for d := range idx.Days {
		days = append(days, d)
	}
	dates.Sort(days)
	return days
}

// All returns every classified commit id.
func (idx *Index) All() git.HashSet {
	all := make(git.HashSet, len(idx.Order))
	for _, c := range idx.Order {
		all[c.Hash] = struct{}{}
	}
	return all
}

// Len is the number of classified commits.
func (idx *Index) Len() int {
	return len(idx.Order)
}

func (idx *Index) String() string {
	return fmt.Sprintf("%d commits on %d days in %s by %s date", len(idx.Order), len(idx.Days), idx.Range, idx.Field)
}
