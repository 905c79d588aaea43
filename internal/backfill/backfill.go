// Package backfill fills a date range with empty commits on the current
// branch.
package backfill

import (
	"context"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/dropdays/internal/dates"
	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/git"
	"github.com/rohankatakam/dropdays/internal/sampler"
)

// Entry is the number of commits to create on one day.
type Entry struct {
	Day   dates.Day `json:"day" yaml:"day"`
	Count int       `json:"count" yaml:"count"`
}

// Schedule is the per-day commit count for a range.
type Schedule struct {
	Entries []Entry `json:"entries" yaml:"entries"`
	Total   int     `json:"total" yaml:"total"`
}

// Plan draws a count in [lo, hi] for every day of r, one draw per day in
// ascending order.
func Plan(r dates.Range, lo, hi int, src sampler.Source) (*Schedule, error) {
	if lo < 0 || hi < lo {
		return nil, errors.ValidationErrorf("invalid commit count range [%d,%d]", lo, hi)
	}

	s := &Schedule{Entries: make([]Entry, 0, r.Len())}
	span := hi - lo + 1
	for _, d := range r.Days() {
		n := lo + int(src.Float64()*float64(span))
		if n > hi {
			n = hi
		}
		s.Entries = append(s.Entries, Entry{Day: d, Count: n})
		s.Total += n
	}
	return s, nil
}

// Repository is what Apply needs from version control.
type Repository interface {
	Commit(ctx context.Context, h plumbing.Hash) (*git.Commit, error)
	CreateCommit(ctx context.Context, c *git.Commit) (plumbing.Hash, error)
	UpdateRef(ctx context.Context, name plumbing.ReferenceName, newHash, oldHash plumbing.Hash) error
}

// Options describe the synthetic commits.
type Options struct {
	Name  string
	Email string
	// Hour is the local hour of the first commit of each day.
	Hour     int
	Location *time.Location
}

// Result is what Apply wrote.
type Result struct {
	Branch  plumbing.ReferenceName
	Old     plumbing.Hash
	New     plumbing.Hash
	Created int
}

// Apply stacks the scheduled commits on top of branch. Each commit reuses
// the branch tip's tree, so the working tree is unaffected, and commits on
// a day are spaced one minute apart. The branch moves once, by
// compare-and-swap, after every commit exists.
func Apply(ctx context.Context, repo Repository, logger logrus.FieldLogger, branch git.Ref, s *Schedule, opts Options) (*Result, error) {
	if opts.Hour < 0 || opts.Hour > 23 {
		return nil, errors.ValidationErrorf("hour %d out of range [0,23]", opts.Hour)
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	head, err := repo.Commit(ctx, branch.Commit)
	if err != nil {
		return nil, errors.SubsystemErrorf(err, "failed to read %s", branch.Name.Short())
	}

	result := &Result{Branch: branch.Name, Old: branch.Hash}
	tip := head.Hash
	for _, e := range s.Entries {
		base := time.Date(e.Day.Year, e.Day.Month, e.Day.Day, opts.Hour, 0, 0, 0, loc)
		for i := 0; i < e.Count; i++ {
			when := base.Add(time.Duration(i) * time.Minute)
			sig := git.Signature{Name: opts.Name, Email: opts.Email, When: when}

			h, err := repo.CreateCommit(ctx, &git.Commit{
				Tree:      head.Tree,
				Parents:   []plumbing.Hash{tip},
				Author:    sig,
				Committer: sig,
				Message:   fmt.Sprintf("backfill %s (%d/%d)\n", e.Day, i+1, e.Count),
			})
			if err != nil {
				return nil, errors.SubsystemErrorf(err, "failed to create commit for %s", e.Day)
			}
			tip = h
			result.Created++
		}
		logger.WithFields(logrus.Fields{"day": e.Day, "commits": e.Count}).Debug("backfilled day")
	}

	if result.Created == 0 {
		result.New = branch.Hash
		return result, nil
	}

	if err := repo.UpdateRef(ctx, branch.Name, tip, branch.Hash); err != nil {
		return nil, errors.SubsystemErrorf(err, "failed to update %s", branch.Name.Short())
	}
	result.New = tip

	logger.WithFields(logrus.Fields{
		"branch":  branch.Name.Short(),
		"created": result.Created,
	}).Info("backfill complete")
	return result, nil
}
