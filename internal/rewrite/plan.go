package rewrite

import (
	"context"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/git"
)

// Plan is everything a rewrite needs. It is consumed by exactly one
// Execute call.
type Plan struct {
	Strategy Strategy
	Refs     []git.Ref
	// Head is the checked-out branch, if any.
	Head plumbing.ReferenceName
	// History is every commit reachable from Refs, parents first.
	History []*git.Commit
	Drop    git.HashSet
	// Keep is History without Drop, oldest first.
	Keep []plumbing.Hash

	dropped  int
	consumed bool
}

// BuildPlan reads the history behind refs and validates that the
// strategy can rewrite it. Failures here happen before any mutation.
func BuildPlan(ctx context.Context, repo Repository, strategy Strategy, refs []git.Ref, drop git.HashSet) (*Plan, error) {
	if len(refs) == 0 {
		return nil, errors.PreconditionErrorf("no refs to rewrite")
	}

	history, err := repo.Commits(ctx, git.Tips(refs))
	if err != nil {
		return nil, errors.SubsystemErrorf(err, "failed to read history")
	}

	p := &Plan{
		Strategy: strategy,
		Refs:     refs,
		History:  history,
		Drop:     drop,
		Keep:     make([]plumbing.Hash, 0, len(history)),
	}

	if head, err := repo.CurrentBranch(ctx); err == nil {
		p.Head = head.Name
	}

	for _, c := range history {
		if _, ok := drop[c.Hash]; ok {
			p.dropped++
			continue
		}
		p.Keep = append(p.Keep, c.Hash)
	}

	switch strategy {
	case Elision:
		if err := p.checkHeadSurvives(); err != nil {
			return nil, err
		}
	case Linear:
		if len(refs) != 1 || !refs[0].Name.IsBranch() {
			return nil, errors.PreconditionErrorf("linear reconstruction rewrites exactly one branch")
		}
		for _, c := range history {
			if c.IsMerge() {
				return nil, errors.PreconditionErrorf(
					"%s has merge commit %s; use the elision strategy", refs[0].Name.Short(), c.Hash)
			}
			if c.IsRoot() && c.Hash != history[0].Hash {
				return nil, errors.PreconditionErrorf(
					"%s has more than one root commit; use the elision strategy", refs[0].Name.Short())
			}
		}
	default:
		return nil, errors.InternalErrorf("unknown strategy %q", strategy)
	}

	return p, nil
}

// Noop reports whether the drop set misses the history entirely.
func (p *Plan) Noop() bool {
	return p.dropped == 0
}

// Dropped is the number of history commits in the drop set.
func (p *Plan) Dropped() int {
	return p.dropped
}

// checkHeadSurvives fails when elision would leave the checked-out branch
// with no commits at all. Other refs in that situation are deleted.
func (p *Plan) checkHeadSurvives() error {
	if p.Head == "" || p.Noop() {
		return nil
	}

	survives := make(map[plumbing.Hash]bool, len(p.History))
	for _, c := range p.History {
		if _, dropped := p.Drop[c.Hash]; !dropped {
			survives[c.Hash] = true
			continue
		}
		for _, parent := range c.Parents {
			if survives[parent] {
				survives[c.Hash] = true
				break
			}
		}
	}

	for _, ref := range p.Refs {
		if ref.Name == p.Head && !survives[ref.Commit] {
			return errors.PreconditionErrorf(
				"dropping these commits would leave the checked-out branch %s empty", p.Head.Short())
		}
	}
	return nil
}

func (p *Plan) consume() error {
	if p.consumed {
		return errors.InternalErrorf("rewrite plan already executed")
	}
	p.consumed = true
	return nil
}
