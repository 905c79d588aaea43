package rewrite

import (
	"context"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/git"
)

// elide rewrites every commit reachable from the plan's refs in one pass.
// For each commit, nearest holds the rewritten ids of its nearest kept
// ancestors (itself, when kept). Dropped commits pass their parents'
// entries through, so children skip over them.
func (e *Engine) elide(ctx context.Context, logger logrus.FieldLogger, plan *Plan) (*rewritten, error) {
	nearest := make(map[plumbing.Hash][]plumbing.Hash, len(plan.History))
	out := &rewritten{
		targets: make(map[plumbing.ReferenceName]plumbing.Hash, len(plan.Refs)),
		mapping: make(map[plumbing.Hash]plumbing.Hash, len(plan.Keep)),
	}

	for _, c := range plan.History {
		if err := ctx.Err(); err != nil {
			return nil, errors.SubsystemErrorf(err, "rewrite interrupted")
		}

		parents := make([]plumbing.Hash, 0, len(c.Parents))
		for _, p := range c.Parents {
			for _, np := range nearest[p] {
				parents = appendUnique(parents, np)
			}
		}

		if _, dropped := plan.Drop[c.Hash]; dropped {
			nearest[c.Hash] = parents
			logger.WithField("commit", c.Hash).Debug("eliding commit")
			continue
		}

		nh := c.Hash
		if !sameHashes(parents, c.Parents) {
			var err error
			nh, err = e.repo.CreateCommit(ctx, &git.Commit{
				Tree:      c.Tree,
				Parents:   parents,
				Author:    c.Author,
				Committer: c.Committer,
				Message:   c.Message,
			})
			if err != nil {
				return nil, errors.SubsystemErrorf(err, "failed to recreate commit %s", c.Hash).WithContext("commit", c.Hash)
			}
			out.created++
			if len(c.Parents) > 1 && len(parents) < 2 {
				logger.WithField("commit", c.Hash).Debug("merge degraded to a single-parent commit")
			}
		}
		nearest[c.Hash] = []plumbing.Hash{nh}
		out.mapping[c.Hash] = nh
	}

	for _, ref := range plan.Refs {
		var target plumbing.Hash
		// A dropped merge at a tip resolves to its first-parent side.
		if n := nearest[ref.Commit]; len(n) > 0 {
			target = n[0]
		}

		switch {
		case target.IsZero():
			logger.WithField("ref", ref.Name).Info("every commit of ref is dropped; deleting it")
		case target == ref.Commit:
			target = ref.Hash
		case ref.Annotated:
			th, err := e.repo.RetargetTag(ctx, ref.Hash, target)
			if err != nil {
				return nil, errors.SubsystemErrorf(err, "failed to recreate tag %s", ref.Name.Short()).WithContext("ref", ref.Name)
			}
			target = th
		}
		out.targets[ref.Name] = target
	}

	logger.WithFields(logrus.Fields{
		"kept":    len(plan.Keep),
		"dropped": plan.Dropped(),
		"created": out.created,
	}).Info("elision pass complete")
	return out, nil
}

func appendUnique(hs []plumbing.Hash, h plumbing.Hash) []plumbing.Hash {
	for _, x := range hs {
		if x == h {
			return hs
		}
	}
	return append(hs, h)
}

func sameHashes(a, b []plumbing.Hash) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
