package rewrite

import (
	"context"
	stderrors "errors"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/git"
)

// SyntheticRootMessage is the message of the commit that replaces a
// dropped root.
const SyntheticRootMessage = "Initial snapshot\n"

// reconstruct rebuilds a merge-free branch. The new branch starts at a
// root commit with the original root's tree; every later
// kept commit is replayed as a patch onto the current tip. The tip is
// tracked in a scratch ref that is removed on every exit path.
func (e *Engine) reconstruct(ctx context.Context, logger logrus.FieldLogger, plan *Plan, scratch plumbing.ReferenceName) (out *rewritten, err error) {
	ref := plan.Refs[0]
	history := plan.History
	root := history[0]

	byHash := make(map[plumbing.Hash]*git.Commit, len(history))
	for _, c := range history {
		byHash[c.Hash] = c
	}

	var scratchValue plumbing.Hash
	defer func() {
		if scratchValue.IsZero() {
			return
		}
		if derr := e.repo.DeleteRef(context.WithoutCancel(ctx), scratch, scratchValue); derr != nil {
			logger.WithError(derr).WithField("ref", scratch).Warn("failed to delete scratch ref")
		}
	}()
	advance := func(h plumbing.Hash) error {
		if uerr := e.repo.UpdateRef(ctx, scratch, h, scratchValue); uerr != nil {
			return errors.SubsystemErrorf(uerr, "failed to update scratch ref %s", scratch)
		}
		scratchValue = h
		return nil
	}

	out = &rewritten{
		targets: make(map[plumbing.ReferenceName]plumbing.Hash, 1),
		mapping: make(map[plumbing.Hash]plumbing.Hash, len(plan.Keep)),
	}

	start := &git.Commit{
		Tree:      root.Tree,
		Author:    root.Author,
		Committer: root.Committer,
		Message:   root.Message,
	}
	_, rootDropped := plan.Drop[root.Hash]
	if rootDropped {
		start = e.syntheticRoot(plan, root)
		logger.WithField("commit", root.Hash).Warn("root commit is dropped; its tree starts a new synthetic root")
	}

	tip, err := e.repo.CreateCommit(ctx, start)
	if err != nil {
		return nil, errors.SubsystemErrorf(err, "failed to create root commit").WithContext("commit", root.Hash)
	}
	if rootDropped {
		out.created++
	} else {
		if tip != root.Hash {
			out.created++
		}
		out.mapping[root.Hash] = tip
	}
	if err := advance(tip); err != nil {
		return nil, err
	}
	tipTree := root.Tree

	for _, c := range history[1:] {
		if err := ctx.Err(); err != nil {
			return nil, errors.SubsystemErrorf(err, "rewrite interrupted")
		}
		if _, dropped := plan.Drop[c.Hash]; dropped {
			logger.WithField("commit", c.Hash).Debug("skipping dropped commit")
			continue
		}

		parent := byHash[c.Parents[0]]
		tree := c.Tree
		if parent.Tree != tipTree {
			tree, err = e.repo.ApplyPatch(ctx, tipTree, parent.Hash, c.Hash)
			if err != nil {
				if stderrors.Is(err, git.ErrPatchRejected) {
					return nil, errors.ConflictErrorf(err,
						"commit %s no longer applies without the dropped commits", c.Hash).WithContext("commit", c.Hash)
				}
				return nil, errors.SubsystemErrorf(err, "failed to replay commit %s", c.Hash).WithContext("commit", c.Hash)
			}
			if tree != c.Tree {
				logger.WithField("commit", c.Hash).Debug("replayed tree differs from the original")
			}
		}

		nh, err := e.repo.CreateCommit(ctx, &git.Commit{
			Tree:      tree,
			Parents:   []plumbing.Hash{tip},
			Author:    c.Author,
			Committer: c.Committer,
			Message:   c.Message,
		})
		if err != nil {
			return nil, errors.SubsystemErrorf(err, "failed to create commit for %s", c.Hash)
		}
		if nh != c.Hash {
			out.created++
		}
		if err := advance(nh); err != nil {
			return nil, err
		}

		out.mapping[c.Hash] = nh
		tip, tipTree = nh, tree
	}

	out.targets[ref.Name] = tip
	logger.WithFields(logrus.Fields{
		"kept":    len(plan.Keep),
		"dropped": plan.Dropped(),
		"created": out.created,
	}).Info("linear reconstruction complete")
	return out, nil
}

// syntheticRoot stands in for a dropped root. It keeps the root's tree but
// takes its dates from the first kept commit, or from the clock when
// nothing is kept, so no trace of the dropped day remains.
func (e *Engine) syntheticRoot(plan *Plan, root *git.Commit) *git.Commit {
	author, committer := root.Author, root.Committer
	if first := firstKept(plan); first != nil {
		author, committer = first.Author, first.Committer
	} else {
		now := e.now()
		author.When = now.In(root.Author.When.Location())
		committer.When = now.In(root.Committer.When.Location())
	}
	return &git.Commit{
		Tree:      root.Tree,
		Author:    author,
		Committer: committer,
		Message:   SyntheticRootMessage,
	}
}

func firstKept(plan *Plan) *git.Commit {
	for _, c := range plan.History {
		if _, dropped := plan.Drop[c.Hash]; !dropped {
			return c
		}
	}
	return nil
}
