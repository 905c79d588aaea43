package git

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type walkNode struct {
	commit    *object.Commit
	nextvisit int
}

// Commits returns every commit reachable from tips, parents before
// children. The walk is a deterministic depth first search: for each tip
// in order, first parents are explored before second parents, so a linear
// history comes back oldest to newest.
func (r *Repo) Commits(ctx context.Context, tips []plumbing.Hash) ([]*Commit, error) {
	seen := make(HashSet)
	result := make([]*Commit, 0)

	for _, tip := range tips {
		if _, ok := seen[tip]; ok {
			continue
		}
		head, err := object.GetCommit(r.repo.Storer, tip)
		if err != nil {
			return nil, fmt.Errorf("cannot read commit %s: %w", tip, err)
		}
		seen[tip] = empty{}
		stack := []*walkNode{{commit: head}}

		for len(stack) > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			current := stack[len(stack)-1]
			if current.nextvisit == current.commit.NumParents() {
				result = append(result, fromObject(current.commit))
				stack = stack[:len(stack)-1]
				continue
			}

			ph := current.commit.ParentHashes[current.nextvisit]
			current.nextvisit++
			if _, ok := seen[ph]; ok {
				continue
			}

			p, err := object.GetCommit(r.repo.Storer, ph)
			if err != nil {
				return nil, fmt.Errorf(
					"cannot get parent %d for %s: %w",
					current.nextvisit-1,
					current.commit.Hash,
					err)
			}
			seen[ph] = empty{}
			stack = append(stack, &walkNode{commit: p})
		}
	}

	return result, nil
}

// Commit reads a single commit.
func (r *Repo) Commit(ctx context.Context, h plumbing.Hash) (*Commit, error) {
	c, err := object.GetCommit(r.repo.Storer, h)
	if err != nil {
		return nil, fmt.Errorf("cannot read commit %s: %w", h, err)
	}
	return fromObject(c), nil
}

// CreateCommit stores a new commit object with the given tree, parents,
// message and signatures. Signing information is never carried over.
func (r *Repo) CreateCommit(ctx context.Context, c *Commit) (plumbing.Hash, error) {
	oc := &object.Commit{
		Author:       c.Author,
		Committer:    c.Committer,
		Message:      c.Message,
		TreeHash:     c.Tree,
		ParentHashes: c.Parents,
	}

	obj := r.repo.Storer.NewEncodedObject()
	if err := oc.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode commit: %w", err)
	}

	h, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to save commit: %w", err)
	}

	return h, nil
}

// RetargetTag writes a copy of the annotated tag object tag pointing at
// commit, and returns the new tag object id.
func (r *Repo) RetargetTag(ctx context.Context, tag, commit plumbing.Hash) (plumbing.Hash, error) {
	old, err := object.GetTag(r.repo.Storer, tag)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("cannot read tag %s: %w", tag, err)
	}

	nt := &object.Tag{
		Name:       old.Name,
		Tagger:     old.Tagger,
		Message:    old.Message,
		TargetType: plumbing.CommitObject,
		Target:     commit,
	}

	obj := r.repo.Storer.NewEncodedObject()
	if err := nt.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode tag %s: %w", old.Name, err)
	}

	h, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to save tag %s: %w", old.Name, err)
	}

	return h, nil
}
