package git

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"

	"github.com/rohankatakam/dropdays/internal/errors"
)

// ErrRefChanged is returned when a ref no longer holds its expected value.
var ErrRefChanged = stderrors.New("ref changed concurrently")

// CurrentBranch returns the branch HEAD points at. A detached HEAD or an
// unborn branch is a precondition failure.
func (r *Repo) CurrentBranch(ctx context.Context) (Ref, error) {
	head, err := r.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return Ref{}, errors.SubsystemErrorf(err, "failed to read HEAD")
	}
	if head.Type() != plumbing.SymbolicReference {
		return Ref{}, errors.PreconditionErrorf("HEAD is detached at %s; check out a branch first", head.Hash())
	}

	name := head.Target()
	ref, err := r.repo.Storer.Reference(name)
	if err != nil {
		if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
			return Ref{}, errors.PreconditionErrorf("branch %s has no commits yet", name.Short())
		}
		return Ref{}, errors.SubsystemErrorf(err, "failed to read %s", name)
	}

	return Ref{Name: name, Hash: ref.Hash(), Commit: ref.Hash()}, nil
}

// Refs lists the refs in scope, sorted by name. ScopeAll covers local
// branches and tags; tags that do not peel to a commit are skipped.
func (r *Repo) Refs(ctx context.Context, scope RefScope) ([]Ref, error) {
	if scope == ScopeCurrentBranch {
		ref, err := r.CurrentBranch(ctx)
		if err != nil {
			return nil, err
		}
		return []Ref{ref}, nil
	}

	iter, err := r.repo.Storer.IterReferences()
	if err != nil {
		return nil, errors.SubsystemErrorf(err, "failed to list refs")
	}
	defer iter.Close()

	var refs []Ref
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name := ref.Name()
		switch {
		case name.IsBranch():
			refs = append(refs, Ref{Name: name, Hash: ref.Hash(), Commit: ref.Hash()})
		case name.IsTag():
			peeled, annotated, ok, err := r.peel(ref.Hash())
			if err != nil {
				return fmt.Errorf("failed to peel %s: %w", name, err)
			}
			if ok {
				refs = append(refs, Ref{Name: name, Hash: ref.Hash(), Commit: peeled, Annotated: annotated})
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.SubsystemErrorf(err, "failed to list refs")
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

// peel resolves a tag ref value to a commit. ok is false when the target
// is not a commit, or is a tag of a tag.
func (r *Repo) peel(h plumbing.Hash) (commit plumbing.Hash, annotated bool, ok bool, err error) {
	obj, err := r.repo.Storer.EncodedObject(plumbing.AnyObject, h)
	if err != nil {
		return plumbing.ZeroHash, false, false, err
	}

	switch obj.Type() {
	case plumbing.CommitObject:
		return h, false, true, nil
	case plumbing.TagObject:
		tag, err := object.DecodeTag(r.repo.Storer, obj)
		if err != nil {
			return plumbing.ZeroHash, false, false, err
		}
		if tag.TargetType != plumbing.CommitObject {
			return plumbing.ZeroHash, true, false, nil
		}
		return tag.Target, true, true, nil
	default:
		return plumbing.ZeroHash, false, false, nil
	}
}

// ResolveRef returns the value stored in a ref, or the zero hash when it
// does not exist.
func (r *Repo) ResolveRef(ctx context.Context, name plumbing.ReferenceName) (plumbing.Hash, error) {
	ref, err := r.repo.Storer.Reference(name)
	if err != nil {
		if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, nil
		}
		return plumbing.ZeroHash, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return ref.Hash(), nil
}

// RefChange moves Name from Old to New. A zero Old means the ref must
// not exist yet; a zero New deletes the ref.
type RefChange struct {
	Name plumbing.ReferenceName
	Old  plumbing.Hash
	New  plumbing.Hash
}

// UpdateRef points name at newHash only if it currently holds oldHash.
// A zero oldHash means the ref must not exist yet.
func (r *Repo) UpdateRef(ctx context.Context, name plumbing.ReferenceName, newHash, oldHash plumbing.Hash) error {
	return r.UpdateRefs(ctx, []RefChange{{Name: name, Old: oldHash, New: newHash}})
}

// DeleteRef removes name only if it currently holds oldHash.
func (r *Repo) DeleteRef(ctx context.Context, name plumbing.ReferenceName, oldHash plumbing.Hash) error {
	return r.UpdateRefs(ctx, []RefChange{{Name: name, Old: oldHash}})
}

// UpdateRefs applies every change or none. On disk the changes form one
// git update-ref transaction, which also handles packed refs. In-memory
// repositories apply them in order and put moved refs back when one
// fails.
func (r *Repo) UpdateRefs(ctx context.Context, changes []RefChange) error {
	if len(changes) == 0 {
		return nil
	}
	if r.dir != "" {
		return r.updateRefsTx(ctx, changes)
	}
	return r.updateRefsInStore(ctx, changes)
}

func (r *Repo) updateRefsTx(ctx context.Context, changes []RefChange) error {
	var script strings.Builder
	script.WriteString("start\n")
	for _, c := range changes {
		switch {
		case !c.New.IsZero():
			fmt.Fprintf(&script, "update %s %s %s\n", c.Name, c.New, c.Old)
		case c.Old.IsZero():
			fmt.Fprintf(&script, "verify %s %s\n", c.Name, plumbing.ZeroHash)
		default:
			fmt.Fprintf(&script, "delete %s %s\n", c.Name, c.Old)
		}
	}
	script.WriteString("prepare\ncommit\n")

	if _, err := r.run(ctx, nil, strings.NewReader(script.String()), "update-ref", "-m", "dropdays", "--stdin"); err != nil {
		if isStaleRef(err) {
			return fmt.Errorf("update refs: %w: %v", ErrRefChanged, err)
		}
		return fmt.Errorf("update refs: %w", err)
	}
	return nil
}

// isStaleRef recognizes update-ref failures caused by a ref not holding
// its expected value.
func isStaleRef(err error) bool {
	msg := err.Error()
	for _, s := range []string{"but expected", "already exists", "is missing", "unable to resolve reference"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (r *Repo) updateRefsInStore(ctx context.Context, changes []RefChange) error {
	applied := make([]RefChange, 0, len(changes))
	for _, c := range changes {
		if err := r.setRef(ctx, c.Name, c.New, c.Old); err != nil {
			for i := len(applied) - 1; i >= 0; i-- {
				a := applied[i]
				// Best effort: a ref moved again since is left alone.
				_ = r.setRef(ctx, a.Name, a.Old, a.New)
			}
			return err
		}
		applied = append(applied, c)
	}
	return nil
}

// setRef is a go-git compare-and-swap; a zero newHash removes the ref.
func (r *Repo) setRef(ctx context.Context, name plumbing.ReferenceName, newHash, oldHash plumbing.Hash) error {
	current, err := r.ResolveRef(ctx, name)
	if err != nil {
		return err
	}
	if current != oldHash {
		return fmt.Errorf("update ref %s: %w (expected %s, found %s)", name, ErrRefChanged, oldHash, current)
	}

	if newHash.IsZero() {
		if current.IsZero() {
			return nil
		}
		if err := r.repo.Storer.RemoveReference(name); err != nil {
			return fmt.Errorf("delete ref %s: %w", name, err)
		}
		return nil
	}

	var old *plumbing.Reference
	if !oldHash.IsZero() {
		old = plumbing.NewHashReference(name, oldHash)
	}

	if err := r.repo.Storer.CheckAndSetReference(plumbing.NewHashReference(name, newHash), old); err != nil {
		if stderrors.Is(err, storage.ErrReferenceHasChanged) {
			return fmt.Errorf("update ref %s: %w", name, ErrRefChanged)
		}
		return fmt.Errorf("update ref %s: %w", name, err)
	}
	return nil
}
