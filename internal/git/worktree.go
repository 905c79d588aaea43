package git

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
)

// ErrPatchRejected is returned by ApplyPatch when a commit's change does
// not apply to the given base tree.
var ErrPatchRejected = stderrors.New("patch does not apply")

// IsClean reports whether the working tree and index match HEAD, ignoring
// files excluded by .gitignore. Repositories without a working tree are
// always clean.
func (r *Repo) IsClean(ctx context.Context) (bool, error) {
	if r.root == "" {
		return true, nil
	}

	out, err := r.run(ctx, nil, nil, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "", nil
}

// StashPush sets aside local changes, including untracked files. It
// reports whether anything was stashed.
func (r *Repo) StashPush(ctx context.Context, message string) (bool, error) {
	before, err := r.stashTop(ctx)
	if err != nil {
		return false, err
	}

	if _, err := r.run(ctx, nil, nil, "stash", "push", "--include-untracked", "-m", message); err != nil {
		return false, err
	}

	after, err := r.stashTop(ctx)
	if err != nil {
		return false, err
	}
	return after != before, nil
}

// StashPop reapplies and drops the most recent stash entry.
func (r *Repo) StashPop(ctx context.Context) error {
	_, err := r.run(ctx, nil, nil, "stash", "pop")
	return err
}

func (r *Repo) stashTop(ctx context.Context) (string, error) {
	out, err := r.run(ctx, nil, nil, "rev-parse", "-q", "--verify", "refs/stash")
	if err != nil {
		// rev-parse -q exits 1 without output when there is no stash.
		if strings.TrimSpace(out) == "" {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// SyncWorktree resets the index and working tree to HEAD. It is only
// called once refs have been rewritten and the tree was clean or stashed.
func (r *Repo) SyncWorktree(ctx context.Context) error {
	if r.root == "" {
		return nil
	}
	_, err := r.run(ctx, nil, nil, "reset", "--hard", "-q", "HEAD")
	return err
}

// ApplyPatch applies the change between commits from and to onto
// baseTree and returns the resulting tree. It works in a private index
// file and never touches HEAD, the real index or the working tree.
// Renames are treated as a delete plus an add.
func (r *Repo) ApplyPatch(ctx context.Context, baseTree, from, to plumbing.Hash) (plumbing.Hash, error) {
	patch, err := r.run(ctx, nil, nil, "diff-tree", "-p", "--binary", "--full-index", "--no-renames", from.String(), to.String())
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if strings.TrimSpace(patch) == "" {
		return baseTree, nil
	}

	workspace, err := os.MkdirTemp("", "dropdays-index-")
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to create scratch index: %w", err)
	}
	defer os.RemoveAll(workspace)

	env := []string{"GIT_INDEX_FILE=" + filepath.Join(workspace, "index")}

	if _, err := r.run(ctx, env, nil, "read-tree", baseTree.String()); err != nil {
		return plumbing.ZeroHash, err
	}

	if _, err := r.run(ctx, env, strings.NewReader(patch), "apply", "--cached", "--whitespace=nowarn", "-"); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit %s: %w: %v", to, ErrPatchRejected, err)
	}

	out, err := r.run(ctx, env, nil, "write-tree")
	if err != nil {
		return plumbing.ZeroHash, err
	}

	tree := plumbing.NewHash(strings.TrimSpace(out))
	if tree.IsZero() {
		return plumbing.ZeroHash, fmt.Errorf("write-tree returned no tree for %s", to)
	}
	return tree, nil
}
