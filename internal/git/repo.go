package git

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	gogit "github.com/go-git/go-git/v5"

	"github.com/rohankatakam/dropdays/internal/errors"
)

// Repo is the version-control capability used by the rest of the module.
// Object and ref access goes through go-git; stash, status, reset and
// patch application shell out to the git executable in dir.
type Repo struct {
	repo *gogit.Repository
	// root is the working tree, empty for bare and in-memory repositories.
	root string
	// dir is where git subcommands run, empty for in-memory repositories.
	dir string
}

// Open finds the repository containing path.
func Open(path string) (*Repo, error) {
	r, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if stderrors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, errors.WrapPrecondition(err, "not a git repository: %s", path)
		}
		return nil, errors.SubsystemErrorf(err, "failed to open repository at %s", path)
	}

	result := &Repo{repo: r, dir: path}
	wt, err := r.Worktree()
	switch {
	case err == nil:
		result.root = wt.Filesystem.Root()
		result.dir = result.root
	case stderrors.Is(err, gogit.ErrIsBareRepository):
	default:
		return nil, errors.SubsystemErrorf(err, "failed to open worktree")
	}

	return result, nil
}

// FromRepository wraps an already opened go-git repository. root may be
// empty, in which case operations that need the git executable fail.
func FromRepository(r *gogit.Repository, root string) *Repo {
	return &Repo{repo: r, root: root, dir: root}
}

// Root returns the working tree directory, or "" for bare and in-memory
// repositories.
func (r *Repo) Root() string {
	return r.root
}

// GitDir returns the absolute path of the repository's git directory.
func (r *Repo) GitDir(ctx context.Context) (string, error) {
	out, err := r.run(ctx, nil, nil, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Identity returns the configured user.name and user.email.
func (r *Repo) Identity(ctx context.Context) (string, string, error) {
	name, err := r.run(ctx, nil, nil, "config", "user.name")
	if err != nil {
		return "", "", errors.WrapPrecondition(err, "git user.name is not configured")
	}
	email, err := r.run(ctx, nil, nil, "config", "user.email")
	if err != nil {
		return "", "", errors.WrapPrecondition(err, "git user.email is not configured")
	}
	return strings.TrimSpace(name), strings.TrimSpace(email), nil
}

// ErrNoExecutable is returned by operations that need an on-disk repository.
var ErrNoExecutable = stderrors.New("operation requires an on-disk repository")

// run executes a git subcommand in the repository directory and returns
// its stdout. A non-zero exit includes stderr in the error.
func (r *Repo) run(ctx context.Context, env []string, stdin io.Reader, args ...string) (string, error) {
	if r.dir == "" {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), ErrNoExecutable)
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("git %s failed: %w (stderr: %s)",
			args[0], err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
