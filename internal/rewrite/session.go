package rewrite

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/dropdays/internal/errors"
)

// Worktree is the working-area bookkeeping around a rewrite.
type Worktree interface {
	IsClean(ctx context.Context) (bool, error)
	StashPush(ctx context.Context, message string) (bool, error)
	StashPop(ctx context.Context) error
	SyncWorktree(ctx context.Context) error
}

// Session holds exclusive use of the working area for one rewrite. Local
// changes are either rejected or stashed on Acquire and given back on
// Release.
type Session struct {
	wt      Worktree
	logger  logrus.FieldLogger
	stashed bool
	done    bool
}

// Acquire checks that the working tree is clean. With autoStash, local
// changes are stashed instead of rejected.
func Acquire(ctx context.Context, wt Worktree, logger logrus.FieldLogger, autoStash bool, runID string) (*Session, error) {
	clean, err := wt.IsClean(ctx)
	if err != nil {
		return nil, errors.SubsystemErrorf(err, "failed to check working tree status")
	}

	s := &Session{wt: wt, logger: logger}
	if clean {
		return s, nil
	}
	if !autoStash {
		return nil, errors.PreconditionErrorf("working tree has local changes; commit or stash them first")
	}

	stashed, err := wt.StashPush(ctx, "dropdays autostash "+runID)
	if err != nil {
		return nil, errors.WrapPrecondition(err, "working tree has local changes that could not be stashed")
	}
	s.stashed = stashed
	if stashed {
		logger.Info("stashed local changes")
	}
	return s, nil
}

// Stashed reports whether Acquire set changes aside.
func (s *Session) Stashed() bool {
	return s.stashed
}

// Release resets the working tree to the new HEAD when refs moved, then
// reapplies stashed changes. Problems are returned as warnings; the
// rewrite itself has already succeeded or been rolled back.
func (s *Session) Release(ctx context.Context, refsMoved bool) []string {
	if s.done {
		return nil
	}
	s.done = true

	var warnings []string
	if refsMoved {
		if err := s.wt.SyncWorktree(ctx); err != nil {
			s.logger.WithError(err).Warn("failed to reset working tree")
			warnings = append(warnings, fmt.Sprintf(
				"working tree was not updated to the rewritten HEAD (%v); run `git reset --hard HEAD`", err))
		}
	}

	if s.stashed {
		if err := s.wt.StashPop(ctx); err != nil {
			s.logger.WithError(err).Warn("failed to reapply stashed changes")
			warnings = append(warnings, fmt.Sprintf(
				"stashed changes could not be reapplied (%v); they are still in the stash, "+
					"resolve with `git stash list` and `git stash pop`", err))
		} else {
			s.logger.Info("restored stashed changes")
		}
	}
	return warnings
}

// Run executes plan inside a session on wt.
func (e *Engine) Run(ctx context.Context, plan *Plan, wt Worktree, autoStash bool) (*Result, error) {
	if plan.Noop() {
		return e.execute(ctx, plan, false)
	}
	if e.runID == "" {
		e.runID = newRunID()
	}

	s, err := Acquire(ctx, wt, e.logger, autoStash, e.runID)
	if err != nil {
		return nil, err
	}

	result, err := e.execute(ctx, plan, s.Stashed())
	warnings := s.Release(context.WithoutCancel(ctx), err == nil && !result.NoOp())
	if err != nil {
		for _, w := range warnings {
			e.logger.Warn(w)
		}
		return nil, err
	}
	result.Warnings = append(result.Warnings, warnings...)
	return result, nil
}
