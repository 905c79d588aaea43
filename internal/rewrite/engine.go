package rewrite

import (
	"context"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/git"
	"github.com/rohankatakam/dropdays/internal/journal"
)

// ScratchPrefix namespaces the temporary refs of linear reconstruction.
const ScratchPrefix = "refs/dropdays/scratch/"

// Repository is what the engine needs from version control.
type Repository interface {
	Commits(ctx context.Context, tips []plumbing.Hash) ([]*git.Commit, error)
	CurrentBranch(ctx context.Context) (git.Ref, error)
	CreateCommit(ctx context.Context, c *git.Commit) (plumbing.Hash, error)
	RetargetTag(ctx context.Context, tag, commit plumbing.Hash) (plumbing.Hash, error)
	ResolveRef(ctx context.Context, name plumbing.ReferenceName) (plumbing.Hash, error)
	UpdateRef(ctx context.Context, name plumbing.ReferenceName, newHash, oldHash plumbing.Hash) error
	DeleteRef(ctx context.Context, name plumbing.ReferenceName, oldHash plumbing.Hash) error
	UpdateRefs(ctx context.Context, changes []git.RefChange) error
	ApplyPatch(ctx context.Context, baseTree, from, to plumbing.Hash) (plumbing.Hash, error)
}

// Journal records runs that enter the rewrite.
type Journal interface {
	Begin(run *journal.Run) error
	Finish(id string, status journal.Status) error
}

// RefUpdate is one published ref change.
type RefUpdate struct {
	Name    plumbing.ReferenceName
	Old     plumbing.Hash
	New     plumbing.Hash
	Deleted bool
}

// Result describes a completed rewrite.
type Result struct {
	RunID          string
	Strategy       Strategy
	State          State
	Updates        []RefUpdate
	CommitsDropped int
	CommitsCreated int
	Warnings       []string
	Duration       time.Duration
	// Mapping takes each kept commit to its rewritten id.
	Mapping map[plumbing.Hash]plumbing.Hash
}

// NoOp reports whether the run left every ref as it was.
func (r *Result) NoOp() bool {
	return len(r.Updates) == 0
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal records every run that enters the rewrite in j.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithClock sets the time source for commits the engine dates itself.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option {
	return func(e *Engine) { e.runID = id }
}

// Engine executes rewrite plans. It is the only component that writes to
// the repository.
type Engine struct {
	repo    Repository
	journal Journal
	logger  logrus.FieldLogger
	runID   string
	state   State
	now     func() time.Time
}

// NewEngine creates an engine over repo.
func NewEngine(repo Repository, logger logrus.FieldLogger, opts ...Option) *Engine {
	e := &Engine{repo: repo, logger: logger, state: PlanBuilt, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State is the step the last run reached.
func (e *Engine) State() State {
	return e.state
}

// rewritten is a strategy's output: the value each target ref should hold,
// zero for refs to delete.
type rewritten struct {
	targets map[plumbing.ReferenceName]plumbing.Hash
	mapping map[plumbing.Hash]plumbing.Hash
	created int
}

// Execute rewrites the plan's history and publishes the new ref values
// in one transaction. Any failure leaves every original ref in place.
func (e *Engine) Execute(ctx context.Context, plan *Plan) (*Result, error) {
	return e.execute(ctx, plan, false)
}

func (e *Engine) execute(ctx context.Context, plan *Plan, stashed bool) (*Result, error) {
	if err := plan.consume(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &Result{
		RunID:          e.runID,
		Strategy:       plan.Strategy,
		CommitsDropped: plan.Dropped(),
		Mapping:        make(map[plumbing.Hash]plumbing.Hash),
	}
	if result.RunID == "" {
		result.RunID = newRunID()
	}
	logger := e.logger.WithFields(logrus.Fields{
		"run_id":   result.RunID,
		"strategy": plan.Strategy,
	})

	if plan.Noop() {
		logger.Info("drop set does not touch history, nothing to rewrite")
		e.state = RefsUpdated
		result.State = e.state
		return result, nil
	}

	run := &journal.Run{
		ID:       result.RunID,
		Strategy: string(plan.Strategy),
		Stashed:  stashed,
	}
	for _, ref := range plan.Refs {
		run.Refs = append(run.Refs, journal.RefState{Name: ref.Name.String(), Old: ref.Hash.String()})
	}
	scratch := plumbing.ReferenceName(ScratchPrefix + result.RunID)
	if plan.Strategy == Linear {
		run.ScratchRef = scratch.String()
	}
	if e.journal != nil {
		if err := e.journal.Begin(run); err != nil {
			return nil, err
		}
	}

	e.transition(logger, Rewriting)

	var out *rewritten
	var err error
	switch plan.Strategy {
	case Elision:
		out, err = e.elide(ctx, logger, plan)
	case Linear:
		out, err = e.reconstruct(ctx, logger, plan, scratch)
	default:
		err = errors.InternalErrorf("unknown strategy %q", plan.Strategy)
	}

	if err == nil {
		result.Updates, err = e.publish(ctx, logger, plan, out.targets)
	}

	if err != nil {
		e.transition(logger, Aborted)
		e.finish(logger, run.ID, journal.StatusAborted)
		return nil, err
	}

	e.transition(logger, RefsUpdated)
	e.finish(logger, run.ID, journal.StatusUpdated)

	result.State = e.state
	result.Mapping = out.mapping
	result.CommitsCreated = out.created
	result.Duration = time.Since(start)
	return result, nil
}

func (e *Engine) transition(logger logrus.FieldLogger, to State) {
	logger.WithFields(logrus.Fields{"from": e.state, "to": to}).Debug("rewrite state change")
	e.state = to
}

func (e *Engine) finish(logger logrus.FieldLogger, id string, status journal.Status) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Finish(id, status); err != nil {
		logger.WithError(err).Warn("failed to close journal entry; run `dropdays recover` to clear it")
	}
}

func newRunID() string {
	return uuid.NewString()
}
