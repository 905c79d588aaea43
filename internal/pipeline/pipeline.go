// Package pipeline runs selection, classification, resolution and the
// rewrite in order.
package pipeline

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/dropdays/internal/classifier"
	"github.com/rohankatakam/dropdays/internal/dates"
	"github.com/rohankatakam/dropdays/internal/dropset"
	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/git"
	"github.com/rohankatakam/dropdays/internal/journal"
	"github.com/rohankatakam/dropdays/internal/resolver"
	"github.com/rohankatakam/dropdays/internal/rewrite"
	"github.com/rohankatakam/dropdays/internal/sampler"
)

// Options are the validated parameters of a run.
type Options struct {
	Range       dates.Range
	Probability float64
	Field       classifier.DateField
	Universe    sampler.Universe
	// Seed 0 picks a seed from the clock.
	Seed     uint64
	Strategy rewrite.Strategy
	// Scope overrides the strategy's default ref scope when set.
	Scope     *git.RefScope
	AutoStash bool
	// DropFile and JournalPath default to files in the git dir.
	DropFile     string
	KeepDropFile bool
	JournalPath  string
}

// Selection is the outcome of the read-only stages.
type Selection struct {
	Refs       []git.Ref
	Index      *classifier.Index
	Resolution *resolver.Resolution
}

// Outcome is the result of an applied run.
type Outcome struct {
	Report resolver.Report
	Result *rewrite.Result
}

// Pipeline drives one run against a repository.
type Pipeline struct {
	repo   *git.Repo
	logger logrus.FieldLogger
	opts   Options
	state  rewrite.State
}

// New validates opts. Nothing is read from the repository yet. The range
// is only checked by operations that select days, so a pipeline replaying
// a drop file may leave it zero.
func New(repo *git.Repo, logger logrus.FieldLogger, opts Options) (*Pipeline, error) {
	if err := sampler.ValidateProbability(opts.Probability); err != nil {
		return nil, err
	}
	if opts.Field == "" {
		opts.Field = classifier.Committer
	}
	if _, err := classifier.ParseDateField(string(opts.Field)); err != nil {
		return nil, err
	}
	if opts.Universe == "" {
		opts.Universe = sampler.Calendar
	}
	if _, err := sampler.ParseUniverse(string(opts.Universe)); err != nil {
		return nil, err
	}
	if opts.Strategy == "" {
		opts.Strategy = rewrite.Elision
	}
	if _, err := rewrite.ParseStrategy(string(opts.Strategy)); err != nil {
		return nil, err
	}
	return &Pipeline{repo: repo, logger: logger, opts: opts, state: rewrite.Validated}, nil
}

// State is the last stage the pipeline reached.
func (p *Pipeline) State() rewrite.State {
	return p.state
}

func (p *Pipeline) scope() git.RefScope {
	if p.opts.Scope != nil {
		return *p.opts.Scope
	}
	return p.opts.Strategy.DefaultScope()
}

// Select classifies history, samples days and resolves the drop set. It
// never writes to the repository.
func (p *Pipeline) Select(ctx context.Context) (*Selection, error) {
	if !p.opts.Range.Start.IsValid() || !p.opts.Range.End.IsValid() {
		return nil, errors.ValidationErrorf("invalid date range %s", p.opts.Range)
	}

	refs, err := p.repo.Refs(ctx, p.scope())
	if err != nil {
		return nil, err
	}

	idx, err := classifier.Classify(ctx, p.repo, git.Tips(refs), classifier.Options{
		Range:         p.opts.Range,
		Field:         p.opts.Field,
		ExcludeMerges: p.opts.Strategy == rewrite.Linear,
	})
	if err != nil {
		return nil, err
	}
	p.state = rewrite.Classified
	p.logger.WithField("index", idx.String()).Debug("history classified")

	src, seed := sampler.NewSource(p.opts.Seed)
	universe, selected, err := sampler.Select(p.opts.Universe, p.opts.Range, idx, p.opts.Probability, src)
	if err != nil {
		return nil, err
	}

	res := resolver.Resolve(idx, universe, selected)
	res.Report.Universe = string(p.opts.Universe)
	res.Report.Probability = p.opts.Probability
	res.Report.Seed = seed

	p.logger.WithFields(logrus.Fields{
		"seed":           seed,
		"days_selected":  res.Report.DaysSelected,
		"commits_marked": res.Report.CommitsMarked,
	}).Info("drop set resolved")

	return &Selection{Refs: refs, Index: idx, Resolution: res}, nil
}

// DryRun reports what a run would drop.
func (p *Pipeline) DryRun(ctx context.Context) (*resolver.Report, error) {
	sel, err := p.Select(ctx)
	if err != nil {
		return nil, err
	}
	return &sel.Resolution.Report, nil
}

// WritePlan selects a drop set and persists it for a later
// ApplyDropFile. It returns the report and the file written.
func (p *Pipeline) WritePlan(ctx context.Context) (*resolver.Report, string, error) {
	sel, err := p.Select(ctx)
	if err != nil {
		return nil, "", err
	}
	path, err := p.dropFile(ctx)
	if err != nil {
		return nil, "", err
	}
	if err := dropset.Write(path, sel.Resolution.Drop); err != nil {
		return nil, "", err
	}
	return &sel.Resolution.Report, path, nil
}

// Apply selects a drop set, persists it and rewrites history without it.
func (p *Pipeline) Apply(ctx context.Context) (*Outcome, error) {
	sel, err := p.Select(ctx)
	if err != nil {
		return nil, err
	}

	path, err := p.dropFile(ctx)
	if err != nil {
		return nil, err
	}
	if err := dropset.Write(path, sel.Resolution.Drop); err != nil {
		return nil, err
	}

	result, err := p.applyFile(ctx, path, sel.Refs)
	if err != nil {
		return nil, err
	}
	return &Outcome{Report: sel.Resolution.Report, Result: result}, nil
}

// ApplyDropFile rewrites history without the commits listed in path.
func (p *Pipeline) ApplyDropFile(ctx context.Context, path string) (*rewrite.Result, error) {
	refs, err := p.repo.Refs(ctx, p.scope())
	if err != nil {
		return nil, err
	}
	return p.applyFile(ctx, path, refs)
}

func (p *Pipeline) applyFile(ctx context.Context, path string, refs []git.Ref) (*rewrite.Result, error) {
	drop, err := dropset.Read(path)
	if err != nil {
		return nil, err
	}

	j, err := p.openJournal(ctx)
	if err != nil {
		return nil, err
	}
	defer j.Close()

	pending, err := j.Pending()
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		return nil, errors.PreconditionErrorf(
			"interrupted run %s found; run `dropdays recover` first", pending[0].ID)
	}

	plan, err := rewrite.BuildPlan(ctx, p.repo, p.opts.Strategy, refs, drop)
	if err != nil {
		return nil, err
	}
	p.state = rewrite.PlanBuilt

	engine := rewrite.NewEngine(p.repo, p.logger, rewrite.WithJournal(j))
	result, err := engine.Run(ctx, plan, p.repo, p.opts.AutoStash)
	p.state = engine.State()
	if err != nil {
		return nil, err
	}

	if !p.opts.KeepDropFile {
		if err := dropset.Remove(path); err != nil {
			p.logger.WithError(err).Warn("failed to remove drop set file")
		}
	}
	return result, nil
}

func (p *Pipeline) dropFile(ctx context.Context) (string, error) {
	if p.opts.DropFile != "" {
		return p.opts.DropFile, nil
	}
	return inGitDir(ctx, p.repo, dropset.FileName)
}

func (p *Pipeline) openJournal(ctx context.Context) (*journal.Journal, error) {
	path := p.opts.JournalPath
	if path == "" {
		var err error
		if path, err = inGitDir(ctx, p.repo, journal.FileName); err != nil {
			return nil, err
		}
	}
	return journal.Open(path)
}

func inGitDir(ctx context.Context, repo *git.Repo, name string) (string, error) {
	dir, err := repo.GitDir(ctx)
	if err != nil {
		return "", errors.SubsystemErrorf(err, "failed to locate the git directory")
	}
	return filepath.Join(dir, name), nil
}

// DefaultJournalPath is where a repository's journal lives unless
// configured otherwise.
func DefaultJournalPath(ctx context.Context, repo *git.Repo) (string, error) {
	return inGitDir(ctx, repo, journal.FileName)
}

// DefaultDropFile is where the drop set is written unless configured
// otherwise.
func DefaultDropFile(ctx context.Context, repo *git.Repo) (string, error) {
	return inGitDir(ctx, repo, dropset.FileName)
}
