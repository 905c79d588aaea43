package pipeline

import (
	"context"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/journal"
)

// RecoverRepo is what recovery needs from version control.
type RecoverRepo interface {
	ResolveRef(ctx context.Context, name plumbing.ReferenceName) (plumbing.Hash, error)
	UpdateRef(ctx context.Context, name plumbing.ReferenceName, newHash, oldHash plumbing.Hash) error
	DeleteRef(ctx context.Context, name plumbing.ReferenceName, oldHash plumbing.Hash) error
}

// RecoverOptions choose what happens to refs that moved during an
// interrupted run.
type RecoverOptions struct {
	// Restore puts moved refs back to their recorded values.
	Restore bool
	// Accept keeps moved refs as they are and closes the run.
	Accept bool
}

// RefDrift is a target ref that no longer holds its recorded value.
type RefDrift struct {
	Name     string `json:"name" yaml:"name"`
	Recorded string `json:"recorded" yaml:"recorded"`
	Current  string `json:"current" yaml:"current"`
	Restored bool   `json:"restored" yaml:"restored"`
}

// Recovered describes what was done for one interrupted run.
type Recovered struct {
	RunID          string     `json:"run_id" yaml:"run_id"`
	Strategy       string     `json:"strategy" yaml:"strategy"`
	ScratchDeleted bool       `json:"scratch_deleted" yaml:"scratch_deleted"`
	Drift          []RefDrift `json:"drift,omitempty" yaml:"drift,omitempty"`
	Stashed        bool       `json:"stashed" yaml:"stashed"`
	Closed         bool       `json:"closed" yaml:"closed"`
}

// Recover cleans up runs that never reported back. Scratch refs are always
// deleted. A run whose target refs still hold their recorded values is
// closed; one with moved refs stays open unless opts says to restore or
// accept them.
func Recover(ctx context.Context, repo RecoverRepo, logger logrus.FieldLogger, journalPath string, opts RecoverOptions) ([]Recovered, error) {
	if opts.Restore && opts.Accept {
		return nil, errors.ValidationErrorf("restore and accept are mutually exclusive")
	}

	j, err := journal.Open(journalPath)
	if err != nil {
		return nil, err
	}
	defer j.Close()

	pending, err := j.Pending()
	if err != nil {
		return nil, err
	}

	out := make([]Recovered, 0, len(pending))
	for _, run := range pending {
		log := logger.WithField("run_id", run.ID)
		rec := Recovered{RunID: run.ID, Strategy: run.Strategy, Stashed: run.Stashed}

		if run.ScratchRef != "" {
			name := plumbing.ReferenceName(run.ScratchRef)
			h, err := repo.ResolveRef(ctx, name)
			if err != nil {
				return out, errors.SubsystemErrorf(err, "failed to read %s", name)
			}
			if !h.IsZero() {
				if err := repo.DeleteRef(ctx, name, h); err != nil {
					return out, errors.SubsystemErrorf(err, "failed to delete %s", name)
				}
				rec.ScratchDeleted = true
				log.WithField("ref", name).Info("deleted scratch ref")
			}
		}

		for _, rs := range run.Refs {
			name := plumbing.ReferenceName(rs.Name)
			recorded := plumbing.NewHash(rs.Old)
			current, err := repo.ResolveRef(ctx, name)
			if err != nil {
				return out, errors.SubsystemErrorf(err, "failed to read %s", name)
			}
			if current == recorded {
				continue
			}

			d := RefDrift{Name: rs.Name, Recorded: rs.Old, Current: current.String()}
			if opts.Restore {
				if err := repo.UpdateRef(ctx, name, recorded, current); err != nil {
					return out, errors.SubsystemErrorf(err, "failed to restore %s", name)
				}
				d.Restored = true
				log.WithField("ref", name).Info("restored ref to its recorded value")
			}
			rec.Drift = append(rec.Drift, d)
		}

		if len(rec.Drift) == 0 || opts.Restore || opts.Accept {
			if err := j.Finish(run.ID, journal.StatusRecovered); err != nil {
				return out, err
			}
			rec.Closed = true
		} else {
			log.Warn("refs moved during the interrupted run; rerun with --restore or --accept")
		}
		if run.Stashed {
			log.Warn("this run stashed local changes; check `git stash list` for a dropdays autostash entry")
		}
		out = append(out, rec)
	}
	return out, nil
}
