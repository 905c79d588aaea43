package rewrite

import (
	"context"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/git"
)

// publish moves every target ref from its planned old value to its new
// one in a single compare-and-swap transaction.
func (e *Engine) publish(ctx context.Context, logger logrus.FieldLogger, plan *Plan, targets map[plumbing.ReferenceName]plumbing.Hash) ([]RefUpdate, error) {
	var updates []RefUpdate
	for _, ref := range plan.Refs {
		target, ok := targets[ref.Name]
		if !ok || target == ref.Hash {
			continue
		}
		updates = append(updates, RefUpdate{
			Name:    ref.Name,
			Old:     ref.Hash,
			New:     target,
			Deleted: target.IsZero(),
		})
	}

	// The checked-out branch goes last so HEAD only moves once everything
	// else is in place.
	for i, u := range updates {
		if u.Name == plan.Head && i != len(updates)-1 {
			updates = append(append(updates[:i:i], updates[i+1:]...), u)
			break
		}
	}

	changes := make([]git.RefChange, 0, len(updates))
	names := make([]string, 0, len(updates))
	for _, u := range updates {
		changes = append(changes, git.RefChange{Name: u.Name, Old: u.Old, New: u.New})
		names = append(names, u.Name.String())
	}

	if err := e.repo.UpdateRefs(ctx, changes); err != nil {
		return nil, errors.SubsystemErrorf(err, "failed to publish rewritten refs; original refs left in place").
			WithContext("refs", names)
	}

	for _, u := range updates {
		logger.WithFields(logrus.Fields{
			"ref": u.Name,
			"old": u.Old,
			"new": u.New,
		}).Debug("ref updated")
	}
	return updates, nil
}
