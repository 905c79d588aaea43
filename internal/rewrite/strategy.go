// Package rewrite builds a new commit graph without the commits of a drop
// set and publishes it by compare-and-swap ref updates.
package rewrite

import (
	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/git"
)

// Strategy selects how history is rebuilt.
type Strategy string

const (
	// Elision recreates kept commits with parents pointing at their
	// nearest kept ancestors. Trees are reused, so it never conflicts.
	Elision Strategy = "elision"
	// Linear replays kept commits of a merge-free branch onto a synthetic
	// root carrying the original root's tree.
	Linear Strategy = "linear-reconstruction"
)

// ParseStrategy accepts "elision", "linear" and "linear-reconstruction".
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case string(Elision):
		return Elision, nil
	case "linear", string(Linear):
		return Linear, nil
	default:
		return "", errors.ValidationErrorf("invalid strategy %q (want %s or linear)", s, Elision)
	}
}

// DefaultScope is the ref scope a strategy implies when none is given.
func (s Strategy) DefaultScope() git.RefScope {
	if s == Linear {
		return git.ScopeCurrentBranch
	}
	return git.ScopeAll
}

// State is a step of a run.
type State int

const (
	Validated State = iota
	Classified
	PlanBuilt
	Rewriting
	RefsUpdated
	Aborted
)

func (s State) String() string {
	switch s {
	case Validated:
		return "validated"
	case Classified:
		return "classified"
	case PlanBuilt:
		return "plan-built"
	case Rewriting:
		return "rewriting"
	case RefsUpdated:
		return "refs-updated"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}
