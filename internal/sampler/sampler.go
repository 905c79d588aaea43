// Package sampler selects calendar days by independent Bernoulli trials.
package sampler

import (
	"math/rand/v2"
	"time"

	"github.com/rohankatakam/dropdays/internal/dates"
	"github.com/rohankatakam/dropdays/internal/errors"
)

// Source yields uniform draws in [0, 1).
type Source interface {
	Float64() float64
}

// NewSource returns a PCG-backed source. A zero seed is replaced by one
// derived from the clock; the seed actually used is returned so runs can
// be reproduced.
func NewSource(seed uint64) (Source, uint64) {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), seed
}

// Universe names the population days are drawn from.
type Universe string

const (
	// Calendar draws from every day in the range.
	Calendar Universe = "calendar"
	// CommitDays draws only from days that have at least one commit.
	CommitDays Universe = "commit-days"
)

// ParseUniverse validates a universe name.
func ParseUniverse(s string) (Universe, error) {
	switch Universe(s) {
	case Calendar, CommitDays:
		return Universe(s), nil
	default:
		return "", errors.ValidationErrorf("invalid day universe %q (want %s or %s)", s, Calendar, CommitDays)
	}
}

// ValidateProbability rejects values outside [0, 1] and NaN.
func ValidateProbability(p float64) error {
	if !(p >= 0 && p <= 1) {
		return errors.ValidationErrorf("probability %v out of range [0,1]", p)
	}
	return nil
}

// CalendarUniverse is every day of r, ascending.
func CalendarUniverse(r dates.Range) []dates.Day {
	return r.Days()
}

// Sample draws exactly one value per day of universe, in the order given,
// and keeps the day when the draw is below p. Callers pass an ascending
// universe so a fixed seed reproduces the same selection.
func Sample(universe []dates.Day, p float64, src Source) ([]dates.Day, error) {
	if err := ValidateProbability(p); err != nil {
		return nil, err
	}

	selected := make([]dates.Day, 0)
	for _, d := range universe {
		if src.Float64() < p {
			selected = append(selected, d)
		}
	}
	return selected, nil
}

// DayIndex is the part of a commit classification the sampler needs.
type DayIndex interface {
	ActiveDays() []dates.Day
}

// CommitDayUniverse is the ascending list of days that have commits.
func CommitDayUniverse(idx DayIndex) []dates.Day {
	return idx.ActiveDays()
}

// Select builds the universe for u and samples it.
func Select(u Universe, r dates.Range, idx DayIndex, p float64, src Source) (universe, selected []dates.Day, err error) {
	switch u {
	case Calendar:
		universe = CalendarUniverse(r)
	case CommitDays:
		universe = CommitDayUniverse(idx)
	default:
		return nil, nil, errors.ValidationErrorf("invalid day universe %q", u)
	}

	selected, err = Sample(universe, p, src)
	if err != nil {
		return nil, nil, err
	}
	return universe, selected, nil
}
