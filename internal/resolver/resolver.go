// Package resolver turns selected days into the set of commits to remove.
package resolver

import (
	"github.com/rohankatakam/dropdays/internal/classifier"
	"github.com/rohankatakam/dropdays/internal/dates"
	"github.com/rohankatakam/dropdays/internal/git"
)

// Report summarizes a selection before anything is rewritten.
type Report struct {
	Start             string   `json:"start" yaml:"start"`
	End               string   `json:"end" yaml:"end"`
	DateField         string   `json:"date_field" yaml:"date_field"`
	Universe          string   `json:"day_universe,omitempty" yaml:"day_universe,omitempty"`
	Probability       float64  `json:"probability" yaml:"probability"`
	Seed              uint64   `json:"seed" yaml:"seed"`
	DaysInRange       int      `json:"days_in_range" yaml:"days_in_range"`
	UniverseSize      int      `json:"universe_size" yaml:"universe_size"`
	DaysSelected      int      `json:"days_selected" yaml:"days_selected"`
	SelectedDays      []string `json:"selected_days" yaml:"selected_days"`
	CommitsClassified int      `json:"commits_classified" yaml:"commits_classified"`
	CommitsMarked     int      `json:"commits_marked" yaml:"commits_marked"`
}

// Resolution is the drop/keep partition of the classified commits.
type Resolution struct {
	Drop   git.HashSet
	Keep   git.HashSet
	Report Report
}

// Resolve unions the commits of every selected day into the drop set.
// Selected days without commits contribute nothing. universe is the
// population the days were drawn from and only feeds the report.
func Resolve(idx *classifier.Index, universe, selected []dates.Day) *Resolution {
	drop := make(git.HashSet)
	for _, d := range selected {
		for h := range idx.Days[d] {
			drop[h] = struct{}{}
		}
	}

	keep := make(git.HashSet, idx.Len()-len(drop))
	for _, c := range idx.Order {
		if _, ok := drop[c.Hash]; !ok {
			keep[c.Hash] = struct{}{}
		}
	}

	days := make([]dates.Day, len(selected))
	copy(days, selected)
	dates.Sort(days)

	return &Resolution{
		Drop: drop,
		Keep: keep,
		Report: Report{
			Start:             idx.Range.Start.String(),
			End:               idx.Range.End.String(),
			DateField:         string(idx.Field),
			DaysInRange:       idx.Range.Len(),
			UniverseSize:      len(universe),
			DaysSelected:      len(days),
			SelectedDays:      dates.Strings(days),
			CommitsClassified: idx.Len(),
			CommitsMarked:     len(drop),
		},
	}
}

// Empty reports whether nothing is to be dropped.
func (r *Resolution) Empty() bool {
	return len(r.Drop) == 0
}
