package output

import (
	"github.com/rohankatakam/dropdays/internal/backfill"
	"github.com/rohankatakam/dropdays/internal/pipeline"
	"github.com/rohankatakam/dropdays/internal/resolver"
	"github.com/rohankatakam/dropdays/internal/rewrite"
)

// RefUpdate is a published ref change with hashes as strings
type RefUpdate struct {
	Name    string `json:"name" yaml:"name"`
	Old     string `json:"old" yaml:"old"`
	New     string `json:"new,omitempty" yaml:"new,omitempty"`
	Deleted bool   `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}

// ApplyOutput is the result of an applied run
type ApplyOutput struct {
	Report         *resolver.Report `json:"report,omitempty" yaml:"report,omitempty"`
	RunID          string           `json:"run_id" yaml:"run_id"`
	Strategy       string           `json:"strategy" yaml:"strategy"`
	State          string           `json:"state" yaml:"state"`
	NoOp           bool             `json:"no_op" yaml:"no_op"`
	CommitsDropped int              `json:"commits_dropped" yaml:"commits_dropped"`
	CommitsCreated int              `json:"commits_created" yaml:"commits_created"`
	Updates        []RefUpdate      `json:"updates" yaml:"updates"`
	Warnings       []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	DurationMS     int64            `json:"duration_ms" yaml:"duration_ms"`
}

// NewApplyOutput flattens a rewrite result. report may be nil when the
// drop set came from a file.
func NewApplyOutput(report *resolver.Report, res *rewrite.Result) *ApplyOutput {
	out := &ApplyOutput{
		Report:         report,
		RunID:          res.RunID,
		Strategy:       string(res.Strategy),
		State:          res.State.String(),
		NoOp:           res.NoOp(),
		CommitsDropped: res.CommitsDropped,
		CommitsCreated: res.CommitsCreated,
		Updates:        make([]RefUpdate, 0, len(res.Updates)),
		Warnings:       res.Warnings,
		DurationMS:     res.Duration.Milliseconds(),
	}
	for _, u := range res.Updates {
		ru := RefUpdate{Name: u.Name.String(), Old: u.Old.String(), Deleted: u.Deleted}
		if !u.Deleted {
			ru.New = u.New.String()
		}
		out.Updates = append(out.Updates, ru)
	}
	return out
}

// FromOutcome flattens a pipeline outcome
func FromOutcome(o *pipeline.Outcome) *ApplyOutput {
	return NewApplyOutput(&o.Report, o.Result)
}

// BackfillDay is one day of a backfill schedule
type BackfillDay struct {
	Day   string `json:"day" yaml:"day"`
	Count int    `json:"count" yaml:"count"`
}

// BackfillOutput is a backfill schedule and, when applied, its result
type BackfillOutput struct {
	Applied bool          `json:"applied" yaml:"applied"`
	Seed    uint64        `json:"seed" yaml:"seed"`
	Branch  string        `json:"branch" yaml:"branch"`
	Days    []BackfillDay `json:"days" yaml:"days"`
	Total   int           `json:"total" yaml:"total"`
	Old     string        `json:"old,omitempty" yaml:"old,omitempty"`
	New     string        `json:"new,omitempty" yaml:"new,omitempty"`
}

// NewBackfillOutput flattens a schedule and an optional result
func NewBackfillOutput(branch string, seed uint64, s *backfill.Schedule, res *backfill.Result) *BackfillOutput {
	out := &BackfillOutput{
		Seed:   seed,
		Branch: branch,
		Days:   make([]BackfillDay, 0, len(s.Entries)),
		Total:  s.Total,
	}
	for _, e := range s.Entries {
		out.Days = append(out.Days, BackfillDay{Day: e.Day.String(), Count: e.Count})
	}
	if res != nil {
		out.Applied = true
		out.Old = res.Old.String()
		out.New = res.New.String()
	}
	return out
}
