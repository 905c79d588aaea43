package output

import (
	"fmt"
	"io"

	"github.com/rohankatakam/dropdays/internal/pipeline"
	"github.com/rohankatakam/dropdays/internal/resolver"
)

// StandardFormatter prints human readable text (default)
type StandardFormatter struct{}

func (f *StandardFormatter) Report(w io.Writer, r *resolver.Report) error {
	fmt.Fprintf(w, "Range:          %s..%s (%d days)\n", r.Start, r.End, r.DaysInRange)
	fmt.Fprintf(w, "Date field:     %s\n", r.DateField)
	if r.Universe != "" {
		fmt.Fprintf(w, "Day universe:   %s (%d days)\n", r.Universe, r.UniverseSize)
	}
	fmt.Fprintf(w, "Probability:    %g\n", r.Probability)
	fmt.Fprintf(w, "Seed:           %d\n", r.Seed)
	fmt.Fprintf(w, "Days selected:  %d\n", r.DaysSelected)
	for _, d := range r.SelectedDays {
		fmt.Fprintf(w, "  %s\n", d)
	}
	_, err := fmt.Fprintf(w, "Commits marked: %d of %d\n", r.CommitsMarked, r.CommitsClassified)
	return err
}

func (f *StandardFormatter) Apply(w io.Writer, out *ApplyOutput) error {
	if out.Report != nil {
		if err := f.Report(w, out.Report); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	if out.NoOp {
		_, err := fmt.Fprintf(w, "Nothing to rewrite: no commit in history is marked.\n")
		return err
	}

	fmt.Fprintf(w, "Rewrite %s (%s): %s\n", out.RunID, out.Strategy, out.State)
	fmt.Fprintf(w, "Commits dropped: %d, created: %d\n", out.CommitsDropped, out.CommitsCreated)
	if len(out.Updates) > 0 {
		fmt.Fprintf(w, "Refs:\n")
		for _, u := range out.Updates {
			if u.Deleted {
				fmt.Fprintf(w, "  %s %s -> (deleted)\n", u.Name, short(u.Old))
			} else {
				fmt.Fprintf(w, "  %s %s -> %s\n", u.Name, short(u.Old), short(u.New))
			}
		}
	}
	for _, warn := range out.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warn)
	}
	return nil
}

func (f *StandardFormatter) Backfill(w io.Writer, out *BackfillOutput) error {
	fmt.Fprintf(w, "Branch: %s\n", out.Branch)
	fmt.Fprintf(w, "Seed:   %d\n", out.Seed)
	for _, d := range out.Days {
		fmt.Fprintf(w, "  %s  %d\n", d.Day, d.Count)
	}
	if !out.Applied {
		_, err := fmt.Fprintf(w, "%d commits would be created (dry run, pass --apply to write)\n", out.Total)
		return err
	}
	_, err := fmt.Fprintf(w, "%d commits created, %s %s -> %s\n", out.Total, out.Branch, short(out.Old), short(out.New))
	return err
}

func (f *StandardFormatter) Recover(w io.Writer, runs []pipeline.Recovered) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintf(w, "No interrupted runs.\n")
		return err
	}
	for _, r := range runs {
		status := "left open"
		if r.Closed {
			status = "closed"
		}
		fmt.Fprintf(w, "Run %s (%s): %s\n", r.RunID, r.Strategy, status)
		if r.ScratchDeleted {
			fmt.Fprintf(w, "  scratch ref deleted\n")
		}
		for _, d := range r.Drift {
			action := "moved"
			if d.Restored {
				action = "restored"
			}
			fmt.Fprintf(w, "  %s %s: recorded %s, found %s\n", d.Name, action, short(d.Recorded), short(d.Current))
		}
		if r.Stashed {
			fmt.Fprintf(w, "  local changes were stashed; check `git stash list`\n")
		}
	}
	return nil
}

func short(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
