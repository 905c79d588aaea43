package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rohankatakam/dropdays/internal/classifier"
	"github.com/rohankatakam/dropdays/internal/dates"
	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/git"
	"github.com/rohankatakam/dropdays/internal/output"
	"github.com/rohankatakam/dropdays/internal/pipeline"
	"github.com/rohankatakam/dropdays/internal/rewrite"
	"github.com/rohankatakam/dropdays/internal/sampler"
)

// selectionFlags are shared by drop and plan.
type selectionFlags struct {
	start       string
	end         string
	probability float64
	dateField   string
	universe    string
	seed        uint64
	strategy    string
	refs        string
	noAutoStash bool
	dropFile    string
	// withRange is false for commands that replay a drop file.
	withRange bool
}

func (f *selectionFlags) register(cmd *cobra.Command, withRange bool) {
	f.withRange = withRange
	if withRange {
		cmd.Flags().StringVar(&f.start, "start", "", "first day of the range (YYYY-MM-DD, required)")
		cmd.Flags().StringVar(&f.end, "end", "", "last day of the range (YYYY-MM-DD, required)")
		cmd.Flags().Float64VarP(&f.probability, "probability", "p", 0, "chance that each day is dropped")
		cmd.Flags().StringVar(&f.dateField, "date-field", "", "timestamp that decides a commit's day: author or committer")
		cmd.Flags().StringVar(&f.universe, "day-universe", "", "days eligible for selection: calendar or commit-days")
		cmd.Flags().Uint64Var(&f.seed, "seed", 0, "random seed (0 picks one from the clock)")
	}
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "rewrite strategy: elision or linear")
	cmd.Flags().StringVar(&f.refs, "refs", "", "refs to rewrite: current or all (default depends on strategy)")
	cmd.Flags().BoolVar(&f.noAutoStash, "no-autostash", false, "fail on a dirty working tree instead of stashing")
	cmd.Flags().StringVar(&f.dropFile, "drop-file", "", "where the drop set is written (default: inside the git dir)")
}

// options merges configuration with the flags the user actually set.
func (f *selectionFlags) options(cmd *cobra.Command) (pipeline.Options, error) {
	sel := cfg.Selection
	rw := cfg.Rewrite
	flags := cmd.Flags()

	if flags.Changed("probability") {
		sel.Probability = f.probability
	}
	if flags.Changed("date-field") {
		sel.DateField = f.dateField
	}
	if flags.Changed("day-universe") {
		sel.DayUniverse = f.universe
	}
	if flags.Changed("seed") {
		sel.Seed = f.seed
	}
	if flags.Changed("strategy") {
		rw.Strategy = f.strategy
	}
	if flags.Changed("refs") {
		rw.Refs = f.refs
	}
	if flags.Changed("no-autostash") {
		rw.AutoStash = !f.noAutoStash
	}
	if flags.Changed("drop-file") {
		rw.DropFile = f.dropFile
	}

	opts := pipeline.Options{
		Probability:  sel.Probability,
		Seed:         sel.Seed,
		AutoStash:    rw.AutoStash,
		DropFile:     rw.DropFile,
		KeepDropFile: rw.KeepDropFile,
		JournalPath:  rw.JournalPath,
	}

	if f.withRange {
		if f.start == "" || f.end == "" {
			return opts, errors.ValidationErrorf("--start and --end are required")
		}
		r, err := dates.ParseRange(f.start, f.end)
		if err != nil {
			return opts, err
		}
		opts.Range = r
	}

	var err error
	if opts.Field, err = classifier.ParseDateField(sel.DateField); err != nil {
		return opts, err
	}
	if opts.Universe, err = sampler.ParseUniverse(sel.DayUniverse); err != nil {
		return opts, err
	}
	if opts.Strategy, err = rewrite.ParseStrategy(rw.Strategy); err != nil {
		return opts, err
	}
	if rw.Refs != "" {
		scope, ok := git.ParseRefScope(rw.Refs)
		if !ok {
			return opts, errors.ValidationErrorf("unknown ref scope %q (want current or all)", rw.Refs)
		}
		opts.Scope = &scope
	}
	return opts, nil
}

// configDir is the working tree root when repoPath is inside a
// repository, so .dropdays.yaml is found from subdirectories too.
func configDir() string {
	r, err := git.Open(repoPath)
	if err != nil || r.Root() == "" {
		return repoPath
	}
	return r.Root()
}

func openRepo() (*git.Repo, error) {
	return git.Open(repoPath)
}

func formatter() (output.Formatter, error) {
	format, err := output.ParseFormat(outputFlag)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(format), nil
}

// confirm asks on the terminal before history is rewritten. Without a
// terminal the caller must pass --yes.
func confirm(prompt string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errors.ValidationErrorf("stdin is not a terminal; pass --yes to rewrite without confirmation")
	}

	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false, nil
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes", nil
}
