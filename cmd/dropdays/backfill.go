package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/dropdays/internal/backfill"
	"github.com/rohankatakam/dropdays/internal/dates"
	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/output"
	"github.com/rohankatakam/dropdays/internal/sampler"
)

var (
	backfillStart string
	backfillEnd   string
	backfillMin   int
	backfillMax   int
	backfillHour  int
	backfillSeed  uint64
	backfillApply bool
	backfillYes   bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Add empty commits on every day of a range",
	Long: `Draw a commit count in [--min, --max] for every day in the range and
stack that many empty commits on the current branch. The working tree is
left untouched. Like drop, nothing is written without --apply.`,
	Args: cobra.NoArgs,
	RunE: runBackfill,
}

func init() {
	backfillCmd.Flags().StringVar(&backfillStart, "start", "", "first day of the range (YYYY-MM-DD, required)")
	backfillCmd.Flags().StringVar(&backfillEnd, "end", "", "last day of the range (YYYY-MM-DD, required)")
	backfillCmd.Flags().IntVar(&backfillMin, "min", 0, "fewest commits per day")
	backfillCmd.Flags().IntVar(&backfillMax, "max", 0, "most commits per day")
	backfillCmd.Flags().IntVar(&backfillHour, "hour", 0, "local hour of each day's first commit")
	backfillCmd.Flags().Uint64Var(&backfillSeed, "seed", 0, "random seed (0 picks one from the clock)")
	backfillCmd.Flags().BoolVar(&backfillApply, "apply", false, "create the commits (default is a dry run)")
	backfillCmd.Flags().BoolVarP(&backfillYes, "yes", "y", false, "do not ask for confirmation")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	bf := cfg.Backfill
	flags := cmd.Flags()
	if flags.Changed("min") {
		bf.Min = backfillMin
	}
	if flags.Changed("max") {
		bf.Max = backfillMax
	}
	if flags.Changed("hour") {
		bf.Hour = backfillHour
	}
	if backfillStart == "" || backfillEnd == "" {
		return errors.ValidationErrorf("--start and --end are required")
	}
	r, err := dates.ParseRange(backfillStart, backfillEnd)
	if err != nil {
		return err
	}

	f, err := formatter()
	if err != nil {
		return err
	}
	repo, err := openRepo()
	if err != nil {
		return err
	}
	branch, err := repo.CurrentBranch(ctx)
	if err != nil {
		return err
	}

	seed := cfg.Selection.Seed
	if flags.Changed("seed") {
		seed = backfillSeed
	}
	src, seed := sampler.NewSource(seed)
	schedule, err := backfill.Plan(r, bf.Min, bf.Max, src)
	if err != nil {
		return err
	}

	if !backfillApply || schedule.Total == 0 {
		return f.Backfill(os.Stdout, output.NewBackfillOutput(branch.Name.Short(), seed, schedule, nil))
	}

	if !backfillYes {
		ok, err := confirm(fmt.Sprintf("Add %d commits to %s?", schedule.Total, branch.Name.Short()))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "Aborted; history unchanged.")
			return nil
		}
	}

	name, email := bf.Name, bf.Email
	if name == "" || email == "" {
		gitName, gitEmail, err := repo.Identity(ctx)
		if err != nil {
			return err
		}
		if name == "" {
			name = gitName
		}
		if email == "" {
			email = gitEmail
		}
	}

	result, err := backfill.Apply(ctx, repo, logger, branch, schedule, backfill.Options{
		Name:     name,
		Email:    email,
		Hour:     bf.Hour,
		Location: time.Local,
	})
	if err != nil {
		return err
	}
	return f.Backfill(os.Stdout, output.NewBackfillOutput(branch.Name.Short(), seed, schedule, result))
}
