package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/dropdays/internal/dropset"
	"github.com/rohankatakam/dropdays/internal/output"
	"github.com/rohankatakam/dropdays/internal/pipeline"
)

var (
	dropFlags selectionFlags
	dropApply bool
	dropYes   bool
)

var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Select random days and remove their commits",
	Long: `Select days in [--start, --end] with probability --probability each and
report the commits made on them. With --apply, history is rewritten so
those commits are gone.

Examples:
  # Preview which days of March would be dropped
  dropdays drop --start 2024-03-01 --end 2024-03-31 -p 0.3

  # Drop them, reproducing an earlier preview
  dropdays drop --start 2024-03-01 --end 2024-03-31 -p 0.3 --seed 42 --apply`,
	RunE: runDrop,
}

func init() {
	dropFlags.register(dropCmd, true)
	dropCmd.Flags().BoolVar(&dropApply, "apply", false, "rewrite history (default is a dry run)")
	dropCmd.Flags().BoolVarP(&dropYes, "yes", "y", false, "do not ask for confirmation")
}

func runDrop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	opts, err := dropFlags.options(cmd)
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
	p, err := pipeline.New(repo, logger, opts)
	if err != nil {
		return err
	}

	if !dropApply {
		report, err := p.DryRun(ctx)
		if err != nil {
			return err
		}
		return f.Report(os.Stdout, report)
	}

	// Persist the selection first so the confirmed drop set is exactly
	// the one that gets applied, whatever the seed.
	report, path, err := p.WritePlan(ctx)
	if err != nil {
		return err
	}

	if report.CommitsMarked > 0 && !dropYes {
		if err := f.Report(os.Stderr, report); err != nil {
			return err
		}
		ok, err := confirm(fmt.Sprintf("Rewrite history without %d commits?", report.CommitsMarked))
		if err != nil || !ok {
			if rmErr := dropset.Remove(path); rmErr != nil {
				logger.WithError(rmErr).Warn("failed to remove drop set file")
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "Aborted; history unchanged.")
			return nil
		}
	}

	result, err := p.ApplyDropFile(ctx, path)
	if err != nil {
		return err
	}
	return f.Apply(os.Stdout, output.FromOutcome(&pipeline.Outcome{Report: *report, Result: result}))
}
