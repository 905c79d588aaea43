package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/dropdays/internal/pipeline"
)

var planFlags selectionFlags

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Select days and write the drop set without rewriting",
	Long: `Select days exactly like drop and write the hashes of the affected
commits to the drop set file. Edit the file if needed, then run
"dropdays rewrite" to apply it.`,
	RunE: runPlan,
}

func init() {
	planFlags.register(planCmd, true)
}

func runPlan(cmd *cobra.Command, args []string) error {
	opts, err := planFlags.options(cmd)
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

	report, path, err := p.WritePlan(cmd.Context())
	if err != nil {
		return err
	}
	if err := f.Report(os.Stdout, report); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Drop set written to %s\n", path)
	return nil
}
