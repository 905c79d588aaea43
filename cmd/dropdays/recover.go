package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/dropdays/internal/pipeline"
)

var (
	recoverRestore bool
	recoverAccept  bool
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Clean up after an interrupted rewrite",
	Long: `Inspect runs that started rewriting but never finished. Scratch refs are
always removed. A run whose refs are untouched is closed; if refs were
already moved, choose --restore to put them back or --accept to keep the
rewritten history.`,
	Args: cobra.NoArgs,
	RunE: runRecover,
}

func init() {
	recoverCmd.Flags().BoolVar(&recoverRestore, "restore", false, "move rewritten refs back to their recorded values")
	recoverCmd.Flags().BoolVar(&recoverAccept, "accept", false, "keep rewritten refs and close the run")
}

func runRecover(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	f, err := formatter()
	if err != nil {
		return err
	}
	repo, err := openRepo()
	if err != nil {
		return err
	}

	path := cfg.Rewrite.JournalPath
	if path == "" {
		if path, err = pipeline.DefaultJournalPath(ctx, repo); err != nil {
			return err
		}
	}

	runs, err := pipeline.Recover(ctx, repo, logger, path, pipeline.RecoverOptions{
		Restore: recoverRestore,
		Accept:  recoverAccept,
	})
	if err != nil {
		return err
	}
	return f.Recover(os.Stdout, runs)
}
