package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/dropdays/internal/output"
	"github.com/rohankatakam/dropdays/internal/pipeline"
)

var rewriteFlags selectionFlags

var rewriteCmd = &cobra.Command{
	Use:   "rewrite",
	Short: "Rewrite history without the commits in a drop set file",
	Long: `Read the drop set written by "dropdays plan" (or any file with one
commit hash per line) and rewrite history without those commits.`,
	Args: cobra.NoArgs,
	RunE: runRewrite,
}

func init() {
	rewriteFlags.register(rewriteCmd, false)
}

func runRewrite(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	opts, err := rewriteFlags.options(cmd)
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

	path := opts.DropFile
	if path == "" {
		if path, err = pipeline.DefaultDropFile(ctx, repo); err != nil {
			return err
		}
	}

	p, err := pipeline.New(repo, logger, opts)
	if err != nil {
		return err
	}
	result, err := p.ApplyDropFile(ctx, path)
	if err != nil {
		return err
	}
	return f.Apply(os.Stdout, output.NewApplyOutput(nil, result))
}
