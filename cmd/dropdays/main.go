package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/dropdays/internal/config"
	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile    string
	repoPath   string
	outputFlag string
	verbose    bool
	logger     *logrus.Logger
	logCloser  io.Closer
	cfg        *config.Config
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		reportError(os.Stderr, err, verbose)
		os.Exit(errors.ExitCode(err))
	}
}

// reportError prints err for the user. With verbose, typed errors also
// show their category, context and where they were raised.
func reportError(w io.Writer, err error, verbose bool) {
	if e, ok := errors.As(err); ok && verbose {
		fmt.Fprintf(w, "Error: %v\n\n%s", err, e.DetailedString())
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

var rootCmd = &cobra.Command{
	Use:   "dropdays",
	Short: "Randomly remove whole days of commits from git history",
	Long: `dropdays picks calendar days inside a date range at random and rewrites
history so that no commit made on those days remains.

Runs are dry by default: the selected days and affected commits are
reported and nothing is changed until --apply is given.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile, configDir())
		if err != nil {
			return err
		}
		if err := cfg.Check(); err != nil {
			return err
		}

		logCfg := logging.DefaultConfig(verbose)
		if !verbose {
			logCfg.Level = cfg.Logging.Level
		}
		logCfg.OutputFile = cfg.Logging.File
		logCfg.JSONFormat = cfg.Logging.JSON

		logger, logCloser, err = logging.NewLogger(logCfg)
		if err != nil {
			return errors.ConfigErrorf(err, "failed to initialize logging")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .dropdays.yaml in the repository)")
	rootCmd.PersistentFlags().StringVarP(&repoPath, "repo", "C", ".", "path inside the repository to operate on")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "text", "output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Set custom version template
	rootCmd.SetVersionTemplate(`dropdays {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	// Add subcommands
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(configCmd)
}
