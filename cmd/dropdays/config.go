package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/dropdays/internal/config"
	"github.com/rohankatakam/dropdays/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage dropdays configuration",
	Long:  `View the effective configuration or write a starter file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var (
	initUser  bool
	initForce bool
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long: `Write the default configuration to .dropdays.yaml at the repository
root, or with --user to ~/.config/dropdays/config.yaml.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().BoolVar(&initUser, "user", false, "write the per-user file instead")
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := cfg.Marshal()
	if err != nil {
		return errors.InternalErrorf("failed to encode config: %v", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := filepath.Join(configDir(), config.FileName)
	if initUser {
		path = config.UserConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return errors.PreconditionErrorf("%s already exists; pass --force to overwrite", path)
	}

	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Printf("✓ Configuration written to %s\n", path)
	return nil
}
