package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/dropdays/internal/errors"
)

// FileName is the per-repository configuration file.
const FileName = ".dropdays.yaml"

// Config holds all configuration settings
type Config struct {
	// Day selection
	Selection SelectionConfig `yaml:"selection" mapstructure:"selection"`

	// History rewriting
	Rewrite RewriteConfig `yaml:"rewrite" mapstructure:"rewrite"`

	// Empty-commit generator
	Backfill BackfillConfig `yaml:"backfill" mapstructure:"backfill"`

	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

type SelectionConfig struct {
	Probability float64 `yaml:"probability" mapstructure:"probability"`
	DateField   string  `yaml:"date_field" mapstructure:"date_field"`     // "author", "committer"
	DayUniverse string  `yaml:"day_universe" mapstructure:"day_universe"` // "calendar", "commit-days"
	Seed        uint64  `yaml:"seed" mapstructure:"seed"`                 // 0 = from clock
}

type RewriteConfig struct {
	Strategy     string `yaml:"strategy" mapstructure:"strategy"` // "elision", "linear"
	Refs         string `yaml:"refs" mapstructure:"refs"`         // "", "current", "all"
	AutoStash    bool   `yaml:"auto_stash" mapstructure:"auto_stash"`
	DropFile     string `yaml:"drop_file" mapstructure:"drop_file"`
	KeepDropFile bool   `yaml:"keep_drop_file" mapstructure:"keep_drop_file"`
	JournalPath  string `yaml:"journal_path" mapstructure:"journal_path"`
}

type BackfillConfig struct {
	Min   int    `yaml:"min" mapstructure:"min"`
	Max   int    `yaml:"max" mapstructure:"max"`
	Hour  int    `yaml:"hour" mapstructure:"hour"`
	Name  string `yaml:"name" mapstructure:"name"`   // defaults to git user.name
	Email string `yaml:"email" mapstructure:"email"` // defaults to git user.email
}

type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Selection: SelectionConfig{
			Probability: 0.2,
			DateField:   "committer",
			DayUniverse: "calendar",
		},
		Rewrite: RewriteConfig{
			Strategy:  "elision",
			AutoStash: true,
		},
		Backfill: BackfillConfig{
			Min:  0,
			Max:  3,
			Hour: 12,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, or when path is empty from
// .dropdays.yaml in dir and then the user config file. Environment
// variables prefixed with DROPDAYS_ override file values, e.g.
// DROPDAYS_SELECTION_PROBABILITY.
func Load(path, dir string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles(dir)

	v := viper.New()
	v.SetConfigType("yaml")

	// Leaf defaults so every key is known to AutomaticEnv
	cfg := Default()
	v.SetDefault("selection.probability", cfg.Selection.Probability)
	v.SetDefault("selection.date_field", cfg.Selection.DateField)
	v.SetDefault("selection.day_universe", cfg.Selection.DayUniverse)
	v.SetDefault("selection.seed", cfg.Selection.Seed)
	v.SetDefault("rewrite.strategy", cfg.Rewrite.Strategy)
	v.SetDefault("rewrite.refs", cfg.Rewrite.Refs)
	v.SetDefault("rewrite.auto_stash", cfg.Rewrite.AutoStash)
	v.SetDefault("rewrite.drop_file", cfg.Rewrite.DropFile)
	v.SetDefault("rewrite.keep_drop_file", cfg.Rewrite.KeepDropFile)
	v.SetDefault("rewrite.journal_path", cfg.Rewrite.JournalPath)
	v.SetDefault("backfill.min", cfg.Backfill.Min)
	v.SetDefault("backfill.max", cfg.Backfill.Max)
	v.SetDefault("backfill.hour", cfg.Backfill.Hour)
	v.SetDefault("backfill.name", cfg.Backfill.Name)
	v.SetDefault("backfill.email", cfg.Backfill.Email)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.json", cfg.Logging.JSON)

	// Load from environment variables
	v.SetEnvPrefix("DROPDAYS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = findConfigFile(dir)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.ConfigErrorf(err, "failed to read config %s", path)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.ConfigErrorf(err, "failed to unmarshal config")
	}

	cfg.Rewrite.DropFile = expandPath(cfg.Rewrite.DropFile)
	cfg.Rewrite.JournalPath = expandPath(cfg.Rewrite.JournalPath)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	return cfg, nil
}

// findConfigFile returns the first existing candidate, or ""
func findConfigFile(dir string) string {
	var candidates []string
	if dir != "" {
		candidates = append(candidates, filepath.Join(dir, FileName))
	}
	candidates = append(candidates, UserConfigPath())

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// UserConfigPath is $HOME/.config/dropdays/config.yaml
func UserConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", "dropdays", "config.yaml")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Marshal renders the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.FileSystemErrorf(err, "failed to create config directory")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.FileSystemErrorf(err, "failed to write config")
	}

	return nil
}
