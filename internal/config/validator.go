package config

import (
	"fmt"
	"strings"

	"github.com/rohankatakam/dropdays/internal/errors"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}
	return sb.String()
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}

	p := c.Selection.Probability
	if !(p >= 0 && p <= 1) {
		result.AddError("selection.probability %v is outside [0,1]", p)
	}
	oneOf(result, "selection.date_field", c.Selection.DateField, "author", "committer")
	oneOf(result, "selection.day_universe", c.Selection.DayUniverse, "calendar", "commit-days")
	oneOf(result, "rewrite.strategy", c.Rewrite.Strategy, "elision", "linear", "linear-reconstruction")
	if c.Rewrite.Refs != "" {
		oneOf(result, "rewrite.refs", c.Rewrite.Refs, "current", "current-branch", "all", "all-refs")
	}

	if c.Backfill.Min < 0 || c.Backfill.Max < c.Backfill.Min {
		result.AddError("backfill.min/max [%d,%d] is not a valid range", c.Backfill.Min, c.Backfill.Max)
	}
	if c.Backfill.Hour < 0 || c.Backfill.Hour > 23 {
		result.AddError("backfill.hour %d is outside [0,23]", c.Backfill.Hour)
	}

	oneOf(result, "logging.level", c.Logging.Level, "trace", "debug", "info", "warn", "warning", "error")

	return result
}

// Check returns a validation error when the configuration is invalid
func (c *Config) Check() error {
	result := c.Validate()
	if result.HasErrors() {
		return errors.ValidationErrorf("%s", strings.TrimSuffix(result.Error(), "\n"))
	}
	return nil
}

func oneOf(result *ValidationResult, key, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	result.AddError("%s %q must be one of %s", key, value, strings.Join(allowed, ", "))
}
