package output

import (
	"io"

	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/pipeline"
	"github.com/rohankatakam/dropdays/internal/resolver"
)

// Formatter renders command results
type Formatter interface {
	Report(w io.Writer, report *resolver.Report) error
	Apply(w io.Writer, out *ApplyOutput) error
	Backfill(w io.Writer, out *BackfillOutput) error
	Recover(w io.Writer, runs []pipeline.Recovered) error
}

// Format names an output format
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --output value
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON, FormatYAML:
		return Format(s), nil
	case "":
		return FormatText, nil
	default:
		return "", errors.ValidationErrorf("invalid output format %q (want text, json or yaml)", s)
	}
}

// NewFormatter creates the formatter for a format
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &StructuredFormatter{encode: encodeJSON}
	case FormatYAML:
		return &StructuredFormatter{encode: encodeYAML}
	default:
		return &StandardFormatter{}
	}
}
