package output

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/dropdays/internal/pipeline"
	"github.com/rohankatakam/dropdays/internal/resolver"
)

// StructuredFormatter writes machine-readable JSON or YAML
type StructuredFormatter struct {
	encode func(w io.Writer, v interface{}) error
}

func (f *StructuredFormatter) Report(w io.Writer, r *resolver.Report) error {
	return f.encode(w, r)
}

func (f *StructuredFormatter) Apply(w io.Writer, out *ApplyOutput) error {
	return f.encode(w, out)
}

func (f *StructuredFormatter) Backfill(w io.Writer, out *BackfillOutput) error {
	return f.encode(w, out)
}

func (f *StructuredFormatter) Recover(w io.Writer, runs []pipeline.Recovered) error {
	if runs == nil {
		runs = []pipeline.Recovered{}
	}
	return f.encode(w, runs)
}

func encodeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func encodeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
