// Package report writes solver results: one CSV row per record and a JSON run summary.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/contactkeval/implied-vol/internal/data"
	"github.com/contactkeval/implied-vol/internal/engine"
)

// SummaryFile is the name WriteJSON writes inside the report directory.
const SummaryFile = "summary.json"

// Header is the output column order: the input columns followed by the implied volatility.
func Header() []string {
	return append(append([]string(nil), data.Columns...), data.ColumnImpliedVol)
}

// WriteCSV writes outcomes to w. The implied volatility cell is empty when a
// record has no solution or was invalid.
func WriteCSV(w io.Writer, outcomes []engine.Outcome) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, o := range outcomes {
		if err := cw.Write(row(o)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes outcomes to path, or to stdout when path is "" or "-".
func WriteCSVFile(path string, outcomes []engine.Outcome) error {
	if path == "" || path == "-" {
		return WriteCSV(os.Stdout, outcomes)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := WriteCSV(f, outcomes); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteJSON writes summary to outdir/summary.json, creating outdir if needed.
func WriteJSON(summary engine.Summary, outdir string) error {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outdir, SummaryFile), b, 0644)
}

func row(o engine.Outcome) []string {
	out := make([]string, len(data.Columns)+1)
	// rows that failed to parse may carry fewer raw fields
	copy(out, o.Record.Raw)
	if out[0] == "" {
		out[0] = o.Record.ID
	}
	if vol, ok := o.ImpliedVol(); ok {
		out[len(out)-1] = data.FormatFloat(vol)
	}
	return out
}
