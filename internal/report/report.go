// # internal/report/report.go
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// Report is the operator-facing summary of one fusion run.
type Report struct {
	RunID          string        `json:"run_id,omitempty"`
	BinaryCrate    string        `json:"binary_crate"`
	CrateCount     int           `json:"crate_count"`
	FileCount      int           `json:"file_count"`
	ItemCount      int           `json:"item_count"`
	RequiredCount  int           `json:"required_count"`
	AmbiguousRefs  int           `json:"ambiguous_refs"`
	UnresolvedRefs int           `json:"unresolved_refs"`
	OutputPath     string        `json:"output_path"`
	DOTPath        string        `json:"dot_path,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
	Diagnostics    []Diagnostic  `json:"diagnostics"`
}

type Diagnostic struct {
	Code    string `json:"code"`
	Item    string `json:"item"`
	Message string `json:"message"`
}

// WriteText renders the report for terminals.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "binary crate:\t%s\n", r.BinaryCrate)
	fmt.Fprintf(tw, "crates / files:\t%d / %d\n", r.CrateCount, r.FileCount)
	fmt.Fprintf(tw, "items:\t%d (%d required)\n", r.ItemCount, r.RequiredCount)
	fmt.Fprintf(tw, "references:\t%d ambiguous, %d unresolved\n", r.AmbiguousRefs, r.UnresolvedRefs)
	fmt.Fprintf(tw, "output:\t%s\n", r.OutputPath)
	if r.DOTPath != "" {
		fmt.Fprintf(tw, "graph:\t%s\n", r.DOTPath)
	}
	fmt.Fprintf(tw, "duration:\t%s\n", r.Duration.Round(time.Millisecond))
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Diagnostics) == 0 {
		fmt.Fprintln(w, "\nno diagnostics")
		return nil
	}
	fmt.Fprintf(w, "\n%d diagnostics:\n", len(r.Diagnostics))
	for _, d := range r.Diagnostics {
		fmt.Fprintf(w, "  [%s] %s: %s\n", d.Code, d.Item, d.Message)
	}
	return nil
}

// WriteJSON renders the report for tooling.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
