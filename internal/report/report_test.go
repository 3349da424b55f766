// # internal/report/report_test.go
package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func sample() *Report {
	return &Report{
		RunID:          "run-1",
		BinaryCrate:    "challenge",
		CrateCount:     2,
		FileCount:      7,
		ItemCount:      41,
		RequiredCount:  18,
		AmbiguousRefs:  1,
		UnresolvedRefs: 4,
		OutputPath:     "fusion.rs",
		Duration:       137 * time.Millisecond,
		Diagnostics: []Diagnostic{
			{Code: "UNRESOLVED_TRAIT_IMPL", Item: "challenge::main#fn",
				Message: "no implementation of fmt is included for this call site"},
		},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := sample().WriteText(&buf); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"challenge", "18", "1 diagnostics", "UNRESOLVED_TRAIT_IMPL"} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q:\n%s", want, out)
		}
	}
}

func TestWriteTextNoDiagnostics(t *testing.T) {
	r := sample()
	r.Diagnostics = nil
	var buf bytes.Buffer
	if err := r.WriteText(&buf); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if !strings.Contains(buf.String(), "no diagnostics") {
		t.Error("expected clean-run marker")
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := sample().WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var got Report
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.RequiredCount != 18 || len(got.Diagnostics) != 1 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}
