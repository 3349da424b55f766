// # internal/history/models.go
package history

import "time"

const SchemaVersion = 1

// Run is one recorded fusion run with its headline numbers.
type Run struct {
	ID              string    `json:"id"`
	SchemaVersion   int       `json:"schema_version"`
	Timestamp       time.Time `json:"timestamp"`
	BinaryCrate     string    `json:"binary_crate"`
	ItemCount       int       `json:"item_count"`
	RequiredCount   int       `json:"required_count"`
	DiagnosticCount int       `json:"diagnostic_count"`
	UnresolvedRefs  int       `json:"unresolved_refs"`
	OutputPath      string    `json:"output_path"`
	DurationMs      int64     `json:"duration_ms"`
}

// DecisionRecord is one operator decision made during a run, kept so
// past reasoning stays auditable even after the config file changes.
type DecisionRecord struct {
	RunID   string `json:"run_id"`
	Pattern string `json:"pattern"`
	Action  string `json:"action"` // "include" or "exclude"
}
