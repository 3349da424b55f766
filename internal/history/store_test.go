// # internal/history/store_test.go
package history

import (
	"path/filepath"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndLoadRun(t *testing.T) {
	store := openStore(t)

	id, err := store.SaveRun(Run{
		BinaryCrate:     "challenge",
		ItemCount:       42,
		RequiredCount:   17,
		DiagnosticCount: 1,
		UnresolvedRefs:  3,
		OutputPath:      "fusion.rs",
		DurationMs:      128,
	}, []DecisionRecord{
		{Pattern: "apply@impl Action", Action: "include"},
		{Pattern: "*@impl Display for Action", Action: "exclude"},
	})
	if err != nil {
		t.Fatalf("save run: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated run ID")
	}

	runs, err := store.LoadRuns(time.Time{})
	if err != nil {
		t.Fatalf("load runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].RequiredCount != 17 || runs[0].BinaryCrate != "challenge" {
		t.Errorf("unexpected run: %+v", runs[0])
	}

	decisions, err := store.LoadDecisions(id)
	if err != nil {
		t.Fatalf("load decisions: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(decisions))
	}
	if decisions[0].Pattern != "apply@impl Action" || decisions[0].Action != "include" {
		t.Errorf("unexpected decision: %+v", decisions[0])
	}
}

func TestLoadRunsSinceFilter(t *testing.T) {
	store := openStore(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if _, err := store.SaveRun(Run{
			Timestamp:   base.Add(time.Duration(i) * time.Hour),
			BinaryCrate: "challenge",
		}, nil); err != nil {
			t.Fatalf("save run %d: %v", i, err)
		}
	}

	runs, err := store.LoadRuns(base.Add(90 * time.Minute))
	if err != nil {
		t.Fatalf("load runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run after cutoff, got %d", len(runs))
	}
}

func TestPurgeCascades(t *testing.T) {
	store := openStore(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	oldID, err := store.SaveRun(Run{Timestamp: base, BinaryCrate: "challenge"},
		[]DecisionRecord{{Pattern: "x@impl Y", Action: "exclude"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveRun(Run{Timestamp: base.Add(48 * time.Hour), BinaryCrate: "challenge"}, nil); err != nil {
		t.Fatal(err)
	}

	removed, err := store.Purge(base.Add(time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 purged run, got %d", removed)
	}

	decisions, err := store.LoadDecisions(oldID)
	if err != nil {
		t.Fatalf("load decisions: %v", err)
	}
	if len(decisions) != 0 {
		t.Errorf("expected cascaded delete, got %d decisions", len(decisions))
	}
}

func TestOpenRejectsDirectory(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Error("expected error for directory path")
	}
	if _, err := Open("  "); err == nil {
		t.Error("expected error for empty path")
	}
}
