// # internal/watcher/watcher_test.go
package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 1)
	w, err := NewWatcher(100*time.Millisecond, []string{"target"}, []string{"*.tmp.rs"}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	// Create a Rust source file
	testFile := filepath.Join(tmpDir, "main.rs")
	os.WriteFile(testFile, []byte("fn main() {}"), 0644)

	select {
	case paths := <-changedFiles:
		found := false
		for _, p := range paths {
			if p == testFile {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected to find %s in changed files %v", testFile, paths)
		}
	case <-time.After(3 * time.Second):
		t.Error("Timed out waiting for file change event")
	}

	// Non-Rust files never trigger a refusion
	otherFile := filepath.Join(tmpDir, "Cargo.lock")
	os.WriteFile(otherFile, []byte("# lock"), 0644)

	select {
	case paths := <-changedFiles:
		for _, p := range paths {
			if filepath.Base(p) == "Cargo.lock" {
				t.Error("Non-Rust file triggered event")
			}
		}
	case <-time.After(500 * time.Millisecond):
		// Expected
	}

	// New source directory should be recursively watched after create.
	subdir := filepath.Join(tmpDir, "module")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatal(err)
	}
	subFile := filepath.Join(subdir, "nested.rs")
	if err := os.WriteFile(subFile, []byte("pub fn nested() {}"), 0644); err != nil {
		t.Fatal(err)
	}

	foundNested := false
	timeout := time.After(3 * time.Second)
	for !foundNested {
		select {
		case paths := <-changedFiles:
			for _, p := range paths {
				if p == subFile {
					foundNested = true
					break
				}
			}
		case <-timeout:
			t.Fatal("timed out waiting for nested file event in newly created directory")
		}
	}
}

func TestShouldExcludeFile(t *testing.T) {
	w, err := NewWatcher(time.Millisecond, nil, []string{"generated_*.rs"}, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	excluded := []string{
		"src/lib.go",
		"crate/tests/integration.rs",
		"crate/benches/speed.rs",
		"src/generated_grid.rs",
		"notes.md",
	}
	for _, p := range excluded {
		if !w.shouldExcludeFile(p) {
			t.Errorf("expected %s excluded", p)
		}
	}
	kept := []string{"src/main.rs", "src/action/mod.rs"}
	for _, p := range kept {
		if w.shouldExcludeFile(p) {
			t.Errorf("expected %s kept", p)
		}
	}
}
