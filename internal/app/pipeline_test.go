// # internal/app/pipeline_test.go
package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rustfuse/internal/config"
	"rustfuse/internal/history"
	"rustfuse/internal/policy"
)

func writeCrate(t *testing.T, root, name string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	manifest := "[package]\nname = \"" + name + "\"\nversion = \"0.1.0\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(manifest), 0o644))
	for rel, content := range files {
		path := filepath.Join(dir, "src", rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func fixtureConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()

	binDir := writeCrate(t, root, "challenge", map[string]string{
		"main.rs": `use my_lib::action::Action;

fn main() {
    let a = Action::new();
    a.apply();
}
`,
	})
	libDir := writeCrate(t, root, "my_lib", map[string]string{
		"lib.rs": "pub mod action;\n",
		"action/mod.rs": `pub struct Action;

impl Action {
    pub fn new() -> Self {
        Action
    }

    pub fn apply(&self) {}

    pub fn undo(&self) {}
}
`,
	})

	cfg, err := config.Load(filepath.Join(root, "absent.toml"))
	require.NoError(t, err)
	cfg.Crates.Binary = binDir
	cfg.Crates.Libraries = []string{libDir}
	cfg.Output.File = filepath.Join(root, "out", "fusion.rs")
	cfg.Output.DOT = filepath.Join(root, "out", "fusion.dot")
	return cfg
}

func TestPipelineRun(t *testing.T) {
	cfg := fixtureConfig(t)
	p := NewPipeline(cfg, policy.BatchProvider{AutoExclude: true}, nil, nil)

	rep, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, "challenge", rep.BinaryCrate)
	require.Greater(t, rep.RequiredCount, 0)
	require.Equal(t, 2, rep.CrateCount)

	fused, err := os.ReadFile(cfg.Output.File)
	require.NoError(t, err)
	out := string(fused)
	require.Contains(t, out, "fn main()")
	require.Contains(t, out, "pub mod my_lib {")
	require.Contains(t, out, "pub fn new()")
	require.Contains(t, out, "pub fn apply(")
	// undo is never called and never decided: excluded
	require.NotContains(t, out, "pub fn undo")

	dot, err := os.ReadFile(cfg.Output.DOT)
	require.NoError(t, err)
	require.Contains(t, string(dot), "digraph fusion {")
}

func TestPipelineRecordsHistory(t *testing.T) {
	cfg := fixtureConfig(t)
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	p := NewPipeline(cfg, policy.BatchProvider{AutoExclude: true}, store, nil)
	rep, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, rep.RunID)

	runs, err := store.LoadRuns(time.Time{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, rep.RunID, runs[0].ID)
}

func TestPipelinePersistsDecisions(t *testing.T) {
	cfg := fixtureConfig(t)
	cfgPath := filepath.Join(t.TempDir(), "fusion.toml")
	require.NoError(t, config.Save(cfg, cfgPath))

	p := NewPipeline(cfg, policy.ProviderFunc(
		func(_ context.Context, c policy.Candidate) (policy.Decision, error) {
			return policy.DecideExclude, nil
		}), nil, nil)
	p.PersistDecisions = true
	p.ConfigPath = cfgPath

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	saved, err := config.Load(cfgPath)
	require.NoError(t, err)
	require.NotEmpty(t, saved.Items.Exclude)
	require.True(t, strings.HasPrefix(saved.Items.Exclude[0], "undo@impl Action"))
}

// Fusing an already-fused file again must neither lose nor grow items.
func TestPipelineRefusionIsStable(t *testing.T) {
	cfg := fixtureConfig(t)
	p := NewPipeline(cfg, policy.BatchProvider{AutoExclude: true}, nil, nil)
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	fused, err := os.ReadFile(cfg.Output.File)
	require.NoError(t, err)

	root := t.TempDir()
	refused := writeCrate(t, root, "refused", map[string]string{
		"main.rs": string(fused),
	})
	cfg2, err := config.Load(filepath.Join(root, "absent.toml"))
	require.NoError(t, err)
	cfg2.Crates.Binary = refused
	cfg2.Output.File = filepath.Join(root, "fusion.rs")
	cfg2.Output.DOT = ""

	p2 := NewPipeline(cfg2, policy.BatchProvider{AutoExclude: true}, nil, nil)
	_, err = p2.Run(context.Background())
	require.NoError(t, err)

	out, err := os.ReadFile(cfg2.Output.File)
	require.NoError(t, err)
	for _, want := range []string{"fn main()", "pub fn new()", "pub fn apply("} {
		require.Contains(t, string(out), want)
	}
	require.NotContains(t, string(out), "pub fn undo")
}

func TestScannerCrateName(t *testing.T) {
	root := t.TempDir()
	dir := writeCrate(t, root, "my-solver", nil)
	require.Equal(t, "my_solver", CrateName(dir))
	require.Equal(t, "plain_dir", CrateName(filepath.Join(root, "plain_dir")))
}
