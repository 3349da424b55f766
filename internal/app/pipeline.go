// # internal/app/pipeline.go
package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"rustfuse/internal/assemble"
	"rustfuse/internal/catalog"
	"rustfuse/internal/config"
	"rustfuse/internal/core/errors"
	"rustfuse/internal/graph"
	"rustfuse/internal/history"
	"rustfuse/internal/parser"
	"rustfuse/internal/policy"
	"rustfuse/internal/report"
	"rustfuse/internal/shared/observability"
)

// Pipeline runs one fusion end to end: scan, catalog, graph,
// resolution, emission. It owns no state between runs, so watch mode
// reuses one Pipeline across refusions.
type Pipeline struct {
	cfg      *config.Config
	provider policy.Provider
	store    *history.Store // nil disables run history
	log      *slog.Logger

	// PersistDecisions writes interactive decisions back into the
	// config file at ConfigPath after a successful run.
	PersistDecisions bool
	ConfigPath       string

	// DryRun resolves and reports without writing the fused file, the
	// DOT graph, the config or the run history.
	DryRun bool

	// Interactive builds the decision provider once the catalog
	// exists; the dialog needs it for usage context. When nil the
	// provider passed to NewPipeline decides.
	Interactive func(*catalog.Catalog) policy.Provider
}

func NewPipeline(cfg *config.Config, provider policy.Provider, store *history.Store, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{cfg: cfg, provider: provider, store: store, log: log}
}

// Run produces the fused source file and the run report. Nothing is
// written when any stage fails: a cancelled dialog aborts before the
// output, the config and the history are touched.
func (p *Pipeline) Run(ctx context.Context) (*report.Report, error) {
	ctx, span := observability.Tracer().Start(ctx, "fusion.run")
	defer span.End()
	start := time.Now()

	files, binaryCrate, err := p.scanStage(ctx)
	if err != nil {
		observability.FusionRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	cat, g, err := p.buildStage(ctx, files)
	if err != nil {
		observability.FusionRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	res, err := p.resolveStage(ctx, g, binaryCrate)
	if err != nil {
		if errors.IsCode(err, errors.CodeOperatorCancelled) {
			observability.FusionRunsTotal.WithLabelValues("cancelled").Inc()
		} else {
			observability.FusionRunsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	rep, err := p.emitStage(ctx, cat, g, res, binaryCrate)
	if err != nil {
		observability.FusionRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	rep.CrateCount = 1 + len(p.cfg.Crates.Libraries)
	rep.FileCount = len(files)
	rep.Duration = time.Since(start)

	if err := p.persistStage(res, rep); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("fusion.items", rep.ItemCount),
		attribute.Int("fusion.required", rep.RequiredCount),
	)
	observability.FusionRunsTotal.WithLabelValues("ok").Inc()
	return rep, nil
}

func (p *Pipeline) scanStage(ctx context.Context) ([]*parser.File, string, error) {
	_, span := observability.Tracer().Start(ctx, "fusion.scan")
	defer span.End()
	defer p.timeStage("scan")()

	if p.cfg.Crates.Binary == "" {
		return nil, "", errors.New(errors.CodeValidationError,
			"crates.binary must point at the binary crate root")
	}

	scanner, err := NewScanner(p.cfg.Exclude, p.log)
	if err != nil {
		return nil, "", err
	}

	files, binaryCrate, err := scanner.ScanCrate(p.cfg.Crates.Binary)
	if err != nil {
		return nil, "", err
	}
	for _, lib := range p.cfg.Crates.Libraries {
		libFiles, _, err := scanner.ScanCrate(lib)
		if err != nil {
			return nil, "", err
		}
		files = append(files, libFiles...)
	}
	return files, binaryCrate, nil
}

func (p *Pipeline) buildStage(ctx context.Context, files []*parser.File) (*catalog.Catalog, *graph.Graph, error) {
	_, span := observability.Tracer().Start(ctx, "fusion.build")
	defer span.End()
	defer p.timeStage("build")()

	cat, err := catalog.Build(files)
	if err != nil {
		return nil, nil, err
	}
	g := graph.Build(cat)

	observability.CatalogItems.Set(float64(len(cat.Items)))
	observability.UnresolvedRefs.Set(float64(g.UnresolvedCount()))
	observability.AmbiguousRefs.Set(float64(len(g.Ambiguous())))
	p.log.Info("built dependency graph",
		"items", len(cat.Items),
		"ambiguous", len(g.Ambiguous()),
		"unresolved", g.UnresolvedCount())
	return cat, g, nil
}

func (p *Pipeline) resolveStage(ctx context.Context, g *graph.Graph, binaryCrate string) (*policy.Result, error) {
	ctx, span := observability.Tracer().Start(ctx, "fusion.resolve")
	defer span.End()
	defer p.timeStage("resolve")()

	provider := p.provider
	if p.Interactive != nil {
		provider = p.Interactive(g.Catalog())
	}
	res, err := policy.NewEngine(g, provider, p.log).Run(ctx, binaryCrate, p.cfg)
	if err != nil {
		return nil, err
	}
	observability.RequiredItems.Set(float64(res.Walker.RequiredCount()))
	return res, nil
}

func (p *Pipeline) emitStage(ctx context.Context, cat *catalog.Catalog, g *graph.Graph, res *policy.Result, binaryCrate string) (*report.Report, error) {
	_, span := observability.Tracer().Start(ctx, "fusion.emit")
	defer span.End()
	defer p.timeStage("emit")()

	libs := make([]string, 0, len(p.cfg.Crates.Libraries))
	for _, lib := range p.cfg.Crates.Libraries {
		libs = append(libs, CrateName(lib))
	}

	fused, err := assemble.Emit(cat, res.Walker.State, assemble.Options{
		BinaryCrate: binaryCrate,
		Libraries:   libs,
	})
	if err != nil {
		return nil, err
	}
	if !p.DryRun {
		if err := writeFileAtomic(p.cfg.Output.File, []byte(fused)); err != nil {
			return nil, err
		}
	}

	rep := &report.Report{
		BinaryCrate:    binaryCrate,
		ItemCount:      len(cat.Items),
		RequiredCount:  res.Walker.RequiredCount(),
		AmbiguousRefs:  len(g.Ambiguous()),
		UnresolvedRefs: g.UnresolvedCount(),
		OutputPath:     p.cfg.Output.File,
	}
	for _, d := range res.Diagnostics {
		rep.Diagnostics = append(rep.Diagnostics, report.Diagnostic{
			Code:    string(d.Code),
			Item:    string(d.ID),
			Message: d.Message,
		})
	}

	if p.cfg.Output.DOT != "" && !p.DryRun {
		dot, err := assemble.NewDOTGenerator(g, res.Walker.State).Generate()
		if err != nil {
			return nil, err
		}
		if err := writeFileAtomic(p.cfg.Output.DOT, []byte(dot)); err != nil {
			return nil, err
		}
		rep.DOTPath = p.cfg.Output.DOT
	}
	return rep, nil
}

func (p *Pipeline) persistStage(res *policy.Result, rep *report.Report) error {
	if p.DryRun {
		return nil
	}
	if p.PersistDecisions && p.ConfigPath != "" &&
		(len(res.NewItems.Include) > 0 || len(res.NewItems.Exclude) > 0) {
		p.cfg.Items.Include = append(p.cfg.Items.Include, res.NewItems.Include...)
		p.cfg.Items.Exclude = append(p.cfg.Items.Exclude, res.NewItems.Exclude...)
		if err := config.Save(p.cfg, p.ConfigPath); err != nil {
			return err
		}
		p.log.Info("persisted decisions",
			"include", len(res.NewItems.Include),
			"exclude", len(res.NewItems.Exclude))
	}

	if p.store == nil {
		return nil
	}
	var decisions []history.DecisionRecord
	for _, pat := range res.NewItems.Include {
		decisions = append(decisions, history.DecisionRecord{Pattern: pat, Action: "include"})
	}
	for _, pat := range res.NewItems.Exclude {
		decisions = append(decisions, history.DecisionRecord{Pattern: pat, Action: "exclude"})
	}
	id, err := p.store.SaveRun(history.Run{
		BinaryCrate:     rep.BinaryCrate,
		ItemCount:       rep.ItemCount,
		RequiredCount:   rep.RequiredCount,
		DiagnosticCount: len(rep.Diagnostics),
		UnresolvedRefs:  rep.UnresolvedRefs,
		OutputPath:      rep.OutputPath,
		DurationMs:      rep.Duration.Milliseconds(),
	}, decisions)
	if err != nil {
		return err
	}
	rep.RunID = id
	return nil
}

func (p *Pipeline) timeStage(stage string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		observability.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
		p.log.Debug("stage finished", "stage", stage, "duration", d)
	}
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.AddContext(errors.Wrap(err, errors.CodeInternal,
				"create output directory"), errors.CtxPath, path)
		}
	}
	tmp, err := os.CreateTemp(dir, ".fusion-*")
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "create temp output")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.CodeInternal, "write output")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "close output")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeInternal,
			"replace output"), errors.CtxPath, path)
	}
	return nil
}
