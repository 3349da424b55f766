// # internal/policy/engine.go
package policy

import (
	"context"
	"log/slog"
	"strings"

	"rustfuse/internal/catalog"
	"rustfuse/internal/config"
	"rustfuse/internal/core/errors"
	"rustfuse/internal/graph"
)

// Engine drives every impl member to required or excluded. Configured
// patterns decide first, the Provider decides what they leave open, and
// include always wins over exclude. Trait impl blocks are atomic: their
// members are emitted all together or not at all.
type Engine struct {
	g        *graph.Graph
	cat      *catalog.Catalog
	walker   *graph.Walker
	provider Provider
	log      *slog.Logger

	include map[catalog.ID]string // member -> pattern that selected it
	exclude map[catalog.ID]string
}

// Result is the outcome of one resolution run.
type Result struct {
	Walker      *graph.Walker
	NewItems    config.RuleSet // interactive decisions, for persistence
	Diagnostics []Diagnostic
}

type Diagnostic struct {
	Code    errors.ErrorCode
	Message string
	ID      catalog.ID
}

func NewEngine(g *graph.Graph, provider Provider, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		g:        g,
		cat:      g.Catalog(),
		walker:   graph.NewWalker(g),
		provider: provider,
		log:      log,
		include:  make(map[catalog.ID]string),
		exclude:  make(map[catalog.ID]string),
	}
}

// Run resolves the program rooted at the binary crate's main function.
// The returned error aborts the run without partial results: notably
// OPERATOR_CANCELLED when the interactive dialog is quit.
func (e *Engine) Run(ctx context.Context, binaryCrate string, cfg *config.Config) (*Result, error) {
	if err := e.compileRules(cfg); err != nil {
		return nil, err
	}

	main, err := e.cat.MainOf(binaryCrate)
	if err != nil {
		return nil, err
	}
	e.walker.Require(main.ID)

	res := &Result{Walker: e.walker}

	// Configured includes are roots of their own.
	for id := range e.include {
		if m, ok := e.g.Member(id); ok {
			e.requireMember(m)
		}
	}

	if err := e.decideLoop(ctx, res); err != nil {
		return nil, err
	}

	e.collectDiagnostics(res)
	e.walker.Finalize()
	e.log.Info("resolution finished",
		"required", e.walker.RequiredCount(),
		"diagnostics", len(res.Diagnostics))
	return res, nil
}

func (e *Engine) compileRules(cfg *config.Config) error {
	rules := []struct {
		patterns []string
		blocks   bool
		into     map[catalog.ID]string
	}{
		{cfg.Items.Exclude, false, e.exclude},
		{cfg.Blocks.Exclude, true, e.exclude},
		{cfg.Items.Include, false, e.include},
		{cfg.Blocks.Include, true, e.include},
	}
	for _, r := range rules {
		for _, raw := range r.patterns {
			pat := raw
			// block rules name the block itself, covering every member
			if r.blocks && !strings.Contains(raw, "@") {
				pat = "*@" + raw
			}
			p, err := ParsePattern(pat)
			if err != nil {
				return err
			}
			ids, err := p.Resolve(e.cat)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				e.log.Warn("pattern matches nothing", "pattern", raw)
			}
			for _, id := range ids {
				r.into[id] = raw
			}
		}
	}
	// Include wins when both rule sets name the same member.
	for id, pat := range e.include {
		if old, both := e.exclude[id]; both {
			e.log.Warn("pattern conflict, include wins",
				"include", pat, "exclude", old)
			delete(e.exclude, id)
		}
	}
	return nil
}

func (e *Engine) decideLoop(ctx context.Context, res *Result) error {
	for {
		pending := e.walker.Pending()
		if len(pending) == 0 {
			if e.normalizeTraitBlocks() {
				continue
			}
			return nil
		}

		id := pending[0]
		m, ok := e.g.Member(id)
		if !ok {
			return errors.Newf(errors.CodeInternal, "pending node %s is not a member", id)
		}

		if pat, hit := e.include[id]; hit {
			e.log.Debug("configured include", "item", m.QualifiedName(), "pattern", pat)
			e.requireMember(m)
			continue
		}
		if pat, hit := e.exclude[id]; hit {
			e.log.Debug("configured exclude", "item", m.QualifiedName(), "pattern", pat)
			e.walker.Exclude(id)
			continue
		}

		decision, err := e.provider.Decide(ctx, e.candidateFor(m))
		if err != nil {
			return err
		}
		e.apply(m, decision, res)
	}
}

func (e *Engine) apply(m *catalog.Member, decision Decision, res *Result) {
	switch decision {
	case DecideInclude:
		e.requireMember(m)
		res.NewItems.Include = append(res.NewItems.Include, m.QualifiedName())
	case DecideExclude:
		e.walker.Exclude(m.ID)
		res.NewItems.Exclude = append(res.NewItems.Exclude, m.QualifiedName())
	case DecideIncludeBlock:
		for _, sib := range m.Owner.Impl.Members {
			e.walker.Require(sib.ID)
		}
		res.NewItems.Include = append(res.NewItems.Include, "*@"+m.Owner.Name)
	case DecideExcludeBlock:
		for _, sib := range m.Owner.Impl.Members {
			e.walker.Exclude(sib.ID)
		}
		res.NewItems.Exclude = append(res.NewItems.Exclude, "*@"+m.Owner.Name)
	}
}

// requireMember honors trait block atomicity: a trait impl only
// compiles with all its members present, so requiring one requires
// them all.
func (e *Engine) requireMember(m *catalog.Member) {
	if m.Owner.Impl.HasTrait() {
		for _, sib := range m.Owner.Impl.Members {
			e.walker.Require(sib.ID)
		}
		return
	}
	e.walker.Require(m.ID)
}

// normalizeTraitBlocks closes partially required trait blocks. The
// pulled-in members can reference new code, so the caller loops until
// nothing changes.
func (e *Engine) normalizeTraitBlocks() bool {
	changed := false
	for _, it := range e.cat.Items {
		if it.Impl == nil || !it.Impl.HasTrait() {
			continue
		}
		required := 0
		for _, m := range it.Impl.Members {
			if e.walker.State(m.ID) == catalog.StateRequired {
				required++
			}
		}
		if required == 0 || required == len(it.Impl.Members) {
			continue
		}
		for _, m := range it.Impl.Members {
			if e.walker.State(m.ID) != catalog.StateRequired {
				e.walker.Require(m.ID)
				changed = true
			}
		}
	}
	return changed
}

func (e *Engine) candidateFor(m *catalog.Member) Candidate {
	cand := Candidate{Member: m}
	for _, amb := range e.g.Ambiguous() {
		if e.walker.State(amb.From) != catalog.StateRequired {
			continue
		}
		for _, c := range amb.Candidates {
			if c == m.ID {
				cand.Usages = append(cand.Usages, amb.From)
				break
			}
		}
	}
	return cand
}

// collectDiagnostics flags required call sites whose ambiguous
// reference ended with every candidate excluded: the fused output
// would not compile, and the operator needs to revisit the decision.
func (e *Engine) collectDiagnostics(res *Result) {
	for _, amb := range e.g.Ambiguous() {
		if e.walker.State(amb.From) != catalog.StateRequired {
			continue
		}
		resolved := false
		traitCandidates := false
		for _, c := range amb.Candidates {
			if e.walker.State(c) == catalog.StateRequired {
				resolved = true
				break
			}
			if m, ok := e.g.Member(c); ok && m.Owner.Impl.HasTrait() {
				traitCandidates = true
			}
		}
		if resolved {
			continue
		}
		code := errors.CodeAmbiguousImplItem
		if traitCandidates {
			code = errors.CodeUnresolvedTraitImpl
		}
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Code:    code,
			Message: "no implementation of " + amb.Name + " is included for this call site",
			ID:      amb.From,
		})
	}

	// Catalog order keeps the report stable across runs.
	for _, it := range e.cat.Items {
		if it.Impl == nil {
			continue
		}
		for _, m := range it.Impl.Members {
			pat, hit := e.exclude[m.ID]
			if !hit || e.walker.State(m.ID) != catalog.StateRequired {
				continue
			}
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Code:    errors.CodeValidationError,
				Message: "excluded by " + pat + " but required by reachability, include wins",
				ID:      m.ID,
			})
		}
	}
}
