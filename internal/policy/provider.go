// # internal/policy/provider.go
package policy

import (
	"context"

	"rustfuse/internal/catalog"
	"rustfuse/internal/core/errors"
)

// Decision is the outcome of one candidate prompt.
type Decision int

const (
	DecideInclude Decision = iota
	DecideExclude
	DecideIncludeBlock // include every member of the candidate's block
	DecideExcludeBlock // exclude every member of the candidate's block
)

// Candidate is one undecided impl member handed to a Provider, with
// enough context to render a useful prompt.
type Candidate struct {
	Member *catalog.Member
	Usages []catalog.ID // required nodes referencing the member's name
}

// Provider supplies decisions for candidates the configuration left
// open. The interactive dialog is one implementation; batch runs use
// a failing or auto-excluding one.
type Provider interface {
	Decide(ctx context.Context, cand Candidate) (Decision, error)
}

// BatchProvider answers without an operator. An undecided trait impl
// never blocks a run: its block is dropped whole, and the engine
// surfaces an UNRESOLVED_TRAIT_IMPL warning for every required call
// site left without an implementation. Trait-free candidates are an
// error in strict mode, which makes unattended runs reproducible; with
// AutoExclude they are dropped too.
type BatchProvider struct {
	AutoExclude bool
}

func (p BatchProvider) Decide(_ context.Context, cand Candidate) (Decision, error) {
	if cand.Member.Owner.Impl.HasTrait() {
		return DecideExcludeBlock, nil
	}
	if p.AutoExclude {
		return DecideExclude, nil
	}
	return DecideExclude, errors.AddContext(errors.Newf(errors.CodeAmbiguousImplItem,
		"%s needs a decision, add it to the config or run interactively",
		cand.Member.QualifiedName()), errors.CtxItem, cand.Member.Name)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, cand Candidate) (Decision, error)

func (f ProviderFunc) Decide(ctx context.Context, cand Candidate) (Decision, error) {
	return f(ctx, cand)
}
