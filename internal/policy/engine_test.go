// # internal/policy/engine_test.go
package policy

import (
	"context"
	"testing"

	"rustfuse/internal/catalog"
	"rustfuse/internal/config"
	"rustfuse/internal/core/errors"
	"rustfuse/internal/graph"
	"rustfuse/internal/parser"
)

// fixture: main uses Action; Action has an inherent block with new/apply
// and a Display trait block with fmt; helper() is never called.
func fixtureGraph(t *testing.T) *graph.Graph {
	t.Helper()
	files := []*parser.File{{
		Path:  "bin/src/main.rs",
		Crate: "bin",
		Items: []parser.Item{
			{Kind: "function_item", Name: "main", Refs: []string{"Action"}},
			{Kind: "function_item", Name: "helper"},
			{Kind: "struct_item", Name: "Action"},
			{
				Kind: "impl_item", Type: "Action",
				Members: []parser.Member{
					{Kind: "function_item", Name: "new"},
					{Kind: "function_item", Name: "apply", Refs: []string{"helper"}},
				},
			},
			{
				Kind: "impl_item", Trait: "Display", Type: "Action",
				Members: []parser.Member{
					{Kind: "function_item", Name: "fmt"},
				},
			},
		},
	}}
	cat, err := catalog.Build(files)
	if err != nil {
		t.Fatalf("catalog.Build: %v", err)
	}
	return graph.Build(cat)
}

func runEngine(t *testing.T, g *graph.Graph, cfg *config.Config, p Provider) *Result {
	t.Helper()
	res, err := NewEngine(g, p, nil).Run(context.Background(), "bin", cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func TestConfiguredIncludeCascades(t *testing.T) {
	g := fixtureGraph(t)
	cfg := &config.Config{Items: config.RuleSet{Include: []string{"apply"}}}
	res := runEngine(t, g, cfg, BatchProvider{AutoExclude: true})

	w := res.Walker
	if w.State("bin::impl Action#impl::apply") != catalog.StateRequired {
		t.Error("apply not required")
	}
	// apply references helper, which must be pulled in transitively
	if w.State("bin::helper#fn") != catalog.StateRequired {
		t.Error("helper not required through apply")
	}
	if w.State("bin::impl Action#impl::new") != catalog.StateExcluded {
		t.Error("undecided new not excluded")
	}
}

func TestIncludeWinsOverExclude(t *testing.T) {
	g := fixtureGraph(t)
	cfg := &config.Config{Items: config.RuleSet{
		Include: []string{"apply"},
		Exclude: []string{"apply"},
	}}
	res := runEngine(t, g, cfg, BatchProvider{AutoExclude: true})

	if res.Walker.State("bin::impl Action#impl::apply") != catalog.StateRequired {
		t.Error("include did not win over exclude")
	}
}

func TestWildcardBlockPattern(t *testing.T) {
	g := fixtureGraph(t)
	cfg := &config.Config{Blocks: config.RuleSet{Include: []string{"*@impl Action"}}}
	res := runEngine(t, g, cfg, BatchProvider{AutoExclude: true})

	for _, id := range []catalog.ID{
		"bin::impl Action#impl::new",
		"bin::impl Action#impl::apply",
	} {
		if res.Walker.State(id) != catalog.StateRequired {
			t.Errorf("%s not required by wildcard", id)
		}
	}
}

func TestTraitBlockAtomicity(t *testing.T) {
	files := []*parser.File{{
		Path:  "bin/src/main.rs",
		Crate: "bin",
		Items: []parser.Item{
			{Kind: "function_item", Name: "main", Refs: []string{"Grid"}},
			{Kind: "struct_item", Name: "Grid"},
			{
				Kind: "impl_item", Trait: "Iterator", Type: "Grid",
				Members: []parser.Member{
					{Kind: "function_item", Name: "next"},
					{Kind: "function_item", Name: "size_hint"},
				},
			},
		},
	}}
	cat, err := catalog.Build(files)
	if err != nil {
		t.Fatal(err)
	}
	g := graph.Build(cat)
	cfg := &config.Config{Items: config.RuleSet{
		Include: []string{"next@impl Iterator for Grid"},
	}}
	res := runEngine(t, g, cfg, BatchProvider{AutoExclude: true})

	// including one trait member includes its siblings
	if res.Walker.State("bin::impl Iterator for Grid#impl::size_hint") != catalog.StateRequired {
		t.Error("trait block sibling not pulled in")
	}
}

// Two trait blocks share the plain member name fmt; block-level rules
// keep them apart without any ambiguity error.
func TestBlockRulesDisambiguateSharedMemberName(t *testing.T) {
	files := []*parser.File{{
		Path:  "bin/src/main.rs",
		Crate: "bin",
		Items: []parser.Item{
			{Kind: "function_item", Name: "main"},
			{Kind: "struct_item", Name: "Go"},
			{Kind: "struct_item", Name: "Value"},
			{Kind: "impl_item", Trait: "Display", Type: "Go",
				Members: []parser.Member{{Kind: "function_item", Name: "fmt"}}},
			{Kind: "impl_item", Trait: "Display", Type: "Value",
				Members: []parser.Member{{Kind: "function_item", Name: "fmt"}}},
		},
	}}
	cat, err := catalog.Build(files)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Blocks: config.RuleSet{
		Include: []string{"impl Display for Value"},
		Exclude: []string{"impl Display for Go"},
	}}
	res := runEngine(t, graph.Build(cat), cfg, BatchProvider{})

	if res.Walker.State("bin::impl Display for Value#impl::fmt") != catalog.StateRequired {
		t.Error("included block member not required")
	}
	if res.Walker.State("bin::impl Display for Go#impl::fmt") != catalog.StateExcluded {
		t.Error("excluded block member not excluded")
	}
}

// Qualifiers may be spelled with the whitespace the catalog strips;
// both spellings must select the same block.
func TestQualifiedPatternWhitespaceInsensitive(t *testing.T) {
	files := []*parser.File{{
		Path:  "bin/src/main.rs",
		Crate: "bin",
		Items: []parser.Item{
			{Kind: "function_item", Name: "main"},
			{Kind: "struct_item", Name: "MyMap2D"},
			{
				Kind:     "impl_item",
				Generics: "<T: Copy + Clone + Default, const X: usize, const Y: usize, const N: usize>",
				Type:     "MyMap2D<T, X, Y, N>",
				Members: []parser.Member{
					{Kind: "function_item", Name: "set"},
					{Kind: "function_item", Name: "get"},
				},
			},
		},
	}}
	cat, err := catalog.Build(files)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Items: config.RuleSet{Include: []string{
		"set@impl<T: Copy + Clone + Default, const X: usize, const Y: usize, const N: usize> MyMap2D<T, X, Y, N>",
	}}}
	res := runEngine(t, graph.Build(cat), cfg, BatchProvider{AutoExclude: true})

	block := "bin::impl<T:Copy+Clone+Default,constX:usize,constY:usize,constN:usize> MyMap2D<T,X,Y,N>#impl"
	if res.Walker.State(catalog.ID(block+"::set")) != catalog.StateRequired {
		t.Error("spaced qualifier did not select set")
	}
	if res.Walker.State(catalog.ID(block+"::get")) != catalog.StateExcluded {
		t.Error("get must stay excluded")
	}
}

// An undecided trait impl never aborts a batch run: the block is
// dropped and the orphaned call site becomes a warning.
func TestBatchExcludesOpenTraitImpls(t *testing.T) {
	files := []*parser.File{{
		Path:  "bin/src/main.rs",
		Crate: "bin",
		Items: []parser.Item{
			{Kind: "function_item", Name: "main", Refs: []string{"fmt"}},
			{Kind: "struct_item", Name: "Go"},
			{Kind: "struct_item", Name: "Value"},
			{Kind: "impl_item", Trait: "Display", Type: "Go",
				Members: []parser.Member{{Kind: "function_item", Name: "fmt"}}},
			{Kind: "impl_item", Trait: "Display", Type: "Value",
				Members: []parser.Member{{Kind: "function_item", Name: "fmt"}}},
		},
	}}
	cat, err := catalog.Build(files)
	if err != nil {
		t.Fatal(err)
	}
	res := runEngine(t, graph.Build(cat), &config.Config{}, BatchProvider{})

	for _, id := range []catalog.ID{
		"bin::impl Display for Go#impl::fmt",
		"bin::impl Display for Value#impl::fmt",
	} {
		if res.Walker.State(id) != catalog.StateExcluded {
			t.Errorf("%s not excluded", id)
		}
	}
	found := false
	for _, d := range res.Diagnostics {
		if d.Code == errors.CodeUnresolvedTraitImpl {
			found = true
		}
	}
	if !found {
		t.Error("missing UNRESOLVED_TRAIT_IMPL diagnostic")
	}
}

func TestAmbiguousPlainPatternFails(t *testing.T) {
	files := []*parser.File{{
		Path:  "bin/src/main.rs",
		Crate: "bin",
		Items: []parser.Item{
			{Kind: "function_item", Name: "main"},
			{Kind: "struct_item", Name: "A"},
			{Kind: "struct_item", Name: "B"},
			{Kind: "impl_item", Type: "A",
				Members: []parser.Member{{Kind: "function_item", Name: "get"}}},
			{Kind: "impl_item", Type: "B",
				Members: []parser.Member{{Kind: "function_item", Name: "get"}}},
		},
	}}
	cat, err := catalog.Build(files)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Items: config.RuleSet{Include: []string{"get"}}}
	_, err = NewEngine(graph.Build(cat), BatchProvider{}, nil).
		Run(context.Background(), "bin", cfg)
	if !errors.IsCode(err, errors.CodeAmbiguousImplItem) {
		t.Fatalf("err = %v, want AMBIGUOUS_IMPL_ITEM", err)
	}
}

func TestBatchStrictFailsOnOpenCandidate(t *testing.T) {
	g := fixtureGraph(t)
	_, err := NewEngine(g, BatchProvider{}, nil).
		Run(context.Background(), "bin", &config.Config{})
	if !errors.IsCode(err, errors.CodeAmbiguousImplItem) {
		t.Fatalf("err = %v, want AMBIGUOUS_IMPL_ITEM", err)
	}
}

func TestProviderDecisionsRecorded(t *testing.T) {
	g := fixtureGraph(t)
	decisions := map[string]Decision{
		"new":   DecideExclude,
		"apply": DecideInclude,
		"fmt":   DecideExcludeBlock,
	}
	p := ProviderFunc(func(_ context.Context, c Candidate) (Decision, error) {
		d, ok := decisions[c.Member.Name]
		if !ok {
			t.Fatalf("unexpected prompt for %s", c.Member.QualifiedName())
		}
		return d, nil
	})
	res := runEngine(t, g, &config.Config{}, p)

	if res.Walker.State("bin::impl Action#impl::apply") != catalog.StateRequired {
		t.Error("apply not required")
	}
	wantInc := []string{"apply@impl Action"}
	if len(res.NewItems.Include) != 1 || res.NewItems.Include[0] != wantInc[0] {
		t.Errorf("recorded includes = %v, want %v", res.NewItems.Include, wantInc)
	}
	foundBlock := false
	for _, e := range res.NewItems.Exclude {
		if e == "*@impl Display for Action" {
			foundBlock = true
		}
	}
	if !foundBlock {
		t.Errorf("recorded excludes = %v, want *@impl Display for Action", res.NewItems.Exclude)
	}
}

func TestOperatorCancelAborts(t *testing.T) {
	g := fixtureGraph(t)
	p := ProviderFunc(func(context.Context, Candidate) (Decision, error) {
		return DecideExclude, errors.New(errors.CodeOperatorCancelled, "dialog quit")
	})
	_, err := NewEngine(g, p, nil).Run(context.Background(), "bin", &config.Config{})
	if !errors.IsCode(err, errors.CodeOperatorCancelled) {
		t.Fatalf("err = %v, want OPERATOR_CANCELLED", err)
	}
}

func TestExcludedButRequiredDiagnostic(t *testing.T) {
	files := []*parser.File{{
		Path:  "bin/src/main.rs",
		Crate: "bin",
		Items: []parser.Item{
			{Kind: "function_item", Name: "main", Refs: []string{"load"}},
			{Kind: "struct_item", Name: "Cfg"},
			{Kind: "impl_item", Type: "Cfg",
				Members: []parser.Member{{Kind: "function_item", Name: "load"}}},
		},
	}}
	cat, err := catalog.Build(files)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Items: config.RuleSet{Exclude: []string{"load"}}}
	res := runEngine(t, graph.Build(cat), cfg, BatchProvider{AutoExclude: true})

	// load is a unique hard dependency of main, exclusion cannot demote it
	if res.Walker.State("bin::impl Cfg#impl::load") != catalog.StateRequired {
		t.Error("hard dependency demoted by exclude")
	}
	found := false
	for _, d := range res.Diagnostics {
		if d.Code == errors.CodeValidationError {
			found = true
		}
	}
	if !found {
		t.Error("missing include-wins diagnostic")
	}
}

func TestDiagnosticsFollowCatalogOrder(t *testing.T) {
	files := []*parser.File{{
		Path:  "bin/src/main.rs",
		Crate: "bin",
		Items: []parser.Item{
			{Kind: "function_item", Name: "main", Refs: []string{"load", "save"}},
			{Kind: "struct_item", Name: "Cfg"},
			{Kind: "impl_item", Type: "Cfg",
				Members: []parser.Member{
					{Kind: "function_item", Name: "load"},
					{Kind: "function_item", Name: "save"},
				}},
		},
	}}
	cat, err := catalog.Build(files)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Items: config.RuleSet{Exclude: []string{"load", "save"}}}
	res := runEngine(t, graph.Build(cat), cfg, BatchProvider{AutoExclude: true})

	var ids []catalog.ID
	for _, d := range res.Diagnostics {
		if d.Code == errors.CodeValidationError {
			ids = append(ids, d.ID)
		}
	}
	want := []catalog.ID{
		"bin::impl Cfg#impl::load",
		"bin::impl Cfg#impl::save",
	}
	if len(ids) != len(want) || ids[0] != want[0] || ids[1] != want[1] {
		t.Errorf("diagnostics = %v, want %v", ids, want)
	}
}
