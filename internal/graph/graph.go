// # internal/graph/graph.go
package graph

import (
	"rustfuse/internal/catalog"
)

// Graph is the dependency graph over catalog items and impl members.
// Nodes are catalog IDs; edges go from a declaration to the
// declarations its source references. The graph is immutable once
// built, so reads need no locking.
type Graph struct {
	cat *catalog.Catalog

	edges     map[catalog.ID][]catalog.ID
	ambiguous []AmbiguousRef
	isMember  map[catalog.ID]*catalog.Member

	unresolved int
}

// AmbiguousRef records a reference that matched impl members in more
// than one block. Candidates keeps catalog order; the resolution engine
// turns these into operator decisions.
type AmbiguousRef struct {
	From       catalog.ID
	Name       string
	Candidates []catalog.ID
}

// Build resolves every reference in the catalog into edges. Resolution
// prefers declarations in the referencing item's own module, then its
// own crate, then a unique match across all crates; names that resolve
// to impl members of several blocks become ambiguous references, and
// names that match nothing (externals, locals, macro-generated items)
// are counted and otherwise ignored.
func Build(cat *catalog.Catalog) *Graph {
	g := &Graph{
		cat:      cat,
		edges:    make(map[catalog.ID][]catalog.ID),
		isMember: make(map[catalog.ID]*catalog.Member),
	}
	for _, m := range cat.Members() {
		g.isMember[m.ID] = m
	}
	for _, it := range cat.Items {
		g.resolveNode(it.ID, it.Crate, it.ModulePath, it.Refs)
		if it.Impl != nil {
			for _, m := range it.Impl.Members {
				g.resolveNode(m.ID, it.Crate, it.ModulePath, m.Refs)
			}
		}
	}
	return g
}

func (g *Graph) resolveNode(from catalog.ID, crate string, modPath []string, refs []string) {
	seen := make(map[catalog.ID]bool)
	for _, name := range refs {
		target, amb, ok := g.resolve(from, crate, modPath, name)
		switch {
		case amb != nil:
			amb.From = from
			g.ambiguous = append(g.ambiguous, *amb)
		case ok:
			if from == target || seen[target] {
				continue
			}
			seen[target] = true
			g.edges[from] = append(g.edges[from], target)
		default:
			g.unresolved++
		}
	}
}

func (g *Graph) resolve(from catalog.ID, crate string, modPath []string, name string) (catalog.ID, *AmbiguousRef, bool) {
	if it := g.resolveTopLevel(from, crate, modPath, name); it != nil {
		return it.ID, nil, true
	}

	members := g.cat.MembersByName(name)
	switch {
	case len(members) == 1:
		return members[0].ID, nil, true
	case len(members) > 1:
		amb := &AmbiguousRef{Name: name, Candidates: make([]catalog.ID, 0, len(members))}
		for _, m := range members {
			amb.Candidates = append(amb.Candidates, m.ID)
		}
		return "", amb, false
	}
	return "", nil, false
}

// resolveTopLevel never resolves a node to itself: a use declaration
// that names Action must link on to the Action definition, not back to
// the use statement.
func (g *Graph) resolveTopLevel(from catalog.ID, crate string, modPath []string, name string) *catalog.Item {
	all := g.cat.TopLevelByName(name)
	candidates := make([]*catalog.Item, 0, len(all))
	for _, it := range all {
		if it.ID != from {
			candidates = append(candidates, it)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	for _, it := range candidates {
		if it.Crate == crate && samePath(it.ModulePath, modPath) {
			return it
		}
	}

	var inCrate *catalog.Item
	for _, it := range candidates {
		if it.Crate != crate {
			continue
		}
		if inCrate != nil {
			return nil // several same-crate matches, not resolvable by name alone
		}
		inCrate = it
	}
	if inCrate != nil {
		return inCrate
	}

	if len(candidates) == 1 {
		return candidates[0]
	}
	return nil
}

// Edges returns the outgoing edges of a node in resolution order.
func (g *Graph) Edges(id catalog.ID) []catalog.ID {
	return g.edges[id]
}

// Member reports whether the node is an impl member, and which.
func (g *Graph) Member(id catalog.ID) (*catalog.Member, bool) {
	m, ok := g.isMember[id]
	return m, ok
}

// Ambiguous returns every ambiguous reference found during the build,
// in catalog order of the referencing node.
func (g *Graph) Ambiguous() []AmbiguousRef {
	return g.ambiguous
}

// UnresolvedCount is the number of references that matched nothing in
// the catalog. External crates and local bindings land here.
func (g *Graph) UnresolvedCount() int {
	return g.unresolved
}

// Catalog returns the catalog the graph was built over.
func (g *Graph) Catalog() *catalog.Catalog {
	return g.cat
}

func samePath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
