// # internal/graph/reach.go
package graph

import (
	"rustfuse/internal/catalog"
)

// Walker tracks the resolution state of every node while reachability
// expands from the binary's main function. Cycles are safe: a node is
// expanded at most once.
//
// Requiring a type pulls the headers of its impl blocks in and turns
// their members into pending candidates; requiring a member pulls in
// its block header and the member's own references. Candidates stay
// pending until the resolution engine decides them.
type Walker struct {
	g *Graph

	states  map[catalog.ID]catalog.State
	pending []catalog.ID
	inQueue map[catalog.ID]bool
}

func NewWalker(g *Graph) *Walker {
	return &Walker{
		g:       g,
		states:  make(map[catalog.ID]catalog.State),
		inQueue: make(map[catalog.ID]bool),
	}
}

// State returns the node's current resolution state.
func (w *Walker) State(id catalog.ID) catalog.State {
	return w.states[id]
}

// Require marks the node required and expands everything it reaches.
// A previously excluded node is promoted: include always wins.
func (w *Walker) Require(id catalog.ID) {
	queue := []catalog.ID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if w.states[cur] == catalog.StateRequired {
			continue
		}
		w.states[cur] = catalog.StateRequired

		if m, ok := w.g.Member(cur); ok {
			queue = append(queue, m.Owner.ID)
		} else if it, ok := w.g.cat.ItemByID(cur); ok {
			queue = append(queue, w.expandItem(it)...)
		}

		// Uniquely resolved references are hard dependencies, member
		// or not; only ambiguous ones become candidates.
		queue = append(queue, w.g.Edges(cur)...)

		for _, amb := range w.g.Ambiguous() {
			if amb.From != cur {
				continue
			}
			for _, cand := range amb.Candidates {
				w.markPending(cand)
			}
		}
	}
}

// expandItem returns the extra nodes a required item drags in: for a
// type, the headers of its impl blocks, with every undecided member
// becoming a candidate.
func (w *Walker) expandItem(it *catalog.Item) []catalog.ID {
	var extra []catalog.ID
	switch it.Kind {
	case catalog.KindStruct, catalog.KindEnum:
		for _, block := range w.g.cat.BlocksForType(it.Name) {
			extra = append(extra, block.ID)
			for _, m := range block.Impl.Members {
				w.markPending(m.ID)
			}
		}
	case catalog.KindImpl:
		// Header only. Members stay candidates until decided.
	}
	return extra
}

// Exclude marks the node excluded unless it is already required.
func (w *Walker) Exclude(id catalog.ID) bool {
	if w.states[id] == catalog.StateRequired {
		return false
	}
	w.states[id] = catalog.StateExcluded
	return true
}

func (w *Walker) markPending(id catalog.ID) {
	if w.inQueue[id] || w.states[id] != catalog.StateUnknown {
		return
	}
	w.states[id] = catalog.StatePending
	w.inQueue[id] = true
	w.pending = append(w.pending, id)
}

// Pending returns the candidates still awaiting a decision, in the
// order they were discovered.
func (w *Walker) Pending() []catalog.ID {
	var out []catalog.ID
	for _, id := range w.pending {
		if w.states[id] == catalog.StatePending {
			out = append(out, id)
		}
	}
	return out
}

// Finalize demotes every pending or untouched node to excluded. Called
// once all decisions are in; after it, every node is either required or
// excluded.
func (w *Walker) Finalize() {
	for _, it := range w.g.cat.Items {
		w.finalizeNode(it.ID)
		if it.Impl != nil {
			for _, m := range it.Impl.Members {
				w.finalizeNode(m.ID)
			}
		}
	}
}

func (w *Walker) finalizeNode(id catalog.ID) {
	if w.states[id] != catalog.StateRequired {
		w.states[id] = catalog.StateExcluded
	}
}

// RequiredCount returns how many nodes ended up required.
func (w *Walker) RequiredCount() int {
	n := 0
	for _, s := range w.states {
		if s == catalog.StateRequired {
			n++
		}
	}
	return n
}
