// # internal/assemble/dot.go
package assemble

import (
	"fmt"
	"strings"

	"rustfuse/internal/catalog"
	"rustfuse/internal/graph"
)

type DOTGenerator struct {
	graph *graph.Graph
	state StateFn
}

func NewDOTGenerator(g *graph.Graph, state StateFn) *DOTGenerator {
	return &DOTGenerator{graph: g, state: state}
}

// Generate renders the item dependency graph with one cluster per
// crate. Required nodes are filled green, excluded ones gray, still
// pending ones amber.
func (d *DOTGenerator) Generate() (string, error) {
	var buf strings.Builder

	buf.WriteString("digraph fusion {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, penwidth=1.2];\n")
	buf.WriteString("  ranksep=1.5;\n")
	buf.WriteString("  nodesep=0.6;\n")
	buf.WriteString("  splines=polyline;\n")
	buf.WriteString("  overlap=false;\n\n")

	cat := d.graph.Catalog()

	byCrate := make(map[string][]*catalog.Item)
	var crates []string
	for _, it := range cat.Items {
		if _, seen := byCrate[it.Crate]; !seen {
			crates = append(crates, it.Crate)
		}
		byCrate[it.Crate] = append(byCrate[it.Crate], it)
	}

	for i, crate := range crates {
		buf.WriteString(fmt.Sprintf("  subgraph cluster_%d {\n", i))
		buf.WriteString(fmt.Sprintf("    label=%q;\n", crate))
		buf.WriteString("    style=filled;\n")
		buf.WriteString("    color=\"whitesmoke\";\n")
		for _, it := range byCrate[crate] {
			buf.WriteString(fmt.Sprintf("    %q [label=\"%s\", fillcolor=%q];\n",
				string(it.ID), nodeLabel(it), d.fillColor(it.ID)))
		}
		buf.WriteString("  }\n\n")
	}

	for _, it := range cat.Items {
		for _, to := range d.graph.Edges(it.ID) {
			target := d.edgeTarget(to)
			buf.WriteString(fmt.Sprintf("  %q -> %q;\n", string(it.ID), string(target)))
		}
		if it.Impl == nil {
			continue
		}
		for _, m := range it.Impl.Members {
			for _, to := range d.graph.Edges(m.ID) {
				target := d.edgeTarget(to)
				if target == it.ID {
					continue
				}
				buf.WriteString(fmt.Sprintf("  %q -> %q [style=dashed];\n",
					string(it.ID), string(target)))
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

// edgeTarget lifts member targets to their owning block so the graph
// stays at item granularity.
func (d *DOTGenerator) edgeTarget(id catalog.ID) catalog.ID {
	if m, ok := d.graph.Member(id); ok {
		return m.Owner.ID
	}
	return id
}

func (d *DOTGenerator) fillColor(id catalog.ID) string {
	switch d.state(id) {
	case catalog.StateRequired:
		return "#BBF7D0"
	case catalog.StatePending:
		return "#FDE68A"
	default:
		return "#E2E8F0"
	}
}

func nodeLabel(it *catalog.Item) string {
	label := it.Name
	if len(it.ModulePath) > 0 {
		label = strings.Join(it.ModulePath, "::") + "::" + it.Name
	}
	return label + "\\n" + it.Kind.String()
}
