// # internal/assemble/fusion.go
package assemble

import (
	"strings"

	"rustfuse/internal/catalog"
	"rustfuse/internal/core/errors"
)

// StateFn reports the resolution state of a catalog node. The walker's
// State method satisfies it.
type StateFn func(catalog.ID) catalog.State

type Options struct {
	BinaryCrate string
	Libraries   []string
}

// Emit renders the fused source file. Binary crate items land at the
// top level; every library crate becomes a `pub mod` of the fused file
// so its paths keep resolving. Items appear in catalog order, impl
// blocks carry only their required members, and use statements that
// point inside the fused program are dropped.
func Emit(cat *catalog.Catalog, state StateFn, opts Options) (string, error) {
	if opts.BinaryCrate == "" {
		return "", errors.New(errors.CodeValidationError, "binary crate not set")
	}
	fused := map[string]bool{opts.BinaryCrate: true}
	for _, lib := range opts.Libraries {
		fused[lib] = true
	}

	root := newModTree()
	seenUse := make(map[string]bool)

	for _, it := range cat.Items {
		if state(it.ID) != catalog.StateRequired {
			continue
		}
		switch it.Kind {
		case catalog.KindModule:
			// module structure is rebuilt from the tree
			continue
		case catalog.KindUse:
			if dropUse(it.Source) {
				continue
			}
			line := strings.TrimSpace(it.Source)
			if seenUse[modKey(it, opts)+line] {
				continue
			}
			seenUse[modKey(it, opts)+line] = true
		case catalog.KindImpl:
			if countRequired(it, state) == 0 {
				continue
			}
		}
		root.insert(treePath(it, opts), it)
	}

	var sb strings.Builder
	root.render(&sb, 0, state)
	return sb.String(), nil
}

func treePath(it *catalog.Item, opts Options) []string {
	if it.Crate == opts.BinaryCrate {
		return it.ModulePath
	}
	return append([]string{it.Crate}, it.ModulePath...)
}

func modKey(it *catalog.Item, opts Options) string {
	return strings.Join(treePath(it, opts), "::") + "|"
}

// dropUse reports whether a use statement refers inside the fused
// program. Those paths only existed across crate and module borders
// that the fusion removes.
func dropUse(source string) bool {
	s := strings.TrimSpace(source)
	s = strings.TrimPrefix(s, "pub ")
	s = strings.TrimPrefix(s, "use ")
	s = strings.TrimLeft(s, ":")
	seg := s
	if i := strings.IndexAny(s, ":;{ "); i >= 0 {
		seg = s[:i]
	}
	switch seg {
	case "crate", "self", "super":
		return true
	}
	return false
}

func countRequired(block *catalog.Item, state StateFn) int {
	n := 0
	for _, m := range block.Impl.Members {
		if state(m.ID) == catalog.StateRequired {
			n++
		}
	}
	return n
}

// emitItem renders one item. Impl blocks are reconstructed from their
// header and the required members; everything else is emitted verbatim.
func emitItem(sb *strings.Builder, it *catalog.Item, indent int, state StateFn) {
	if it.Kind != catalog.KindImpl {
		writeIndented(sb, it.Source, indent)
		return
	}

	header := it.Source
	if i := strings.IndexByte(header, '{'); i >= 0 {
		header = header[:i]
	}
	writeIndented(sb, strings.TrimRight(header, " \t\n")+" {", indent)
	for _, m := range it.Impl.Members {
		if state(m.ID) != catalog.StateRequired {
			continue
		}
		writeIndented(sb, m.Source, indent+1)
	}
	writeIndented(sb, "}", indent)
}

func writeIndented(sb *strings.Builder, source string, indent int) {
	pad := strings.Repeat("    ", indent)
	for _, line := range strings.Split(strings.TrimRight(source, "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(pad)
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}

type modTree struct {
	items    []*catalog.Item
	children map[string]*modTree
	order    []string
}

func newModTree() *modTree {
	return &modTree{children: make(map[string]*modTree)}
}

func (t *modTree) insert(path []string, it *catalog.Item) {
	if len(path) == 0 {
		t.items = append(t.items, it)
		return
	}
	child, ok := t.children[path[0]]
	if !ok {
		child = newModTree()
		t.children[path[0]] = child
		t.order = append(t.order, path[0])
	}
	child.insert(path[1:], it)
}

func (t *modTree) render(sb *strings.Builder, indent int, state StateFn) {
	for i, it := range t.items {
		if i > 0 || indent > 0 {
			sb.WriteString("\n")
		}
		emitItem(sb, it, indent, state)
	}
	for _, name := range t.order {
		if len(t.items) > 0 || indent > 0 {
			sb.WriteString("\n")
		}
		pad := strings.Repeat("    ", indent)
		sb.WriteString(pad + "pub mod " + name + " {\n")
		t.children[name].render(sb, indent+1, state)
		sb.WriteString(pad + "}\n")
	}
}
