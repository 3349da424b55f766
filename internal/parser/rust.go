// # internal/parser/rust.go
package parser

import (
	"strings"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type RustExtractor struct{}

func NewRustExtractor() *RustExtractor {
	return &RustExtractor{}
}

// Node kinds that carry no declaration of their own and are skipped
// when walking a declaration list.
var skipKinds = map[string]bool{
	"line_comment":         true,
	"block_comment":        true,
	"attribute_item":       true,
	"inner_attribute_item": true,
	"empty_statement":      true,
	"shebang":              true,
}

// Names that never resolve to a catalog item.
var reservedNames = map[string]bool{
	"self":  true,
	"Self":  true,
	"super": true,
	"crate": true,
	"std":   true,
	"core":  true,
	"alloc": true,
}

func (e *RustExtractor) Extract(root *sitter.Node, source []byte, filePath string) (*File, error) {
	file := &File{
		Path:     filePath,
		ParsedAt: time.Now(),
	}

	e.walkDeclarations(root, source, file, nil)

	return file, nil
}

// walkDeclarations collects the items of one declaration scope. Inline
// modules recurse with an extended module path; their body items land in
// the same flat collection.
func (e *RustExtractor) walkDeclarations(node *sitter.Node, source []byte, file *File, modPath []string) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if !child.IsNamed() || skipKinds[child.Kind()] {
			continue
		}

		switch child.Kind() {
		case "mod_item":
			e.extractModule(child, source, file, modPath)
		case "impl_item":
			e.extractImpl(child, source, file, modPath)
		case "use_declaration":
			e.extractUse(child, source, file, modPath)
		default:
			e.extractPlain(child, source, file, modPath)
		}
	}
}

func (e *RustExtractor) extractModule(node *sitter.Node, source []byte, file *File, modPath []string) {
	name := e.fieldText(node, "name", source)
	if name == "" {
		return
	}

	item := Item{
		Kind:       "mod_item",
		Name:       name,
		ModulePath: append([]string(nil), modPath...),
		Location:   e.location(node, file.Path),
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		// `mod foo;` declaration, the module lives in its own file
		item.Source = e.getText(node, source)
		file.Items = append(file.Items, item)
		return
	}

	// header only, the body items stand on their own
	item.Source = "mod " + name + ";"
	file.Items = append(file.Items, item)
	e.walkDeclarations(body, source, file, append(append([]string(nil), modPath...), name))
}

func (e *RustExtractor) extractImpl(node *sitter.Node, source []byte, file *File, modPath []string) {
	item := Item{
		Kind:       "impl_item",
		ModulePath: append([]string(nil), modPath...),
		Source:     e.getText(node, source),
		Location:   e.location(node, file.Path),
	}

	refs := newRefSet()

	if tp := node.ChildByFieldName("type_parameters"); tp != nil {
		item.Generics = e.getText(tp, source)
		e.collectRefs(tp, source, refs)
	}
	if tr := node.ChildByFieldName("trait"); tr != nil {
		item.Trait = e.getText(tr, source)
		e.collectRefs(tr, source, refs)
	}
	if ty := node.ChildByFieldName("type"); ty != nil {
		item.Type = e.getText(ty, source)
		item.Name = lastPathSegment(e.getText(ty, source))
		e.collectRefs(ty, source, refs)
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if c := node.Child(i); c.Kind() == "where_clause" {
			item.Where = e.getText(c, source)
			e.collectRefs(c, source, refs)
		}
	}
	item.Refs = refs.slice()

	if body := node.ChildByFieldName("body"); body != nil {
		for i := uint(0); i < body.ChildCount(); i++ {
			child := body.Child(i)
			if !child.IsNamed() || skipKinds[child.Kind()] {
				continue
			}
			memberRefs := newRefSet()
			e.collectRefs(child, source, memberRefs)
			item.Members = append(item.Members, Member{
				Kind:     child.Kind(),
				Name:     e.fieldText(child, "name", source),
				Source:   e.getText(child, source),
				Location: e.location(child, file.Path),
				Refs:     memberRefs.slice(),
			})
		}
	}

	file.Items = append(file.Items, item)
}

func (e *RustExtractor) extractUse(node *sitter.Node, source []byte, file *File, modPath []string) {
	arg := node.ChildByFieldName("argument")
	if arg == nil {
		return
	}

	for _, leaf := range e.useLeaves(arg, source) {
		refs := newRefSet()
		for _, seg := range leaf.segments {
			refs.add(seg)
		}
		file.Items = append(file.Items, Item{
			Kind:       leaf.kind,
			Name:       leaf.name,
			ModulePath: append([]string(nil), modPath...),
			Source:     e.getText(node, source),
			Location:   e.location(node, file.Path),
			Refs:       refs.slice(),
		})
	}
}

type useLeaf struct {
	kind     string // use_declaration or use_wildcard
	name     string // name visible in the importing namespace
	segments []string
}

// useLeaves flattens a use tree into one leaf per imported name, so
// `use foo::{Bar, baz::Qux}` yields leaves Bar and Qux. Wildcard leaves
// keep their own kind; the catalog rejects them as unsupported.
func (e *RustExtractor) useLeaves(node *sitter.Node, source []byte) []useLeaf {
	switch node.Kind() {
	case "identifier", "type_identifier":
		name := e.getText(node, source)
		return []useLeaf{{kind: "use_declaration", name: name, segments: []string{name}}}
	case "scoped_identifier":
		var segments []string
		for i := uint(0); i < node.ChildCount(); i++ {
			c := node.Child(i)
			switch c.Kind() {
			case "identifier", "type_identifier":
				segments = append(segments, e.getText(c, source))
			case "scoped_identifier":
				for _, l := range e.useLeaves(c, source) {
					segments = append(segments, l.segments...)
				}
			}
		}
		if len(segments) == 0 {
			return nil
		}
		return []useLeaf{{kind: "use_declaration", name: segments[len(segments)-1], segments: segments}}
	case "use_as_clause":
		var leaves []useLeaf
		if path := node.ChildByFieldName("path"); path != nil {
			leaves = e.useLeaves(path, source)
		}
		alias := e.fieldText(node, "alias", source)
		for i := range leaves {
			leaves[i].name = alias
		}
		return leaves
	case "scoped_use_list":
		var prefix []string
		if path := node.ChildByFieldName("path"); path != nil {
			for _, l := range e.useLeaves(path, source) {
				prefix = l.segments
			}
		}
		var leaves []useLeaf
		if list := node.ChildByFieldName("list"); list != nil {
			for _, l := range e.useLeaves(list, source) {
				l.segments = append(append([]string(nil), prefix...), l.segments...)
				leaves = append(leaves, l)
			}
		}
		return leaves
	case "use_list":
		var leaves []useLeaf
		for i := uint(0); i < node.ChildCount(); i++ {
			c := node.Child(i)
			if c.IsNamed() {
				leaves = append(leaves, e.useLeaves(c, source)...)
			}
		}
		return leaves
	case "use_wildcard":
		var segments []string
		for i := uint(0); i < node.ChildCount(); i++ {
			c := node.Child(i)
			switch c.Kind() {
			case "identifier", "type_identifier", "scoped_identifier":
				for _, l := range e.useLeaves(c, source) {
					segments = append(segments, l.segments...)
				}
			}
		}
		return []useLeaf{{kind: "use_wildcard", name: "*", segments: segments}}
	case "self":
		return []useLeaf{{kind: "use_declaration", name: "self", segments: nil}}
	}
	return nil
}

func (e *RustExtractor) extractPlain(node *sitter.Node, source []byte, file *File, modPath []string) {
	refs := newRefSet()
	e.collectRefs(node, source, refs)

	file.Items = append(file.Items, Item{
		Kind:       node.Kind(),
		Name:       e.fieldText(node, "name", source),
		ModulePath: append([]string(nil), modPath...),
		Source:     e.getText(node, source),
		Location:   e.location(node, file.Path),
		Refs:       refs.slice(),
	})
}

// collectRefs gathers the plain names an item touches: called
// functions, method names, type usages, trait bounds and path segments.
// Token trees of macro invocations are not descended into; references
// realized only through macro-driven trait dispatch stay invisible here
// and are settled later by the impl resolution step.
func (e *RustExtractor) collectRefs(node *sitter.Node, source []byte, out *refSet) {
	switch node.Kind() {
	case "line_comment", "block_comment", "string_literal", "raw_string_literal", "token_tree":
		return
	case "type_identifier":
		out.add(e.getText(node, source))
		return
	case "scoped_identifier", "scoped_type_identifier":
		for i := uint(0); i < node.ChildCount(); i++ {
			c := node.Child(i)
			switch c.Kind() {
			case "identifier", "type_identifier":
				out.add(e.getText(c, source))
			case "scoped_identifier", "scoped_type_identifier":
				e.collectRefs(c, source, out)
			}
		}
		return
	case "call_expression":
		if fn := node.ChildByFieldName("function"); fn != nil {
			e.collectCallee(fn, source, out)
		}
	case "macro_invocation":
		if mac := node.ChildByFieldName("macro"); mac != nil && mac.Kind() == "identifier" {
			out.add(e.getText(mac, source))
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		e.collectRefs(node.Child(i), source, out)
	}
}

func (e *RustExtractor) collectCallee(fn *sitter.Node, source []byte, out *refSet) {
	switch fn.Kind() {
	case "identifier":
		out.add(e.getText(fn, source))
	case "field_expression":
		// method call, the receiver subtree is walked by the caller
		if field := fn.ChildByFieldName("field"); field != nil {
			out.add(e.getText(field, source))
		}
	case "scoped_identifier":
		e.collectRefs(fn, source, out)
	case "generic_function":
		if inner := fn.ChildByFieldName("function"); inner != nil {
			e.collectCallee(inner, source, out)
		}
	}
}

func (e *RustExtractor) fieldText(node *sitter.Node, field string, source []byte) string {
	c := node.ChildByFieldName(field)
	if c == nil {
		return ""
	}
	return e.getText(c, source)
}

func (e *RustExtractor) getText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

func (e *RustExtractor) location(node *sitter.Node, path string) Location {
	return Location{
		File:   path,
		Line:   int(node.StartPosition().Row) + 1,
		Column: int(node.StartPosition().Column) + 1,
	}
}

func lastPathSegment(typePath string) string {
	// strip generic arguments, then the leading path
	trimmed := typePath
	if i := strings.IndexByte(trimmed, '<'); i >= 0 {
		trimmed = trimmed[:i]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "::")
	if i := strings.LastIndex(trimmed, "::"); i >= 0 {
		trimmed = trimmed[i+2:]
	}
	return strings.TrimPrefix(strings.TrimSpace(trimmed), "&")
}

type refSet struct {
	seen  map[string]bool
	names []string
}

func newRefSet() *refSet {
	return &refSet{seen: make(map[string]bool)}
}

func (r *refSet) add(name string) {
	if name == "" || reservedNames[name] || r.seen[name] {
		return
	}
	r.seen[name] = true
	r.names = append(r.names, name)
}

func (r *refSet) slice() []string {
	return r.names
}
