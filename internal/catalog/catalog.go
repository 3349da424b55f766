// # internal/catalog/catalog.go
package catalog

import (
	"fmt"
	"strings"

	"rustfuse/internal/core/errors"
	"rustfuse/internal/parser"
)

// Catalog holds every item discovered across the scanned crates, in
// deterministic insertion order, together with the lookup indexes the
// graph builder and the resolution engine work from.
type Catalog struct {
	Items []*Item

	byID       map[ID]*Item
	topByName  map[string][]*Item   // non-impl items keyed by plain name
	membersOf  map[string][]*Member // impl members keyed by plain name
	blocksFor  map[string][]*Item   // impl blocks keyed by their type's plain name
	blocksByQN map[string][]*Item   // impl blocks keyed by qualified name
	mainByCr   map[string]*Item
	implCounts map[ID]int
}

// Build assembles the catalog from parsed files. Files and their items
// are consumed in the order given, which fixes the emission order of
// the fused output.
func Build(files []*parser.File) (*Catalog, error) {
	c := &Catalog{
		byID:       make(map[ID]*Item),
		topByName:  make(map[string][]*Item),
		membersOf:  make(map[string][]*Member),
		blocksFor:  make(map[string][]*Item),
		blocksByQN: make(map[string][]*Item),
		mainByCr:   make(map[string]*Item),
		implCounts: make(map[ID]int),
	}
	for _, f := range files {
		for i := range f.Items {
			if err := c.add(f, &f.Items[i]); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func (c *Catalog) add(f *parser.File, raw *parser.Item) error {
	kind, err := normalizeKind(raw.Kind, raw.Name, raw.Location.File)
	if err != nil {
		return err
	}

	item := &Item{
		Kind:       kind,
		Name:       raw.Name,
		Crate:      f.Crate,
		ModulePath: modulePath(f, raw),
		Source:     raw.Source,
		Location:   raw.Location,
		Refs:       raw.Refs,
	}

	if kind == KindImpl {
		block := NewBlockName(raw.Generics, raw.Trait, raw.Type, raw.Where)
		item.Name = block.String()
		item.Impl = &ImplBlock{Name: block}
	}

	item.ID = c.identify(item)
	if _, dup := c.byID[item.ID]; dup {
		return errors.AddContext(errors.Newf(errors.CodeDuplicateItemIdentity,
			"item %s declared twice", item.ID), errors.CtxPath, item.Location.File)
	}
	c.byID[item.ID] = item
	c.Items = append(c.Items, item)

	switch kind {
	case KindImpl:
		if err := c.indexImpl(item, raw); err != nil {
			return err
		}
	default:
		c.topByName[item.Name] = append(c.topByName[item.Name], item)
		if kind == KindFunction && item.Name == "main" {
			if _, exists := c.mainByCr[item.Crate]; !exists {
				c.mainByCr[item.Crate] = item
			}
		}
	}
	return nil
}

// identify derives the stable item ID from crate, module path, name and
// kind. Repeated impl blocks with the same qualified name are legal in
// Rust (split across files, for instance), so impl IDs carry an ordinal
// when a collision occurs; any other collision is a real duplicate.
func (c *Catalog) identify(item *Item) ID {
	parts := append([]string{item.Crate}, item.ModulePath...)
	parts = append(parts, item.Name)
	id := ID(strings.Join(parts, "::") + "#" + item.Kind.String())
	if item.Kind != KindImpl {
		return id
	}
	c.implCounts[id]++
	if n := c.implCounts[id]; n > 1 {
		return ID(fmt.Sprintf("%s#%d", id, n))
	}
	return id
}

func (c *Catalog) indexImpl(item *Item, raw *parser.Item) error {
	typeName := plainTypeName(item.Impl.Name.Type)
	c.blocksFor[typeName] = append(c.blocksFor[typeName], item)
	c.blocksByQN[item.Name] = append(c.blocksByQN[item.Name], item)

	for i := range raw.Members {
		rm := &raw.Members[i]
		kind, err := normalizeKind(rm.Kind, rm.Name, rm.Location.File)
		if err != nil {
			return err
		}
		m := &Member{
			ID:       item.ID + ID("::"+rm.Name),
			Name:     rm.Name,
			Kind:     kind,
			Source:   rm.Source,
			Location: rm.Location,
			Refs:     rm.Refs,
			Owner:    item,
		}
		item.Impl.Members = append(item.Impl.Members, m)
		c.membersOf[m.Name] = append(c.membersOf[m.Name], m)
	}
	return nil
}

// ItemByID returns the catalog item with the given identity.
func (c *Catalog) ItemByID(id ID) (*Item, bool) {
	it, ok := c.byID[id]
	return it, ok
}

// TopLevelByName returns every non-impl item with the given plain name,
// across all crates and modules.
func (c *Catalog) TopLevelByName(name string) []*Item {
	return c.topByName[name]
}

// MembersByName returns every impl member with the given plain name.
func (c *Catalog) MembersByName(name string) []*Member {
	return c.membersOf[name]
}

// BlocksForType returns the impl blocks whose implementing type has the
// given plain name.
func (c *Catalog) BlocksForType(name string) []*Item {
	return c.blocksFor[name]
}

// BlocksByQualifiedName returns every impl block whose qualified name
// renders to the given string. Multiple matches are expected when a
// block is split across files.
func (c *Catalog) BlocksByQualifiedName(name string) []*Item {
	return c.blocksByQN[name]
}

// MainOf returns the `main` function of the given crate.
func (c *Catalog) MainOf(crate string) (*Item, error) {
	it, ok := c.mainByCr[crate]
	if !ok {
		return nil, errors.AddContext(errors.Newf(errors.CodeNotFound,
			"crate %s has no main function", crate), errors.CtxCrate, crate)
	}
	return it, nil
}

// Members returns every impl member in catalog order.
func (c *Catalog) Members() []*Member {
	var out []*Member
	for _, it := range c.Items {
		if it.Impl == nil {
			continue
		}
		out = append(out, it.Impl.Members...)
	}
	return out
}

func modulePath(f *parser.File, raw *parser.Item) []string {
	path := append([]string{}, f.FileMod...)
	return append(path, raw.ModulePath...)
}

// plainTypeName reduces a possibly generic type path to its last plain
// segment: "module::MyMap2D<T,X>" becomes "MyMap2D".
func plainTypeName(typ string) string {
	if i := strings.IndexByte(typ, '<'); i >= 0 {
		typ = typ[:i]
	}
	if i := strings.LastIndex(typ, "::"); i >= 0 {
		typ = typ[i+2:]
	}
	return strings.TrimLeft(typ, "&")
}

func normalizeKind(raw, name, file string) (Kind, error) {
	switch raw {
	case "function_item", "function_signature_item":
		return KindFunction, nil
	case "const_item":
		return KindConst, nil
	case "static_item":
		return KindStatic, nil
	case "type_item", "associated_type":
		return KindTypeAlias, nil
	case "struct_item":
		return KindStruct, nil
	case "enum_item":
		return KindEnum, nil
	case "trait_item":
		return KindTrait, nil
	case "mod_item":
		return KindModule, nil
	case "use_declaration":
		return KindUse, nil
	case "impl_item":
		return KindImpl, nil
	case "macro_definition":
		return KindMacro, nil
	default:
		return KindFunction, errors.AddContext(errors.Newf(errors.CodeUnsupportedItemKind,
			"unsupported item kind %q (%s)", raw, name), errors.CtxPath, file)
	}
}
