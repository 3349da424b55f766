// # internal/catalog/item.go
package catalog

import (
	"fmt"
	"strings"

	"rustfuse/internal/parser"
)

// ID is the stable identity of an item, derived from its defining
// module path, name and kind. Impl blocks use their qualified block
// name; repeated blocks with the same qualified name get an ordinal
// suffix since Rust permits several `impl Foo` blocks per module.
type ID string

type Kind int

const (
	KindFunction Kind = iota
	KindConst
	KindStatic
	KindTypeAlias
	KindStruct
	KindEnum
	KindTrait
	KindModule
	KindUse
	KindImpl
	KindMacro
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "fn"
	case KindConst:
		return "const"
	case KindStatic:
		return "static"
	case KindTypeAlias:
		return "type"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindTrait:
		return "trait"
	case KindModule:
		return "mod"
	case KindUse:
		return "use"
	case KindImpl:
		return "impl"
	case KindMacro:
		return "macro"
	}
	return "unknown"
}

// State is the resolution state of an item or impl member. Items start
// unknown; reachability and the resolution engine drive every item to
// Required or Excluded, with Pending only transient within one run.
type State int

const (
	StateUnknown State = iota
	StateRequired
	StateExcluded
	StatePending
)

func (s State) String() string {
	switch s {
	case StateRequired:
		return "required"
	case StateExcluded:
		return "excluded"
	case StatePending:
		return "pending"
	}
	return "unknown"
}

// Item is one top-level declaration. Immutable once the catalog is
// built; resolution state lives outside the catalog.
type Item struct {
	ID         ID
	Kind       Kind
	Name       string
	Crate      string
	ModulePath []string // within the crate, file layout plus inline modules
	Source     string
	Location   parser.Location
	Refs       []string
	Impl       *ImplBlock // non-nil iff Kind == KindImpl
}

// Path is the item's module-qualified name, e.g. "my_crate::action::Action".
func (it *Item) Path() string {
	parts := append([]string{it.Crate}, it.ModulePath...)
	return strings.Join(append(parts, it.Name), "::")
}

// ImplBlock groups the associated items of one `impl` declaration.
type ImplBlock struct {
	Name    BlockName
	Members []*Member // declaration order
}

func (b *ImplBlock) HasTrait() bool {
	return b.Name.Trait != ""
}

// Member is an associated function, constant or type owned by exactly
// one impl block.
type Member struct {
	ID       ID
	Name     string
	Kind     Kind
	Source   string
	Location parser.Location
	Refs     []string
	Owner    *Item
}

// QualifiedName is the member's externally visible identity:
// plain_name@qualified_block_name.
func (m *Member) QualifiedName() string {
	return fmt.Sprintf("%s@%s", m.Name, m.Owner.Impl.Name.String())
}
