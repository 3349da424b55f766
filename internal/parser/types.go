// # internal/parser/types.go
package parser

import (
	"time"
)

// File is one parsed Rust source file. Items hold every top-level
// declaration, including declarations nested in inline modules; the
// nesting is recorded in each item's ModulePath.
type File struct {
	Path     string
	Crate    string   // crate name, filled by the scanner
	FileMod  []string // module path derived from file layout (src/a/b.rs -> [a, b])
	Items    []Item
	ParsedAt time.Time
}

// Item is a single top-level declaration as the grammar saw it. Kind is
// the raw tree-sitter node kind; normalization into the supported set
// happens in the catalog.
type Item struct {
	Kind       string
	Name       string
	ModulePath []string // inline module nesting within the file
	Source     string   // raw source text of the declaration
	Location   Location
	Refs       []string // plain-name references from signature and body

	// impl blocks only
	Generics string
	Trait    string
	Type     string
	Where    string
	Members  []Member
}

// Member is an associated item owned by an impl block.
type Member struct {
	Kind     string
	Name     string
	Source   string
	Location Location
	Refs     []string
}

type Location struct {
	File   string
	Line   int
	Column int
}
