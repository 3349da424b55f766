// # internal/catalog/qualname.go
package catalog

import (
	"strings"
	"unicode"

	"rustfuse/internal/core/errors"
)

// BlockName is the structured form of a fully qualified impl block
// name. Every component is stored with its internal whitespace removed;
// the rendered form is the components joined by single spaces, with the
// literal `for` separating trait and type:
//
//	impl<T:Copy+Clone,constN:usize> Default for MyArray<T,N> whereT:Copy,
//
// Only the type component is mandatory.
type BlockName struct {
	Generics string // includes the angle brackets, e.g. "<T:Copy>"
	Trait    string
	Type     string
	Where    string // includes the leading "where"
}

func (n BlockName) HasTrait() bool {
	return n.Trait != ""
}

func (n BlockName) String() string {
	var sb strings.Builder
	sb.WriteString("impl")
	sb.WriteString(n.Generics)
	if n.Trait != "" {
		sb.WriteString(" ")
		sb.WriteString(n.Trait)
		sb.WriteString(" for")
	}
	sb.WriteString(" ")
	sb.WriteString(n.Type)
	if n.Where != "" {
		sb.WriteString(" ")
		sb.WriteString(n.Where)
	}
	return sb.String()
}

// NewBlockName normalizes raw source fragments into a BlockName.
func NewBlockName(generics, trait, typ, where string) BlockName {
	return BlockName{
		Generics: stripSpace(generics),
		Trait:    stripSpace(trait),
		Type:     stripSpace(typ),
		Where:    stripSpace(where),
	}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// ParseBlockName parses the textual form back into its components. The
// grammar is `impl [generics] [trait_path for] type_path [where_clause]`
// with components separated by whitespace; the parser is tolerant of
// extra internal whitespace, which is stripped during normalization.
func ParseBlockName(s string) (BlockName, error) {
	p := &blockNameParser{input: strings.TrimSpace(s)}
	return p.parse()
}

type blockNameParser struct {
	input string
	pos   int
}

func (p *blockNameParser) parse() (BlockName, error) {
	var name BlockName

	if !strings.HasPrefix(p.input, "impl") {
		return name, errors.Newf(errors.CodeValidationError,
			"impl block name must start with 'impl': %q", p.input)
	}
	p.pos = len("impl")

	if p.peek() == '<' {
		generics, err := p.balanced()
		if err != nil {
			return name, err
		}
		name.Generics = stripSpace(generics)
	}

	rest := p.input[p.pos:]
	if forIdx := indexTopLevel(rest, " for "); forIdx >= 0 {
		name.Trait = stripSpace(rest[:forIdx])
		rest = rest[forIdx+len(" for "):]
	}

	if whereIdx := indexTopLevelWord(rest, "where"); whereIdx >= 0 {
		name.Where = stripSpace(rest[whereIdx:])
		rest = rest[:whereIdx]
	}

	name.Type = stripSpace(rest)
	if name.Type == "" {
		return name, errors.Newf(errors.CodeValidationError,
			"impl block name misses its type path: %q", p.input)
	}
	return name, nil
}

func (p *blockNameParser) peek() byte {
	for i := p.pos; i < len(p.input); i++ {
		if !unicode.IsSpace(rune(p.input[i])) {
			p.pos = i
			return p.input[i]
		}
	}
	return 0
}

// balanced consumes one angle-bracket delimited region.
func (p *blockNameParser) balanced() (string, error) {
	start := p.pos
	depth := 0
	for i := p.pos; i < len(p.input); i++ {
		switch p.input[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				p.pos = i + 1
				return p.input[start : i+1], nil
			}
		}
	}
	return "", errors.Newf(errors.CodeValidationError,
		"unbalanced angle brackets in impl block name: %q", p.input)
}

// indexTopLevel finds sep outside any bracketed region.
func indexTopLevel(s, sep string) int {
	depth := 0
	for i := 0; i+len(sep) <= len(s); i++ {
		switch s[i] {
		case '<', '(', '[':
			depth++
		case '>', ')', ']':
			depth--
		}
		if depth == 0 && strings.HasPrefix(s[i:], sep) {
			return i
		}
	}
	return -1
}

// indexTopLevelWord finds the start of a word at bracket depth zero,
// accepting both " where " and the normalized glued "whereT:..." form
// when it follows a space.
func indexTopLevelWord(s, word string) int {
	depth := 0
	for i := 0; i+len(word) <= len(s); i++ {
		switch s[i] {
		case '<', '(', '[':
			depth++
		case '>', ')', ']':
			depth--
		}
		if depth != 0 || !strings.HasPrefix(s[i:], word) {
			continue
		}
		if i > 0 && !unicode.IsSpace(rune(s[i-1])) {
			continue
		}
		return i
	}
	return -1
}
