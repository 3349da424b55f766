// # internal/policy/pattern.go
package policy

import (
	"strings"

	"rustfuse/internal/catalog"
	"rustfuse/internal/core/errors"
)

// Pattern selects impl members. Three forms exist:
//
//	name                      one member by plain name
//	name@qualified_block      one member within a specific block
//	*@qualified_block         every member of the block
//
// A qualified block name can match several catalog blocks when the
// block is split across files; the pattern then selects members from
// all of them.
type Pattern struct {
	Name  string // "*" for the wildcard form
	Block string // empty when unqualified
	raw   string
}

func ParsePattern(raw string) (Pattern, error) {
	name, block, qualified := strings.Cut(raw, "@")
	p := Pattern{Name: name, Block: block, raw: raw}
	switch {
	case name == "":
		return p, errors.AddContext(errors.New(errors.CodeValidationError,
			"pattern misses an item name"), errors.CtxPattern, raw)
	case name == "*" && !qualified:
		return p, errors.AddContext(errors.New(errors.CodeValidationError,
			"wildcard pattern needs a block qualifier"), errors.CtxPattern, raw)
	case qualified && block == "":
		return p, errors.AddContext(errors.New(errors.CodeValidationError,
			"pattern misses its block qualifier"), errors.CtxPattern, raw)
	}
	if qualified {
		// The config author may spell the qualifier with whitespace the
		// catalog strips; normalize so both spellings hit the index.
		bn, err := catalog.ParseBlockName(block)
		if err != nil {
			return p, errors.AddContext(err, errors.CtxPattern, raw)
		}
		p.Block = bn.String()
	}
	return p, nil
}

func (p Pattern) String() string {
	return p.raw
}

// Resolve expands the pattern into concrete member IDs. An unqualified
// plain name that matches members of more than one block is an error:
// the config author must add a block qualifier to say which one is
// meant.
func (p Pattern) Resolve(cat *catalog.Catalog) ([]catalog.ID, error) {
	if p.Block != "" {
		return p.resolveQualified(cat)
	}

	members := cat.MembersByName(p.Name)
	if len(members) == 0 {
		return nil, nil
	}
	blocks := make(map[string]bool)
	for _, m := range members {
		blocks[m.Owner.Name] = true
	}
	if len(blocks) > 1 {
		return nil, errors.AddContext(errors.Newf(errors.CodeAmbiguousImplItem,
			"%s exists in %d impl blocks, qualify it as name@block", p.Name, len(blocks)),
			errors.CtxPattern, p.raw)
	}
	ids := make([]catalog.ID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (p Pattern) resolveQualified(cat *catalog.Catalog) ([]catalog.ID, error) {
	var ids []catalog.ID
	for _, block := range cat.BlocksByQualifiedName(p.Block) {
		for _, m := range block.Impl.Members {
			if p.Name == "*" || m.Name == p.Name {
				ids = append(ids, m.ID)
			}
		}
	}
	return ids, nil
}
