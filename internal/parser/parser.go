// # internal/parser/parser.go
package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type Parser struct {
	loader     *GrammarLoader
	extractors map[string]Extractor // language -> extractor
}

type Extractor interface {
	Extract(node *sitter.Node, source []byte, filePath string) (*File, error)
}

func NewParser(loader *GrammarLoader) *Parser {
	return &Parser{
		loader:     loader,
		extractors: make(map[string]Extractor),
	}
}

func (p *Parser) RegisterExtractor(lang string, e Extractor) {
	p.extractors[lang] = e
}

func (p *Parser) ParseFile(path string, content []byte) (*File, error) {
	lang := p.detectLanguage(path)
	if lang == "" {
		return nil, errors.New("unsupported language")
	}

	grammar := p.loader.Language(lang)
	if grammar == nil {
		return nil, fmt.Errorf("grammar not loaded: %s", lang)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, errors.New("parse failed")
	}
	defer tree.Close()

	root := tree.RootNode()

	extractor := p.extractors[lang]
	if extractor == nil {
		return nil, fmt.Errorf("no extractor for: %s", lang)
	}

	file, err := extractor.Extract(root, content, path)
	if err != nil {
		return nil, err
	}
	file.FileMod = fileModulePath(path)
	return file, nil
}

func (p *Parser) detectLanguage(path string) string {
	if filepath.Ext(path) == ".rs" {
		return "rust"
	}
	return ""
}

// fileModulePath derives the module path of a file from its location
// under the crate's src directory: src/lib.rs and src/main.rs map to the
// crate root, src/foo.rs and src/foo/mod.rs map to [foo], and
// src/foo/bar.rs maps to [foo, bar].
func fileModulePath(path string) []string {
	norm := filepath.ToSlash(path)
	idx := strings.LastIndex(norm, "/src/")
	var rel string
	if idx >= 0 {
		rel = norm[idx+len("/src/"):]
	} else {
		rel = filepath.Base(norm)
	}

	rel = strings.TrimSuffix(rel, ".rs")
	parts := strings.Split(rel, "/")

	if n := len(parts); n > 0 {
		switch parts[n-1] {
		case "lib", "main", "mod":
			parts = parts[:n-1]
		}
	}

	if len(parts) == 0 {
		return nil
	}
	return parts
}
