// # internal/app/scan.go
package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"

	"rustfuse/internal/config"
	"rustfuse/internal/core/errors"
	"rustfuse/internal/parser"
	"rustfuse/internal/shared/observability"
)

// Scanner discovers and parses the Rust sources of one crate tree.
type Scanner struct {
	parser       *parser.Parser
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	log          *slog.Logger
}

func NewScanner(exclude config.Exclude, log *slog.Logger) (*Scanner, error) {
	if log == nil {
		log = slog.Default()
	}
	p := parser.NewParser(parser.NewGrammarLoader())
	p.RegisterExtractor("rust", parser.NewRustExtractor())

	s := &Scanner{parser: p, log: log}
	for _, pattern := range exclude.Dirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError,
				"bad exclude dir pattern"), errors.CtxPattern, pattern)
		}
		s.excludeDirs = append(s.excludeDirs, g)
	}
	for _, pattern := range exclude.Files {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError,
				"bad exclude file pattern"), errors.CtxPattern, pattern)
		}
		s.excludeFiles = append(s.excludeFiles, g)
	}
	return s, nil
}

type cargoManifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
}

// CrateName reads the crate name from the Cargo manifest, falling back
// to the directory name.
func CrateName(root string) string {
	var manifest cargoManifest
	if _, err := toml.DecodeFile(filepath.Join(root, "Cargo.toml"), &manifest); err == nil {
		if manifest.Package.Name != "" {
			// Cargo maps dashes to underscores for the crate identifier.
			return strings.ReplaceAll(manifest.Package.Name, "-", "_")
		}
	}
	return strings.ReplaceAll(filepath.Base(root), "-", "_")
}

// ScanCrate parses every Rust source under the crate's src directory,
// in deterministic path order.
func (s *Scanner) ScanCrate(root string) ([]*parser.File, string, error) {
	crate := CrateName(root)
	srcDir := filepath.Join(root, "src")
	if _, err := os.Stat(srcDir); err != nil {
		return nil, crate, errors.AddContext(errors.Wrap(err, errors.CodeNotFound,
			"crate has no src directory"), errors.CtxCrate, crate)
	}

	var files []*parser.File
	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if s.shouldExcludeDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".rs") || s.shouldExcludeFile(path) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		start := time.Now()
		file, err := s.parser.ParseFile(path, content)
		if err != nil {
			return errors.AddContext(errors.Wrap(err, errors.CodeInternal,
				"parse failed"), errors.CtxPath, path)
		}
		observability.ParsingDuration.WithLabelValues(crate).Observe(time.Since(start).Seconds())

		file.Crate = crate
		files = append(files, file)
		s.log.Debug("parsed file", "path", path, "items", len(file.Items))
		return nil
	})
	if err != nil {
		return nil, crate, err
	}

	s.log.Info("scanned crate", "crate", crate, "files", len(files))
	return files, crate, nil
}

func (s *Scanner) shouldExcludeDir(path string) bool {
	base := filepath.Base(path)
	for _, g := range s.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (s *Scanner) shouldExcludeFile(path string) bool {
	base := filepath.Base(path)
	for _, g := range s.excludeFiles {
		if g.Match(base) {
			return true
		}
	}
	return false
}
