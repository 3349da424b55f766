// # internal/config/config.go
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"rustfuse/internal/core/errors"
)

type Config struct {
	Crates  Crates  `toml:"crates"`
	Exclude Exclude `toml:"exclude"`
	Output  Output  `toml:"output"`
	Watch   Watch   `toml:"watch"`
	History History `toml:"history"`
	Items   RuleSet `toml:"impl_items"`
	Blocks  RuleSet `toml:"impl_blocks"`
}

type Crates struct {
	Binary    string   `toml:"binary"`
	Libraries []string `toml:"libraries"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Output struct {
	File string `toml:"file"`
	DOT  string `toml:"dot"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type History struct {
	Path string `toml:"path"`
}

// RuleSet holds include and exclude patterns for impl members or for
// whole impl blocks. Pattern forms:
//
//	name                      plain item name
//	name@qualified_block      item within one specific block
//	*@qualified_block         every item of the block
//
// A bare `*` is rejected: the wildcard only makes sense with a block
// qualifier.
type RuleSet struct {
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

// Load reads the configuration from path and applies defaults. A
// missing file yields the defaults alone, so running without a config
// is always possible.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError,
			"cannot read config"), errors.CtxPath, path)
	default:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError,
				"malformed config"), errors.CtxPath, path)
		}
	}

	applyDefaults(&cfg)

	if err := validatePatterns(&cfg); err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Output.File == "" {
		cfg.Output.File = "fusion.rs"
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{"target", ".git"}
	}
}

// Save writes the configuration back to path, atomically via a
// temporary file in the same directory. Used to persist interactive
// decisions.
func Save(cfg *Config, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml")
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "cannot create temp config")
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.CodeInternal, "cannot encode config")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "cannot close temp config")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeInternal,
			"cannot replace config"), errors.CtxPath, path)
	}
	return nil
}

func validatePatterns(cfg *Config) error {
	for _, p := range append(append([]string{}, cfg.Items.Include...), cfg.Items.Exclude...) {
		if err := CheckPattern(p); err != nil {
			return err
		}
	}
	for _, p := range append(append([]string{}, cfg.Blocks.Include...), cfg.Blocks.Exclude...) {
		if err := CheckPattern(p); err != nil {
			return err
		}
	}
	return nil
}

// CheckPattern validates pattern syntax without resolving it against a
// catalog.
func CheckPattern(p string) error {
	name, block, qualified := strings.Cut(p, "@")
	switch {
	case name == "":
		return errors.AddContext(errors.New(errors.CodeValidationError,
			"pattern misses an item name"), errors.CtxPattern, p)
	case name == "*" && !qualified:
		return errors.AddContext(errors.New(errors.CodeValidationError,
			"wildcard pattern needs a block qualifier"), errors.CtxPattern, p)
	case qualified && block == "":
		return errors.AddContext(errors.New(errors.CodeValidationError,
			"pattern misses its block qualifier"), errors.CtxPattern, p)
	case qualified && !strings.HasPrefix(block, "impl"):
		return errors.AddContext(errors.New(errors.CodeValidationError,
			"block qualifier must be a qualified impl block name"), errors.CtxPattern, p)
	}
	return nil
}
