// Package config loads the .arbor.toml project configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
)

// FileName is the configuration file looked up in a project root.
const FileName = ".arbor.toml"

// Config is the project configuration.
type Config struct {
	// Root is the directory analyzed. Relative roots are resolved against the
	// directory holding the configuration file.
	Root string `toml:"root"`
	// Workers bounds concurrent file analysis. 0 means one per CPU.
	Workers int `toml:"workers"`
	// IncludeExtensions restricts discovery to these extensions (no dot).
	// Empty means every extension some analyzer supports.
	IncludeExtensions []string `toml:"include_extensions"`
	// ExcludePatterns are doublestar globs relative to Root.
	ExcludePatterns []string `toml:"exclude_patterns"`
	// CachePath is the SQLite analysis cache. Empty disables caching.
	CachePath string `toml:"cache_path"`
	// Scripts plug extra languages in through scripted analyzers.
	Scripts []Script `toml:"scripts"`
}

// Script configures one scripted analyzer.
type Script struct {
	Language string `toml:"language"`
	// Extensions default to the grammar's usual ones when empty.
	Extensions []string `toml:"extensions"`
	// Grammar is the tree-sitter grammar name, e.g. "go" or "python".
	Grammar string `toml:"grammar"`
	// Path is the Risor script; relative paths are resolved against the
	// configuration file's directory.
	Path string `toml:"script"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Root:            ".",
		ExcludePatterns: []string{"target/**", "**/.git/**"},
		CachePath:       filepath.Join(".arbor", "cache.db"),
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// LoadDir loads dir/.arbor.toml, or returns the defaults rooted at dir when
// the file does not exist.
func LoadDir(dir string) (*Config, error) {
	cfg, err := Load(filepath.Join(dir, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		cfg.resolvePaths(dir)
		return cfg, nil
	}
	return cfg, err
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	for _, p := range c.ExcludePatterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	for i, s := range c.Scripts {
		switch {
		case s.Language == "":
			return fmt.Errorf("scripts[%d]: language is required", i)
		case s.Grammar == "":
			return fmt.Errorf("scripts[%d] (%s): grammar is required", i, s.Language)
		case s.Path == "":
			return fmt.Errorf("scripts[%d] (%s): script is required", i, s.Language)
		}
	}
	return nil
}

// Extensions returns IncludeExtensions normalized to lower case without dots.
func (c *Config) Extensions() []string {
	out := make([]string, 0, len(c.IncludeExtensions))
	for _, e := range c.IncludeExtensions {
		out = append(out, strings.ToLower(strings.TrimPrefix(e, ".")))
	}
	return out
}

func (c *Config) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Root = abs(c.Root)
	c.CachePath = abs(c.CachePath)
	for i := range c.Scripts {
		c.Scripts[i].Path = abs(c.Scripts[i].Path)
	}
}
