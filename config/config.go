// Package config handles dexedit.toml session configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file dexedit looks for.
const FileName = "dexedit.toml"

// Config represents a dexedit.toml configuration.
type Config struct {
	History   History   `toml:"history"`
	Paging    Paging    `toml:"paging"`
	Decompile Decompile `toml:"decompile"`
	Workspace Workspace `toml:"workspace"`

	// Dir is the directory containing the dexedit.toml file (set at load time).
	Dir string `toml:"-"`
}

// History configures the undo/redo ledger.
type History struct {
	Cap            int  `toml:"cap"`
	AutoCheckpoint bool `toml:"auto-checkpoint"`
}

// Paging configures paged class rendering.
type Paging struct {
	DefaultLimit int `toml:"default-limit"`
}

// Decompile configures decompilation defaults.
type Decompile struct {
	BatchMax   int `toml:"batch-max"`
	MinNameLen int `toml:"min-name-len"`
	MaxNameLen int `toml:"max-name-len"`
}

// Workspace configures checkpoint persistence.
type Workspace struct {
	Database string `toml:"database"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		History:   History{Cap: 50},
		Paging:    Paging{DefaultLimit: 8000},
		Decompile: Decompile{BatchMax: 20, MinNameLen: 2, MaxNameLen: 64},
	}
}

// Load parses a dexedit.toml file from the given directory. Missing
// fields keep their defaults.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if c.History.Cap <= 0 {
		c.History.Cap = 50
	}
	if c.Decompile.BatchMax <= 0 {
		c.Decompile.BatchMax = 20
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a dexedit.toml file,
// then loads and returns the config. Returns the defaults if no file
// is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// DatabasePath resolves the workspace database location: the
// configured path (relative to the config dir when not absolute), or
// a dexedit directory under the user config dir.
func (c *Config) DatabasePath() (string, error) {
	if c.Workspace.Database != "" {
		if filepath.IsAbs(c.Workspace.Database) || c.Dir == "" {
			return c.Workspace.Database, nil
		}
		return filepath.Join(c.Dir, c.Workspace.Database), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve config dir: %w", err)
	}
	return filepath.Join(base, "dexedit", "workspace.db"), nil
}
