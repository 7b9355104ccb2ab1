// Package config loads the optional .flowlens.yml workspace configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the workspace configuration file looked up at the root.
const FileName = ".flowlens.yml"

// Config controls workspace discovery and indexing.
type Config struct {
	// SourceDirs restricts discovery to these directories relative to the
	// workspace root. Empty means the whole workspace.
	SourceDirs []string `yaml:"source_dirs"`
	// Exclude lists path prefixes (relative to root) to skip.
	Exclude []string `yaml:"exclude"`
	// IndexDB is the symbol index database path, relative to root unless
	// absolute.
	IndexDB string `yaml:"index_db"`
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadRoot loads the workspace config from root, returning an empty config
// when the file does not exist.
func LoadRoot(root string) (*Config, error) {
	path := filepath.Join(root, FileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Config{}, nil
	}
	return Load(path)
}
