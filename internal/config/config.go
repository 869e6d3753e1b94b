// Package config handles layered YAML configuration with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all snapdash configuration.
type Config struct {
	Tool Tool `yaml:"tool"`
	UI   UI   `yaml:"ui"`
}

// Tool holds backend invocation settings.
type Tool struct {
	Binary string `yaml:"binary"` // Backend binary name.
	Config string `yaml:"config"` // Backend config selector, "" for default.
	Sudo   bool   `yaml:"sudo"`   // Elevate write operations via sudo.
}

// UI holds dashboard presentation settings.
type UI struct {
	DefaultSort   string `yaml:"default_sort"` // "number" | "type" | "date" | "user" | "space"
	SortAscending bool   `yaml:"sort_ascending"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Tool: Tool{
			Binary: "snapper",
			Sudo:   true,
		},
		UI: UI{
			DefaultSort:   "number",
			SortAscending: true,
		},
	}
}

// Load reads a single YAML config file at path and returns a Config.
// For merging multiple config sources, use LoadLayered instead.
// If the file does not exist, defaults are returned without error.
// If the file contains invalid YAML or unknown fields, an error is returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return &cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing files are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if c.Tool.Binary == "" {
		return errors.New("config: tool.binary cannot be empty")
	}
	switch c.UI.DefaultSort {
	case "", "number", "type", "date", "user", "space":
		// valid
	default:
		return fmt.Errorf("config: ui.default_sort must be one of number, type, date, user, space, got %q", c.UI.DefaultSort)
	}
	return nil
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: SNAPDASH_BINARY, SNAPDASH_CONFIG, SNAPDASH_SUDO.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("SNAPDASH_BINARY"); v != "" {
		c.Tool.Binary = v
	}
	if v := os.Getenv("SNAPDASH_CONFIG"); v != "" {
		c.Tool.Config = v
	}
	if v := os.Getenv("SNAPDASH_SUDO"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid SNAPDASH_SUDO %q: %w", v, err)
		}
		c.Tool.Sudo = b
	}
	return nil
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	Tool *rawTool `yaml:"tool"`
	UI   *rawUI   `yaml:"ui"`
}

type rawTool struct {
	Binary *string `yaml:"binary"`
	Config *string `yaml:"config"`
	Sudo   *bool   `yaml:"sudo"`
}

type rawUI struct {
	DefaultSort   *string `yaml:"default_sort"`
	SortAscending *bool   `yaml:"sort_ascending"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
func (c *Config) merge(layer *rawConfig) {
	if layer.Tool != nil {
		if layer.Tool.Binary != nil {
			c.Tool.Binary = *layer.Tool.Binary
		}
		if layer.Tool.Config != nil {
			c.Tool.Config = *layer.Tool.Config
		}
		if layer.Tool.Sudo != nil {
			c.Tool.Sudo = *layer.Tool.Sudo
		}
	}
	if layer.UI != nil {
		if layer.UI.DefaultSort != nil {
			c.UI.DefaultSort = *layer.UI.DefaultSort
		}
		if layer.UI.SortAscending != nil {
			c.UI.SortAscending = *layer.UI.SortAscending
		}
	}
}
