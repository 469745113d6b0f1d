// Package config loads and saves topgen's project configuration: the
// knobs that control directory walking, default instance naming, the
// child-module source suffixes of spec.md §6, and width inference.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the top-level configuration for topgen.
type Config struct {
	// InstancePrefix is prepended to a module's name to form the default
	// instance name when a child module doesn't carry one already.
	InstancePrefix string `json:"instancePrefix,omitempty"`

	// SourceSuffixes lists the file extensions treated as child module
	// source next to a directory (spec.md §6 directory convention).
	SourceSuffixes []string `json:"sourceSuffixes,omitempty"`

	// IgnorePatterns excludes matching paths from the directory walk.
	IgnorePatterns []string `json:"ignorePatterns,omitempty"`

	// Inference controls the width-inference and registry defaults.
	Inference InferenceConfig `json:"inference,omitempty"`
}

// InferenceConfig contains width-inference and wire-registry options.
type InferenceConfig struct {
	// InoutDualRegister registers inout ports as both driver and load
	// (spec.md §9 REDESIGN FLAGS: load-only treatment is "almost
	// certainly wrong"). Defaults to true.
	InoutDualRegister *bool `json:"inoutDualRegister,omitempty"`

	// StrictUnsolvable turns Unsolvable width systems into a hard error
	// for the affected module instead of a logged warning.
	StrictUnsolvable bool `json:"strictUnsolvable,omitempty"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		InstancePrefix: "u_",
		SourceSuffixes: []string{".v", ".sv"},
		IgnorePatterns: []string{},
		Inference: InferenceConfig{
			InoutDualRegister: boolPtr(true),
			StrictUnsolvable:  false,
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file.
// Search order:
//  1. ./topgen.json (current working directory)
//  2. ./.topgen.json (current working directory)
//  3. <rootPath>/topgen.json (if different from cwd)
//  4. <rootPath>/.topgen.json (if different from cwd)
//  5. ~/.config/topgen/config.json
//
// Returns DefaultConfig if no config file is found.
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, "topgen.json"),
		filepath.Join(cwd, ".topgen.json"),
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(rootPath, "topgen.json"),
				filepath.Join(rootPath, ".topgen.json"),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "topgen", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults.
func (c *Config) applyDefaults() {
	if c.InstancePrefix == "" {
		c.InstancePrefix = "u_"
	}
	if len(c.SourceSuffixes) == 0 {
		c.SourceSuffixes = []string{".v", ".sv"}
	}
	if c.Inference.InoutDualRegister == nil {
		c.Inference.InoutDualRegister = boolPtr(true)
	}
}

// Save writes the configuration to a file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// InoutDualRegister reports whether inout ports register as both driver
// and load.
func (c *Config) InoutDualRegister() bool {
	return c.Inference.InoutDualRegister == nil || *c.Inference.InoutDualRegister
}

// IsSourceFile reports whether filePath carries one of the configured
// child-module source suffixes.
func (c *Config) IsSourceFile(filePath string) bool {
	ext := filepath.Ext(filePath)
	for _, suffix := range c.SourceSuffixes {
		if ext == suffix {
			return true
		}
	}
	return false
}

// ShouldIgnoreFile checks if a file should be skipped entirely during the
// directory walk.
func (c *Config) ShouldIgnoreFile(filePath string) bool {
	for _, pattern := range c.IgnorePatterns {
		if matched, _ := filepath.Match(pattern, filePath); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(filePath)); matched {
			return true
		}
	}
	return false
}
