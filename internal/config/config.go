// Package config loads optional YAML configuration for the andromap CLI
// and library: default log level, host-symbol overrides, and a library
// search path list. Absence of a file is not an error; the zero value
// matches current behavior.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of an andromap config file.
type Config struct {
	// LogLevel is one of "debug", "info", "warn", "error". It is parsed but
	// not applied: the CLI's -v/-q flags alone set the log level.
	LogLevel string `yaml:"log_level"`

	// Deny lists host-symbol names that should resolve to the
	// undefined_symbol trampoline even though hostabi has a real
	// implementation for them — useful for exercising a guest's own
	// fallback path without rebuilding it.
	Deny []string `yaml:"deny"`

	// SearchPath is an ordered list of library directories. It is parsed
	// but not consulted: the CLI opens a library only by the path given.
	SearchPath []string `yaml:"search_path"`
}

// Load reads and parses path. A missing file returns the zero Config and a
// nil error: config is optional.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Denies reports whether name is in the configured deny list.
func (c Config) Denies(name string) bool {
	for _, d := range c.Deny {
		if d == name {
			return true
		}
	}
	return false
}
