// Package config provides shared configuration types for SQLFlow.
// This package is decoupled from CLI concerns so other tools can load
// project configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/giaosudau/sqlflow/internal/adapter"
)

// TargetConfig holds storage engine target configuration.
type TargetConfig struct {
	Type string `koanf:"type"` // duckdb, postgres

	// File-based engines (DuckDB)
	Database string `koanf:"database"` // file path or database name

	// Network engines
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Common
	Schema string `koanf:"schema"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`
}

// Validate checks if the target configuration names an available engine.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return fmt.Errorf("unknown target type %q (available: %v)", t.Type, adapter.ListEngines())
	}
	return nil
}

// AdapterConfig converts the target to an engine connection config.
func (t *TargetConfig) AdapterConfig() adapter.Config {
	return adapter.Config{
		Type:     strings.ToLower(t.Type),
		Path:     t.Database,
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
	}
}

// Profile is a named set of variable bindings and an optional target
// override, selected with --profile.
type Profile struct {
	Variables map[string]string `koanf:"variables"`
	Target    *TargetConfig     `koanf:"target"`
}

// ProjectConfig holds the project-level configuration loaded from
// sqlflow.yaml.
type ProjectConfig struct {
	// PipelinesDir is where .sf files live, relative to the project root.
	PipelinesDir string `koanf:"pipelines_dir"`

	// StatePath is the SQLite file tracking runs and watermarks.
	StatePath string `koanf:"state_path"`

	Target    *TargetConfig      `koanf:"target"`
	Profiles  map[string]Profile `koanf:"profiles"`
	Variables map[string]string  `koanf:"variables"`
}

// ProfileVariables returns project variables overlaid with the named
// profile's variables. An unknown profile name is an error; the empty
// name selects just the project-level variables.
func (c *ProjectConfig) ProfileVariables(name string) (map[string]string, error) {
	merged := make(map[string]string, len(c.Variables))
	for k, v := range c.Variables {
		merged[k] = v
	}
	if name == "" {
		return merged, nil
	}
	profile, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	for k, v := range profile.Variables {
		merged[k] = v
	}
	return merged, nil
}

// ProfileTarget returns the effective target for a profile, falling back
// to the project target when the profile has no override.
func (c *ProjectConfig) ProfileTarget(name string) *TargetConfig {
	if name != "" {
		if profile, ok := c.Profiles[name]; ok && profile.Target != nil {
			return profile.Target
		}
	}
	return c.Target
}
