// Package config provides configuration management for the leapflow CLI.
//
// This package extends the shared project configuration from internal/config
// with CLI-specific fields: state location, concurrency, environments, output
// mode and the extra data-quality tests declared in leapflow.yaml.
package config

import (
	sharedcfg "github.com/leapstack-labs/leapflow/internal/config"
	"github.com/leapstack-labs/leapflow/internal/validate"
	"github.com/leapstack-labs/leapflow/pkg/core"
)

// TargetConfig is an alias for the shared target configuration.
// This allows CLI code to use config.TargetConfig without importing pkg/core.
type TargetConfig = core.TargetConfig

// ModelConfig is an alias for the shared per-model configuration.
type ModelConfig = sharedcfg.ModelConfig

// Config holds all CLI configuration options.
type Config struct {
	RawDir       string                 `koanf:"raw_dir"`
	RawSchema    string                 `koanf:"raw_schema"`
	StatePath    string                 `koanf:"state_path"`
	Threads      int                    `koanf:"threads"`
	CastPolicy   string                 `koanf:"cast_policy"`
	Models       map[string]ModelConfig `koanf:"models"`
	Target       *TargetConfig          `koanf:"target"`
	Tests        []validate.RuleConfig  `koanf:"tests"`
	Environment  string                 `koanf:"environment"`
	Verbose      bool                   `koanf:"verbose"`
	OutputFormat string                 `koanf:"output"`
	Environments map[string]EnvConfig   `koanf:"environments"`

	// ProjectRoot is the directory relative paths were resolved against
	ProjectRoot string `koanf:"-"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	RawDir     string        `koanf:"raw_dir"`
	RawSchema  string        `koanf:"raw_schema"`
	CastPolicy string        `koanf:"cast_policy"`
	Threads    int           `koanf:"threads"`
	Target     *TargetConfig `koanf:"target"`
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultRawDir    = sharedcfg.DefaultRawDir
	DefaultRawSchema = sharedcfg.DefaultRawSchema
	DefaultStateFile = ".leapflow/state.db"
	DefaultEnv       = "dev"
	DefaultThreads   = 1
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// Project returns the project-level view of the configuration.
func (c *Config) Project() *sharedcfg.ProjectConfig {
	return &sharedcfg.ProjectConfig{
		RawDir:     c.RawDir,
		RawSchema:  c.RawSchema,
		CastPolicy: c.CastPolicy,
		Models:     c.Models,
		Target:     c.Target,
	}
}
