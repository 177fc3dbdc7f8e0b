package config

import (
	"fmt"
	"os"

	intconfig "github.com/leapstack-labs/leapflow/internal/config"
	"github.com/leapstack-labs/leapflow/internal/models"
	"github.com/leapstack-labs/leapflow/internal/validate"
)

// DefaultSchemaForType returns the default schema for a warehouse type.
// This is a convenience wrapper that delegates to the shared config function.
func DefaultSchemaForType(dbType string) string {
	return intconfig.DefaultSchemaForType(dbType)
}

// validOutputs are the accepted values of the output key.
var validOutputs = map[string]bool{
	"auto":     true,
	"text":     true,
	"markdown": true,
	"json":     true,
}

// Validate checks if the configuration is valid.
// It does not touch the filesystem, so help and dag work without raw data.
func (c *Config) Validate() error {
	if c.RawSchema == "" {
		return fmt.Errorf("raw_schema is required")
	}
	if c.Threads < 0 {
		return fmt.Errorf("threads must be >= 0, got %d", c.Threads)
	}
	if c.OutputFormat != "" && !validOutputs[c.OutputFormat] {
		return fmt.Errorf("output: unknown format %q (want auto, text, markdown or json)", c.OutputFormat)
	}
	if _, err := c.ModelOptions(); err != nil {
		return err
	}
	if _, err := c.Rules(); err != nil {
		return err
	}
	return nil
}

// ValidateDirectories checks if required directories exist.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.RawDir); os.IsNotExist(err) {
		return fmt.Errorf("raw directory does not exist: %s\nHint: Create the directory or use --raw-dir to specify a different path", c.RawDir)
	}
	return nil
}

// ModelOptions returns the pipeline options described by the config.
func (c *Config) ModelOptions() (models.Options, error) {
	def, overrides, err := c.Project().CastPolicies()
	if err != nil {
		return models.Options{}, err
	}
	return models.Options{CastPolicy: def, Overrides: overrides}, nil
}

// Rules returns the extra data-quality tests declared under tests.
func (c *Config) Rules() ([]validate.Rule, error) {
	return validate.RulesFromConfig(c.Tests)
}
