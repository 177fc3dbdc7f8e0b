package config

import (
	"strings"

	"github.com/leapstack-labs/leapflow/pkg/core"
)

// Default configuration values.
const (
	DefaultRawDir     = "raw"
	DefaultRawSchema  = "raw"
	DefaultTargetType = "duckdb"
)

// defaultSchemas is the schema each warehouse type materializes into when
// the target does not name one.
var defaultSchemas = map[string]string{
	"duckdb":   "main",
	"sqlite":   "main",
	"postgres": "public",
}

// DefaultSchemaForType returns the default schema for a warehouse type
// (case-insensitive), "main" when the type is unknown.
func DefaultSchemaForType(dbType string) string {
	if s, ok := defaultSchemas[strings.ToLower(dbType)]; ok {
		return s
	}
	return "main"
}

// ApplyDefaults applies default values to a ProjectConfig.
func ApplyDefaults(c *ProjectConfig) {
	if c == nil {
		return
	}
	if c.RawDir == "" {
		c.RawDir = DefaultRawDir
	}
	if c.RawSchema == "" {
		c.RawSchema = DefaultRawSchema
	}
	if c.CastPolicy == "" {
		c.CastPolicy = string(core.CastLenient)
	}
	if c.Target == nil {
		c.Target = &core.TargetConfig{Type: DefaultTargetType}
	}
	ApplyTargetDefaults(c.Target)
}

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *core.TargetConfig) {
	if t == nil {
		return
	}
	if t.Type == "" {
		t.Type = DefaultTargetType
	}

	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}

	if t.Type == "postgres" {
		if t.Port == 0 {
			t.Port = 5432
		}
	}
}
