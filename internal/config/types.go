// Package config provides the project configuration shared by the CLI and
// anything else that needs to locate a leapflow project and its warehouse.
// It is decoupled from flag and environment handling.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapflow/pkg/adapter"
	"github.com/leapstack-labs/leapflow/pkg/core"
)

// ModelConfig holds per-model overrides.
type ModelConfig struct {
	CastPolicy string `koanf:"cast_policy"`
}

// ProjectConfig is the project-level part of leapflow.yaml.
type ProjectConfig struct {
	RawDir     string                 `koanf:"raw_dir"`
	RawSchema  string                 `koanf:"raw_schema"`
	CastPolicy string                 `koanf:"cast_policy"`
	Models     map[string]ModelConfig `koanf:"models"`
	Target     *core.TargetConfig     `koanf:"target"`
}

// ApplyDefaults fills unset fields.
func (c *ProjectConfig) ApplyDefaults() {
	ApplyDefaults(c)
}

// CastPolicies returns the default cast policy and the per-model overrides.
func (c *ProjectConfig) CastPolicies() (core.CastPolicy, map[string]core.CastPolicy, error) {
	def, ok := core.ParseCastPolicy(c.CastPolicy)
	if !ok {
		return "", nil, fmt.Errorf("cast_policy: unknown policy %q (want lenient or strict)", c.CastPolicy)
	}

	var overrides map[string]core.CastPolicy
	for name, m := range c.Models {
		if m.CastPolicy == "" {
			continue
		}
		p, ok := core.ParseCastPolicy(m.CastPolicy)
		if !ok {
			return "", nil, fmt.Errorf("models.%s.cast_policy: unknown policy %q (want lenient or strict)", name, m.CastPolicy)
		}
		if overrides == nil {
			overrides = make(map[string]core.CastPolicy)
		}
		overrides[name] = p
	}
	return def, overrides, nil
}

// ValidateTarget checks that the target names a registered adapter and
// carries what that adapter needs to connect.
func ValidateTarget(t *core.TargetConfig) error {
	if t == nil {
		return fmt.Errorf("target is required")
	}
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}

	t.Type = strings.ToLower(t.Type)
	if !adapter.IsRegistered(t.Type) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}

	if t.Type == "postgres" {
		if t.Host == "" {
			return fmt.Errorf("postgres target requires host")
		}
		if t.Database == "" {
			return fmt.Errorf("postgres target requires database")
		}
	}
	if t.Port < 0 || t.Port > 65535 {
		return fmt.Errorf("target port %d out of range", t.Port)
	}
	return nil
}
