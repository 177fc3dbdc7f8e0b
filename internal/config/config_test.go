package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapflow/pkg/adapter"
	_ "github.com/leapstack-labs/leapflow/pkg/adapters/sqlite"
	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, ConfigFileName, `
raw_dir: data/raw
cast_policy: strict
models:
  stg_reviews:
    cast_policy: lenient
target:
  type: sqlite
  database: warehouse.db
`)

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "data/raw", cfg.RawDir)
	assert.Equal(t, DefaultRawSchema, cfg.RawSchema)
	assert.Equal(t, "sqlite", cfg.Target.Type)
	assert.Equal(t, "main", cfg.Target.Schema, "schema defaults per target type")

	def, overrides, err := cfg.CastPolicies()
	require.NoError(t, err)
	assert.Equal(t, core.CastStrict, def)
	assert.Equal(t, map[string]core.CastPolicy{"stg_reviews": core.CastLenient}, overrides)
}

func TestLoadFromDir_NoConfig(t *testing.T) {
	cfg, err := LoadFromDir(t.TempDir())
	assert.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadFromDir_AltName(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, ConfigFileNameAlt, "raw_dir: elsewhere\n")

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "elsewhere", cfg.RawDir)
	assert.Equal(t, DefaultTargetType, cfg.Target.Type)
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, ConfigFileName, "raw_dir: raw\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	assert.Equal(t, root, FindProjectRoot(nested))
	assert.Equal(t, "", FindProjectRoot(t.TempDir()))
}

func TestCastPolicies_Rejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  ProjectConfig
	}{
		{name: "unknown default", cfg: ProjectConfig{CastPolicy: "loose"}},
		{name: "unknown override", cfg: ProjectConfig{
			CastPolicy: "lenient",
			Models:     map[string]ModelConfig{"stg_listings": {CastPolicy: "never"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.cfg.CastPolicies()
			assert.Error(t, err)
		})
	}
}

func TestApplyTargetDefaults(t *testing.T) {
	tests := []struct {
		name       string
		target     core.TargetConfig
		wantSchema string
		wantPort   int
	}{
		{name: "duckdb", target: core.TargetConfig{Type: "duckdb"}, wantSchema: "main"},
		{name: "postgres", target: core.TargetConfig{Type: "postgres"}, wantSchema: "public", wantPort: 5432},
		{name: "explicit schema kept", target: core.TargetConfig{Type: "postgres", Schema: "analytics", Port: 6543}, wantSchema: "analytics", wantPort: 6543},
		{name: "empty type", target: core.TargetConfig{}, wantSchema: "main"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := tt.target
			ApplyTargetDefaults(&target)
			assert.Equal(t, tt.wantSchema, target.Schema)
			assert.Equal(t, tt.wantPort, target.Port)
		})
	}
}

func TestValidateTarget(t *testing.T) {
	tests := []struct {
		name    string
		target  *core.TargetConfig
		wantErr bool
	}{
		{name: "nil", target: nil, wantErr: true},
		{name: "empty type", target: &core.TargetConfig{}, wantErr: true},
		{name: "sqlite", target: &core.TargetConfig{Type: "sqlite"}},
		{name: "uppercase", target: &core.TargetConfig{Type: "SQLite"}},
		{name: "bad port", target: &core.TargetConfig{Type: "sqlite", Port: 70000}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTarget(tt.target)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTarget_UnknownListsAvailable(t *testing.T) {
	err := ValidateTarget(&core.TargetConfig{Type: "oracle"})

	var unknown *adapter.UnknownAdapterError
	require.True(t, errors.As(err, &unknown))
	assert.Contains(t, unknown.Available, "sqlite")
	assert.Contains(t, err.Error(), "leapflow.yaml")
}

func TestTargetConfig_AdapterConfig(t *testing.T) {
	file := (&core.TargetConfig{Type: "duckdb", Database: "w.duckdb", Schema: "main"}).AdapterConfig()
	assert.Equal(t, "w.duckdb", file.Path)

	pg := (&core.TargetConfig{Type: "postgres", Database: "analytics", Host: "db", User: "etl"}).AdapterConfig()
	assert.Equal(t, "", pg.Path)
	assert.Equal(t, "analytics", pg.Database)
	assert.Equal(t, "etl", pg.Username)
}
