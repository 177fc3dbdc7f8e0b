package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapflow/internal/cli/config"
	"github.com/leapstack-labs/leapflow/pkg/core"
)

func runInitCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewInitCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		setupDir  func(t *testing.T, dir string)
		args      []string
		wantErr   bool
		wantFiles []string
		noFiles   []string
	}{
		{
			name:      "init empty directory",
			wantFiles: []string{"leapflow.yaml", ".gitignore", "raw", "raw/README.md"},
			noFiles:   []string{"raw/listings.csv"},
		},
		{
			name:      "init example",
			args:      []string{"--example"},
			wantFiles: []string{"leapflow.yaml", ".gitignore", "raw/listings.csv", "raw/reviews.csv"},
		},
		{
			name: "init existing config without force",
			setupDir: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "leapflow.yaml"), []byte("existing"), 0600))
			},
			wantErr: true,
		},
		{
			name: "init existing config with force",
			setupDir: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "leapflow.yaml"), []byte("existing"), 0600))
			},
			args:      []string{"--force"},
			wantFiles: []string{"leapflow.yaml", "raw"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.setupDir != nil {
				tt.setupDir(t, dir)
			}

			_, err := runInitCmd(t, append([]string{dir}, tt.args...)...)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "already exists")
				return
			}
			require.NoError(t, err)

			for _, f := range tt.wantFiles {
				_, err := os.Stat(filepath.Join(dir, f))
				assert.NoError(t, err, "expected %q to exist", f)
			}
			for _, f := range tt.noFiles {
				_, err := os.Stat(filepath.Join(dir, f))
				assert.True(t, os.IsNotExist(err), "expected %q to be absent", f)
			}
		})
	}
}

func TestInitCommandMetadata(t *testing.T) {
	cmd := NewInitCommand()

	assert.Equal(t, "init [directory]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("force"), "--force flag should exist")
	assert.NotNil(t, cmd.Flags().Lookup("example"), "--example flag should exist")
}

func TestInitCreatesNewDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "project")

	out, err := runInitCmd(t, dir)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "leapflow.yaml"))
	assert.Contains(t, out, "LeapFlow project initialized!")
	assert.Contains(t, out, "leapflow.yaml")
}

func TestInitForceKeepsNothingStale(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "leapflow.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("existing"), 0600))

	_, err := runInitCmd(t, dir, "--force")
	require.NoError(t, err)

	content, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.NotEqual(t, "existing", string(content))
}

func TestInitConfigsLoad(t *testing.T) {
	for _, example := range []bool{false, true} {
		name := "minimal"
		args := []string{}
		if example {
			name = "example"
			args = append(args, "--example")
		}

		t.Run(name, func(t *testing.T) {
			t.Cleanup(config.ResetConfig)
			dir := t.TempDir()

			_, err := runInitCmd(t, append([]string{dir}, args...)...)
			require.NoError(t, err)

			cfg, err := config.LoadConfig(filepath.Join(dir, "leapflow.yaml"), nil)
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())
			require.NoError(t, cfg.ValidateDirectories())

			assert.Equal(t, "duckdb", cfg.Target.Type)
			assert.Equal(t, filepath.Join(dir, "raw"), cfg.RawDir)

			opts, err := cfg.ModelOptions()
			require.NoError(t, err)
			assert.Equal(t, core.CastLenient, opts.CastPolicy)

			rules, err := cfg.Rules()
			require.NoError(t, err)
			if example {
				assert.Len(t, rules, 2)
				assert.Equal(t, core.CastStrict, opts.Overrides["stg_full_moon_dates"])
			} else {
				assert.Empty(t, rules)
			}
		})
	}
}

func TestScaffold(t *testing.T) {
	dir := t.TempDir()

	files, err := scaffold("example", dir, false)
	require.NoError(t, err)

	var raw, config []string
	for _, f := range files {
		assert.False(t, f.Kept)
		if f.Raw {
			raw = append(raw, f.Path)
		} else {
			config = append(config, f.Path)
		}
	}
	assert.ElementsMatch(t, []string{".gitignore", "leapflow.yaml"}, config)
	assert.ElementsMatch(t, []string{"raw/listings.csv", "raw/reviews.csv"}, raw)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "leapflow.yaml"), []byte("custom"), 0o600))
	files, err = scaffold("example", dir, false)
	require.NoError(t, err)
	for _, f := range files {
		assert.True(t, f.Kept, f.Path)
	}
	content, err := os.ReadFile(filepath.Join(dir, "leapflow.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "custom", string(content))

	_, err = scaffold("missing", dir, false)
	assert.Error(t, err)
}

func TestDotfileName(t *testing.T) {
	assert.Equal(t, ".gitignore", dotfileName("gitignore"))
	assert.Equal(t, "raw/.gitignore", dotfileName("raw/gitignore"))
	assert.Equal(t, "raw/README.md", dotfileName("raw/README.md"))
}
