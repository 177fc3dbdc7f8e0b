package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLineageCommand(t *testing.T) {
	cmd := NewLineageCommand()

	assert.Equal(t, "lineage <model>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")

	// --output is a global flag on root, not local
	for _, flag := range []string{"upstream", "downstream", "depth"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewRunCommand(t *testing.T) {
	cmd := NewRunCommand()

	assert.Equal(t, "run", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")

	for _, flag := range []string{"json", "fail-on-tests", "threads", "cast-policy"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}

	assert.NotEmpty(t, cmd.Aliases, "run command should have aliases")
	assert.Equal(t, "build", cmd.Aliases[0], "run command should have 'build' alias")
}

func TestNewTestCommand(t *testing.T) {
	cmd := NewTestCommand()

	assert.Equal(t, "test", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("json"))
}

func TestNewSeedCommand(t *testing.T) {
	cmd := NewSeedCommand()

	assert.Equal(t, "seed", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("embedded"))
}

func TestNewRunsCommand(t *testing.T) {
	cmd := NewRunsCommand()

	assert.Equal(t, "runs [run-id]", cmd.Use)
	flag := cmd.Flags().Lookup("limit")
	if assert.NotNil(t, flag) {
		assert.Equal(t, "n", flag.Shorthand)
		assert.Equal(t, "10", flag.DefValue)
	}
}

func TestNewDoctorCommand(t *testing.T) {
	cmd := NewDoctorCommand()

	assert.Equal(t, "doctor", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("format"))
}

func TestNewUICommand(t *testing.T) {
	cmd := NewUICommand()

	assert.Equal(t, "ui", cmd.Use)
	assert.NotEmpty(t, cmd.Example)

	port := cmd.Flags().Lookup("port")
	if assert.NotNil(t, port) {
		assert.Equal(t, "8765", port.DefValue)
	}
	assert.NotNil(t, cmd.Flags().Lookup("no-browser"))
	watch := cmd.Flags().Lookup("watch")
	if assert.NotNil(t, watch) {
		assert.Equal(t, "true", watch.DefValue)
	}
}
