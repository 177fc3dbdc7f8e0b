package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapflow/internal/cli/config"
	"github.com/leapstack-labs/leapflow/internal/cli/output"
	"github.com/leapstack-labs/leapflow/internal/engine"
	"github.com/leapstack-labs/leapflow/internal/source"
	"github.com/leapstack-labs/leapflow/pkg/adapter"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with a connected engine and a renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutEngine(cmd)

	eng, cleanup, err := createEngine(cmd.Context(), cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return nil, nil, err
	}
	cmdCtx.Engine = eng
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need warehouse access.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.OutputMode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, or the defaults when none
// was loaded (commands invoked outside the root command, e.g. in tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		RawDir:       config.DefaultRawDir,
		RawSchema:    config.DefaultRawSchema,
		StatePath:    config.DefaultStateFile,
		Threads:      config.DefaultThreads,
		Environment:  config.DefaultEnv,
		OutputFormat: config.DefaultOutput,
		Target:       &config.TargetConfig{Type: "duckdb", Schema: "main"},
	}
}

// engineConfig translates the CLI configuration into an engine configuration.
func engineConfig(cfg *config.Config, logger *slog.Logger) (engine.Config, error) {
	opts, err := cfg.ModelOptions()
	if err != nil {
		return engine.Config{}, err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return engine.Config{}, err
	}

	return engine.Config{
		Target:      cfg.Target.AdapterConfig(),
		Schema:      cfg.Target.Schema,
		StatePath:   cfg.StatePath,
		Models:      opts,
		Rules:       rules,
		Threads:     cfg.Threads,
		Environment: cfg.Environment,
		Logger:      logger,
	}, nil
}

// createEngine connects the warehouse and builds an engine reading raw tables
// through rawProvider.
func createEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine.Engine, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	engCfg, err := engineConfig(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	if err := ensureStateDir(cfg.StatePath); err != nil {
		return nil, nil, err
	}

	adp, err := adapter.Open(ctx, engCfg.Target, logger)
	if err != nil {
		return nil, nil, err
	}

	engCfg.Adapter = adp
	engCfg.Provider = rawProvider(cfg, adp)

	eng, err := engine.New(engCfg)
	if err != nil {
		_ = adp.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := eng.Close(); err != nil {
			logger.Warn("failed to close engine", slog.String("error", err.Error()))
		}
		if err := adp.Close(); err != nil {
			logger.Warn("failed to close warehouse", slog.String("error", err.Error()))
		}
	}
	return eng, cleanup, nil
}

// rawProvider reads raw tables from the raw directory first, then the
// warehouse raw schema when adp is set, then the embedded seed.
func rawProvider(cfg *config.Config, adp adapter.Adapter) source.ChainProvider {
	chain := source.ChainProvider{source.NewCSVProvider(cfg.RawDir)}
	if adp != nil {
		chain = append(chain, source.NewWarehouseProvider(adp, cfg.RawSchema))
	}
	return append(chain, source.NewSeedProvider())
}

// createPlanningEngine builds an engine that is never connected: it serves
// the model graph and rules without touching the warehouse or state file.
func createPlanningEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	engCfg, err := engineConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	engCfg.StatePath = ""
	engCfg.Provider = source.NewSeedProvider()
	return engine.New(engCfg)
}

func ensureStateDir(statePath string) error {
	stateDir := filepath.Dir(statePath)
	if stateDir == "." || stateDir == "" {
		return nil
	}
	if err := os.MkdirAll(stateDir, 0750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return nil
}

// pluralize formats n with noun, adding "s" unless n is 1.
func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
