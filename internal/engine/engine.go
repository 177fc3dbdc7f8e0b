// Package engine runs the pipeline: it resolves the model graph, executes
// each model against its upstream tables, materializes the outputs, and
// checks the data-quality rules once every materialization is done.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leapflow/internal/materialize"
	"github.com/leapstack-labs/leapflow/internal/models"
	"github.com/leapstack-labs/leapflow/internal/registry"
	"github.com/leapstack-labs/leapflow/internal/source"
	"github.com/leapstack-labs/leapflow/internal/state"
	"github.com/leapstack-labs/leapflow/internal/validate"
	"github.com/leapstack-labs/leapflow/pkg/adapter"
	"github.com/leapstack-labs/leapflow/pkg/core"
)

// Engine orchestrates one pipeline.
type Engine struct {
	// Warehouse adapter, connected lazily unless injected
	db          adapter.Adapter
	dbConfig    adapter.Config
	dbConnected bool
	ownsDB      bool
	dbMu        sync.Mutex

	logger *slog.Logger

	store       core.Store
	ownsStore   bool
	provider    source.Provider
	registry    *registry.ModelRegistry
	rules       []validate.Rule
	schema      string
	threads     int
	environment string
}

// Config holds engine configuration.
type Config struct {
	// Target is the warehouse to connect to when Adapter is nil
	Target adapter.Config
	// Adapter is an already connected warehouse; the engine does not close it
	Adapter adapter.Adapter
	// Schema is the schema outputs are materialized into; "" is the warehouse default
	Schema string

	// StatePath is the SQLite run-history database; "" keeps history in memory
	StatePath string
	// Store overrides StatePath with an opened, migrated store
	Store core.Store

	// Provider supplies the raw tables
	Provider source.Provider

	// Registry holds the models to run. Nil registers the listings pipeline
	// with Models as options and checks its standing rules.
	Registry *registry.ModelRegistry
	// Models configures the default pipeline
	Models models.Options
	// Rules are checked after the run, in addition to any standing rules
	Rules []validate.Rule

	// Threads bounds concurrently executing models; <= 1 runs them one by one
	Threads int
	// Environment is recorded with each run and visible to expression rules
	Environment string

	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine. The model graph is resolved up front so a cycle or
// unknown reference fails here; the warehouse is connected on first run.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if cfg.Provider == nil {
		return nil, errors.New("engine: no raw table provider configured")
	}

	reg := cfg.Registry
	var rules []validate.Rule
	if reg == nil {
		reg = registry.NewModelRegistry()
		if err := models.Register(reg, cfg.Models); err != nil {
			return nil, err
		}
		rules = append(rules, models.StandingRules()...)
	}
	rules = append(rules, cfg.Rules...)
	for _, r := range rules {
		if err := r.Check(); err != nil {
			return nil, err
		}
	}

	if _, err := reg.Resolve(); err != nil {
		return nil, err
	}

	env := cfg.Environment
	if env == "" {
		env = "dev"
	}

	e := &Engine{
		db:          cfg.Adapter,
		dbConfig:    cfg.Target,
		dbConnected: cfg.Adapter != nil,
		logger:      logger,
		store:       cfg.Store,
		provider:    cfg.Provider,
		registry:    reg,
		rules:       rules,
		schema:      cfg.Schema,
		threads:     cfg.Threads,
		environment: env,
	}

	if e.store == nil {
		path := cfg.StatePath
		if path == "" {
			path = ":memory:"
		}
		store := state.NewSQLiteStore(logger)
		if err := store.Open(path); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		if err := store.InitSchema(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize state schema: %w", err)
		}
		e.store = store
		e.ownsStore = true
	}

	logger.Debug("engine initialized",
		slog.Int("models", reg.Count()),
		slog.Int("rules", len(rules)),
		slog.String("environment", env))
	return e, nil
}

// ensureDBConnected lazily connects to the warehouse.
func (e *Engine) ensureDBConnected(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return nil
	}

	e.logger.Debug("connecting to warehouse", slog.String("adapter_type", e.dbConfig.Type))

	db, err := adapter.Open(ctx, e.dbConfig, e.logger)
	if err != nil {
		return err
	}

	e.db = db
	e.dbConnected = true
	e.ownsDB = true
	return nil
}

// Adapter returns the warehouse adapter, connecting it if needed.
func (e *Engine) Adapter(ctx context.Context) (adapter.Adapter, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	return e.db, nil
}

// Close releases the resources the engine opened.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	var errs []error
	if e.ownsDB && e.db != nil {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.ownsStore && e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Registry returns the model registry.
func (e *Engine) Registry() *registry.ModelRegistry {
	return e.registry
}

// Rules returns the rules checked after each run.
func (e *Engine) Rules() []validate.Rule {
	return e.rules
}

// Store returns the run-history store.
func (e *Engine) Store() core.Store {
	return e.store
}

// Schema returns the schema outputs are materialized into.
func (e *Engine) Schema() string {
	return e.schema
}

// Environment returns the run environment.
func (e *Engine) Environment() string {
	return e.environment
}

// Validate checks the engine rules against the tables currently in the
// warehouse, without running any model.
func (e *Engine) Validate(ctx context.Context) ([]validate.Result, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	d := e.db.Dialect()
	exists := func(table string) bool {
		ok, err := e.db.TableExists(ctx, d.ResolveSchema(e.schema), table)
		return err == nil && ok
	}
	return e.newRunner().Run(ctx, e.rules, exists), nil
}

func (e *Engine) newRunner() *validate.Runner {
	return validate.NewRunner(e.db, e.schema,
		validate.WithEnvironment(e.environment),
		validate.WithLogger(e.logger))
}

func (e *Engine) newMaterializer() *materialize.Materializer {
	return materialize.New(e.db, e.schema, e.logger)
}
