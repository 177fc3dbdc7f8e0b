package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/leapstack-labs/leapflow/pkg/core"
)

// Factory creates an unconnected adapter.
type Factory func(*slog.Logger) Adapter

// ErrNoWarehouseType is returned when target.type is empty.
var ErrNoWarehouseType = errors.New("adapter type not specified")

type factoryTable struct {
	mu sync.RWMutex
	m  map[string]Factory
}

var factories = factoryTable{m: map[string]Factory{}}

func (t *factoryTable) put(name string, f Factory) {
	t.mu.Lock()
	t.m[name] = f
	t.mu.Unlock()
}

func (t *factoryTable) get(name string) (Factory, bool) {
	t.mu.RLock()
	f, ok := t.m[name]
	t.mu.RUnlock()
	return f, ok
}

func (t *factoryTable) names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Sorted(maps.Keys(t.m))
}

// Register makes a warehouse type available under name. Adapter packages
// call it from init; registering a name twice replaces the factory.
func Register(name string, factory Factory) {
	factories.put(name, factory)
}

// Get returns the factory registered under name.
func Get(name string) (Factory, bool) {
	return factories.get(name)
}

// ListAdapters returns the registered warehouse types, sorted.
func ListAdapters() []string {
	return factories.names()
}

// IsRegistered reports whether name has a factory.
func IsRegistered(name string) bool {
	_, ok := factories.get(name)
	return ok
}

// NewAdapter builds an unconnected adapter for cfg.Type. A nil logger
// discards output.
func NewAdapter(cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, ErrNoWarehouseType
	}
	factory, ok := factories.get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: factories.names()}
	}
	return factory(logger), nil
}

// Open builds the adapter for cfg and connects it.
func Open(ctx context.Context, cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	adp, err := NewAdapter(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := adp.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("connect %s warehouse: %w", cfg.Type, err)
	}
	return adp, nil
}

// UnknownAdapterError is returned for a warehouse type nothing registered.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown warehouse type %q (available: %v); check target.type in leapflow.yaml", e.Type, e.Available)
}
