package engine

import (
	"context"
	"sync"

	"github.com/leapstack-labs/leapflow/internal/source"
	"github.com/leapstack-labs/leapflow/pkg/core"
)

// rawCache fetches each raw table at most once per run.
type rawCache struct {
	provider source.Provider

	mu      sync.Mutex
	entries map[string]*rawEntry
}

type rawEntry struct {
	once  sync.Once
	table *core.Table
	err   error
}

func newRawCache(p source.Provider) *rawCache {
	return &rawCache{provider: p, entries: make(map[string]*rawEntry)}
}

func (c *rawCache) get(ctx context.Context, name string) (*core.Table, error) {
	c.mu.Lock()
	e, ok := c.entries[name]
	if !ok {
		e = &rawEntry{}
		c.entries[name] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.table, e.err = c.provider.RawTable(ctx, name)
	})
	return e.table, e.err
}
