package testutil

import (
	"context"
	"testing"

	"github.com/leapstack-labs/leapflow/pkg/adapters/sqlite"
	"github.com/leapstack-labs/leapflow/pkg/core"
)

// NewWarehouse returns a connected in-memory SQLite warehouse that is closed
// when the test ends.
func NewWarehouse(t testing.TB) *sqlite.Adapter {
	t.Helper()
	adp := sqlite.New(NewTestLogger(t))
	if err := adp.Connect(context.Background(), core.AdapterConfig{Type: "sqlite", Path: ":memory:"}); err != nil {
		t.Fatalf("connect test warehouse: %v", err)
	}
	t.Cleanup(func() { _ = adp.Close() })
	return adp
}
