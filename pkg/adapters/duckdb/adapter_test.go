package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T) *Adapter {
	t.Helper()
	adp := New(nil)
	require.NoError(t, adp.Connect(context.Background(), core.AdapterConfig{Path: ":memory:"}))
	t.Cleanup(func() { _ = adp.Close() })
	return adp
}

func TestAdapter_Connect(t *testing.T) {
	tests := []struct {
		name      string
		setupPath func(t *testing.T) string
		verify    func(t *testing.T, path string)
	}{
		{
			name: "in-memory",
			setupPath: func(_ *testing.T) string {
				return ":memory:"
			},
		},
		{
			name: "file-based",
			setupPath: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "warehouse.duckdb")
			},
			verify: func(t *testing.T, path string) {
				_, err := os.Stat(path)
				assert.False(t, os.IsNotExist(err), "database file was not created")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			adp := New(nil)

			dbPath := tt.setupPath(t)
			require.NoError(t, adp.Connect(ctx, core.AdapterConfig{Path: dbPath}))
			defer func() { _ = adp.Close() }()

			if tt.verify != nil {
				tt.verify(t, dbPath)
			}
		})
	}
}

func TestAdapter_ConnectAppliesSettings(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, core.AdapterConfig{
		Path:    ":memory:",
		Options: map[string]string{"threads": "2"},
	}))
	defer func() { _ = adp.Close() }()

	rows, err := adp.Query(ctx, "SELECT current_setting('threads')")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var threads int64
	require.True(t, rows.Next())
	require.NoError(t, rows.Scan(&threads))
	assert.Equal(t, int64(2), threads)
}

func TestAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)

	assert.Error(t, adp.Exec(ctx, "SELECT 1"))
	_, err := adp.Query(ctx, "SELECT 1")
	assert.Error(t, err)
	_, err = adp.BeginTx(ctx)
	assert.Error(t, err)
	assert.NoError(t, adp.Close())
}

func TestAdapter_SchemaAndCatalog(t *testing.T) {
	ctx := context.Background()
	adp := connect(t)

	require.NoError(t, adp.EnsureSchema(ctx, "analytics"))
	require.NoError(t, adp.Exec(ctx, `CREATE TABLE analytics.dim_listings (listing_id BIGINT, price_per_night DECIMAL(18,2))`))
	require.NoError(t, adp.Exec(ctx, `INSERT INTO analytics.dim_listings VALUES (?, ?)`, int64(1), "99.50"))

	exists, err := adp.TableExists(ctx, "analytics", "dim_listings")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = adp.TableExists(ctx, "analytics", "fact_reviews")
	require.NoError(t, err)
	assert.False(t, exists)

	meta, err := adp.GetTableMetadata(ctx, "analytics.dim_listings")
	require.NoError(t, err)
	assert.Equal(t, "analytics", meta.Schema)
	assert.Equal(t, int64(1), meta.RowCount)
	require.Len(t, meta.Columns, 2)
	assert.Equal(t, "listing_id", meta.Columns[0].Name)
	assert.Equal(t, "BIGINT", meta.Columns[0].Type)
}

func TestAdapter_GetTableMetadataMissingTable(t *testing.T) {
	_, err := connect(t).GetTableMetadata(context.Background(), "nope")
	assert.Error(t, err)
}

func TestDialect(t *testing.T) {
	assert.Equal(t, "?", Dialect.FormatPlaceholder(3))
	assert.Equal(t, `"raw"."listings"`, Dialect.QualifiedName("raw", "listings"))
	assert.Equal(t, "DECIMAL(18,2)", Dialect.TypeName(core.TypeDecimal))
}
