package postgres

import (
	"context"
	"testing"

	"github.com/leapstack-labs/leapflow/pkg/adapter"
	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   adapter.Config
		expected string
	}{
		{
			name: "basic connection",
			config: adapter.Config{
				Host:     "localhost",
				Port:     5432,
				Database: "airbnb",
				Username: "user",
				Password: "pass",
			},
			expected: "host=localhost port=5432 dbname=airbnb sslmode=disable user=user password=pass",
		},
		{
			name: "with custom sslmode",
			config: adapter.Config{
				Host:     "prod.example.com",
				Port:     5432,
				Database: "proddb",
				Username: "admin",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=prod.example.com port=5432 dbname=proddb sslmode=require user=admin",
		},
		{
			name: "defaults",
			config: adapter.Config{
				Database: "mydb",
			},
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable",
		},
		{
			name: "extra options sorted",
			config: adapter.Config{
				Host:     "db.example.com",
				Port:     5433,
				Database: "analytics",
				Options:  map[string]string{"search_path": "raw", "connect_timeout": "5"},
			},
			expected: "host=db.example.com port=5433 dbname=analytics sslmode=disable connect_timeout=5 search_path=raw",
		},
		{
			name: "password with spaces and quotes",
			config: adapter.Config{
				Database: "mydb",
				Password: "it's secret",
			},
			expected: `host=localhost port=5432 dbname=mydb sslmode=disable password='it\'s secret'`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildPostgresDSN(tt.config))
		})
	}
}

func TestNew_Unconnected(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)
	require.NotNil(t, adp)
	assert.Nil(t, adp.DB)
	assert.False(t, adp.IsConnected())
	assert.Equal(t, "postgres", adp.Dialect().Name)

	calls := map[string]error{
		"exec": adp.Exec(ctx, "SELECT 1"),
	}
	_, calls["query"] = adp.Query(ctx, "SELECT 1")
	_, calls["metadata"] = adp.GetTableMetadata(ctx, "dim_listings")
	_, calls["exists"] = adp.TableExists(ctx, "public", "dim_listings")
	for name, err := range calls {
		assert.ErrorIs(t, err, adapter.ErrNotConnected, name)
	}
}

func TestRegisteredAsPostgres(t *testing.T) {
	adp, err := adapter.NewAdapter(core.AdapterConfig{Type: "postgres"}, nil)
	require.NoError(t, err)
	pg, ok := adp.(*Adapter)
	require.True(t, ok)
	assert.Equal(t, Dialect, pg.Dialect())
	assert.Contains(t, adapter.ListAdapters(), "postgres")
}

func TestDialect(t *testing.T) {
	assert.Equal(t, "$1, $2", Dialect.Placeholders(2))
	assert.Equal(t, `"analytics"."fact_reviews"`, Dialect.QualifiedName("analytics", "fact_reviews"))
	assert.Equal(t, "public", Dialect.ResolveSchema(""))
	assert.Equal(t, "NUMERIC(18,2)", Dialect.TypeName(core.TypeDecimal))
}
