package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapflow/internal/models"
	"github.com/leapstack-labs/leapflow/internal/source"
	"github.com/leapstack-labs/leapflow/internal/testutil"
	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeeds_ThenRunFromWarehouse(t *testing.T) {
	ctx := context.Background()
	adp := testutil.NewWarehouse(t)

	loader := newEngine(t, adp, nil)
	csv := source.NewCSVProvider(filepath.Join(testdataDir(), "raw"))

	loaded, err := loader.LoadSeeds(ctx, csv, "raw")
	require.NoError(t, err)
	assert.Equal(t, []SeededTable{
		{Name: models.SourceListings, Rows: 9},
		{Name: models.SourceReviews, Rows: 9},
	}, loaded)

	e := newEngine(t, adp, func(c *Config) {
		c.Provider = source.ChainProvider{
			source.NewWarehouseProvider(adp, "raw"),
			source.NewSeedProvider(),
		}
	})

	res, err := e.RunPipeline(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusCompleted, res.Status)

	stg, ok := res.Model(models.StgListings)
	require.True(t, ok)
	assert.Equal(t, int64(9), stg.RowsIn)
	assert.Equal(t, int64(8), stg.RowsOut)
}

func TestLoadSeeds_EmptySource(t *testing.T) {
	e := newEngine(t, testutil.NewWarehouse(t), nil)

	loaded, err := e.LoadSeeds(context.Background(), source.NewCSVProvider(t.TempDir()), "raw")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
