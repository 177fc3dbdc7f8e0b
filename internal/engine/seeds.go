package engine

// seeds.go - loading raw tables into the warehouse

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapflow/internal/materialize"
	"github.com/leapstack-labs/leapflow/internal/source"
)

// SeedSource lists and reads raw tables, e.g. a CSV directory.
type SeedSource interface {
	source.Provider
	Tables() ([]string, error)
}

// SeededTable describes one raw table written by LoadSeeds.
type SeededTable struct {
	Name string
	Rows int64
}

// LoadSeeds copies every table of src into schema, each replaced atomically
// with all columns as text. A later run can then read them back through a
// source.WarehouseProvider. Tables load in the order src lists them; the
// first failure stops the load.
func (e *Engine) LoadSeeds(ctx context.Context, src SeedSource, schema string) ([]SeededTable, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}

	names, err := src.Tables()
	if err != nil {
		return nil, fmt.Errorf("failed to list seed tables: %w", err)
	}

	mat := materialize.New(e.db, schema, e.logger)
	loaded := make([]SeededTable, 0, len(names))
	for _, name := range names {
		t, err := src.RawTable(ctx, name)
		if err != nil {
			return loaded, fmt.Errorf("failed to read seed %s: %w", name, err)
		}
		res, err := mat.Materialize(ctx, name, t)
		if err != nil {
			return loaded, fmt.Errorf("failed to load seed %s: %w", name, err)
		}
		e.logger.Debug("seed loaded",
			slog.String("table", res.Table),
			slog.Int64("rows", res.Rows))
		loaded = append(loaded, SeededTable{Name: name, Rows: res.Rows})
	}
	return loaded, nil
}
