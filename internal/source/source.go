// Package source provides the raw tables a pipeline run reads: CSV files on
// disk, tables already loaded into the warehouse, and the embedded seeds.
//
// Raw tables are untyped. Every value is a string or nil and the staging
// models own all coercion.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapflow/pkg/core"
)

// IngestedAtColumn is the raw column carrying ingestion time. Providers add
// it when the underlying data lacks it.
const IngestedAtColumn = "ingested_at"

// ErrTableNotFound is returned by a provider that does not hold a table.
var ErrTableNotFound = errors.New("raw table not found")

// Provider returns raw tables by name.
type Provider interface {
	RawTable(ctx context.Context, name string) (*core.Table, error)
}

// ChainProvider asks each provider in turn and returns the first table found.
type ChainProvider []Provider

// RawTable implements Provider.
func (c ChainProvider) RawTable(ctx context.Context, name string) (*core.Table, error) {
	for _, p := range c {
		t, err := p.RawTable(ctx, name)
		if errors.Is(err, ErrTableNotFound) {
			continue
		}
		return t, err
	}
	return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
}

// newRawTable creates a table with a VARCHAR column per header name.
func newRawTable(name string, header []string) *core.Table {
	cols := make([]core.Column, len(header))
	for i, h := range header {
		cols[i] = core.Column{Name: h, Type: core.TypeVarchar}
	}
	return core.NewTable(name, cols...)
}

// stampIngestedAt appends an ingested_at column set to at, unless the table
// already has one.
func stampIngestedAt(t *core.Table, at time.Time) *core.Table {
	if t.HasColumn(IngestedAtColumn) {
		return t
	}
	cols := append(append([]core.Column{}, t.Columns...), core.Column{Name: IngestedAtColumn, Type: core.TypeVarchar})
	out := core.NewTable(t.Name, cols...)
	stamp := at.UTC().Format(time.RFC3339Nano)
	for _, r := range t.Rows {
		row := make(core.Row, 0, len(cols))
		row = append(row, r...)
		out.Append(append(row, stamp))
	}
	return out
}
