package source

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/leapstack-labs/leapflow/pkg/adapter"
	"github.com/leapstack-labs/leapflow/pkg/core"
)

// WarehouseProvider reads raw tables already loaded into a warehouse schema.
// Typed warehouse values are rendered back to strings so staging applies the
// same coercion as for CSV input.
type WarehouseProvider struct {
	adp    adapter.Adapter
	schema string
}

// NewWarehouseProvider reads tables from schema through adp.
func NewWarehouseProvider(adp adapter.Adapter, schema string) *WarehouseProvider {
	return &WarehouseProvider{adp: adp, schema: schema}
}

// ErrMissingIngestedAt is returned for a warehouse raw table without an
// ingested_at column. Tables written by LoadSeeds always have one.
var ErrMissingIngestedAt = errors.New("raw table has no " + IngestedAtColumn + " column")

// RawTable implements Provider.
func (p *WarehouseProvider) RawTable(ctx context.Context, name string) (*core.Table, error) {
	d := p.adp.Dialect()
	exists, err := p.adp.TableExists(ctx, d.ResolveSchema(p.schema), name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up raw table %s: %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, d.QualifiedName(p.schema, name))
	}

	rs, err := adapter.ReadAll(ctx, p.adp, "SELECT * FROM "+d.QualifiedName(p.schema, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read raw table %s: %w", name, err)
	}

	if !slices.Contains(rs.Columns, IngestedAtColumn) {
		return nil, fmt.Errorf("%w: %s", ErrMissingIngestedAt, d.QualifiedName(p.schema, name))
	}

	t := newRawTable(name, rs.Columns)
	for _, values := range rs.Rows {
		row := make(core.Row, len(values))
		for i, v := range values {
			row[i] = rawString(v)
		}
		t.Append(row)
	}
	return t, nil
}

// rawString renders a scanned value as raw text. NULL stays nil.
func rawString(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		if val.Equal(core.DateOf(val)) {
			return val.Format("2006-01-02")
		}
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(val)
	}
}
