package transform

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapflow/pkg/core"
)

// ColumnSpec declares one staged output column.
type ColumnSpec struct {
	// Name is the output column name
	Name string
	// Source is the raw column name; defaults to Name
	Source string
	// Type is the coercion target
	Type core.ColumnType
	// Required rows with a NULL here after coercion are dropped
	Required bool
	// Clean rewrites the raw string before coercion (e.g. CleanPrice)
	Clean func(string) string
	// Valid rejects coerced values; a rejected value is treated like a failed cast
	Valid func(any) bool
}

func (c ColumnSpec) source() string {
	if c.Source != "" {
		return c.Source
	}
	return c.Name
}

// Spec declares how a raw table is conformed into a staging table.
type Spec struct {
	// Source is the raw table reference
	Source  string
	Columns []ColumnSpec
}

// SourceColumns returns the raw column names the spec reads, in order.
func (s Spec) SourceColumns() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.source()
	}
	return names
}

// OutputColumns returns the staged table schema.
func (s Spec) OutputColumns() []core.Column {
	cols := make([]core.Column, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = core.Column{Name: c.Name, Type: c.Type}
	}
	return cols
}

// Stage returns a transform that applies, in order: cleaning and coercion of
// every declared column, then the required-column filter. The raw input is
// never modified.
func Stage(name string, spec Spec) core.TransformFunc {
	return func(ctx context.Context, in core.Inputs, policy core.CastPolicy) (*core.Table, core.TransformStats, error) {
		var stats core.TransformStats

		raw, err := in.Table(spec.Source)
		if err != nil {
			return nil, stats, err
		}

		sourceIdx := make([]int, len(spec.Columns))
		for i, c := range spec.Columns {
			sourceIdx[i] = raw.Index(c.source())
			if sourceIdx[i] < 0 {
				return nil, stats, fmt.Errorf("%s: raw table %s has no column %q", name, raw.Name, c.source())
			}
		}

		out := core.NewTable(name, spec.OutputColumns()...)
		caster := NewCaster(policy)
		stats.RowsIn = int64(raw.Len())

		for n, rawRow := range raw.Rows {
			if n%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, stats, err
				}
			}

			row := make(core.Row, len(spec.Columns))
			for i, c := range spec.Columns {
				v := rawRow[sourceIdx[i]]
				if s, ok := v.(string); ok && c.Clean != nil {
					v = c.Clean(s)
				}
				row[i] = caster.Cast(c.Name, v, c.Type)
				if row[i] != nil && c.Valid != nil && !c.Valid(row[i]) {
					caster.Reject(c.Name, row[i], c.Type)
					row[i] = nil
				}
			}
			if err := caster.Err(); err != nil {
				return nil, stats, fmt.Errorf("%s: row %d: %w", name, n+1, err)
			}

			if missingRequired(spec.Columns, row) {
				stats.RowsDropped++
				continue
			}
			out.Append(row)
		}

		stats.ValuesNulled = caster.Nulled()
		return out, stats, nil
	}
}

func missingRequired(cols []ColumnSpec, row core.Row) bool {
	for i, c := range cols {
		if c.Required && row[i] == nil {
			return true
		}
	}
	return false
}
