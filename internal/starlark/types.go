// Package starlark evaluates Starlark row expressions for data-quality rules.
//
// An expression sees one table row as the "row" dict plus read-only globals
// describing the warehouse ("target"), the table under test ("this") and the
// run environment ("env").
package starlark

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// TargetInfo is exposed as the "target" global.
type TargetInfo struct {
	Type   string
	Schema string
}

// ThisInfo names the table under test. Exposed as the "this" global.
type ThisInfo struct {
	Name   string
	Schema string
}

func (t *TargetInfo) value() starlark.Value {
	return starlarkstruct.FromStringDict(starlark.String("target"), starlark.StringDict{
		"type":   starlark.String(t.Type),
		"schema": starlark.String(t.Schema),
	})
}

func (t *ThisInfo) value() starlark.Value {
	return starlarkstruct.FromStringDict(starlark.String("this"), starlark.StringDict{
		"name":   starlark.String(t.Name),
		"schema": starlark.String(t.Schema),
	})
}

// Value converts a warehouse cell to a Starlark value. Decimals become
// floats; dates become "YYYY-MM-DD" and other times RFC 3339 strings.
func Value(v any) (starlark.Value, error) {
	switch val := v.(type) {
	case nil:
		return starlark.None, nil
	case string:
		return starlark.String(val), nil
	case []byte:
		return starlark.String(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int32:
		return starlark.MakeInt64(int64(val)), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float32:
		return starlark.Float(val), nil
	case float64:
		return starlark.Float(val), nil
	case bool:
		return starlark.Bool(val), nil
	case decimal.Decimal:
		return starlark.Float(val.InexactFloat64()), nil
	case time.Time:
		y, m, d := val.Date()
		if val.Equal(time.Date(y, m, d, 0, 0, 0, 0, val.Location())) {
			return starlark.String(val.Format(time.DateOnly)), nil
		}
		return starlark.String(val.UTC().Format(time.RFC3339Nano)), nil
	default:
		return nil, fmt.Errorf("unsupported cell type %T", v)
	}
}

// Row builds a frozen "row" dict from parallel column and value slices.
func Row(columns []string, values []any) (*starlark.Dict, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("row has %d values for %d columns", len(values), len(columns))
	}
	dict := starlark.NewDict(len(columns))
	for i, col := range columns {
		sv, err := Value(values[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		if err := dict.SetKey(starlark.String(col), sv); err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
	}
	dict.Freeze()
	return dict, nil
}
