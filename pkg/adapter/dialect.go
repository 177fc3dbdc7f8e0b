package adapter

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/shopspring/decimal"
)

// PlaceholderStyle is how a dialect writes bind parameters.
type PlaceholderStyle int

// Placeholder styles.
const (
	PlaceholderQuestion PlaceholderStyle = iota // ?
	PlaceholderDollar                           // $1, $2, ...
)

// Dialect is the static SQL configuration of a warehouse.
type Dialect struct {
	Name          string
	DefaultSchema string
	Placeholder   PlaceholderStyle
	// Schemas is false when the warehouse has a single flat namespace
	Schemas bool
	// TimeAsText binds dates and timestamps as ISO strings
	TimeAsText bool
	Types      map[core.ColumnType]string
}

// FormatPlaceholder returns the n-th (1-based) bind parameter.
func (d *Dialect) FormatPlaceholder(n int) string {
	if d.Placeholder == PlaceholderDollar {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Placeholders returns n comma-separated bind parameters.
func (d *Dialect) Placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = d.FormatPlaceholder(i + 1)
	}
	return strings.Join(ps, ", ")
}

// QuoteIdent quotes an identifier.
func (d *Dialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifiedName returns the quoted schema-qualified table name.
// An empty schema, or a dialect without schemas, yields the bare name.
func (d *Dialect) QualifiedName(schema, name string) string {
	if schema == "" || !d.Schemas {
		return d.QuoteIdent(name)
	}
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(name)
}

// ResolveSchema returns schema, or the dialect default when empty.
func (d *Dialect) ResolveSchema(schema string) string {
	if schema == "" || !d.Schemas {
		return d.DefaultSchema
	}
	return schema
}

// TypeName returns the column DDL type for typ.
func (d *Dialect) TypeName(typ core.ColumnType) string {
	if name, ok := d.Types[typ]; ok {
		return name
	}
	return string(typ)
}

// BindValue converts a table value into a driver argument for a column of typ.
func (d *Dialect) BindValue(typ core.ColumnType, v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return x.String()
	case time.Time:
		if typ == core.TypeDate {
			return x.Format(time.DateOnly)
		}
		if d.TimeAsText {
			return x.UTC().Format(time.RFC3339Nano)
		}
		return x.UTC()
	}
	return v
}

// ParseQualifiedName splits a table reference into schema and name.
// Uses the dialect's default schema if not specified.
func ParseQualifiedName(table string, d *Dialect) (schema, name string) {
	if parts := strings.Split(table, "."); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return d.DefaultSchema, table
}
