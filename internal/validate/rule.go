// Package validate runs data-quality rules against materialized tables.
//
// Rules are inverted assertions: each one selects the rows that violate it,
// and it passes when that selection is empty.
package validate

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapflow/pkg/adapter"
	"github.com/leapstack-labs/leapflow/pkg/core"
)

// Kind is the shape of a rule.
type Kind string

// Rule kinds.
const (
	// KindPredicate counts rows matching a SQL WHERE predicate
	KindPredicate Kind = "predicate"
	// KindExpression counts rows for which a Starlark expression is true
	KindExpression     Kind = "expression"
	KindNotNull        Kind = "not_null"
	KindUnique         Kind = "unique"
	KindAcceptedValues Kind = "accepted_values"
	KindRelationships  Kind = "relationships"
)

// Rule is a named data-quality assertion over one table.
type Rule struct {
	Name  string
	Table string
	Kind  Kind

	// Where is the violation predicate for KindPredicate
	Where string
	// Expr is the violation expression for KindExpression, with the row bound as "row"
	Expr string

	// Column is the checked column of the generic kinds
	Column string
	// Values are the accepted values for KindAcceptedValues
	Values []string
	// RefTable and RefColumn are the parent key for KindRelationships
	RefTable  string
	RefColumn string

	Severity    core.Severity
	Description string
}

// Predicate returns a rule selecting violators with a SQL predicate.
func Predicate(name, table, where string) Rule {
	return Rule{Name: name, Table: table, Kind: KindPredicate, Where: where, Severity: core.SeverityError}
}

// Expression returns a rule selecting violators with a Starlark row expression.
func Expression(name, table, expr string) Rule {
	return Rule{Name: name, Table: table, Kind: KindExpression, Expr: expr, Severity: core.SeverityError}
}

// NotNull returns a rule failing on NULLs in column.
func NotNull(table, column string) Rule {
	return Rule{
		Name: fmt.Sprintf("%s_%s_not_null", table, column), Table: table,
		Kind: KindNotNull, Column: column, Severity: core.SeverityError,
	}
}

// Unique returns a rule failing on every row whose column value is repeated.
func Unique(table, column string) Rule {
	return Rule{
		Name: fmt.Sprintf("%s_%s_unique", table, column), Table: table,
		Kind: KindUnique, Column: column, Severity: core.SeverityError,
	}
}

// AcceptedValues returns a rule failing on non-NULL values outside values.
func AcceptedValues(table, column string, values ...string) Rule {
	return Rule{
		Name: fmt.Sprintf("%s_%s_accepted_values", table, column), Table: table,
		Kind: KindAcceptedValues, Column: column, Values: values, Severity: core.SeverityError,
	}
}

// Relationships returns a rule failing on non-NULL keys with no parent row.
func Relationships(table, column, refTable, refColumn string) Rule {
	return Rule{
		Name: fmt.Sprintf("%s_%s_relationships_%s", table, column, refTable), Table: table,
		Kind: KindRelationships, Column: column, RefTable: refTable, RefColumn: refColumn,
		Severity: core.SeverityError,
	}
}

// WithSeverity returns a copy of r with severity s.
func (r Rule) WithSeverity(s core.Severity) Rule {
	r.Severity = s
	return r
}

// WithDescription returns a copy of r with a description.
func (r Rule) WithDescription(desc string) Rule {
	r.Description = desc
	return r
}

// Tables returns every table the rule reads.
func (r Rule) Tables() []string {
	if r.Kind == KindRelationships {
		return []string{r.Table, r.RefTable}
	}
	return []string{r.Table}
}

// Check reports a malformed rule.
func (r Rule) Check() error {
	if r.Name == "" {
		return fmt.Errorf("rule has no name")
	}
	if r.Table == "" {
		return fmt.Errorf("rule %s: no table", r.Name)
	}

	switch r.Kind {
	case KindPredicate:
		if strings.TrimSpace(r.Where) == "" {
			return fmt.Errorf("rule %s: empty where predicate", r.Name)
		}
	case KindExpression:
		if strings.TrimSpace(r.Expr) == "" {
			return fmt.Errorf("rule %s: empty expression", r.Name)
		}
	case KindNotNull, KindUnique:
		if r.Column == "" {
			return fmt.Errorf("rule %s: no column", r.Name)
		}
	case KindAcceptedValues:
		if r.Column == "" || len(r.Values) == 0 {
			return fmt.Errorf("rule %s: accepted_values needs a column and values", r.Name)
		}
	case KindRelationships:
		if r.Column == "" || r.RefTable == "" || r.RefColumn == "" {
			return fmt.Errorf("rule %s: relationships needs column, to and field", r.Name)
		}
	default:
		return fmt.Errorf("rule %s: unknown kind %q", r.Name, r.Kind)
	}
	return nil
}

// CountSQL returns the query counting violating rows of a SQL-backed rule.
// Tables are qualified with schema.
func (r Rule) CountSQL(d *adapter.Dialect, schema string) (string, error) {
	if err := r.Check(); err != nil {
		return "", err
	}

	table := d.QualifiedName(schema, r.Table)
	col := d.QuoteIdent(r.Column)

	var where string
	switch r.Kind {
	case KindPredicate:
		where = "(" + r.Where + ")"
	case KindNotNull:
		where = col + " IS NULL"
	case KindUnique:
		where = fmt.Sprintf("%s IN (SELECT %s FROM %s WHERE %s IS NOT NULL GROUP BY %s HAVING COUNT(*) > 1)",
			col, col, table, col, col)
	case KindAcceptedValues:
		quoted := make([]string, len(r.Values))
		for i, v := range r.Values {
			quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
		}
		where = fmt.Sprintf("%s IS NOT NULL AND %s NOT IN (%s)", col, col, strings.Join(quoted, ", "))
	case KindRelationships:
		ref := d.QuoteIdent(r.RefColumn)
		where = fmt.Sprintf("%s IS NOT NULL AND %s NOT IN (SELECT %s FROM %s WHERE %s IS NOT NULL)",
			col, col, ref, d.QualifiedName(schema, r.RefTable), ref)
	default:
		return "", fmt.Errorf("rule %s: %s rules are not SQL-backed", r.Name, r.Kind)
	}

	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, where), nil
}
