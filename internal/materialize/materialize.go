// Package materialize persists model output tables into the warehouse.
//
// Every materialization is a full replace: the new rows are written to a
// scratch table and swapped in within one transaction, so readers see either
// the previous version or the new one, never a partial table.
package materialize

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapflow/pkg/adapter"
	"github.com/leapstack-labs/leapflow/pkg/core"
)

// scratchSuffix names the table a replacement is built in.
const scratchSuffix = "__leapflow_tmp"

// MaterializationError reports a failed table replacement. The previous
// version of the table, if any, is left intact.
type MaterializationError struct {
	Model string
	Err   error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("materialize %s: %v", e.Model, e.Err)
}

func (e *MaterializationError) Unwrap() error {
	return e.Err
}

// Result describes a completed materialization.
type Result struct {
	// Table is the quoted, schema-qualified table name
	Table       string
	Rows        int64
	Fingerprint string
}

// Materializer writes tables through a warehouse adapter.
type Materializer struct {
	adp    adapter.Adapter
	schema string
	logger *slog.Logger
}

// New creates a Materializer writing into schema ("" for the warehouse default).
// If logger is nil, a discard logger is used.
func New(adp adapter.Adapter, schema string, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Materializer{adp: adp, schema: schema, logger: logger}
}

// Schema returns the target schema.
func (m *Materializer) Schema() string {
	return m.schema
}

// QualifiedName returns the quoted target name of a table.
func (m *Materializer) QualifiedName(name string) string {
	return m.adp.Dialect().QualifiedName(m.schema, name)
}

// Materialize atomically replaces table name with t.
func (m *Materializer) Materialize(ctx context.Context, name string, t *core.Table) (*Result, error) {
	if t == nil {
		return nil, &MaterializationError{Model: name, Err: fmt.Errorf("no output table")}
	}
	if len(t.Columns) == 0 {
		return nil, &MaterializationError{Model: name, Err: fmt.Errorf("output table has no columns")}
	}

	if err := m.adp.EnsureSchema(ctx, m.schema); err != nil {
		return nil, &MaterializationError{Model: name, Err: err}
	}

	tx, err := m.adp.BeginTx(ctx)
	if err != nil {
		return nil, &MaterializationError{Model: name, Err: err}
	}

	if err := m.replace(ctx, tx, name, t); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			m.logger.Warn("rollback failed", slog.String("table", name), slog.String("error", rbErr.Error()))
		}
		return nil, &MaterializationError{Model: name, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &MaterializationError{Model: name, Err: fmt.Errorf("commit: %w", err)}
	}

	res := &Result{
		Table:       m.QualifiedName(name),
		Rows:        int64(t.Len()),
		Fingerprint: Fingerprint(t),
	}
	m.logger.Debug("table materialized",
		slog.String("table", res.Table),
		slog.Int64("rows", res.Rows),
		slog.String("fingerprint", res.Fingerprint))
	return res, nil
}

func (m *Materializer) replace(ctx context.Context, tx *sql.Tx, name string, t *core.Table) error {
	d := m.adp.Dialect()
	target := d.QualifiedName(m.schema, name)
	scratchName := name + scratchSuffix
	scratch := d.QualifiedName(m.schema, scratchName)

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+scratch); err != nil {
		return fmt.Errorf("drop scratch table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, CreateTableSQL(d, scratch, t.Columns)); err != nil {
		return fmt.Errorf("create scratch table: %w", err)
	}

	if err := insertRows(ctx, tx, d, scratch, t); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+target); err != nil {
		return fmt.Errorf("drop previous table: %w", err)
	}
	rename := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", scratch, d.QuoteIdent(name))
	if _, err := tx.ExecContext(ctx, rename); err != nil {
		return fmt.Errorf("swap in new table: %w", err)
	}
	return nil
}

// CreateTableSQL returns the CREATE TABLE statement for columns.
func CreateTableSQL(d *adapter.Dialect, qualified string, columns []core.Column) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = d.QuoteIdent(c.Name) + " " + d.TypeName(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", qualified, strings.Join(defs, ", "))
}

func insertRows(ctx context.Context, tx *sql.Tx, d *adapter.Dialect, qualified string, t *core.Table) error {
	if t.Len() == 0 {
		return nil
	}

	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = d.QuoteIdent(c.Name)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		qualified, strings.Join(names, ", "), d.Placeholders(len(t.Columns)))

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, len(t.Columns))
	for n, row := range t.Rows {
		for i, c := range t.Columns {
			args[i] = d.BindValue(c.Type, row[i])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", n+1, err)
		}
	}
	return nil
}
