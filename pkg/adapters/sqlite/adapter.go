// Package sqlite provides a SQLite warehouse adapter for leapflow, backed by
// the pure-Go modernc.org/sqlite driver.
//
// SQLite has a single namespace: configured schemas are ignored and every
// table lives in "main".
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapflow/pkg/adapter"
	"github.com/leapstack-labs/leapflow/pkg/core"

	_ "modernc.org/sqlite" // sqlite driver
)

// Dialect is the SQLite SQL dialect.
var Dialect = &adapter.Dialect{
	Name:          "sqlite",
	DefaultSchema: "main",
	Placeholder:   adapter.PlaceholderQuestion,
	Schemas:       false,
	TimeAsText:    true,
	Types: map[core.ColumnType]string{
		core.TypeBigInt:    "INTEGER",
		core.TypeDouble:    "REAL",
		core.TypeDecimal:   "NUMERIC",
		core.TypeDate:      "TEXT",
		core.TypeTimestamp: "TEXT",
		core.TypeVarchar:   "TEXT",
		core.TypeBoolean:   "INTEGER",
	},
}

// Adapter implements the adapter.Adapter interface for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, SQLDialect: Dialect},
	}
}

// Dialect returns the SQLite dialect.
func (a *Adapter) Dialect() *adapter.Dialect {
	return Dialect
}

// Connect opens the database file at cfg.Path (":memory:" when empty).
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("opening sqlite warehouse", slog.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	// Each connection to ":memory:" is a separate database, and SQLite allows
	// one writer at a time anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// EnsureSchema is a no-op: SQLite has no schemas.
func (a *Adapter) EnsureSchema(context.Context, string) error {
	return nil
}

// TableExists checks sqlite_master for the table.
func (a *Adapter) TableExists(ctx context.Context, _ string, name string) (bool, error) {
	if a.DB == nil {
		return false, adapter.ErrNotConnected
	}
	var n int
	err := a.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", name, err)
	}
	return n > 0, nil
}

// GetTableMetadata reads column metadata with PRAGMA table_info.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*core.TableMetadata, error) {
	if a.DB == nil {
		return nil, adapter.ErrNotConnected
	}

	_, name := adapter.ParseQualifiedName(table, Dialect)

	rows, err := a.DB.QueryContext(ctx,
		"SELECT name, type, \"notnull\", cid FROM pragma_table_info(?) ORDER BY cid", name)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []core.ColumnInfo
	for rows.Next() {
		var col core.ColumnInfo
		var notNull, cid int
		if err := rows.Scan(&col.Name, &col.Type, &notNull, &cid); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = notNull == 0
		col.Position = cid + 1
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	var count int64
	//nolint:gosec // quoted identifier
	if err := a.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+Dialect.QuoteIdent(name)).Scan(&count); err != nil {
		count = 0
	}

	return &core.TableMetadata{
		Schema:   Dialect.DefaultSchema,
		Name:     name,
		Columns:  columns,
		RowCount: count,
	}, nil
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
