// Package adapter provides the warehouse adapter contract used to persist and
// read back pipeline tables.
//
// Concrete adapter implementations are in pkg/adapters/ subdirectories and
// register themselves from init().
package adapter

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/leapflow/pkg/core"
)

// Config is an alias for core.AdapterConfig.
type Config = core.AdapterConfig

// Adapter defines the interface that all warehouse adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the warehouse using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string, args ...any) error

	// Query executes a SQL statement that returns rows.
	// The caller must close the rows and check rows.Err().
	Query(ctx context.Context, sql string, args ...any) (*sql.Rows, error)

	// BeginTx starts a transaction on the underlying connection.
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// GetTableMetadata retrieves metadata for a table ("schema.name" or "name").
	GetTableMetadata(ctx context.Context, table string) (*core.TableMetadata, error)

	// TableExists reports whether the table exists.
	TableExists(ctx context.Context, schema, name string) (bool, error)

	// EnsureSchema creates the schema if the warehouse supports schemas.
	EnsureSchema(ctx context.Context, schema string) error

	// Dialect returns the SQL dialect of this warehouse.
	Dialect() *Dialect
}
