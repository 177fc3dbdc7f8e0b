package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDialect = &Dialect{
	Name:          "test",
	DefaultSchema: "main",
	Placeholder:   PlaceholderDollar,
	Schemas:       true,
	Types:         map[core.ColumnType]string{core.TypeVarchar: "TEXT"},
}

func mockBase(t *testing.T) (*BaseSQLAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &BaseSQLAdapter{DB: db, SQLDialect: testDialect}, mock
}

func TestBaseSQLAdapter_Close(t *testing.T) {
	base := &BaseSQLAdapter{}
	assert.NoError(t, base.Close(), "close with nil DB")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()
	base.DB = db
	assert.NoError(t, base.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_Exec(t *testing.T) {
	tests := []struct {
		name      string
		setupDB   bool
		setupMock func(mock sqlmock.Sqlmock)
		sql       string
		args      []any
		errMsg    string
	}{
		{
			name:    "exec without connection",
			setupDB: false,
			sql:     "SELECT 1",
			errMsg:  "database connection not established",
		},
		{
			name:    "exec success with args",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO listings").
					WithArgs(int64(1), "SoHo").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			sql:  "INSERT INTO listings VALUES ($1, $2)",
			args: []any{int64(1), "SoHo"},
		},
		{
			name:    "exec with error",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INVALID SQL").WillReturnError(assert.AnError)
			},
			sql:    "INVALID SQL",
			errMsg: "failed to execute SQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}
			if tt.setupDB {
				var mock sqlmock.Sqlmock
				base, mock = mockBase(t)
				tt.setupMock(mock)
			}

			err := base.Exec(context.Background(), tt.sql, tt.args...)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBaseSQLAdapter_Query(t *testing.T) {
	base, mock := mockBase(t)
	rows := sqlmock.NewRows([]string{"listing_id", "neighbourhood"}).
		AddRow(1, "SoHo").
		AddRow(2, "Tribeca")
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	got, err := base.Query(context.Background(), "SELECT listing_id, neighbourhood FROM dim_listings")
	require.NoError(t, err)
	defer func() { _ = got.Close() }()

	n := 0
	for got.Next() {
		n++
	}
	require.NoError(t, got.Err())
	assert.Equal(t, 2, n)

	mock.ExpectQuery("INVALID").WillReturnError(assert.AnError)
	_, err = base.Query(context.Background(), "INVALID SQL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute query")
}

func TestBaseSQLAdapter_IsConnected(t *testing.T) {
	assert.False(t, (&BaseSQLAdapter{}).IsConnected())
	base, _ := mockBase(t)
	assert.True(t, base.IsConnected())
}

func TestBaseSQLAdapter_EnsureSchema(t *testing.T) {
	base, mock := mockBase(t)
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "analytics"`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, base.EnsureSchema(context.Background(), "analytics"))
	require.NoError(t, base.EnsureSchema(context.Background(), "main"), "default schema is not created")
	require.NoError(t, base.EnsureSchema(context.Background(), ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_TableExists(t *testing.T) {
	base, mock := mockBase(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM information_schema.tables").
		WithArgs("main", "dim_listings").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := base.TableExists(context.Background(), "", "dim_listings")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_GetTableMetadataCommon(t *testing.T) {
	base, mock := mockBase(t)
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("analytics", "dim_listings").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}).
			AddRow("listing_id", "BIGINT", "NO", 1).
			AddRow("neighbourhood", "TEXT", "YES", 2))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "analytics"."dim_listings"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	meta, err := base.GetTableMetadataCommon(context.Background(), "analytics.dim_listings")
	require.NoError(t, err)
	assert.Equal(t, "analytics", meta.Schema)
	assert.Equal(t, "dim_listings", meta.Name)
	assert.Equal(t, int64(42), meta.RowCount)
	assert.Equal(t, []core.ColumnInfo{
		{Name: "listing_id", Type: "BIGINT", Nullable: false, Position: 1},
		{Name: "neighbourhood", Type: "TEXT", Nullable: true, Position: 2},
	}, meta.Columns)
}

func TestDialect_BindValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("X", 3600))

	assert.Equal(t, "1200", testDialect.BindValue(core.TypeDecimal, decimal.NewFromInt(1200)))
	assert.Equal(t, "2024-03-01", testDialect.BindValue(core.TypeDate, ts))
	assert.Equal(t, ts.UTC(), testDialect.BindValue(core.TypeTimestamp, ts))
	assert.Equal(t, int64(3), testDialect.BindValue(core.TypeBigInt, int64(3)))
}

func TestDialect_Names(t *testing.T) {
	assert.Equal(t, `"a""b"`, testDialect.QuoteIdent(`a"b`))
	assert.Equal(t, `"raw"."listings"`, testDialect.QualifiedName("raw", "listings"))
	assert.Equal(t, `"listings"`, testDialect.QualifiedName("", "listings"))
	assert.Equal(t, "TEXT", testDialect.TypeName(core.TypeVarchar))
	assert.Equal(t, "BIGINT", testDialect.TypeName(core.TypeBigInt), "unmapped types use their logical name")

	schema, name := ParseQualifiedName("listings", testDialect)
	assert.Equal(t, "main", schema)
	assert.Equal(t, "listings", name)
}
