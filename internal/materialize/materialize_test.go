package materialize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapflow/internal/testutil"
	"github.com/leapstack-labs/leapflow/pkg/adapter"
	"github.com/leapstack-labs/leapflow/pkg/adapters/sqlite"
	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listings(prices ...string) *core.Table {
	t := core.NewTable("dim_listings",
		core.Column{Name: "listing_id", Type: core.TypeBigInt},
		core.Column{Name: "price_per_night", Type: core.TypeDecimal},
		core.Column{Name: "last_review_date", Type: core.TypeDate},
		core.Column{Name: "neighbourhood", Type: core.TypeVarchar},
	)
	for i, p := range prices {
		var price any
		if p != "" {
			price = decimal.RequireFromString(p)
		}
		t.Append(core.Row{int64(i + 1), price, time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC), nil})
	}
	return t
}

func readBack(t *testing.T, adp adapter.Adapter, name string) *adapter.ResultSet {
	t.Helper()
	rs, err := adapter.ReadAll(context.Background(), adp,
		"SELECT * FROM "+adp.Dialect().QuoteIdent(name)+" ORDER BY listing_id")
	require.NoError(t, err)
	return rs
}

func TestMaterialize_CreatesTable(t *testing.T) {
	adp := testutil.NewWarehouse(t)
	m := New(adp, "", testutil.NewTestLogger(t))

	res, err := m.Materialize(context.Background(), "dim_listings", listings("100", "", "99.5"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Rows)
	assert.Equal(t, `"dim_listings"`, res.Table)
	assert.Len(t, res.Fingerprint, 16)

	rs := readBack(t, adp, "dim_listings")
	assert.Equal(t, []string{"listing_id", "price_per_night", "last_review_date", "neighbourhood"}, rs.Columns)
	require.Len(t, rs.Rows, 3)
	assert.Equal(t, int64(1), rs.Rows[0][0])
	assert.Equal(t, "2024-01-01", rs.Rows[0][2])
	assert.Nil(t, rs.Rows[1][1])
	assert.Nil(t, rs.Rows[0][3])

	exists, err := adp.TableExists(context.Background(), "", "dim_listings"+scratchSuffix)
	require.NoError(t, err)
	assert.False(t, exists, "scratch table is renamed away")
}

func TestMaterialize_ReplacesPreviousVersion(t *testing.T) {
	adp := testutil.NewWarehouse(t)
	m := New(adp, "", nil)
	ctx := context.Background()

	_, err := m.Materialize(ctx, "dim_listings", listings("100", "200", "300"))
	require.NoError(t, err)
	_, err = m.Materialize(ctx, "dim_listings", listings("50"))
	require.NoError(t, err)

	assert.Len(t, readBack(t, adp, "dim_listings").Rows, 1)
}

func TestMaterialize_EmptyTable(t *testing.T) {
	adp := testutil.NewWarehouse(t)
	res, err := New(adp, "", nil).Materialize(context.Background(), "dim_listings", listings())
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Rows)

	exists, err := adp.TableExists(context.Background(), "", "dim_listings")
	require.NoError(t, err)
	assert.True(t, exists, "an empty result still replaces the table")
}

func TestMaterialize_FailureKeepsPreviousVersion(t *testing.T) {
	adp := testutil.NewWarehouse(t)
	m := New(adp, "", nil)
	ctx := context.Background()

	_, err := m.Materialize(ctx, "dim_listings", listings("100", "200"))
	require.NoError(t, err)

	// A view squatting on the scratch name makes the replacement fail.
	require.NoError(t, adp.Exec(ctx, `CREATE VIEW "dim_listings__leapflow_tmp" AS SELECT 1 AS x`))

	_, err = m.Materialize(ctx, "dim_listings", listings("1", "2", "3", "4"))

	var matErr *MaterializationError
	require.True(t, errors.As(err, &matErr), "expected MaterializationError, got %v", err)
	assert.Equal(t, "dim_listings", matErr.Model)
	assert.Len(t, readBack(t, adp, "dim_listings").Rows, 2, "previous version intact")
}

func TestMaterialize_RollsBackWhenSwapFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	adp := &sqlite.Adapter{BaseSQLAdapter: adapter.BaseSQLAdapter{DB: db, SQLDialect: sqlite.Dialect}}

	mock.ExpectBegin()
	mock.ExpectExec(`DROP TABLE IF EXISTS "dim_listings__leapflow_tmp"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE "dim_listings__leapflow_tmp"`).WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(`INSERT INTO "dim_listings__leapflow_tmp"`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DROP TABLE IF EXISTS "dim_listings"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ALTER TABLE "dim_listings__leapflow_tmp" RENAME TO "dim_listings"`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err = New(adp, "", nil).Materialize(context.Background(), "dim_listings", listings("10"))

	var matErr *MaterializationError
	require.ErrorAs(t, err, &matErr)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterialize_RejectsNilTable(t *testing.T) {
	_, err := New(testutil.NewWarehouse(t), "", nil).Materialize(context.Background(), "x", nil)
	var matErr *MaterializationError
	assert.ErrorAs(t, err, &matErr)
}

func TestCreateTableSQL(t *testing.T) {
	got := CreateTableSQL(sqlite.Dialect, `"t"`, []core.Column{
		{Name: "id", Type: core.TypeBigInt},
		{Name: "price", Type: core.TypeDecimal},
	})
	assert.Equal(t, `CREATE TABLE "t" ("id" INTEGER, "price" NUMERIC)`, got)
}

func TestFingerprint(t *testing.T) {
	a := listings("100", "", "99.5")
	b := listings("100", "", "99.5")
	assert.Equal(t, Fingerprint(a), Fingerprint(b), "equal content, equal fingerprint")

	c := listings("100", "", "99.51")
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))

	empty := listings()
	renamed := core.NewTable("dim_listings", core.Column{Name: "id", Type: core.TypeBigInt})
	assert.NotEqual(t, Fingerprint(empty), Fingerprint(renamed), "schema is part of the fingerprint")

	// NULL and empty string are distinct values.
	n := core.NewTable("t", core.Column{Name: "s", Type: core.TypeVarchar})
	n.Append(core.Row{nil})
	s := core.NewTable("t", core.Column{Name: "s", Type: core.TypeVarchar})
	s.Append(core.Row{""})
	assert.NotEqual(t, Fingerprint(n), Fingerprint(s))
}
