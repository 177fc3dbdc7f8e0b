package transform

import (
	"context"
	"testing"

	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawTable(name string, cols []string, rows ...[]string) *core.Table {
	columns := make([]core.Column, len(cols))
	for i, c := range cols {
		columns[i] = core.Column{Name: c, Type: core.TypeVarchar}
	}
	t := core.NewTable(name, columns...)
	for _, r := range rows {
		row := make(core.Row, len(r))
		for i, v := range r {
			row[i] = v
		}
		t.Append(row)
	}
	return t
}

var testSpec = Spec{
	Source: "things",
	Columns: []ColumnSpec{
		{Name: "thing_id", Source: "id", Type: core.TypeBigInt, Required: true},
		{Name: "price", Type: core.TypeDecimal, Clean: CleanPrice},
		{Name: "label", Type: core.TypeVarchar},
	},
}

func TestStage_CastsFiltersAndCounts(t *testing.T) {
	raw := rawTable("things", []string{"id", "price", "label"},
		[]string{"1", "$1,200.00", "a"},
		[]string{"", "$5", "dropped: empty id"},
		[]string{"x", "$5", "dropped: bad id"},
		[]string{"2", "free", "price nulled"},
	)
	before := raw.Rows[0][1]

	out, stats, err := Stage("stg_things", testSpec)(context.Background(),
		core.NewInputs(map[string]*core.Table{"things": raw}), core.CastLenient)
	require.NoError(t, err)

	assert.Equal(t, "stg_things", out.Name)
	assert.Equal(t, []string{"thing_id", "price", "label"}, out.ColumnNames())
	require.Equal(t, 2, out.Len())
	assert.Equal(t, int64(1), out.Rows[0][0])
	assert.Equal(t, "1200", out.Rows[0][1].(interface{ String() string }).String())
	assert.Nil(t, out.Rows[1][1])

	assert.Equal(t, core.TransformStats{RowsIn: 4, RowsDropped: 2, ValuesNulled: 2}, stats)
	assert.Equal(t, before, raw.Rows[0][1], "raw input must not be mutated")
}

func TestStage_StrictFailsModel(t *testing.T) {
	raw := rawTable("things", []string{"id", "price", "label"},
		[]string{"1", "oops", "a"},
	)

	_, _, err := Stage("stg_things", testSpec)(context.Background(),
		core.NewInputs(map[string]*core.Table{"things": raw}), core.CastStrict)

	var coercionErr *CoercionError
	require.ErrorAs(t, err, &coercionErr)
	assert.Equal(t, "price", coercionErr.Column)
}

func TestStage_MissingRawColumn(t *testing.T) {
	raw := rawTable("things", []string{"id", "label"})

	_, _, err := Stage("stg_things", testSpec)(context.Background(),
		core.NewInputs(map[string]*core.Table{"things": raw}), core.CastLenient)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"price"`)
}

func TestStage_MissingInput(t *testing.T) {
	_, _, err := Stage("stg_things", testSpec)(context.Background(),
		core.NewInputs(nil), core.CastLenient)

	var unknown *core.UnknownReferenceError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "things", unknown.Ref)
}

func TestStage_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	raw := rawTable("things", []string{"id", "price", "label"}, []string{"1", "1", "a"})
	_, _, err := Stage("stg_things", testSpec)(ctx,
		core.NewInputs(map[string]*core.Table{"things": raw}), core.CastLenient)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStage_ValidRejectsValue(t *testing.T) {
	spec := Spec{
		Source: "things",
		Columns: []ColumnSpec{
			{Name: "id", Type: core.TypeBigInt, Required: true},
			{Name: "qty", Type: core.TypeBigInt, Valid: func(v any) bool { return v.(int64) >= 0 }},
		},
	}
	raw := rawTable("things", []string{"id", "qty"},
		[]string{"1", "-4"},
		[]string{"2", "3"},
	)

	out, stats, err := Stage("stg_things", spec)(context.Background(),
		core.NewInputs(map[string]*core.Table{"things": raw}), core.CastLenient)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Nil(t, out.Rows[0][1])
	assert.Equal(t, int64(3), out.Rows[1][1])
	assert.Equal(t, int64(1), stats.ValuesNulled)
}
