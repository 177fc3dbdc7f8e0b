package transform

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaster_Lenient(t *testing.T) {
	tests := []struct {
		name   string
		raw    any
		typ    core.ColumnType
		want   any
		nulled int64
	}{
		{"int", "10", core.TypeBigInt, int64(10), 0},
		{"int with spaces", " 42 ", core.TypeBigInt, int64(42), 0},
		{"integral float as int", "7.0", core.TypeBigInt, int64(7), 0},
		{"fractional as int", "7.5", core.TypeBigInt, nil, 1},
		{"garbage int", "abc", core.TypeBigInt, nil, 1},
		{"empty int is null", "", core.TypeBigInt, nil, 0},
		{"float", "40.7128", core.TypeDouble, 40.7128, 0},
		{"nan float", "NaN", core.TypeDouble, nil, 1},
		{"decimal rounds", "12.345", core.TypeDecimal, decimal.RequireFromString("12.35"), 0},
		{"decimal at column limit", "9999999999999999.99", core.TypeDecimal, decimal.RequireFromString("9999999999999999.99"), 0},
		{"decimal wider than column", "100000000000000000.00", core.TypeDecimal, nil, 1},
		{"decimal rounding past column", "9999999999999999.995", core.TypeDecimal, nil, 1},
		{"int one past max", "9223372036854775808", core.TypeBigInt, nil, 1},
		{"date", "2023-01-01", core.TypeDate, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 0},
		{"datetime as date", "2023-01-01 13:45:00", core.TypeDate, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 0},
		{"bad date", "01/32/2023", core.TypeDate, nil, 1},
		{"empty date is null", "  ", core.TypeDate, nil, 0},
		{"timestamp", "2024-03-01T10:00:00Z", core.TypeTimestamp, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), 0},
		{"varchar kept", "Entire home/apt", core.TypeVarchar, "Entire home/apt", 0},
		{"varchar multibyte kept", "café", core.TypeVarchar, "café", 0},
		{"latin-1 varchar", "caf\xe9", core.TypeVarchar, nil, 1},
		{"bool", "true", core.TypeBoolean, true, 0},
		{"nil stays nil", nil, core.TypeBigInt, nil, 0},
		{"typed passes through", int64(5), core.TypeBigInt, int64(5), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCaster(core.CastLenient)
			got := c.Cast("col", tt.raw, tt.typ)

			if d, ok := tt.want.(decimal.Decimal); ok {
				require.IsType(t, decimal.Decimal{}, got)
				assert.True(t, d.Equal(got.(decimal.Decimal)), "got %v", got)
			} else {
				assert.Equal(t, tt.want, got)
			}
			assert.Equal(t, tt.nulled, c.Nulled())
			assert.NoError(t, c.Err())
		})
	}
}

func TestCaster_StrictKeepsFirstError(t *testing.T) {
	c := NewCaster(core.CastStrict)

	assert.Nil(t, c.Cast("price", "cheap", core.TypeDecimal))
	assert.Nil(t, c.Cast("id", "x", core.TypeBigInt))

	var coercionErr *CoercionError
	require.True(t, errors.As(c.Err(), &coercionErr))
	assert.Equal(t, "price", coercionErr.Column)
	assert.Equal(t, "cheap", coercionErr.Value)
	assert.Equal(t, core.TypeDecimal, coercionErr.Type)
	assert.Equal(t, int64(0), c.Nulled(), "strict mode does not count nulled values")
}

func TestCaster_StrictRejectsUnstorableValues(t *testing.T) {
	tests := []struct {
		column string
		raw    string
		typ    core.ColumnType
	}{
		{"price_per_night", "100000000000000000000.00", core.TypeDecimal},
		{"review_comments", "caf\xe9", core.TypeVarchar},
		{"host_id", "9223372036854775808", core.TypeBigInt},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			c := NewCaster(core.CastStrict)
			assert.Nil(t, c.Cast(tt.column, tt.raw, tt.typ))

			var coercionErr *CoercionError
			require.ErrorAs(t, c.Err(), &coercionErr)
			assert.Equal(t, tt.column, coercionErr.Column)
		})
	}
}

func TestCaster_StrictAllowsEmpty(t *testing.T) {
	c := NewCaster(core.CastStrict)
	assert.Nil(t, c.Cast("last_review", "", core.TypeDate))
	assert.NoError(t, c.Err())
}

func TestCleanPrice(t *testing.T) {
	tests := map[string]string{
		"$1,200.00": "1200.00",
		"$85":       "85",
		" 1 000 ":   "1000",
		"150.01":    "150.01",
		"":          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanPrice(in), in)
	}
}

func TestParseInt(t *testing.T) {
	n, err := ParseInt("-3")
	require.NoError(t, err)
	assert.Equal(t, int64(-3), n)

	_, err = ParseInt("1e400")
	assert.Error(t, err)

	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "9223372036854775807", want: math.MaxInt64},
		{in: "-9223372036854775808", want: math.MinInt64},
		{in: "-9223372036854775808.0", want: math.MinInt64},
		{in: "9223372036854775808", wantErr: true},
		{in: "9223372036854775808.0", wantErr: true},
		{in: "1e19", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			n, err := ParseInt(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestParseDecimal_RoundsHalfAwayFromZero(t *testing.T) {
	tests := map[string]string{
		"49.995":  "50.00",
		"49.994":  "49.99",
		"-0.005":  "-0.01",
		"1200":    "1200.00",
		"0.00001": "0.00",
	}
	for in, want := range tests {
		d, err := ParseDecimal(in)
		require.NoError(t, err, in)
		assert.True(t, decimal.RequireFromString(want).Equal(d), "%s rounded to %s", in, d)
	}
}
