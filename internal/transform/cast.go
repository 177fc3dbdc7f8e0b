// Package transform provides the building blocks shared by pipeline models:
// value coercion under a cast policy and declarative staging of raw tables.
package transform

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/shopspring/decimal"
)

// CoercionError describes a raw value that could not be converted.
type CoercionError struct {
	Column string
	Value  string
	Type   core.ColumnType
	Err    error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot cast %q to %s in column %s: %v", e.Value, e.Type, e.Column, e.Err)
}

func (e *CoercionError) Unwrap() error {
	return e.Err
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Caster converts raw strings to typed values and tracks failures.
//
// Empty (or all-space) input is NULL for every type and is never a failure.
// A non-empty value that does not convert is a failure: under CastLenient it
// becomes NULL and is counted, under CastStrict the first failure is kept and
// reported by Err.
type Caster struct {
	policy core.CastPolicy
	nulled int64
	err    error
}

// NewCaster returns a Caster for the given policy.
func NewCaster(policy core.CastPolicy) *Caster {
	if policy == "" {
		policy = core.CastLenient
	}
	return &Caster{policy: policy}
}

// Nulled returns how many non-empty values were degraded to NULL.
func (c *Caster) Nulled() int64 {
	return c.nulled
}

// Err returns the first coercion failure under CastStrict.
func (c *Caster) Err() error {
	return c.err
}

// Cast converts raw to the given column type. NULL is returned as nil.
func (c *Caster) Cast(column string, raw any, typ core.ColumnType) any {
	s, isString := raw.(string)
	if !isString {
		if raw == nil {
			return nil
		}
		// already typed (e.g. seeded values)
		return raw
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var (
		v   any
		err error
	)
	switch typ {
	case core.TypeBigInt:
		v, err = ParseInt(s)
	case core.TypeDouble:
		v, err = ParseFloat(s)
	case core.TypeDecimal:
		v, err = ParseDecimal(s)
	case core.TypeDate:
		v, err = ParseDate(s)
	case core.TypeTimestamp:
		v, err = ParseTimestamp(s)
	case core.TypeBoolean:
		v, err = strconv.ParseBool(s)
	case core.TypeVarchar:
		if !utf8.ValidString(s) {
			err = errInvalidUTF8
		}
		v = s
	default:
		err = fmt.Errorf("unsupported column type %s", typ)
	}

	if err != nil {
		c.fail(&CoercionError{Column: column, Value: s, Type: typ, Err: err})
		return nil
	}
	return v
}

// Reject records a converted value that failed a column check.
func (c *Caster) Reject(column string, v any, typ core.ColumnType) {
	c.fail(&CoercionError{Column: column, Value: fmt.Sprint(v), Type: typ, Err: errRejected})
}

var (
	errRejected    = errors.New("value rejected by column check")
	errInvalidUTF8 = errors.New("invalid UTF-8")
	errOutOfRange  = errors.New("out of range")
)

func (c *Caster) fail(err *CoercionError) {
	if c.policy == core.CastStrict {
		if c.err == nil {
			c.err = err
		}
		return
	}
	c.nulled++
}

// ParseInt parses an integer. Integral floats such as "10.0" are accepted.
func ParseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n, nil
	}
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil || f != math.Trunc(f) {
		return 0, err
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit
	if f >= 1<<63 || f < -(1<<63) {
		return 0, errOutOfRange
	}
	return int64(f), nil
}

// ParseFloat parses a finite float.
func ParseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value")
	}
	return f, nil
}

// Decimal columns are DECIMAL(18,2): two places and at most 16 integer digits.
const (
	DecimalScale     = 2
	DecimalPrecision = 18
)

var decimalLimit = decimal.New(1, DecimalPrecision-DecimalScale)

// ParseDecimal parses a decimal, rounding half away from zero to two places.
// Values whose integer part does not fit DECIMAL(18,2) are out of range.
func ParseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	d = d.Round(DecimalScale)
	if d.Abs().GreaterThanOrEqual(decimalLimit) {
		return decimal.Decimal{}, errOutOfRange
	}
	return d, nil
}

// ParseDate parses a calendar date, dropping any time-of-day part.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date format")
}

// ParseTimestamp parses a timestamp and normalises it to UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp format")
}

// CleanPrice strips currency symbols, thousands separators and spaces from a
// price string: "$1,200.00" becomes "1200.00".
func CleanPrice(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', ' ', '\t', '€', '£':
			return -1
		}
		return r
	}, s)
}
