package core

import "context"

// Layer identifies the conformance stage a model belongs to.
type Layer string

// Layer constants.
const (
	LayerStaging     Layer = "staging"
	LayerDimensional Layer = "dimensional"
	LayerAggregation Layer = "aggregation"
)

// CastPolicy controls what happens when a raw value cannot be coerced.
type CastPolicy string

// Cast policy constants.
const (
	// CastLenient turns an unconvertible value into NULL and counts it.
	CastLenient CastPolicy = "lenient"
	// CastStrict fails the model on the first unconvertible value.
	CastStrict CastPolicy = "strict"
)

// ParseCastPolicy returns the policy for s, defaulting to CastLenient for "".
func ParseCastPolicy(s string) (CastPolicy, bool) {
	switch CastPolicy(s) {
	case "", CastLenient:
		return CastLenient, true
	case CastStrict:
		return CastStrict, true
	default:
		return "", false
	}
}

// TransformStats counts the data-quality events of one transform call.
type TransformStats struct {
	RowsIn       int64
	RowsDropped  int64
	ValuesNulled int64
}

// Inputs gives a transform access to its resolved upstream tables.
type Inputs struct {
	tables map[string]*Table
}

// NewInputs wraps resolved upstream tables keyed by reference name.
func NewInputs(tables map[string]*Table) Inputs {
	return Inputs{tables: tables}
}

// Table returns the upstream table for ref.
func (in Inputs) Table(ref string) (*Table, error) {
	t, ok := in.tables[ref]
	if !ok || t == nil {
		return nil, &UnknownReferenceError{Ref: ref}
	}
	return t, nil
}

// TransformFunc is the pure function from upstream tables to model output.
// Implementations must not mutate their inputs.
type TransformFunc func(ctx context.Context, in Inputs, policy CastPolicy) (*Table, TransformStats, error)

// Model is a named transformation unit.
type Model struct {
	// Name is unique across the registry and is also the output table name.
	Name string
	// Layer is the conformance stage of the model
	Layer Layer
	// Refs are the upstream model or raw table names, in declaration order
	Refs []string
	// Materialized is always MaterializationTable in this engine
	Materialized string
	// CastPolicy applies to staging coercion; empty means lenient
	CastPolicy CastPolicy
	// Description is a human-readable description of the model
	Description string
	// Transform produces the output table
	Transform TransformFunc
}
