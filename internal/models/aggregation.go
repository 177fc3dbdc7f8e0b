package models

import (
	"context"
	"math"
	"sort"

	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/shopspring/decimal"
)

// NeighbourhoodMetricColumns is the agg_neighbourhood_metrics schema.
var NeighbourhoodMetricColumns = []core.Column{
	{Name: "neighbourhood", Type: core.TypeVarchar},
	{Name: "neighbourhood_group", Type: core.TypeVarchar},
	{Name: "total_listings", Type: core.TypeBigInt},
	{Name: "avg_price", Type: core.TypeDouble},
	{Name: "min_price", Type: core.TypeDecimal},
	{Name: "max_price", Type: core.TypeDecimal},
	{Name: "avg_reviews", Type: core.TypeDouble},
	{Name: "total_reviews", Type: core.TypeBigInt},
	{Name: "unique_hosts", Type: core.TypeBigInt},
	{Name: "avg_availability", Type: core.TypeDouble},
}

// groupKey is a (neighbourhood, neighbourhood_group) pair. A NULL part is
// its own key value, distinct from the empty string.
type groupKey struct {
	neighbourhood, group         string
	neighbourhoodNull, groupNull bool
}

func keyPart(v any) (string, bool) {
	s, ok := v.(string)
	return s, !ok
}

func (k groupKey) less(o groupKey) bool {
	if c := comparePart(k.neighbourhood, k.neighbourhoodNull, o.neighbourhood, o.neighbourhoodNull); c != 0 {
		return c < 0
	}
	return comparePart(k.group, k.groupNull, o.group, o.groupNull) < 0
}

// comparePart orders NULL before any string.
func comparePart(a string, aNull bool, b string, bNull bool) int {
	switch {
	case aNull && bNull:
		return 0
	case aNull:
		return -1
	case bNull:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (k groupKey) values() (any, any) {
	var n, g any
	if !k.neighbourhoodNull {
		n = k.neighbourhood
	}
	if !k.groupNull {
		g = k.group
	}
	return n, g
}

type neighbourhoodAcc struct {
	listings map[int64]struct{}
	hosts    map[int64]struct{}

	priceSum   decimal.Decimal
	priceCount int64
	minPrice   *decimal.Decimal
	maxPrice   *decimal.Decimal

	reviewSum   int64
	reviewCount int64

	availSum   int64
	availCount int64
}

func newNeighbourhoodAcc() *neighbourhoodAcc {
	return &neighbourhoodAcc{
		listings: make(map[int64]struct{}),
		hosts:    make(map[int64]struct{}),
	}
}

func (a *neighbourhoodAcc) add(listingID, hostID, price, reviews, avail any) {
	if id, ok := listingID.(int64); ok {
		a.listings[id] = struct{}{}
	}
	if id, ok := hostID.(int64); ok {
		a.hosts[id] = struct{}{}
	}
	if p, ok := price.(decimal.Decimal); ok {
		a.priceSum = a.priceSum.Add(p)
		a.priceCount++
		if a.minPrice == nil || p.LessThan(*a.minPrice) {
			a.minPrice = &p
		}
		if a.maxPrice == nil || p.GreaterThan(*a.maxPrice) {
			a.maxPrice = &p
		}
	}
	if n, ok := reviews.(int64); ok {
		a.reviewSum += n
		a.reviewCount++
	}
	if n, ok := avail.(int64); ok {
		a.availSum += n
		a.availCount++
	}
}

func (a *neighbourhoodAcc) row(k groupKey) core.Row {
	n, g := k.values()
	row := core.Row{n, g, int64(len(a.listings)), nil, nil, nil, nil, nil, int64(len(a.hosts)), nil}

	if a.priceCount > 0 {
		avg := a.priceSum.Div(decimal.NewFromInt(a.priceCount)).Round(2)
		row[3] = avg.InexactFloat64()
		row[4] = *a.minPrice
		row[5] = *a.maxPrice
	}
	if a.reviewCount > 0 {
		row[6] = round2(float64(a.reviewSum) / float64(a.reviewCount))
		row[7] = a.reviewSum
	}
	if a.availCount > 0 {
		row[9] = round2(float64(a.availSum) / float64(a.availCount))
	}
	return row
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func aggregateNeighbourhoods(ctx context.Context, in core.Inputs, _ core.CastPolicy) (*core.Table, core.TransformStats, error) {
	var stats core.TransformStats

	dim, err := in.Table(DimListings)
	if err != nil {
		return nil, stats, err
	}
	if err := dim.RequireColumns("neighbourhood", "neighbourhood_group", "listing_id",
		"host_id", "price_per_night", "number_of_reviews", "availability_365"); err != nil {
		return nil, stats, err
	}

	var (
		nIdx     = dim.Index("neighbourhood")
		gIdx     = dim.Index("neighbourhood_group")
		idIdx    = dim.Index("listing_id")
		hostIdx  = dim.Index("host_id")
		priceIdx = dim.Index("price_per_night")
		revIdx   = dim.Index("number_of_reviews")
		availIdx = dim.Index("availability_365")
	)

	groups := make(map[groupKey]*neighbourhoodAcc)
	stats.RowsIn = int64(dim.Len())
	for _, row := range dim.Rows {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		var k groupKey
		k.neighbourhood, k.neighbourhoodNull = keyPart(row[nIdx])
		k.group, k.groupNull = keyPart(row[gIdx])

		acc, ok := groups[k]
		if !ok {
			acc = newNeighbourhoodAcc()
			groups[k] = acc
		}
		acc.add(row[idIdx], row[hostIdx], row[priceIdx], row[revIdx], row[availIdx])
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	out := core.NewTable(AggNeighbourhoodMetrics, NeighbourhoodMetricColumns...)
	for _, k := range keys {
		out.Append(groups[k].row(k))
	}
	return out, stats, nil
}
