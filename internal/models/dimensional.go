package models

import (
	"context"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/shopspring/decimal"
)

// Price categories.
const (
	PriceBudget   = "Budget"
	PriceMidRange = "Mid-range"
	PricePremium  = "Premium"
	PriceLuxury   = "Luxury"
)

// Review categories.
const (
	ReviewsNone = "No Reviews"
	ReviewsFew  = "Few Reviews"
	ReviewsSome = "Some Reviews"
	ReviewsMany = "Many Reviews"
)

var (
	priceBudgetBelow = decimal.NewFromInt(50)
	priceMidRangeMax = decimal.NewFromInt(150)
	pricePremiumMax  = decimal.NewFromInt(300)
)

// PriceCategory buckets a nightly price. Both upper bounds are inclusive:
// 150 is Mid-range and 300 is Premium.
func PriceCategory(price decimal.Decimal) string {
	switch {
	case price.LessThan(priceBudgetBelow):
		return PriceBudget
	case price.LessThanOrEqual(priceMidRangeMax):
		return PriceMidRange
	case price.LessThanOrEqual(pricePremiumMax):
		return PricePremium
	default:
		return PriceLuxury
	}
}

// ReviewCategory buckets a review count.
func ReviewCategory(n int64) string {
	switch {
	case n <= 0:
		return ReviewsNone
	case n <= 10:
		return ReviewsFew
	case n <= 50:
		return ReviewsSome
	default:
		return ReviewsMany
	}
}

// PriceCategories lists every price bucket.
func PriceCategories() []string {
	return []string{PriceBudget, PriceMidRange, PricePremium, PriceLuxury}
}

// ReviewCategories lists every review bucket.
func ReviewCategories() []string {
	return []string{ReviewsNone, ReviewsFew, ReviewsSome, ReviewsMany}
}

func buildDimListings(ctx context.Context, in core.Inputs, _ core.CastPolicy) (*core.Table, core.TransformStats, error) {
	var stats core.TransformStats

	listings, err := in.Table(StgListings)
	if err != nil {
		return nil, stats, err
	}
	if err := listings.RequireColumns("price_per_night", "number_of_reviews"); err != nil {
		return nil, stats, err
	}

	cols := append(append([]core.Column{}, listings.Columns...),
		core.Column{Name: "price_category", Type: core.TypeVarchar},
		core.Column{Name: "review_category", Type: core.TypeVarchar},
	)
	out := core.NewTable(DimListings, cols...)
	priceIdx := listings.Index("price_per_night")
	reviewsIdx := listings.Index("number_of_reviews")

	stats.RowsIn = int64(listings.Len())
	for _, src := range listings.Rows {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		row := make(core.Row, 0, len(cols))
		row = append(row, src...)

		var priceCat, reviewCat any
		if p, ok := src[priceIdx].(decimal.Decimal); ok {
			priceCat = PriceCategory(p)
		}
		if n, ok := src[reviewsIdx].(int64); ok {
			reviewCat = ReviewCategory(n)
		}
		out.Append(append(row, priceCat, reviewCat))
	}

	return out, stats, nil
}

func buildFactReviews(ctx context.Context, in core.Inputs, _ core.CastPolicy) (*core.Table, core.TransformStats, error) {
	var stats core.TransformStats

	reviews, err := in.Table(StgReviews)
	if err != nil {
		return nil, stats, err
	}
	listings, err := in.Table(StgListings)
	if err != nil {
		return nil, stats, err
	}
	if err := reviews.RequireColumns("listing_id", "review_date"); err != nil {
		return nil, stats, err
	}
	if err := listings.RequireColumns("listing_id", "neighbourhood", "room_type", "price_per_night"); err != nil {
		return nil, stats, err
	}

	joined := []string{"neighbourhood", "room_type", "price_per_night"}
	cols := append([]core.Column{}, reviews.Columns...)
	for _, name := range joined {
		cols = append(cols, listings.Columns[listings.Index(name)])
	}
	cols = append(cols,
		core.Column{Name: "review_year", Type: core.TypeBigInt},
		core.Column{Name: "review_month", Type: core.TypeBigInt},
		core.Column{Name: "review_day_of_week", Type: core.TypeBigInt},
	)
	out := core.NewTable(FactReviews, cols...)

	// First occurrence wins so duplicate listing ids never fan out reviews.
	lookup := make(map[int64]core.Row, listings.Len())
	idIdx := listings.Index("listing_id")
	for _, row := range listings.Rows {
		id, ok := row[idIdx].(int64)
		if !ok {
			continue
		}
		if _, seen := lookup[id]; !seen {
			lookup[id] = row
		}
	}

	listingIdx := reviews.Index("listing_id")
	dateIdx := reviews.Index("review_date")
	stats.RowsIn = int64(reviews.Len())

	for n, src := range reviews.Rows {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		row := make(core.Row, 0, len(cols))
		row = append(row, src...)

		var match core.Row
		if id, ok := src[listingIdx].(int64); ok {
			match = lookup[id]
		}
		for _, name := range joined {
			if match == nil {
				row = append(row, nil)
				continue
			}
			row = append(row, match[listings.Index(name)])
		}

		date, ok := src[dateIdx].(time.Time)
		if !ok {
			return nil, stats, fmt.Errorf("%s: row %d: review_date is %T, want date", FactReviews, n+1, src[dateIdx])
		}
		row = append(row, int64(date.Year()), int64(date.Month()), ISOWeekday(date))
		out.Append(row)
	}

	return out, stats, nil
}

// ISOWeekday numbers days 1 (Monday) through 7 (Sunday).
func ISOWeekday(t time.Time) int64 {
	wd := int64(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
