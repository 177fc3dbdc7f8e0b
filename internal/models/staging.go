package models

import (
	"github.com/leapstack-labs/leapflow/internal/transform"
	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/shopspring/decimal"
)

// ListingsSpec conforms raw listings into stg_listings.
var ListingsSpec = transform.Spec{
	Source: SourceListings,
	Columns: []transform.ColumnSpec{
		{Name: "listing_id", Source: "id", Type: core.TypeBigInt, Required: true},
		{Name: "listing_name", Source: "name", Type: core.TypeVarchar},
		{Name: "host_id", Type: core.TypeBigInt},
		{Name: "host_name", Type: core.TypeVarchar},
		{Name: "neighbourhood_group", Type: core.TypeVarchar},
		{Name: "neighbourhood", Type: core.TypeVarchar},
		{Name: "latitude", Type: core.TypeDouble},
		{Name: "longitude", Type: core.TypeDouble},
		{Name: "room_type", Type: core.TypeVarchar},
		{Name: "price_per_night", Source: "price", Type: core.TypeDecimal, Clean: transform.CleanPrice, Valid: nonNegativeDecimal},
		{Name: "minimum_nights", Type: core.TypeBigInt},
		{Name: "number_of_reviews", Type: core.TypeBigInt},
		{Name: "last_review_date", Source: "last_review", Type: core.TypeDate},
		{Name: "reviews_per_month", Type: core.TypeDouble},
		{Name: "calculated_host_listings_count", Type: core.TypeBigInt},
		{Name: "availability_365", Type: core.TypeBigInt},
		{Name: "ingested_at", Type: core.TypeTimestamp},
	},
}

// ReviewsSpec conforms raw reviews into stg_reviews.
var ReviewsSpec = transform.Spec{
	Source: SourceReviews,
	Columns: []transform.ColumnSpec{
		{Name: "review_id", Source: "id", Type: core.TypeBigInt, Required: true},
		{Name: "listing_id", Type: core.TypeBigInt, Required: true},
		{Name: "review_date", Source: "date", Type: core.TypeDate, Required: true},
		{Name: "reviewer_id", Type: core.TypeBigInt},
		{Name: "reviewer_name", Type: core.TypeVarchar},
		{Name: "review_comments", Source: "comments", Type: core.TypeVarchar},
		{Name: "ingested_at", Type: core.TypeTimestamp},
	},
}

// FullMoonDatesSpec conforms the full moon calendar. The raw table and the
// embedded seed both deliver a single full_moon_date column.
var FullMoonDatesSpec = transform.Spec{
	Source: SourceFullMoonDates,
	Columns: []transform.ColumnSpec{
		{Name: "full_moon_date", Type: core.TypeDate, Required: true},
	},
}

// StagingSpecs returns the spec of every staging model, one per raw table.
func StagingSpecs() []transform.Spec {
	return []transform.Spec{ListingsSpec, ReviewsSpec, FullMoonDatesSpec}
}

var (
	stageListings      = transform.Stage(StgListings, ListingsSpec)
	stageReviews       = transform.Stage(StgReviews, ReviewsSpec)
	stageFullMoonDates = transform.Stage(StgFullMoonDates, FullMoonDatesSpec)
)

func nonNegativeDecimal(v any) bool {
	d, ok := v.(decimal.Decimal)
	return ok && !d.IsNegative()
}
