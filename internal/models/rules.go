package models

import (
	"github.com/leapstack-labs/leapflow/internal/validate"
	"github.com/leapstack-labs/leapflow/pkg/core"
)

// Standing rule names.
const (
	RulePricePositive      = "dim_listings_price_positive"
	RuleCoordinatesInRange = "dim_listings_coordinates_in_range"
	coordinatesOutOfRange  = "latitude < -90 OR latitude > 90 OR longitude < -180 OR longitude > 180"
)

// StandingRules returns the data-quality rules checked after every run.
func StandingRules() []validate.Rule {
	return []validate.Rule{
		validate.Predicate(RulePricePositive, DimListings, "price_per_night <= 0").
			WithDescription("Listing prices must be positive"),
		validate.Predicate(RuleCoordinatesInRange, DimListings, coordinatesOutOfRange).
			WithDescription("Coordinates must be valid WGS84 latitude and longitude"),
		validate.NotNull(DimListings, "listing_id"),
		validate.Unique(DimListings, "listing_id"),
		validate.AcceptedValues(DimListings, "price_category", PriceCategories()...),
		validate.AcceptedValues(DimListings, "review_category", ReviewCategories()...),
		// orphan reviews are kept by fact_reviews
		validate.Relationships(FactReviews, "listing_id", DimListings, "listing_id").
			WithSeverity(core.SeverityWarn),
	}
}
