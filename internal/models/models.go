// Package models declares the listings pipeline: raw tables, the models that
// conform them layer by layer, and the standing data-quality rules.
package models

import (
	"fmt"

	"github.com/leapstack-labs/leapflow/internal/registry"
	"github.com/leapstack-labs/leapflow/pkg/core"
)

// Raw table names.
const (
	SourceListings      = "listings"
	SourceReviews       = "reviews"
	SourceFullMoonDates = "full_moon_dates"
)

// Model names. Each is also the materialized table name.
const (
	StgListings             = "stg_listings"
	StgReviews              = "stg_reviews"
	StgFullMoonDates        = "stg_full_moon_dates"
	DimListings             = "dim_listings"
	FactReviews             = "fact_reviews"
	AggNeighbourhoodMetrics = "agg_neighbourhood_metrics"
	MartFullMoonReviews     = "mart_fullmoon_reviews"
)

// Options configures how the pipeline models are registered.
type Options struct {
	// CastPolicy is the default for every staging model
	CastPolicy core.CastPolicy
	// Overrides maps a model name to its own cast policy
	Overrides map[string]core.CastPolicy
}

func (o Options) policyFor(name string) core.CastPolicy {
	if p, ok := o.Overrides[name]; ok && p != "" {
		return p
	}
	if o.CastPolicy != "" {
		return o.CastPolicy
	}
	return core.CastLenient
}

// Sources returns the raw tables the pipeline reads.
func Sources() []string {
	return []string{SourceListings, SourceReviews, SourceFullMoonDates}
}

// Definitions returns the pipeline models in registration order.
func Definitions() []*core.Model {
	return []*core.Model{
		{
			Name:        StgListings,
			Layer:       core.LayerStaging,
			Refs:        []string{SourceListings},
			Description: "Typed, cleaned listings; rows without a listing id are dropped",
			Transform:   stageListings,
		},
		{
			Name:        StgReviews,
			Layer:       core.LayerStaging,
			Refs:        []string{SourceReviews},
			Description: "Typed reviews; rows without review id, listing id or date are dropped",
			Transform:   stageReviews,
		},
		{
			Name:        StgFullMoonDates,
			Layer:       core.LayerStaging,
			Refs:        []string{SourceFullMoonDates},
			Description: "Full moon calendar dates",
			Transform:   stageFullMoonDates,
		},
		{
			Name:        DimListings,
			Layer:       core.LayerDimensional,
			Refs:        []string{StgListings},
			Description: "Listings with price and review categories",
			Transform:   buildDimListings,
		},
		{
			Name:        FactReviews,
			Layer:       core.LayerDimensional,
			Refs:        []string{StgReviews, StgListings},
			Description: "Reviews left-joined to listings with calendar fields",
			Transform:   buildFactReviews,
		},
		{
			Name:        AggNeighbourhoodMetrics,
			Layer:       core.LayerAggregation,
			Refs:        []string{DimListings},
			Description: "Per-neighbourhood listing metrics",
			Transform:   aggregateNeighbourhoods,
		},
		{
			Name:        MartFullMoonReviews,
			Layer:       core.LayerAggregation,
			Refs:        []string{FactReviews, StgFullMoonDates},
			Description: "Reviews flagged when written the day after a full moon",
			Transform:   buildFullMoonReviews,
		},
	}
}

// Register declares the raw tables and registers every pipeline model.
func Register(r *registry.ModelRegistry, opts Options) error {
	for name := range opts.Overrides {
		if !isModel(name) {
			return fmt.Errorf("cast policy override for unknown model %q", name)
		}
	}

	for _, src := range Sources() {
		r.RegisterSource(src)
	}
	for _, m := range Definitions() {
		m.CastPolicy = opts.policyFor(m.Name)
		if err := r.Register(m); err != nil {
			return fmt.Errorf("register %s: %w", m.Name, err)
		}
	}
	return nil
}

func isModel(name string) bool {
	switch name {
	case StgListings, StgReviews, StgFullMoonDates, DimListings,
		FactReviews, AggNeighbourhoodMetrics, MartFullMoonReviews:
		return true
	}
	return false
}
