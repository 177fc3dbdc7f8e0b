package models

import (
	"context"
	"time"

	"github.com/leapstack-labs/leapflow/pkg/core"
)

// Full moon flag values.
const (
	FullMoon    = "full moon"
	NotFullMoon = "not full moon"
)

// buildFullMoonReviews flags reviews written the day after a full moon.
func buildFullMoonReviews(ctx context.Context, in core.Inputs, _ core.CastPolicy) (*core.Table, core.TransformStats, error) {
	var stats core.TransformStats

	facts, err := in.Table(FactReviews)
	if err != nil {
		return nil, stats, err
	}
	moons, err := in.Table(StgFullMoonDates)
	if err != nil {
		return nil, stats, err
	}
	if err := facts.RequireColumns("review_date"); err != nil {
		return nil, stats, err
	}
	if err := moons.RequireColumns("full_moon_date"); err != nil {
		return nil, stats, err
	}

	dayAfter := make(map[time.Time]struct{}, moons.Len())
	moonIdx := moons.Index("full_moon_date")
	for _, row := range moons.Rows {
		if d, ok := row[moonIdx].(time.Time); ok {
			dayAfter[core.DateOf(d).AddDate(0, 0, 1)] = struct{}{}
		}
	}

	cols := append(append([]core.Column{}, facts.Columns...),
		core.Column{Name: "is_full_moon", Type: core.TypeVarchar})
	out := core.NewTable(MartFullMoonReviews, cols...)

	dateIdx := facts.Index("review_date")
	stats.RowsIn = int64(facts.Len())
	for _, src := range facts.Rows {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		flag := NotFullMoon
		if d, ok := src[dateIdx].(time.Time); ok {
			if _, hit := dayAfter[core.DateOf(d)]; hit {
				flag = FullMoon
			}
		}

		row := make(core.Row, 0, len(cols))
		row = append(row, src...)
		out.Append(append(row, flag))
	}
	return out, stats, nil
}
