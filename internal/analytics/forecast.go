package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"finreport/internal/core"
)

// ForecastMonths is how many trailing buckets feed the next-month projection.
const ForecastMonths = 6

// CategorySpend compares a category's latest month with its window average.
type CategorySpend struct {
	Category string  `json:"category"`
	Current  float64 `json:"current"`
	Average  float64 `json:"average"`
}

// ForecastNextMonth projects the month after the last bucket as the mean of
// the trailing ForecastMonths bucket totals. It reports false when there are
// no buckets to project from.
func ForecastNextMonth(buckets []core.MonthlyBucket) (core.Forecast, bool) {
	if len(buckets) == 0 {
		return core.Forecast{}, false
	}
	next, err := core.NextMonthKey(buckets[len(buckets)-1].Month)
	if err != nil {
		return core.Forecast{}, false
	}

	tail := buckets[max(0, len(buckets)-ForecastMonths):]
	sum := decimal.Zero
	for _, b := range tail {
		sum = sum.Add(decimal.NewFromFloat(b.Total))
	}
	return core.Forecast{
		Month:          next,
		ExpectedAmount: finite(sum.Div(decimal.NewFromInt(int64(len(tail))))),
		BasedOnMonths:  len(tail),
	}, true
}

// CategoryAverages lists every category seen in buckets with its spend in
// the most recent bucket and its mean over all buckets, highest average first.
func CategoryAverages(buckets []core.MonthlyBucket) []CategorySpend {
	if len(buckets) == 0 {
		return []CategorySpend{}
	}
	seen := make(map[string]struct{})
	for _, b := range buckets {
		for cat := range b.Categories {
			seen[cat] = struct{}{}
		}
	}

	latest := buckets[len(buckets)-1]
	out := make([]CategorySpend, 0, len(seen))
	for cat := range seen {
		out = append(out, CategorySpend{
			Category: cat,
			Current:  latest.Categories[cat],
			Average:  meanOf(buckets, cat),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Average != out[j].Average {
			return out[i].Average > out[j].Average
		}
		return out[i].Category < out[j].Category
	})
	return out
}
