package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"finreport/internal/core"
)

// Trend policy. The recent window is compared against the window right
// before it; changes are in percent.
const (
	TrendWindowMonths    = 3
	TrendEmitThreshold   = 5.0
	TrendMediumThreshold = 10.0
	TrendHighThreshold   = 20.0
)

// TrendAnalysis holds the monthly expense buckets of a window, oldest first,
// and the category trends derived from them.
type TrendAnalysis struct {
	Buckets []core.MonthlyBucket `json:"buckets"`
	Trends  []core.TrendRecord   `json:"trends"`
}

// AnalyzeTrends buckets EXPENSE transactions over the windowMonths calendar
// months ending at the month of the most recent valid transaction. A
// windowMonths below 1 covers everything from the oldest transaction.
func AnalyzeTrends(txs []core.Transaction, windowMonths int, watched ...string) TrendAnalysis {
	first, last, ok := dateBounds(txs)
	if !ok {
		return TrendAnalysis{Buckets: []core.MonthlyBucket{}, Trends: []core.TrendRecord{}}
	}
	if windowMonths > 0 {
		start := firstOfMonth(last).AddDate(0, -(windowMonths - 1), 0)
		first = start
	}
	keys := core.MonthKeysBetween(first, last)
	return analyze(txs, keys, watched)
}

// AnalyzeTrendsInPeriod buckets the EXPENSE transactions dated inside period,
// emitting a bucket for every month the period touches. Watched categories
// are always reported, even when stable.
func AnalyzeTrendsInPeriod(txs []core.Transaction, period core.Period, watched ...string) TrendAnalysis {
	inside := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if period.Contains(tx.Date) {
			inside = append(inside, tx)
		}
	}
	return analyze(inside, period.MonthKeys(), watched)
}

func analyze(txs []core.Transaction, keys []string, watched []string) TrendAnalysis {
	buckets := buildBuckets(txs, keys)
	return TrendAnalysis{Buckets: buckets, Trends: categoryTrends(buckets, watched)}
}

// buildBuckets returns one bucket per key, in key order. Transactions whose
// month is not among keys are dropped.
func buildBuckets(txs []core.Transaction, keys []string) []core.MonthlyBucket {
	index := make(map[string]int, len(keys))
	totals := make([]decimal.Decimal, len(keys))
	cats := make([]map[string]decimal.Decimal, len(keys))
	for i, k := range keys {
		index[k] = i
		cats[i] = make(map[string]decimal.Decimal)
	}

	for _, tx := range txs {
		if tx.Type != core.Expense || !core.ValidAmount(tx.Amount) || tx.Date.IsZero() {
			continue
		}
		i, ok := index[core.MonthKey(tx.Date)]
		if !ok {
			continue
		}
		amount := decimal.NewFromFloat(tx.Amount)
		cat := core.NormalizeCategory(tx.Category)
		totals[i] = totals[i].Add(amount)
		cats[i][cat] = cats[i][cat].Add(amount)
	}

	buckets := make([]core.MonthlyBucket, len(keys))
	for i, k := range keys {
		b := core.MonthlyBucket{
			Month:      k,
			Total:      finite(totals[i]),
			Categories: make(map[string]float64, len(cats[i])),
		}
		for cat, amount := range cats[i] {
			b.Categories[cat] = finite(amount)
		}
		buckets[i] = b
	}
	return buckets
}

// categoryTrends compares the mean of the last TrendWindowMonths buckets
// with the mean of the buckets right before them. Averages use the number of
// buckets actually available, so short windows still compare like with like.
func categoryTrends(buckets []core.MonthlyBucket, watched []string) []core.TrendRecord {
	names := make(map[string]bool)
	for _, b := range buckets {
		for cat := range b.Categories {
			names[cat] = false
		}
	}
	for _, w := range watched {
		names[core.NormalizeCategory(w)] = true
	}

	n := len(buckets)
	recentStart := max(0, n-TrendWindowMonths)
	previousStart := max(0, recentStart-TrendWindowMonths)

	trends := make([]core.TrendRecord, 0, len(names))
	for cat, always := range names {
		recent := meanOf(buckets[recentStart:], cat)
		previous := meanOf(buckets[previousStart:recentStart], cat)

		change := 0.0
		if previous > 0 {
			change = (recent - previous) / previous * 100
		}
		if math.Abs(change) <= TrendEmitThreshold && !always {
			continue
		}
		direction, impact := classifyChange(change)
		trends = append(trends, core.TrendRecord{
			Category:         cat,
			ChangePercentage: change,
			Direction:        direction,
			Impact:           impact,
			RecentAverage:    recent,
			PreviousAverage:  previous,
		})
	}

	sort.Slice(trends, func(i, j int) bool {
		ai, aj := math.Abs(trends[i].ChangePercentage), math.Abs(trends[j].ChangePercentage)
		if ai != aj {
			return ai > aj
		}
		return trends[i].Category < trends[j].Category
	})
	return trends
}

func classifyChange(change float64) (core.TrendDirection, core.Impact) {
	direction := core.Increasing
	if change < 0 {
		direction = core.Decreasing
	}
	switch mag := math.Abs(change); {
	case mag > TrendHighThreshold:
		return direction, core.ImpactHigh
	case mag > TrendMediumThreshold:
		return direction, core.ImpactMedium
	default:
		return core.Stable, core.ImpactLow
	}
}

func meanOf(buckets []core.MonthlyBucket, cat string) float64 {
	if len(buckets) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, b := range buckets {
		sum = sum.Add(decimal.NewFromFloat(b.Categories[cat]))
	}
	return finite(sum.Div(decimal.NewFromInt(int64(len(buckets)))))
}

// dateBounds returns the oldest and newest dates among transactions that
// would be bucketed.
func dateBounds(txs []core.Transaction) (first, last time.Time, ok bool) {
	for _, tx := range txs {
		if tx.Type != core.Expense || !core.ValidAmount(tx.Amount) || tx.Date.IsZero() {
			continue
		}
		if !ok || tx.Date.Before(first) {
			first = tx.Date
		}
		if !ok || tx.Date.After(last) {
			last = tx.Date
		}
		ok = true
	}
	return first, last, ok
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
