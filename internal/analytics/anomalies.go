package analytics

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"finreport/internal/core"
)

// Anomaly policy, expressed as relative distance from the category mean.
const (
	AnomalyThreshold      = 1.5
	AnomalyMediumVariance = 2.0
	AnomalyHighVariance   = 3.0
)

// DetectAnomalies flags EXPENSE transactions that exceed their category mean
// by more than AnomalyThreshold times that mean. Underspending is never
// flagged. Results keep input order; use TopAnomalies to rank them.
func DetectAnomalies(txs []core.Transaction) []core.Anomaly {
	sums := make(map[string]decimal.Decimal)
	counts := make(map[string]int64)
	for _, tx := range txs {
		if tx.Type != core.Expense || !core.ValidAmount(tx.Amount) {
			continue
		}
		cat := core.NormalizeCategory(tx.Category)
		sums[cat] = sums[cat].Add(decimal.NewFromFloat(tx.Amount))
		counts[cat]++
	}

	averages := make(map[string]float64, len(sums))
	for cat, sum := range sums {
		averages[cat] = finite(sum.Div(decimal.NewFromInt(counts[cat])))
	}

	anomalies := []core.Anomaly{}
	for _, tx := range txs {
		if tx.Type != core.Expense || !core.ValidAmount(tx.Amount) {
			continue
		}
		avg := averages[core.NormalizeCategory(tx.Category)]
		if avg <= 0 || tx.Amount <= avg {
			continue
		}
		variance := math.Abs(tx.Amount-avg) / avg
		if variance <= AnomalyThreshold {
			continue
		}
		anomalies = append(anomalies, core.Anomaly{
			Transaction:    tx,
			ExpectedAmount: math.Round(avg),
			Variance:       variance,
			Severity:       classifyVariance(variance),
		})
	}
	return anomalies
}

// TopAnomalies returns a copy of anomalies sorted by variance descending and
// truncated to n entries. Ties keep their original relative order.
func TopAnomalies(anomalies []core.Anomaly, n int) []core.Anomaly {
	out := make([]core.Anomaly, len(anomalies))
	copy(out, anomalies)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Variance > out[j].Variance
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func classifyVariance(v float64) core.Severity {
	switch {
	case v > AnomalyHighVariance:
		return core.SeverityHigh
	case v > AnomalyMediumVariance:
		return core.SeverityMedium
	default:
		return core.SeverityLow
	}
}
