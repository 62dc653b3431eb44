// Package analytics reduces transaction lists into period summaries, monthly
// trends, anomaly flags and short-term forecasts.
//
// Every function in this package is pure: inputs are never mutated, no state
// is shared between calls, and results do not depend on input order. Sums are
// accumulated with exact decimal arithmetic and only converted back to float64
// at the end, which keeps totals identical for any permutation of the input.
package analytics

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"finreport/internal/core"
)

var (
	hundred = decimal.NewFromInt(100)
	// maxTotal is the largest sum that still converts to a finite float64.
	maxTotal = decimal.NewFromFloat(math.MaxFloat64)
)

// Summarize computes totals, savings rate and the expense breakdown of txs.
// Rows with negative or non-finite amounts are skipped and counted, as are
// rows that would push a total past the float64 range. Rows with an unknown
// type are ignored.
//
// TotalExpenses is the sum of the breakdown amounts in category-name order,
// so the breakdown always adds up to it exactly.
func Summarize(txs []core.Transaction) core.PeriodSummary {
	income := decimal.Zero
	expenses := decimal.Zero
	byCategory := make(map[string]decimal.Decimal)
	counted, skipped := 0, 0

	for _, tx := range txs {
		if !core.ValidAmount(tx.Amount) {
			skipped++
			continue
		}
		amount := decimal.NewFromFloat(tx.Amount)
		switch tx.Type {
		case core.Income:
			if income.Add(amount).GreaterThan(maxTotal) {
				skipped++
				continue
			}
			income = income.Add(amount)
		case core.Expense:
			if expenses.Add(amount).GreaterThan(maxTotal) {
				skipped++
				continue
			}
			expenses = expenses.Add(amount)
			cat := core.NormalizeCategory(tx.Category)
			byCategory[cat] = byCategory[cat].Add(amount)
		default:
			continue
		}
		counted++
	}

	net := income.Sub(expenses)
	summary := core.PeriodSummary{
		TotalIncome:       finite(income),
		NetBalance:        finite(net),
		SavingsRate:       ratioPercent(net, income),
		CategoryBreakdown: make(map[string]core.CategoryShare, len(byCategory)),
		Transactions:      counted,
		Skipped:           skipped,
	}

	names := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		names = append(names, cat)
	}
	sort.Strings(names)
	total := 0.0
	for _, cat := range names {
		amount := byCategory[cat]
		share := core.CategoryShare{
			Amount:     finite(amount),
			Percentage: ratioPercent(amount, expenses),
		}
		summary.CategoryBreakdown[cat] = share
		total += share.Amount
	}
	summary.TotalExpenses = clampFloat(total)
	return summary
}

// SortedCategories returns the breakdown ordered by amount descending, ties
// broken by name.
func SortedCategories(s core.PeriodSummary) []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(s.CategoryBreakdown))
	for name, share := range s.CategoryBreakdown {
		out = append(out, core.CategoryAmount{Name: name, Amount: share.Amount, Percentage: share.Percentage})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TopCategories returns at most n entries of SortedCategories.
func TopCategories(s core.PeriodSummary, n int) []core.CategoryAmount {
	sorted := SortedCategories(s)
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// RoundForDisplay rounds v half away from zero to the given decimal places.
func RoundForDisplay(v float64, places int32) float64 {
	if !core.ValidAmount(abs(v)) {
		return 0
	}
	return finite(decimal.NewFromFloat(v).Round(places))
}

// ratioPercent returns num/den*100, or 0 when den is not positive.
func ratioPercent(num, den decimal.Decimal) float64 {
	if !den.IsPositive() {
		return 0
	}
	return finite(num.Div(den).Mul(hundred))
}

// finite converts d to float64, clamping values beyond the float64 range.
func finite(d decimal.Decimal) float64 {
	return clampFloat(d.InexactFloat64())
}

func clampFloat(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
