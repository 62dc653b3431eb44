package analytics

import (
	"encoding/json"
	"math"
	"math/rand"
	"reflect"
	"sort"
	"testing"
	"time"

	"finreport/internal/core"
)

func tx(typ core.TransactionType, category string, amount float64, date time.Time) core.Transaction {
	return core.Transaction{Type: typ, Category: category, Amount: amount, Date: date}
}

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 10, 0, 0, 0, 0, time.UTC)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.TotalIncome != 0 || s.TotalExpenses != 0 || s.NetBalance != 0 || s.SavingsRate != 0 {
		t.Fatalf("expected zero summary, got %+v", s)
	}
	if s.CategoryBreakdown == nil || len(s.CategoryBreakdown) != 0 {
		t.Fatalf("expected empty non-nil breakdown, got %v", s.CategoryBreakdown)
	}
}

func TestSummarizeTotals(t *testing.T) {
	d := month(2025, 1)
	s := Summarize([]core.Transaction{
		tx(core.Income, "Salary", 1000, d),
		tx(core.Expense, "Food", 300, d),
		tx(core.Expense, "Rent", 500, d),
		tx(core.Expense, "", 200, d),
		tx("TRANSFER", "Savings", 999, d),
	})

	if s.TotalIncome != 1000 || s.TotalExpenses != 1000 || s.NetBalance != 0 {
		t.Fatalf("unexpected totals: %+v", s)
	}
	if s.SavingsRate != 0 {
		t.Fatalf("savings rate = %v, want 0", s.SavingsRate)
	}
	if _, ok := s.CategoryBreakdown["Salary"]; ok {
		t.Fatalf("income must not appear in breakdown")
	}
	if s.CategoryBreakdown["Other"].Amount != 200 {
		t.Fatalf("blank category should fold into Other: %v", s.CategoryBreakdown)
	}
	if !approx(s.CategoryBreakdown["Rent"].Percentage, 50) {
		t.Fatalf("Rent percentage = %v", s.CategoryBreakdown["Rent"].Percentage)
	}
	if s.Transactions != 4 {
		t.Fatalf("expected 4 counted transactions, got %d", s.Transactions)
	}
}

func TestSummarizeSavingsRate(t *testing.T) {
	d := month(2025, 2)
	cases := []struct {
		name string
		txs  []core.Transaction
		want float64
	}{
		{"no income", []core.Transaction{tx(core.Expense, "Food", 50, d)}, 0},
		{"thirty percent", []core.Transaction{tx(core.Income, "", 1000, d), tx(core.Expense, "Food", 700, d)}, 30},
		{"overspent", []core.Transaction{tx(core.Income, "", 1000, d), tx(core.Expense, "Food", 1500, d)}, -50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Summarize(tc.txs)
			if !approx(s.SavingsRate, tc.want) {
				t.Fatalf("savings rate = %v, want %v", s.SavingsRate, tc.want)
			}
			if math.IsNaN(s.SavingsRate) || math.IsInf(s.SavingsRate, 0) {
				t.Fatalf("savings rate not finite")
			}
		})
	}
}

func TestSummarizeSkipsMalformed(t *testing.T) {
	d := month(2025, 3)
	s := Summarize([]core.Transaction{
		tx(core.Expense, "Food", -10, d),
		tx(core.Expense, "Food", math.NaN(), d),
		tx(core.Income, "", math.Inf(1), d),
		tx(core.Expense, "Food", 40, d),
	})
	if s.Skipped != 3 {
		t.Fatalf("expected 3 skipped, got %d", s.Skipped)
	}
	if s.TotalExpenses != 40 || s.TotalIncome != 0 {
		t.Fatalf("unexpected totals: %+v", s)
	}
}

func TestSummarizeIncomeOnlyPercentagesAreZero(t *testing.T) {
	s := Summarize([]core.Transaction{tx(core.Income, "", 10, month(2025, 1))})
	for cat, share := range s.CategoryBreakdown {
		if share.Percentage != 0 {
			t.Fatalf("%s percentage = %v, want 0", cat, share.Percentage)
		}
	}
}

func TestSummarizeBreakdownSumsTo100(t *testing.T) {
	d := month(2025, 4)
	s := Summarize([]core.Transaction{
		tx(core.Expense, "A", 1, d),
		tx(core.Expense, "B", 1, d),
		tx(core.Expense, "C", 1, d),
		tx(core.Expense, "D", 0.1, d),
		tx(core.Expense, "E", 7.77, d),
	})
	total := 0.0
	for _, share := range s.CategoryBreakdown {
		total += share.Percentage
	}
	if math.Abs(total-100) > 1e-6 {
		t.Fatalf("percentages sum to %v", total)
	}
}

func TestSummarizeBreakdownAmountsSumToTotal(t *testing.T) {
	d := month(2025, 4)
	txs := []core.Transaction{
		tx(core.Expense, "A", 0.1, d),
		tx(core.Expense, "B", 0.2, d),
		tx(core.Expense, "C", 0.7, d),
		tx(core.Expense, "D", 1234.56, d),
		tx(core.Expense, "E", 0.03, d),
		tx(core.Expense, "B", 19.99, d),
	}
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 20; i++ {
		rng.Shuffle(len(txs), func(a, b int) { txs[a], txs[b] = txs[b], txs[a] })
		s := Summarize(txs)

		names := make([]string, 0, len(s.CategoryBreakdown))
		for name := range s.CategoryBreakdown {
			names = append(names, name)
		}
		sort.Strings(names)
		sum := 0.0
		for _, name := range names {
			sum += s.CategoryBreakdown[name].Amount
		}
		if sum != s.TotalExpenses {
			t.Fatalf("breakdown sum = %v, total expenses = %v", sum, s.TotalExpenses)
		}
	}
}

func TestSummarizeOverflowStaysFinite(t *testing.T) {
	d := month(2025, 4)
	s := Summarize([]core.Transaction{
		tx(core.Income, "Salary", math.MaxFloat64, d),
		tx(core.Income, "Salary", math.MaxFloat64, d),
		tx(core.Expense, "Rent", math.MaxFloat64, d),
		tx(core.Expense, "Food", math.MaxFloat64, d),
		tx(core.Expense, "Food", 10, d),
	})

	for name, v := range map[string]float64{
		"income":   s.TotalIncome,
		"expenses": s.TotalExpenses,
		"net":      s.NetBalance,
		"savings":  s.SavingsRate,
	} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			t.Fatalf("%s = %v, want finite", name, v)
		}
	}
	if s.Skipped != 3 {
		t.Fatalf("skipped = %d, want 3", s.Skipped)
	}
	if s.TotalIncome != math.MaxFloat64 {
		t.Fatalf("income = %v, want MaxFloat64", s.TotalIncome)
	}
	if _, err := json.Marshal(s); err != nil {
		t.Fatalf("marshal summary: %v", err)
	}
}

func TestSummarizeTinyIncomeSavingsRateFinite(t *testing.T) {
	d := month(2025, 4)
	s := Summarize([]core.Transaction{
		tx(core.Income, "Salary", 1e-300, d),
		tx(core.Expense, "Rent", 1e300, d),
	})
	if math.IsInf(s.SavingsRate, 0) || math.IsNaN(s.SavingsRate) {
		t.Fatalf("savings rate = %v, want finite", s.SavingsRate)
	}
	if s.SavingsRate >= 0 {
		t.Fatalf("savings rate = %v, want negative", s.SavingsRate)
	}
}

func TestSummarizeOrderInsensitiveAndIdempotent(t *testing.T) {
	d := month(2025, 5)
	txs := []core.Transaction{
		tx(core.Income, "", 0.1, d),
		tx(core.Income, "", 0.2, d),
		tx(core.Expense, "Food", 0.3, d),
		tx(core.Expense, "Food", 12.34, d),
		tx(core.Expense, "Fuel", 99.99, d),
		tx(core.Expense, "Rent", 1000.01, d),
	}
	want := Summarize(txs)
	if want.TotalIncome != 0.3 {
		t.Fatalf("expected exact decimal sum 0.3, got %v", want.TotalIncome)
	}
	if again := Summarize(txs); !reflect.DeepEqual(want, again) {
		t.Fatalf("summarize is not idempotent")
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]core.Transaction, len(txs))
		copy(shuffled, txs)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		if got := Summarize(shuffled); !reflect.DeepEqual(want, got) {
			t.Fatalf("permutation %d changed the summary: %+v vs %+v", i, got, want)
		}
	}
}

func TestTopCategories(t *testing.T) {
	d := month(2025, 6)
	var txs []core.Transaction
	for i, name := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		txs = append(txs, tx(core.Expense, name, float64(10*(i+1)), d))
	}
	top := TopCategories(Summarize(txs), 5)
	if len(top) != 5 {
		t.Fatalf("expected 5 categories, got %d", len(top))
	}
	if top[0].Name != "G" || top[4].Name != "C" {
		t.Fatalf("unexpected order: %+v", top)
	}
	for i := 1; i < len(top); i++ {
		if top[i].Amount > top[i-1].Amount {
			t.Fatalf("not sorted descending: %+v", top)
		}
	}
}

func TestRoundForDisplay(t *testing.T) {
	cases := []struct {
		in     float64
		places int32
		want   float64
	}{
		{33.3333, 1, 33.3},
		{2.25, 1, 2.3},
		{-2.25, 1, -2.3},
		{100, 0, 100},
		{math.NaN(), 1, 0},
	}
	for _, tc := range cases {
		if got := RoundForDisplay(tc.in, tc.places); got != tc.want {
			t.Errorf("RoundForDisplay(%v, %d) = %v, want %v", tc.in, tc.places, got, tc.want)
		}
	}
}
