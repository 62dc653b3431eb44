package report

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"finreport/internal/cache"
	"finreport/internal/core"
	"finreport/internal/insights"
	"finreport/internal/seed"
	"finreport/internal/store"
	"finreport/internal/store/memory"
)

type failingFetcher struct{ err error }

func (f failingFetcher) FetchTransactions(context.Context, string, store.Filter, *store.Pagination) ([]core.Transaction, error) {
	return nil, f.err
}

type fakeInsights struct {
	mu    sync.Mutex
	out   []string
	err   error
	block bool
	seen  []insights.Input
}

func (f *fakeInsights) Generate(ctx context.Context, in insights.Input) ([]string, error) {
	f.mu.Lock()
	f.seen = append(f.seen, in)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.out, f.err
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	now := func() time.Time { return date(2025, 12, 15) }
	gen := seed.NewGenerator(seed.Options{OneOffs: true}, rand.New(rand.NewSource(11)), now)
	return memory.NewWithTransactions(gen.GenerateSyntheticHistory("u1", 12))
}

func TestBuildReportFullYear(t *testing.T) {
	st := seededStore(t)
	gen := &fakeInsights{out: []string{"one", "two", "three"}}
	a := NewAssembler(st, WithInsights(gen))

	rep, err := a.BuildReport(context.Background(), "u1", date(2025, 1, 1), date(2025, 12, 31))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rep.Summary.Income != 1200000 {
		t.Fatalf("income = %v, want 1200000", rep.Summary.Income)
	}
	if rep.Summary.SavingsRate < 25 || rep.Summary.SavingsRate > 35 {
		t.Fatalf("savings rate = %v, want about 30", rep.Summary.SavingsRate)
	}
	if n := len(rep.Summary.TopCategories); n == 0 || n > TopCategoryCount {
		t.Fatalf("top categories = %d", n)
	}
	for i := 1; i < len(rep.Summary.TopCategories); i++ {
		if rep.Summary.TopCategories[i].Amount > rep.Summary.TopCategories[i-1].Amount {
			t.Fatalf("top categories not sorted: %+v", rep.Summary.TopCategories)
		}
	}
	if rep.Summary.TopCategories[0].Name != "Housing" {
		t.Fatalf("expected Housing first, got %s", rep.Summary.TopCategories[0].Name)
	}
	if len(rep.Monthly) != 12 {
		t.Fatalf("expected 12 monthly buckets, got %d", len(rep.Monthly))
	}
	if rep.Forecast == nil || rep.Forecast.Month != "2026-01" {
		t.Fatalf("unexpected forecast %+v", rep.Forecast)
	}
	if len(rep.Insights) != 3 {
		t.Fatalf("insights = %q", rep.Insights)
	}
	if rep.Period != "Jan 1 - Dec 31, 2025" {
		t.Fatalf("period = %q", rep.Period)
	}
}

func TestBuildReportInsightFailureIsNotFatal(t *testing.T) {
	cases := []struct {
		name string
		gen  insights.Generator
		opts []Option
	}{
		{"error", &fakeInsights{err: insights.ErrInsightUnavailable}, nil},
		{"nil result", &fakeInsights{}, nil},
		{"timeout", &fakeInsights{block: true}, []Option{WithInsightTimeout(10 * time.Millisecond)}},
		{"disabled", nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := append([]Option{WithInsights(tc.gen)}, tc.opts...)
			a := NewAssembler(seededStore(t), opts...)
			rep, err := a.BuildReport(context.Background(), "u1", date(2025, 1, 1), date(2025, 12, 31))
			if err != nil {
				t.Fatalf("insight failure must not fail the report: %v", err)
			}
			if rep.Insights == nil || len(rep.Insights) != 0 {
				t.Fatalf("expected empty insights, got %v", rep.Insights)
			}
		})
	}
}

func TestBuildReportInvalidRange(t *testing.T) {
	a := NewAssembler(memory.New())
	_, err := a.BuildReport(context.Background(), "u1", date(2025, 2, 1), date(2025, 1, 1))
	if !errors.Is(err, core.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestBuildReportStoreFailureIsFatal(t *testing.T) {
	boom := errors.New("connection refused")
	gen := &fakeInsights{out: []string{"x"}}
	a := NewAssembler(failingFetcher{err: boom}, WithInsights(gen))

	_, err := a.BuildReport(context.Background(), "u1", date(2025, 1, 1), date(2025, 1, 31))
	if !errors.Is(err, ErrUpstreamUnavailable) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped upstream error, got %v", err)
	}
	if len(gen.seen) != 0 {
		t.Fatalf("insights must not be requested when the store fails")
	}
}

func TestBuildReportSingleMonthSkipsTrends(t *testing.T) {
	st := memory.NewWithTransactions([]core.Transaction{
		{UserID: "u1", Type: core.Income, Amount: 1000, Date: date(2025, 3, 1)},
		{UserID: "u1", Type: core.Expense, Amount: 400, Category: "Food", Date: date(2025, 3, 5)},
		{UserID: "u1", Type: core.Expense, Amount: -5, Category: "Food", Date: date(2025, 3, 6)},
	})
	rep, err := NewAssembler(st).BuildReport(context.Background(), "u1", date(2025, 3, 1), date(2025, 3, 31))
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Monthly) != 0 || len(rep.Trends) != 0 || rep.Forecast != nil {
		t.Fatalf("single month report should carry no trends: %+v", rep)
	}
	if rep.Summary.SavingsRate != 60 {
		t.Fatalf("savings rate = %v", rep.Summary.SavingsRate)
	}
	if rep.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", rep.Skipped)
	}
}

func TestBuildReportTrendsAndAnomalies(t *testing.T) {
	var txs []core.Transaction
	for m := 1; m <= 6; m++ {
		amount := 1000.0
		if m > 3 {
			amount = 2000
		}
		txs = append(txs, core.Transaction{UserID: "u1", Type: core.Expense, Category: "Food", Amount: amount, Date: date(2025, time.Month(m), 10)})
	}
	txs = append(txs, core.Transaction{UserID: "u1", Type: core.Expense, Category: "Food", Amount: 20000, Date: date(2025, 6, 20)})

	rep, err := NewAssembler(memory.NewWithTransactions(txs)).BuildReport(context.Background(), "u1", date(2025, 1, 1), date(2025, 6, 30))
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Trends) != 1 || rep.Trends[0].Direction != core.Increasing || rep.Trends[0].Impact != core.ImpactHigh {
		t.Fatalf("unexpected trends: %+v", rep.Trends)
	}
	if len(rep.Anomalies) != 1 || rep.Anomalies[0].Transaction.Amount != 20000 {
		t.Fatalf("unexpected anomalies: %+v", rep.Anomalies)
	}
}

func TestBuildReportSendsOnlyAggregates(t *testing.T) {
	st := memory.NewWithTransactions([]core.Transaction{
		{UserID: "u1", Type: core.Income, Amount: 1000, Date: date(2025, 3, 1), Title: "secret employer"},
		{UserID: "u1", Type: core.Expense, Amount: 250.555, Category: "Food", Date: date(2025, 3, 5), Description: "private note"},
	})
	gen := &fakeInsights{out: []string{"a"}}
	if _, err := NewAssembler(st, WithInsights(gen)).BuildReport(context.Background(), "u1", date(2025, 3, 1), date(2025, 3, 31)); err != nil {
		t.Fatal(err)
	}
	if len(gen.seen) != 1 {
		t.Fatalf("expected one insight call")
	}
	in := gen.seen[0]
	if in.Income != 1000 || in.Expenses != 250.56 || len(in.Categories) != 1 || in.Categories[0].Name != "Food" {
		t.Fatalf("unexpected insight input: %+v", in)
	}
	if in.PeriodLabel != "Mar 1 - Mar 31, 2025" {
		t.Fatalf("period label = %q", in.PeriodLabel)
	}
}

func TestBuildRollingReport(t *testing.T) {
	st := seededStore(t)
	a := NewAssembler(st, WithClock(func() time.Time { return date(2025, 12, 20) }))
	rep, err := a.BuildRollingReport(context.Background(), "u1", 6)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.From.Equal(date(2025, 7, 1)) || len(rep.Monthly) != 6 {
		t.Fatalf("unexpected rolling window: from=%v months=%d", rep.From, len(rep.Monthly))
	}
	if _, err := a.BuildRollingReport(context.Background(), "u1", 0); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

type countingBuilder struct {
	calls int
	next  Builder
}

func (c *countingBuilder) BuildReport(ctx context.Context, userID string, from, to time.Time) (*Report, error) {
	c.calls++
	return c.next.BuildReport(ctx, userID, from, to)
}

func TestCachedBuilder(t *testing.T) {
	counter := &countingBuilder{next: NewAssembler(seededStore(t))}
	cached := NewCachedBuilder(counter, cache.NewLRUCache[*Report](10, time.Minute))
	ctx := context.Background()

	first, err := cached.BuildReport(ctx, "u1", date(2025, 1, 1), date(2025, 3, 31))
	if err != nil {
		t.Fatal(err)
	}
	second, _ := cached.BuildReport(ctx, "u1", date(2025, 1, 1), date(2025, 3, 31))
	if counter.calls != 1 || first != second {
		t.Fatalf("expected cache hit, calls=%d", counter.calls)
	}

	if _, err := cached.BuildReport(ctx, "u1", date(2025, 1, 1), date(2025, 4, 30)); err != nil {
		t.Fatal(err)
	}
	if counter.calls != 2 {
		t.Fatalf("different range should miss, calls=%d", counter.calls)
	}

	if n := cached.Invalidate("u1"); n != 2 {
		t.Fatalf("invalidated %d entries, want 2", n)
	}
	_, _ = cached.BuildReport(ctx, "u1", date(2025, 1, 1), date(2025, 3, 31))
	if counter.calls != 3 {
		t.Fatalf("expected rebuild after invalidation, calls=%d", counter.calls)
	}

	if _, err := cached.BuildReport(ctx, "u1", date(2025, 5, 1), date(2025, 1, 1)); !errors.Is(err, core.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}
