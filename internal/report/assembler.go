// Package report assembles period reports: it fetches a user's transactions,
// runs the analytics over them and optionally asks an insight generator for
// narrative text.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"finreport/internal/analytics"
	"finreport/internal/core"
	"finreport/internal/insights"
	"finreport/internal/log"
	"finreport/internal/store"
)

var (
	// ErrUpstreamUnavailable wraps every failure of the transaction store.
	ErrUpstreamUnavailable = errors.New("transaction store unavailable")
	ErrInvalidWindow       = errors.New("rolling window must cover at least one month")
)

// Builder is implemented by Assembler and CachedBuilder.
type Builder interface {
	BuildReport(ctx context.Context, userID string, from, to time.Time) (*Report, error)
}

type Assembler struct {
	fetcher        store.TransactionFetcher
	insights       insights.Generator
	logger         *log.Logger
	now            func() time.Time
	pageSize       int
	insightTimeout time.Duration
}

type Option func(*Assembler)

// WithInsights enables narrative insights. A nil generator disables them.
func WithInsights(g insights.Generator) Option {
	return func(a *Assembler) { a.insights = g }
}

func WithLogger(l *log.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l.WithComponent(log.ComponentReport)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithInsightTimeout bounds the insight call independently of the caller's
// context.
func WithInsightTimeout(d time.Duration) Option {
	return func(a *Assembler) { a.insightTimeout = d }
}

// WithPageSize sets the page size used when reading from the store.
func WithPageSize(n int) Option {
	return func(a *Assembler) { a.pageSize = n }
}

func NewAssembler(fetcher store.TransactionFetcher, opts ...Option) *Assembler {
	a := &Assembler{
		fetcher:        fetcher,
		logger:         log.Default(log.ComponentReport),
		now:            time.Now,
		pageSize:       store.DefaultPageSize,
		insightTimeout: insights.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BuildRollingReport reports on the current month and the months-1 before it.
func (a *Assembler) BuildRollingReport(ctx context.Context, userID string, months int) (*Report, error) {
	if months < 1 {
		return nil, ErrInvalidWindow
	}
	p := core.RollingMonths(a.now(), months)
	return a.BuildReport(ctx, userID, p.From, p.To)
}

// BuildReport builds the report for [from, to], both days inclusive.
//
// Store failures are returned wrapped in ErrUpstreamUnavailable. Insight
// failures are logged and leave Insights empty.
func (a *Assembler) BuildReport(ctx context.Context, userID string, from, to time.Time) (*Report, error) {
	period, err := core.NewPeriod(from, to)
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}
	fields := log.NewFields().WithReport(userID, period.From, period.To)

	raw, err := store.FetchAll(ctx, a.fetcher, userID, store.FilterFor(period), a.pageSize)
	if err != nil {
		a.logger.LogWith(ctx, slog.LevelError, "Transaction fetch failed",
			fields.WithError(err).WithErrorType(log.ErrorTypeUpstream).WithOperation(log.OpFetch))
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	txs, rejected := core.Ingest(raw)
	txs = inPeriod(txs, period)
	summary := analytics.Summarize(txs)

	rep := &Report{
		ID:               uuid.NewString(),
		UserID:           userID,
		Period:           period.Label(),
		From:             period.From,
		To:               period.To,
		Summary:          newSummary(summary),
		Breakdown:        analytics.SortedCategories(summary),
		Monthly:          []core.MonthlyBucket{},
		Trends:           []core.TrendRecord{},
		Anomalies:        []core.Anomaly{},
		CategoryAverages: []analytics.CategorySpend{},
		Insights:         []string{},
		TransactionCount: summary.Transactions,
		Skipped:          summary.Skipped + rejected,
	}

	g, gctx := errgroup.WithContext(ctx)
	if period.SpansMonths() {
		g.Go(func() error {
			analysis := analytics.AnalyzeTrendsInPeriod(txs, period)
			rep.Monthly = analysis.Buckets
			rep.Trends = analysis.Trends
			rep.CategoryAverages = analytics.CategoryAverages(analysis.Buckets)
			if f, ok := analytics.ForecastNextMonth(analysis.Buckets); ok {
				rep.Forecast = &f
			}
			return nil
		})
	}
	g.Go(func() error {
		rep.Anomalies = analytics.TopAnomalies(analytics.DetectAnomalies(txs), -1)
		return nil
	})
	g.Go(func() error {
		rep.Insights = a.generateInsights(gctx, period, rep.Summary, rep.Breakdown, fields)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("assemble report: %w", err)
	}

	rep.GeneratedAt = a.now().UTC()
	a.logger.LogWith(ctx, slog.LevelInfo, "Report built",
		fields.WithCounts(rep.TransactionCount, rep.Skipped).WithOperation(log.OpBuild))
	return rep, nil
}

// generateInsights never fails: any error is logged and yields no insights.
func (a *Assembler) generateInsights(ctx context.Context, period core.Period, s Summary, breakdown []core.CategoryAmount, fields log.LogFields) []string {
	if a.insights == nil {
		return []string{}
	}

	in := insights.Input{
		PeriodLabel: period.Label(),
		Income:      analytics.RoundForDisplay(s.Income, 2),
		Expenses:    analytics.RoundForDisplay(s.Expenses, 2),
		Balance:     analytics.RoundForDisplay(s.Balance, 2),
		SavingsRate: analytics.RoundForDisplay(s.SavingsRate, 1),
		Categories:  make([]insights.CategoryFigure, 0, len(breakdown)),
	}
	for _, c := range breakdown {
		in.Categories = append(in.Categories, insights.CategoryFigure{
			Name:       c.Name,
			Amount:     analytics.RoundForDisplay(c.Amount, 2),
			Percentage: analytics.RoundForDisplay(c.Percentage, 1),
		})
	}

	if a.insightTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.insightTimeout)
		defer cancel()
	}

	out, err := a.insights.Generate(ctx, in)
	if err != nil {
		a.logger.WarnContext(ctx, "Insight generation failed, continuing without insights",
			log.FieldUserID, fields[log.FieldUserID],
			log.FieldOperation, log.OpGenerate,
			log.FieldError, err.Error())
		return []string{}
	}
	if out == nil {
		return []string{}
	}
	return out
}

func newSummary(s core.PeriodSummary) Summary {
	return Summary{
		Income:        s.TotalIncome,
		Expenses:      s.TotalExpenses,
		Balance:       s.NetBalance,
		SavingsRate:   s.SavingsRate,
		TopCategories: analytics.TopCategories(s, TopCategoryCount),
	}
}

// inPeriod drops transactions a store returned outside the requested range.
func inPeriod(txs []core.Transaction, p core.Period) []core.Transaction {
	out := txs[:0]
	for _, tx := range txs {
		if p.Contains(tx.Date) {
			out = append(out, tx)
		}
	}
	return out
}
