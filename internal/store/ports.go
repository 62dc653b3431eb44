// Package store declares the ports the report engine uses to reach
// persistence. Adapters live in subpackages (memory, mongo, bigquery) and in
// internal/storage (SQL) and internal/sheets/google (spreadsheets).
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finreport/internal/core"
)

// DefaultPageSize is used by FetchAll when the caller passes zero.
const DefaultPageSize = 500

var (
	ErrReadOnly = errors.New("store is read-only")
	ErrNotFound = errors.New("not found")
)

type (
	// Filter selects transactions whose economic date is within [From, To].
	// A zero bound is open.
	Filter struct {
		From time.Time
		To   time.Time
	}

	Pagination struct {
		Limit  int
		Offset int
	}

	// ReportRecord is a generated report kept for the history view. Payload
	// is the JSON encoded report.
	ReportRecord struct {
		ID          string    `json:"id"`
		UserID      string    `json:"userId"`
		From        time.Time `json:"from"`
		To          time.Time `json:"to"`
		Payload     []byte    `json:"-"`
		GeneratedAt time.Time `json:"generatedAt"`
	}

	// ReportSetting controls scheduled report generation for one user.
	ReportSetting struct {
		UserID    string    `json:"userId"`
		Enabled   bool      `json:"enabled"`
		Months    int       `json:"months"`
		UpdatedAt time.Time `json:"updatedAt"`
	}
)

// Ports for outbound adapters.
type (
	// TransactionFetcher returns a user's transactions in any order. A nil
	// page returns everything.
	TransactionFetcher interface {
		FetchTransactions(ctx context.Context, userID string, filter Filter, page *Pagination) ([]core.Transaction, error)
	}

	TransactionWriter interface {
		InsertTransactions(ctx context.Context, txs []core.Transaction) error
		DeleteUserTransactions(ctx context.Context, userID string) (int64, error)
		CountUserTransactions(ctx context.Context, userID string) (int64, error)
	}

	TransactionStore interface {
		TransactionFetcher
		TransactionWriter
	}

	ReportHistory interface {
		SaveReport(ctx context.Context, rec ReportRecord) error
		ListReports(ctx context.Context, userID string, limit int) ([]ReportRecord, error)
	}

	ReportSettings interface {
		UpsertReportSetting(ctx context.Context, s ReportSetting) error
		GetReportSetting(ctx context.Context, userID string) (ReportSetting, error)
		ListEnabledReportSettings(ctx context.Context) ([]ReportSetting, error)
	}
)

// Match reports whether t's calendar day falls inside the filter bounds.
func (f Filter) Match(t time.Time) bool {
	d := core.CalendarDay(t)
	if !f.From.IsZero() && d.Before(core.CalendarDay(f.From)) {
		return false
	}
	if !f.To.IsZero() && d.After(core.CalendarDay(f.To)) {
		return false
	}
	return true
}

// FilterFor converts a period to a filter.
func FilterFor(p core.Period) Filter {
	return Filter{From: p.From, To: p.To}
}

// FetchAll pages through the fetcher until a short page is returned.
func FetchAll(ctx context.Context, f TransactionFetcher, userID string, filter Filter, pageSize int) ([]core.Transaction, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	var all []core.Transaction
	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := f.FetchTransactions(ctx, userID, filter, &Pagination{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("fetch page at offset %d: %w", offset, err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// Paginate applies page to an already filtered slice.
func Paginate[T any](items []T, page *Pagination) []T {
	if page == nil {
		return items
	}
	if page.Offset >= len(items) {
		return []T{}
	}
	items = items[max(page.Offset, 0):]
	if page.Limit > 0 && len(items) > page.Limit {
		items = items[:page.Limit]
	}
	return items
}
