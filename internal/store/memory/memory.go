package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"finreport/internal/core"
	"finreport/internal/store"
)

// Store keeps transactions, report history and settings in process memory.
// It backs local development and tests.
type Store struct {
	mu       sync.Mutex
	items    map[string][]core.Transaction
	reports  map[string][]store.ReportRecord
	settings map[string]store.ReportSetting
}

func New() *Store {
	return &Store{
		items:    make(map[string][]core.Transaction),
		reports:  make(map[string][]store.ReportRecord),
		settings: make(map[string]store.ReportSetting),
	}
}

// NewWithTransactions returns a store preloaded with txs.
func NewWithTransactions(txs []core.Transaction) *Store {
	s := New()
	for _, tx := range txs {
		s.items[tx.UserID] = append(s.items[tx.UserID], tx)
	}
	return s
}

// FetchTransactions returns matching transactions ordered by date.
func (s *Store) FetchTransactions(ctx context.Context, userID string, filter store.Filter, page *store.Pagination) ([]core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Transaction, 0, len(s.items[userID]))
	for _, tx := range s.items[userID] {
		if filter.Match(tx.Date) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return store.Paginate(out, page), nil
}

func (s *Store) InsertTransactions(ctx context.Context, txs []core.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		s.items[tx.UserID] = append(s.items[tx.UserID], tx)
	}
	return nil
}

func (s *Store) DeleteUserTransactions(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.items[userID]))
	delete(s.items, userID)
	return n, nil
}

func (s *Store) CountUserTransactions(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.items[userID])), nil
}

func (s *Store) SaveReport(_ context.Context, rec store.ReportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[rec.UserID] = append(s.reports[rec.UserID], rec)
	return nil
}

// ListReports returns the newest reports first.
func (s *Store) ListReports(_ context.Context, userID string, limit int) ([]store.ReportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := append([]store.ReportRecord(nil), s.reports[userID]...)
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].GeneratedAt.After(recs[j].GeneratedAt) })
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (s *Store) UpsertReportSetting(_ context.Context, setting store.ReportSetting) error {
	if setting.UpdatedAt.IsZero() {
		setting.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[setting.UserID] = setting
	return nil
}

func (s *Store) GetReportSetting(_ context.Context, userID string) (store.ReportSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setting, ok := s.settings[userID]
	if !ok {
		return store.ReportSetting{}, store.ErrNotFound
	}
	return setting, nil
}

func (s *Store) ListEnabledReportSettings(_ context.Context) ([]store.ReportSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.ReportSetting, 0, len(s.settings))
	for _, setting := range s.settings {
		if setting.Enabled {
			out = append(out, setting)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
