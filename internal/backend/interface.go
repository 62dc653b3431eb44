package backend

import (
	"context"

	"finreport/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult bundles the ports a process needs. Writer is nil for
// read-only sources (sheets, bigquery).
type BackendResult struct {
	Name     BackendType
	Fetcher  store.TransactionFetcher
	Writer   store.TransactionWriter
	History  store.ReportHistory
	Settings store.ReportSettings
	// Ping backs readiness checks. Nil means always ready.
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Close runs every registered cleanup.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MongoBackend    BackendType = "mongo"
	SheetsBackend   BackendType = "sheets"
	BigQueryBackend BackendType = "bigquery"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, MongoBackend, SheetsBackend, BigQueryBackend:
		return true
	default:
		return false
	}
}

// ReadOnly reports whether the backend cannot accept writes.
func (bt BackendType) ReadOnly() bool {
	return bt == SheetsBackend || bt == BigQueryBackend
}
