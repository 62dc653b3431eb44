package backend

import (
	"context"
	"errors"
	"fmt"

	"finreport/internal/log"
	gsheet "finreport/internal/sheets/google"
	"finreport/internal/storage"
	"finreport/internal/store/bigquery"
	"finreport/internal/store/memory"
	"finreport/internal/store/mongo"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		return f.createMemoryBackend(ctx)
	case SQLiteBackend:
		return f.createSQLBackend(ctx, config.Type, func() (*storage.Repository, error) {
			return storage.NewSQLiteRepository(config.SQLiteDBPath)
		})
	case PostgresBackend:
		return f.createSQLBackend(ctx, config.Type, func() (*storage.Repository, error) {
			return storage.NewPostgresRepository(config.PostgresDSN)
		})
	case MongoBackend:
		return f.createMongoBackend(ctx, config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case BigQueryBackend:
		return f.createBigQueryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context) (*BackendResult, error) {
	st := memory.New()
	f.logger.InfoContext(ctx, "Initialized memory backend")
	return &BackendResult{
		Name:     MemoryBackend,
		Fetcher:  st,
		Writer:   st,
		History:  st,
		Settings: st,
	}, nil
}

func (f *DefaultFactory) createSQLBackend(ctx context.Context, typ BackendType, open func() (*storage.Repository, error)) (*BackendResult, error) {
	repo, err := open()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s repository: %w", typ, err)
	}
	f.logger.InfoContext(ctx, "Initialized SQL backend", log.FieldBackend, typ.String())
	return &BackendResult{
		Name:     typ,
		Fetcher:  repo,
		Writer:   repo,
		History:  repo,
		Settings: repo,
		Ping:     repo.Ping,
		Cleanup:  repo.Close,
	}, nil
}

// openHistory opens the SQLite repository that keeps report history and
// settings for backends without their own.
func (f *DefaultFactory) openHistory(config Config) (*storage.Repository, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize report history: %w", err)
	}
	return repo, nil
}

func (f *DefaultFactory) createMongoBackend(ctx context.Context, config Config) (*BackendResult, error) {
	st, err := mongo.Connect(ctx, config.Mongo)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mongo store: %w", err)
	}
	history, err := f.openHistory(config)
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}

	f.logger.InfoContext(ctx, "Initialized mongo backend",
		"database", config.Mongo.Database,
		"collection", config.Mongo.Collection)

	return &BackendResult{
		Name:     MongoBackend,
		Fetcher:  st,
		Writer:   st,
		History:  history,
		Settings: history,
		Ping: func(ctx context.Context) error {
			return errors.Join(st.Ping(ctx), history.Ping(ctx))
		},
		Cleanup: func() error {
			return errors.Join(st.Close(context.Background()), history.Close())
		},
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, config.Sheets)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	history, err := f.openHistory(config)
	if err != nil {
		return nil, err
	}

	f.logger.InfoContext(ctx, "Initialized Google Sheets backend", "sheet", config.Sheets.SheetName)

	return &BackendResult{
		Name:     SheetsBackend,
		Fetcher:  cli,
		History:  history,
		Settings: history,
		Ping:     history.Ping,
		Cleanup:  history.Close,
	}, nil
}

func (f *DefaultFactory) createBigQueryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	st, err := bigquery.New(ctx, config.BigQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize BigQuery store: %w", err)
	}
	history, err := f.openHistory(config)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	f.logger.InfoContext(ctx, "Initialized BigQuery backend",
		"dataset", config.BigQuery.Dataset,
		"table", config.BigQuery.Table)

	return &BackendResult{
		Name:     BigQueryBackend,
		Fetcher:  st,
		History:  history,
		Settings: history,
		Ping:     history.Ping,
		Cleanup: func() error {
			return errors.Join(st.Close(), history.Close())
		},
	}, nil
}
