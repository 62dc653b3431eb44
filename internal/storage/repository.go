// Package storage persists transactions, generated reports and report
// settings in SQL databases. SQLite (modernc.org/sqlite) serves single-node
// deployments and tests; Postgres (lib/pq) serves shared deployments. Both
// share the same schema and queries.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"finreport/internal/core"
	"finreport/internal/store"
)

const (
	dateLayout      = time.DateOnly
	timestampLayout = time.RFC3339Nano
)

type Repository struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies migrations.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(SQLite, dbPath)
}

// NewPostgresRepository connects to dsn and applies migrations.
func NewPostgresRepository(dsn string) (*Repository, error) {
	return open(Postgres, dsn)
}

func open(dialect Dialect, dsn string) (*Repository, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if dialect == SQLite {
		// modernc sqlite serialises writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	return &Repository{db: db, dialect: dialect}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by readiness checks.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) FetchTransactions(ctx context.Context, userID string, filter store.Filter, page *store.Pagination) ([]core.Transaction, error) {
	query := `SELECT id, user_id, amount, type, category, occurred_on, title, description, created_at
		FROM transactions WHERE user_id = ?`
	args := []any{userID}
	if !filter.From.IsZero() {
		query += ` AND occurred_on >= ?`
		args = append(args, filter.From.Format(dateLayout))
	}
	if !filter.To.IsZero() {
		query += ` AND occurred_on <= ?`
		args = append(args, filter.To.Format(dateLayout))
	}
	query += ` ORDER BY occurred_on, id`
	if page != nil && page.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.Limit, max(page.Offset, 0))
	}

	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// InsertTransactions writes txs in one database transaction. Transactions
// without an ID are rejected.
func (r *Repository) InsertTransactions(ctx context.Context, txs []core.Transaction) error {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	stmt, err := dbtx.PrepareContext(ctx, r.dialect.rebind(`INSERT INTO transactions
		(id, user_id, amount, type, category, occurred_on, title, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, tx := range txs {
		if tx.ID == "" {
			return fmt.Errorf("insert transaction: missing id")
		}
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
		created := tx.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			tx.ID, tx.UserID, tx.Amount, string(tx.Type), core.NormalizeCategory(tx.Category),
			tx.Date.Format(dateLayout), tx.Title, tx.Description, created.UTC().Format(timestampLayout),
		); err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.DebugContext(ctx, "Transactions stored", "component", "storage", "dialect", string(r.dialect), "count", len(txs))
	return nil
}

func (r *Repository) DeleteUserTransactions(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(`DELETE FROM transactions WHERE user_id = ?`), userID)
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	return res.RowsAffected()
}

func (r *Repository) CountUserTransactions(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(`SELECT COUNT(*) FROM transactions WHERE user_id = ?`), userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (r *Repository) SaveReport(ctx context.Context, rec store.ReportRecord) error {
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(`INSERT INTO reports
		(id, user_id, period_from, period_to, payload, generated_at) VALUES (?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.UserID, rec.From.Format(dateLayout), rec.To.Format(dateLayout),
		string(rec.Payload), rec.GeneratedAt.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// ListReports returns the newest reports of userID first.
func (r *Repository) ListReports(ctx context.Context, userID string, limit int) ([]store.ReportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(`SELECT id, user_id, period_from, period_to, payload, generated_at
		FROM reports WHERE user_id = ? ORDER BY generated_at DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []store.ReportRecord
	for rows.Next() {
		var rec store.ReportRecord
		var from, to, payload, generated string
		if err := rows.Scan(&rec.ID, &rec.UserID, &from, &to, &payload, &generated); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if rec.From, err = time.Parse(dateLayout, from); err != nil {
			return nil, fmt.Errorf("parse report from: %w", err)
		}
		if rec.To, err = time.Parse(dateLayout, to); err != nil {
			return nil, fmt.Errorf("parse report to: %w", err)
		}
		if rec.GeneratedAt, err = time.Parse(timestampLayout, generated); err != nil {
			return nil, fmt.Errorf("parse generated_at: %w", err)
		}
		rec.Payload = []byte(payload)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

func (r *Repository) UpsertReportSetting(ctx context.Context, s store.ReportSetting) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(`INSERT INTO report_settings (user_id, enabled, months, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET enabled = excluded.enabled, months = excluded.months, updated_at = excluded.updated_at`),
		s.UserID, s.Enabled, s.Months, s.UpdatedAt.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("upsert report setting: %w", err)
	}
	return nil
}

func (r *Repository) GetReportSetting(ctx context.Context, userID string) (store.ReportSetting, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(`SELECT user_id, enabled, months, updated_at
		FROM report_settings WHERE user_id = ?`), userID)
	s, err := scanSetting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ReportSetting{}, store.ErrNotFound
	}
	return s, err
}

func (r *Repository) ListEnabledReportSettings(ctx context.Context) ([]store.ReportSetting, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id, enabled, months, updated_at
		FROM report_settings WHERE enabled = TRUE ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query report settings: %w", err)
	}
	defer rows.Close()

	var out []store.ReportSetting
	for rows.Next() {
		s, err := scanSetting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report settings: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (core.Transaction, error) {
	var tx core.Transaction
	var typ, occurred, created string
	if err := row.Scan(&tx.ID, &tx.UserID, &tx.Amount, &typ, &tx.Category, &occurred, &tx.Title, &tx.Description, &created); err != nil {
		return tx, fmt.Errorf("scan transaction: %w", err)
	}
	tx.Type = core.TransactionType(typ)
	d, err := time.Parse(dateLayout, occurred)
	if err != nil {
		return tx, fmt.Errorf("parse occurred_on %q: %w", occurred, err)
	}
	tx.Date = d
	if created != "" {
		if c, err := time.Parse(timestampLayout, created); err == nil {
			tx.CreatedAt = c
		}
	}
	return tx, nil
}

func scanSetting(row scanner) (store.ReportSetting, error) {
	var s store.ReportSetting
	var updated string
	if err := row.Scan(&s.UserID, &s.Enabled, &s.Months, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, err
		}
		return s, fmt.Errorf("scan report setting: %w", err)
	}
	if t, err := time.Parse(timestampLayout, updated); err == nil {
		s.UpdatedAt = t
	}
	return s, nil
}
