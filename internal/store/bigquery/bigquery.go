// Package bigquery reads transactions from a BigQuery table. The table is
// owned by an upstream pipeline; this store never writes to it.
package bigquery

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"finreport/internal/core"
	"finreport/internal/store"
)

type Config struct {
	ProjectID string
	Dataset   string
	Table     string
}

// Store implements store.TransactionFetcher.
type Store struct {
	client *bigquery.Client
	table  string
}

// TransactionRow mirrors the warehouse schema.
type TransactionRow struct {
	TransactionID string                 `bigquery:"transaction_id"`
	UserID        string                 `bigquery:"user_id"`
	Amount        float64                `bigquery:"amount"`
	Direction     string                 `bigquery:"direction"`
	Category      bigquery.NullString    `bigquery:"category_name"`
	Date          civil.Date             `bigquery:"transaction_date"`
	Title         bigquery.NullString    `bigquery:"title"`
	Description   bigquery.NullString    `bigquery:"description"`
	CreatedAt     bigquery.NullTimestamp `bigquery:"created_ts"`
}

var identifier = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

func New(ctx context.Context, cfg Config) (*Store, error) {
	if !identifier.MatchString(cfg.Dataset) || !identifier.MatchString(cfg.Table) {
		return nil, fmt.Errorf("bigquery: invalid dataset or table name %q.%q", cfg.Dataset, cfg.Table)
	}
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	return &Store{
		client: client,
		table:  fmt.Sprintf("`%s.%s.%s`", cfg.ProjectID, cfg.Dataset, cfg.Table),
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) FetchTransactions(ctx context.Context, userID string, filter store.Filter, page *store.Pagination) ([]core.Transaction, error) {
	sql, params := buildQuery(s.table, userID, filter, page)
	q := s.client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("bigquery: running query: %w", err)
	}

	var out []core.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bigquery: reading row: %w", err)
		}
		out = append(out, row.toTransaction())
	}
	return out, nil
}

func buildQuery(table, userID string, filter store.Filter, page *store.Pagination) (string, []bigquery.QueryParameter) {
	sql := fmt.Sprintf(`SELECT transaction_id, user_id, amount, direction, category_name,
		transaction_date, title, description, created_ts
		FROM %s
		WHERE user_id = @user_id`, table)
	params := []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	if !filter.From.IsZero() {
		sql += ` AND transaction_date >= @from_date`
		params = append(params, bigquery.QueryParameter{Name: "from_date", Value: civil.DateOf(filter.From)})
	}
	if !filter.To.IsZero() {
		sql += ` AND transaction_date <= @to_date`
		params = append(params, bigquery.QueryParameter{Name: "to_date", Value: civil.DateOf(filter.To)})
	}
	sql += ` ORDER BY transaction_date, transaction_id`
	if page != nil && page.Limit > 0 {
		sql += ` LIMIT @limit OFFSET @offset`
		params = append(params,
			bigquery.QueryParameter{Name: "limit", Value: int64(page.Limit)},
			bigquery.QueryParameter{Name: "offset", Value: int64(max(page.Offset, 0))},
		)
	}
	return sql, params
}

func (r TransactionRow) toTransaction() core.Transaction {
	typ, err := core.ParseType(r.Direction)
	if err != nil {
		switch r.Direction {
		case "CREDIT", "credit":
			typ = core.Income
		case "DEBIT", "debit":
			typ = core.Expense
		default:
			typ = core.TransactionType(r.Direction)
		}
	}
	tx := core.Transaction{
		ID:          r.TransactionID,
		UserID:      r.UserID,
		Amount:      r.Amount,
		Type:        typ,
		Category:    r.Category.StringVal,
		Date:        r.Date.In(time.UTC),
		Title:       r.Title.StringVal,
		Description: r.Description.StringVal,
	}
	if r.CreatedAt.Valid {
		tx.CreatedAt = r.CreatedAt.Timestamp
	}
	return tx
}
