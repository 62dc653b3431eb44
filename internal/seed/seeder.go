package seed

import (
	"context"
	"errors"
	"fmt"

	"finreport/internal/log"
	"finreport/internal/store"
)

var ErrAlreadySeeded = errors.New("user already has transactions")

// Result describes what a Seed call changed.
type Result struct {
	UserID   string `json:"userId"`
	Months   int    `json:"months"`
	Inserted int    `json:"inserted"`
	Deleted  int64  `json:"deleted"`
}

// Seeder writes generated histories through a TransactionWriter.
type Seeder struct {
	gen    *Generator
	writer store.TransactionWriter
	logger *log.Logger
}

func NewSeeder(gen *Generator, writer store.TransactionWriter, logger *log.Logger) *Seeder {
	if logger == nil {
		logger = log.Default(log.ComponentSeed)
	}
	return &Seeder{gen: gen, writer: writer, logger: logger.WithComponent(log.ComponentSeed)}
}

// Seed generates months of history for userID. Existing transactions are
// left alone unless force is set, in which case they are replaced.
func (s *Seeder) Seed(ctx context.Context, userID string, months int, force bool) (Result, error) {
	res := Result{UserID: userID, Months: months}

	existing, err := s.writer.CountUserTransactions(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("count transactions: %w", err)
	}
	if existing > 0 {
		if !force {
			return res, ErrAlreadySeeded
		}
		deleted, err := s.writer.DeleteUserTransactions(ctx, userID)
		if err != nil {
			return res, fmt.Errorf("delete transactions: %w", err)
		}
		res.Deleted = deleted
	}

	txs := s.gen.GenerateSyntheticHistory(userID, months)
	if err := s.writer.InsertTransactions(ctx, txs); err != nil {
		return res, fmt.Errorf("insert transactions: %w", err)
	}
	res.Inserted = len(txs)

	s.logger.InfoContext(ctx, "Seeded synthetic history",
		log.FieldUserID, userID,
		log.FieldMonths, months,
		log.FieldTransactions, res.Inserted,
		"deleted", res.Deleted)
	return res, nil
}
