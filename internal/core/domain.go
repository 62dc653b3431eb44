package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

// DefaultCategory is used for transactions recorded without a category.
const DefaultCategory = "Other"

type (
	TransactionType string

	Transaction struct {
		ID          string          `json:"id"`
		UserID      string          `json:"userId"`
		Amount      float64         `json:"amount"`
		Type        TransactionType `json:"type"`
		Category    string          `json:"category"`
		Date        time.Time       `json:"date"` // Economic date, the only date used for bucketing
		Title       string          `json:"title,omitempty"`
		Description string          `json:"description,omitempty"`
		CreatedAt   time.Time       `json:"createdAt,omitempty"`
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidType   = errors.New("invalid transaction type")
	ErrInvalidDate   = errors.New("invalid transaction date")
	ErrInvalidRange  = errors.New("invalid date range: from is after to")
)

// ParseType accepts the type in any letter case.
func ParseType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// NormalizeCategory trims the category and maps blanks to DefaultCategory.
func NormalizeCategory(category string) string {
	c := strings.TrimSpace(category)
	if c == "" {
		return DefaultCategory
	}
	return c
}

// ValidAmount reports whether v can take part in aggregation.
func ValidAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func (t Transaction) Validate() error {
	if !ValidAmount(t.Amount) {
		return ErrInvalidAmount
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Ingest validates transactions coming from a store and normalizes their
// category. Invalid rows are dropped and counted, never fatal.
func Ingest(txs []Transaction) ([]Transaction, int) {
	clean := make([]Transaction, 0, len(txs))
	rejected := 0
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			rejected++
			continue
		}
		tx.Category = NormalizeCategory(tx.Category)
		clean = append(clean, tx)
	}
	return clean, rejected
}
