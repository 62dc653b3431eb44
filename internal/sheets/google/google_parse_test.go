package google

import (
	"testing"
	"time"

	"finreport/internal/core"
)

func TestParseTransactionRows_WithHeader(t *testing.T) {
	values := [][]interface{}{
		{"User", "Date", "Type", "Category", "Amount", "Title", "Description"},
		{"u1", "2025-01-01", "INCOME", "Salary", 100000.0, "Salary", ""},
		{"u1", "14/02/2025", "expense", "Food", "1.234,50", "Groceries", "weekly"},
		{},
		{"u2", "2025-02-20", "EXPENSE", "", "30", "Taxi", ""},
		{"u1", "not a date", "EXPENSE", "Food", "10", "", ""},
		{"u1", "2025-03-01", "TRANSFER", "Food", "10", "", ""},
		{"u1", "2025-03-02", "EXPENSE", "Food", "-10", "", ""},
	}

	txs, bad := parseTransactionRows(values, "Transactions")
	if len(txs) != 3 {
		t.Fatalf("parsed %d rows, want 3: %+v", len(txs), txs)
	}
	if len(bad) != 3 {
		t.Fatalf("bad rows = %v, want 3", bad)
	}

	first := txs[0]
	if first.ID != "Transactions!2" || first.UserID != "u1" || first.Type != core.Income || first.Amount != 100000 {
		t.Errorf("unexpected first row: %+v", first)
	}
	second := txs[1]
	if second.Amount != 1234.5 || second.Type != core.Expense || second.Description != "weekly" {
		t.Errorf("unexpected second row: %+v", second)
	}
	if !second.Date.Equal(time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", second.Date)
	}
	if txs[2].Category != core.DefaultCategory || txs[2].ID != "Transactions!5" {
		t.Errorf("unexpected third row: %+v", txs[2])
	}
}

func TestParseTransactionRows_FixedOrder(t *testing.T) {
	values := [][]interface{}{
		{"2025-04-03", "EXPENSE", "Rent", "1200", "April rent"},
	}
	txs, bad := parseTransactionRows(values, "S")
	if len(bad) != 0 || len(txs) != 1 {
		t.Fatalf("txs=%+v bad=%v", txs, bad)
	}
	if txs[0].Title != "April rent" || txs[0].UserID != "" || txs[0].Category != "Rent" {
		t.Errorf("unexpected row: %+v", txs[0])
	}
}

func TestParseDateKeepsOffset(t *testing.T) {
	got, err := parseDate("2025-02-01T00:30:00+02:00")
	if err != nil {
		t.Fatalf("parseDate: %v", err)
	}
	if key := core.MonthKey(got); key != "2025-02" {
		t.Fatalf("month = %s, want 2025-02", key)
	}
	if got.Day() != 1 || got.Hour() != 0 {
		t.Fatalf("wall clock changed: %v", got)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2025-03-31", time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), true},
		{"31/03/2025", time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), true},
		{"45748", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"March", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in)
			if (err == nil) != tt.ok {
				t.Fatalf("err = %v, want ok=%v", err, tt.ok)
			}
			if tt.ok && !got.Equal(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
