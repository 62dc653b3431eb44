package analytics

import (
	"testing"

	"finreport/internal/core"
)

func TestDetectAnomaliesMediumSeverity(t *testing.T) {
	d := month(2025, 1)
	txs := []core.Transaction{tx(core.Expense, "Shopping", 3500, d)}
	for i := 0; i < 5; i++ {
		txs = append(txs, tx(core.Expense, "Shopping", 500, d))
	}
	// mean is 1000, so 3500 sits 2.5 means above it.

	got := DetectAnomalies(txs)
	if len(got) != 1 {
		t.Fatalf("expected 1 anomaly, got %d: %+v", len(got), got)
	}
	a := got[0]
	if a.Transaction.Amount != 3500 || a.Severity != core.SeverityMedium || a.ExpectedAmount != 1000 {
		t.Fatalf("unexpected anomaly: %+v", a)
	}
	if a.Variance != 2.5 {
		t.Fatalf("variance = %v, want 2.5", a.Variance)
	}
}

func TestDetectAnomaliesSeverities(t *testing.T) {
	// One spike among `others` transactions of 100 each.
	cases := []struct {
		name   string
		spike  float64
		others int
		want   core.Severity
		flag   bool
	}{
		{"high", 10000, 9, core.SeverityHigh, true},
		{"medium", 400, 9, core.SeverityMedium, true},
		{"low", 350, 9, core.SeverityLow, true},
		{"below threshold", 200, 9, "", false},
		{"exactly at threshold", 500, 3, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := month(2025, 2)
			txs := []core.Transaction{tx(core.Expense, "X", tc.spike, d)}
			for i := 0; i < tc.others; i++ {
				txs = append(txs, tx(core.Expense, "X", 100, d))
			}
			got := DetectAnomalies(txs)
			if !tc.flag {
				if len(got) != 0 {
					t.Fatalf("expected no anomalies, got %+v", got)
				}
				return
			}
			if len(got) != 1 || got[0].Transaction.Amount != tc.spike {
				t.Fatalf("expected spike flagged, got %+v", got)
			}
			if got[0].Severity != tc.want {
				t.Fatalf("severity = %s, want %s (variance %v)", got[0].Severity, tc.want, got[0].Variance)
			}
		})
	}
}

func TestClassifyVariance(t *testing.T) {
	cases := []struct {
		v    float64
		want core.Severity
	}{
		{1.6, core.SeverityLow},
		{2.0, core.SeverityLow},
		{2.01, core.SeverityMedium},
		{3.0, core.SeverityMedium},
		{3.5, core.SeverityHigh},
	}
	for _, tc := range cases {
		if got := classifyVariance(tc.v); got != tc.want {
			t.Errorf("classifyVariance(%v) = %s, want %s", tc.v, got, tc.want)
		}
	}
}

func TestDetectAnomaliesUnderspendNeverFlagged(t *testing.T) {
	d := month(2025, 3)
	txs := []core.Transaction{
		tx(core.Expense, "Rent", 500, d),
		tx(core.Expense, "Rent", 10000, d),
		tx(core.Expense, "Rent", 10000, d),
		tx(core.Expense, "Rent", 0, d),
	}
	for _, a := range DetectAnomalies(txs) {
		if a.Transaction.Amount <= a.ExpectedAmount {
			t.Fatalf("underspend flagged: %+v", a)
		}
	}
}

func TestDetectAnomaliesSkipsIncomeAndZeroAverage(t *testing.T) {
	d := month(2025, 4)
	txs := []core.Transaction{
		tx(core.Income, "Salary", 100, d),
		tx(core.Income, "Salary", 100000, d),
		tx(core.Expense, "Free", 0, d),
		tx(core.Expense, "Free", 0, d),
	}
	if got := DetectAnomalies(txs); len(got) != 0 {
		t.Fatalf("expected no anomalies, got %+v", got)
	}
}

func TestDetectAnomaliesBlankCategoryGroupsWithOther(t *testing.T) {
	d := month(2025, 5)
	txs := []core.Transaction{
		tx(core.Expense, "", 100, d),
		tx(core.Expense, "Other", 100, d),
		tx(core.Expense, " ", 100, d),
		tx(core.Expense, "Other", 100, d),
		tx(core.Expense, "", 2000, d),
	}
	// mean 480, 2000 is ~3.17 means above
	got := DetectAnomalies(txs)
	if len(got) != 1 || got[0].Severity != core.SeverityHigh {
		t.Fatalf("expected one high anomaly, got %+v", got)
	}
}

func TestTopAnomalies(t *testing.T) {
	list := []core.Anomaly{
		{Variance: 1.6, Transaction: core.Transaction{ID: "a"}},
		{Variance: 4.0, Transaction: core.Transaction{ID: "b"}},
		{Variance: 2.2, Transaction: core.Transaction{ID: "c"}},
		{Variance: 3.1, Transaction: core.Transaction{ID: "d"}},
	}
	top := TopAnomalies(list, 3)
	if len(top) != 3 {
		t.Fatalf("expected 3, got %d", len(top))
	}
	if top[0].Transaction.ID != "b" || top[1].Transaction.ID != "d" || top[2].Transaction.ID != "c" {
		t.Fatalf("unexpected order: %+v", top)
	}
	if list[0].Transaction.ID != "a" {
		t.Fatalf("input was reordered")
	}
}
