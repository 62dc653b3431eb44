package report

import (
	"encoding/json"
	"fmt"
	"time"

	"finreport/internal/analytics"
	"finreport/internal/core"
	"finreport/internal/store"
)

// TopCategoryCount is how many categories the summary highlights.
const TopCategoryCount = 5

type (
	Summary struct {
		Income        float64               `json:"income"`
		Expenses      float64               `json:"expenses"`
		Balance       float64               `json:"balance"`
		SavingsRate   float64               `json:"savingsRate"`
		TopCategories []core.CategoryAmount `json:"topCategories"`
	}

	// Report is the assembled view of one user's finances over a period.
	// It is computed per request and never mutated afterwards.
	Report struct {
		ID               string                    `json:"id"`
		UserID           string                    `json:"userId"`
		Period           string                    `json:"period"`
		From             time.Time                 `json:"from"`
		To               time.Time                 `json:"to"`
		Summary          Summary                   `json:"summary"`
		Breakdown        []core.CategoryAmount     `json:"breakdown"`
		Monthly          []core.MonthlyBucket      `json:"monthly"`
		Trends           []core.TrendRecord        `json:"trends"`
		Anomalies        []core.Anomaly            `json:"anomalies"`
		Forecast         *core.Forecast            `json:"forecast,omitempty"`
		CategoryAverages []analytics.CategorySpend `json:"categoryAverages"`
		Insights         []string                  `json:"insights"`
		TransactionCount int                       `json:"transactionCount"`
		Skipped          int                       `json:"skipped"`
		GeneratedAt      time.Time                 `json:"generatedAt"`
	}
)

// Record encodes rep for the report history.
func Record(rep *Report) (store.ReportRecord, error) {
	payload, err := json.Marshal(rep)
	if err != nil {
		return store.ReportRecord{}, fmt.Errorf("encode report: %w", err)
	}
	return store.ReportRecord{
		ID:          rep.ID,
		UserID:      rep.UserID,
		From:        rep.From,
		To:          rep.To,
		Payload:     payload,
		GeneratedAt: rep.GeneratedAt,
	}, nil
}
