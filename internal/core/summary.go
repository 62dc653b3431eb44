package core

const (
	Increasing TrendDirection = "increasing"
	Decreasing TrendDirection = "decreasing"
	Stable     TrendDirection = "stable"

	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"

	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

type (
	TrendDirection string
	Impact         string
	Severity       string

	// CategoryShare is one entry of the expense breakdown. Percentage is
	// relative to total expenses and kept at full precision.
	CategoryShare struct {
		Amount     float64 `json:"amount"`
		Percentage float64 `json:"percentage"`
	}

	CategoryAmount struct {
		Name       string  `json:"name"`
		Amount     float64 `json:"amount"`
		Percentage float64 `json:"percent"`
	}

	PeriodSummary struct {
		TotalIncome       float64                  `json:"totalIncome"`
		TotalExpenses     float64                  `json:"totalExpenses"`
		NetBalance        float64                  `json:"netBalance"`
		SavingsRate       float64                  `json:"savingsRate"`
		CategoryBreakdown map[string]CategoryShare `json:"categoryBreakdown"`
		Transactions      int                      `json:"transactions"`
		Skipped           int                      `json:"skipped"`
	}

	// MonthlyBucket holds expense totals for one calendar month.
	MonthlyBucket struct {
		Month      string             `json:"month"` // YYYY-MM
		Total      float64            `json:"total"`
		Categories map[string]float64 `json:"categories"`
	}

	TrendRecord struct {
		Category         string         `json:"category"`
		ChangePercentage float64        `json:"changePercentage"`
		Direction        TrendDirection `json:"direction"`
		Impact           Impact         `json:"impact"`
		RecentAverage    float64        `json:"recentAverage"`
		PreviousAverage  float64        `json:"previousAverage"`
	}

	Anomaly struct {
		Transaction    Transaction `json:"transaction"`
		ExpectedAmount float64     `json:"expectedAmount"`
		Variance       float64     `json:"variance"`
		Severity       Severity    `json:"severity"`
	}

	// Forecast projects next month's total expenses from recent buckets.
	Forecast struct {
		Month          string  `json:"month"`
		ExpectedAmount float64 `json:"expectedAmount"`
		BasedOnMonths  int     `json:"basedOnMonths"`
	}
)
