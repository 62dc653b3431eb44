// Package seed produces synthetic transaction histories with a realistic
// shape: a monthly salary, a fixed catalogue of recurring expenses with
// jitter, a few one-off purchases, quarterly bonuses and two seasonal spikes.
package seed

import (
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"finreport/internal/core"
)

const (
	SalaryAmount   = 100000.0
	BonusAmount    = 25000.0
	jitterFraction = 0.10
)

type catalogueItem struct {
	Title    string
	Category string
	Amount   float64
}

// recurring is billed every month. Totals roughly 66,600 per month.
var recurring = []catalogueItem{
	{"Rent", "Housing", 25000},
	{"Electricity bill", "Utilities", 2500},
	{"Water bill", "Utilities", 800},
	{"Internet", "Utilities", 1200},
	{"Mobile plan", "Utilities", 700},
	{"Groceries", "Groceries", 8500},
	{"Dining out", "Food", 3200},
	{"Coffee and snacks", "Food", 1500},
	{"Fuel", "Transportation", 3500},
	{"Transit pass", "Transportation", 1000},
	{"Ride share", "Transportation", 800},
	{"Health insurance", "Healthcare", 2200},
	{"Pharmacy", "Healthcare", 1200},
	{"School fees", "Education", 5000},
	{"Online course", "Education", 2000},
	{"Books", "Education", 600},
	{"Streaming services", "Entertainment", 1500},
	{"Gym membership", "Entertainment", 800},
	{"Salon and grooming", "Personal Care", 1500},
	{"Clothing", "Shopping", 1500},
	{"Household supplies", "Shopping", 1600},
}

var oneOffs = []catalogueItem{
	{"Birthday gift", "Gifts", 1500},
	{"Doctor visit", "Healthcare", 1200},
	{"Electronics accessory", "Shopping", 2000},
	{"Weekend getaway", "Travel", 2500},
	{"Car service", "Transportation", 1800},
}

// festivals are annual spikes keyed by calendar month.
var festivals = map[time.Month]catalogueItem{
	time.October: {"Festival shopping", "Festivals", 15000},
	time.March:   {"Spring celebration", "Festivals", 8000},
}

// Options toggles the irregular parts of the history.
type Options struct {
	Bonuses   bool
	Festivals bool
	OneOffs   bool
}

func DefaultOptions() Options {
	return Options{Bonuses: true, Festivals: true, OneOffs: true}
}

// Generator is not safe for concurrent use; it owns its random source.
type Generator struct {
	opts Options
	rng  *rand.Rand
	now  func() time.Time
}

// NewGenerator builds a generator. A nil rng is seeded from the clock and a
// nil now defaults to time.Now.
func NewGenerator(opts Options, rng *rand.Rand, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(now().UnixNano()))
	}
	return &Generator{opts: opts, rng: rng, now: now}
}

// Window is the span covered by a history of the given length: the current
// calendar month and the months-1 before it, each in full.
func Window(now time.Time, months int) core.Period {
	if months < 1 {
		months = 1
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return core.Period{
		From: first.AddDate(0, -(months - 1), 0),
		To:   first.AddDate(0, 1, 0).Add(-time.Nanosecond),
	}
}

// RecurringCategories lists the distinct categories billed every month.
func RecurringCategories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range recurring {
		if !seen[item.Category] {
			seen[item.Category] = true
			out = append(out, item.Category)
		}
	}
	return out
}

// GenerateSyntheticHistory returns a history for userID covering Window(now,
// months). Every transaction is dated inside that window.
func (g *Generator) GenerateSyntheticHistory(userID string, months int) []core.Transaction {
	window := Window(g.now(), months)
	created := g.now().UTC()

	var txs []core.Transaction
	add := func(typ core.TransactionType, item catalogueItem, amount float64, date time.Time) {
		txs = append(txs, core.Transaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			Amount:      amount,
			Type:        typ,
			Category:    item.Category,
			Date:        date,
			Title:       item.Title,
			Description: item.Title,
			CreatedAt:   created,
		})
	}

	count := len(window.MonthKeys())
	for i := 0; i < count; i++ {
		first := window.From.AddDate(0, i, 0)
		offset := count - 1 - i // months back from the current one
		on := func(day int) time.Time {
			return time.Date(first.Year(), first.Month(), day, 12, 0, 0, 0, time.UTC)
		}

		add(core.Income, catalogueItem{"Monthly salary", "Salary", SalaryAmount}, SalaryAmount, on(1))

		for idx, item := range recurring {
			add(core.Expense, item, g.jitter(item.Amount), on(min(28, 5+idx%23)))
		}

		if g.opts.OneOffs {
			for n := 2 + g.rng.Intn(2); n > 0; n-- {
				item := oneOffs[g.rng.Intn(len(oneOffs))]
				add(core.Expense, item, g.jitter(item.Amount), on(1+g.rng.Intn(28)))
			}
		}

		if g.opts.Bonuses && offset%3 == 0 {
			add(core.Income, catalogueItem{"Quarterly bonus", "Bonus", BonusAmount}, BonusAmount, on(15))
		}

		if item, ok := festivals[first.Month()]; ok && g.opts.Festivals {
			add(core.Expense, item, item.Amount, on(20))
		}
	}
	return txs
}

// jitter moves amount uniformly within ±10% and rounds to whole units.
func (g *Generator) jitter(amount float64) float64 {
	factor := 1 - jitterFraction + g.rng.Float64()*2*jitterFraction
	return math.Round(amount * factor)
}
