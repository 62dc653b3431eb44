package core

import (
	"fmt"
	"time"
)

const monthKeyLayout = "2006-01"

// Period is an inclusive date range. To is stretched to the last instant of
// its day so that transactions dated on the final day are included.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewPeriod returns ErrInvalidRange when from is after to.
func NewPeriod(from, to time.Time) (Period, error) {
	p := Period{From: startOfDay(from), To: endOfDay(to)}
	if p.From.After(p.To) {
		return Period{}, ErrInvalidRange
	}
	return p, nil
}

// RollingMonths covers the current calendar month of now plus the months-1
// months before it.
func RollingMonths(now time.Time, months int) Period {
	if months < 1 {
		months = 1
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return Period{
		From: first.AddDate(0, -(months - 1), 0),
		To:   endOfDay(now),
	}
}

// PreviousMonth covers the whole calendar month before now.
func PreviousMonth(now time.Time) Period {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	from := first.AddDate(0, -1, 0)
	return Period{From: from, To: endOfDay(first.AddDate(0, 0, -1))}
}

func (p Period) Contains(t time.Time) bool {
	d := CalendarDay(t)
	return !d.Before(CalendarDay(p.From)) && !d.After(CalendarDay(p.To))
}

// CalendarDay returns t's wall-clock date as midnight UTC, so dates compare
// by calendar day whatever offset they were recorded with.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthKeys lists every calendar month touched by the period, oldest first.
func (p Period) MonthKeys() []string {
	return MonthKeysBetween(p.From, p.To)
}

// SpansMonths reports whether the period touches at least two calendar months.
func (p Period) SpansMonths() bool {
	return MonthKey(p.From) != MonthKey(p.To)
}

// Label renders the period for humans, e.g. "Jan 1 - Mar 31, 2025".
func (p Period) Label() string {
	if p.From.Year() == p.To.Year() {
		return fmt.Sprintf("%s - %s", p.From.Format("Jan 2"), p.To.Format("Jan 2, 2006"))
	}
	return fmt.Sprintf("%s - %s", p.From.Format("Jan 2, 2006"), p.To.Format("Jan 2, 2006"))
}

// MonthKey formats t as YYYY-MM in its own location.
func MonthKey(t time.Time) string {
	return t.Format(monthKeyLayout)
}

// MonthKeysBetween lists the YYYY-MM keys from the month of from to the
// month of to, inclusive. It returns nil when from is after to.
func MonthKeysBetween(from, to time.Time) []string {
	cur := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	var keys []string
	for !cur.After(last) {
		keys = append(keys, MonthKey(cur))
		cur = cur.AddDate(0, 1, 0)
	}
	return keys
}

// NextMonthKey returns the key of the month following key.
func NextMonthKey(key string) (string, error) {
	t, err := time.Parse(monthKeyLayout, key)
	if err != nil {
		return "", fmt.Errorf("parse month key %q: %w", key, err)
	}
	return MonthKey(t.AddDate(0, 1, 0)), nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
