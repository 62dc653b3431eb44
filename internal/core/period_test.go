package core

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewPeriod(t *testing.T) {
	p, err := NewPeriod(day(2025, 1, 1), day(2025, 1, 31))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Contains(time.Date(2025, 1, 31, 23, 30, 0, 0, time.UTC)) {
		t.Fatalf("last day should be included")
	}
	if p.Contains(day(2025, 2, 1)) {
		t.Fatalf("day after range should not be included")
	}

	if _, err := NewPeriod(day(2025, 2, 1), day(2025, 1, 1)); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}

	// Same day is a valid one-day range.
	if _, err := NewPeriod(day(2025, 2, 1), day(2025, 2, 1)); err != nil {
		t.Fatalf("single-day range rejected: %v", err)
	}
}

func TestPeriodContainsUsesWallClockDate(t *testing.T) {
	feb, _ := NewPeriod(day(2025, 2, 1), day(2025, 2, 28))
	jan, _ := NewPeriod(day(2025, 1, 1), day(2025, 1, 31))
	cest := time.FixedZone("UTC+2", 2*60*60)

	early := time.Date(2025, 2, 1, 0, 30, 0, 0, cest)
	if !feb.Contains(early) || jan.Contains(early) {
		t.Fatalf("%v should belong to February only", early)
	}
	late := time.Date(2025, 2, 28, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*60*60))
	if !feb.Contains(late) {
		t.Fatalf("%v should belong to February", late)
	}
}

func TestMonthKeys(t *testing.T) {
	p, _ := NewPeriod(day(2024, 11, 20), day(2025, 2, 3))
	want := []string{"2024-11", "2024-12", "2025-01", "2025-02"}
	if got := p.MonthKeys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("MonthKeys = %v, want %v", got, want)
	}
	if !p.SpansMonths() {
		t.Fatalf("expected SpansMonths")
	}

	single, _ := NewPeriod(day(2025, 1, 1), day(2025, 1, 31))
	if single.SpansMonths() {
		t.Fatalf("single month period should not span months")
	}
}

func TestRollingMonths(t *testing.T) {
	now := time.Date(2025, 6, 18, 10, 0, 0, 0, time.UTC)
	p := RollingMonths(now, 12)
	if !p.From.Equal(day(2024, 7, 1)) {
		t.Fatalf("From = %v, want 2024-07-01", p.From)
	}
	if len(p.MonthKeys()) != 12 {
		t.Fatalf("expected 12 months, got %d", len(p.MonthKeys()))
	}
	if !p.Contains(now) {
		t.Fatalf("window should contain now")
	}
}

func TestPreviousMonth(t *testing.T) {
	p := PreviousMonth(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	if !p.From.Equal(day(2025, 2, 1)) {
		t.Fatalf("From = %v", p.From)
	}
	if !p.Contains(time.Date(2025, 2, 28, 20, 0, 0, 0, time.UTC)) || p.Contains(day(2025, 3, 1)) {
		t.Fatalf("unexpected bounds %v - %v", p.From, p.To)
	}
}

func TestLabel(t *testing.T) {
	p, _ := NewPeriod(day(2025, 1, 1), day(2025, 3, 31))
	if got := p.Label(); got != "Jan 1 - Mar 31, 2025" {
		t.Fatalf("Label = %q", got)
	}
	p, _ = NewPeriod(day(2024, 12, 1), day(2025, 1, 31))
	if got := p.Label(); got != "Dec 1, 2024 - Jan 31, 2025" {
		t.Fatalf("Label = %q", got)
	}
}

func TestNextMonthKey(t *testing.T) {
	got, err := NextMonthKey("2024-12")
	if err != nil || got != "2025-01" {
		t.Fatalf("NextMonthKey = %q, %v", got, err)
	}
	if _, err := NextMonthKey("bad"); err == nil {
		t.Fatalf("expected error for malformed key")
	}
}
