// Package core provides amount parsing utilities.
//
// Amounts are plain non-negative numbers; the transaction type carries the
// sign. Stores that hold amounts as text (spreadsheets, CSV exports) go
// through ParseAmount before the core sees them.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount converts a decimal string into an amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// thousands grouping with the other separator (1.234,56 or 1,234.56).
// Negative and signed values are rejected.
//
// Examples:
//
//	ParseAmount("12.34")    -> 12.34, nil
//	ParseAmount("12,34")    -> 12.34, nil
//	ParseAmount("1.234,5")  -> 1234.5, nil
//	ParseAmount("-3")       -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	s = normalizeSeparators(s)

	dots := 0
	for _, r := range s {
		switch {
		case r == '.':
			dots++
		case !unicode.IsDigit(r):
			return 0, ErrInvalidAmount
		}
	}
	if dots > 1 || s == "." {
		return 0, ErrInvalidAmount
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !ValidAmount(v) {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// normalizeSeparators rewrites the string so that '.' is the only decimal
// separator. When both separators are present the last one wins.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		return strings.ReplaceAll(s, ",", ".")
	}
	return s
}
