package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"finreport/internal/core"
)

var columnNames = []string{"Date", "Type", "Category", "Amount", "Title", "Description", "User"}

// Accepted date cell formats, tried in order.
var dateLayouts = []string{
	time.DateOnly,
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	time.RFC3339,
}

type columns struct {
	date, typ, category, amount, title, description, user int
}

// parseTransactionRows converts a values matrix into transactions. A header
// row naming the columns is honoured when present; otherwise the fixed order
// Date, Type, Category, Amount, Title, Description, User is assumed. The
// second return lists rows that could not be parsed.
func parseTransactionRows(values [][]interface{}, sheetName string) ([]core.Transaction, []string) {
	if len(values) == 0 {
		return nil, nil
	}
	cols := columns{0, 1, 2, 3, 4, 5, 6}
	start := 0
	if header := toStrings(values[0]); indexOf(header, "Date") != -1 && indexOf(header, "Amount") != -1 {
		cols = columns{
			date:        indexOf(header, columnNames[0]),
			typ:         indexOf(header, columnNames[1]),
			category:    indexOf(header, columnNames[2]),
			amount:      indexOf(header, columnNames[3]),
			title:       indexOf(header, columnNames[4]),
			description: indexOf(header, columnNames[5]),
			user:        indexOf(header, columnNames[6]),
		}
		start = 1
	}

	out := make([]core.Transaction, 0, len(values)-start)
	var bad []string
	for i := start; i < len(values); i++ {
		row := toStrings(values[i])
		if isBlank(row) {
			continue
		}
		rowNum := i + 1
		tx, err := parseRow(row, cols)
		if err != nil {
			bad = append(bad, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		tx.ID = fmt.Sprintf("%s!%d", sheetName, rowNum)
		out = append(out, tx)
	}
	return out, bad
}

func parseRow(row []string, cols columns) (core.Transaction, error) {
	date, err := parseDate(safeGet(row, cols.date))
	if err != nil {
		return core.Transaction{}, err
	}
	typ, err := core.ParseType(safeGet(row, cols.typ))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("type %q: %w", safeGet(row, cols.typ), err)
	}
	amount, err := core.ParseAmount(safeGet(row, cols.amount))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", safeGet(row, cols.amount), err)
	}
	return core.Transaction{
		UserID:      strings.TrimSpace(safeGet(row, cols.user)),
		Amount:      amount,
		Type:        typ,
		Category:    core.NormalizeCategory(safeGet(row, cols.category)),
		Date:        date,
		Title:       strings.TrimSpace(safeGet(row, cols.title)),
		Description: strings.TrimSpace(safeGet(row, cols.description)),
	}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	// Serial day numbers, as Sheets renders unformatted dates.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		epoch := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
		return epoch.AddDate(0, 0, int(serial)), nil
	}
	return time.Time{}, fmt.Errorf("date %q: %w", s, core.ErrInvalidDate)
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch x := v.(type) {
		case string:
			out[i] = x
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		case nil:
			out[i] = ""
		default:
			out[i] = fmt.Sprint(x)
		}
	}
	return out
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
