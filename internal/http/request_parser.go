package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finreport/internal/core"
)

const (
	maxBodyBytes = 1 << 20

	maxWindowMonths   = 60
	defaultSeedMonths = 12
	maxSeedMonths     = 120

	defaultHistorySize = 20
	maxHistorySize     = 100
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// parseDate accepts YYYY-MM-DD.
func parseDate(name, v string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, badRequest("%s must be YYYY-MM-DD", name)
	}
	return t, nil
}

// parseIntParam returns def when the parameter is absent and an error when
// it is present but not an integer within [min, max].
func parseIntParam(q url.Values, name string, def, min, max int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return 0, badRequest("%s must be an integer between %d and %d", name, min, max)
	}
	return n, nil
}

// ParseReportWindow reads either from+to or months from q. With neither,
// the current calendar month is used.
func ParseReportWindow(q url.Values, now time.Time) (core.Period, error) {
	fromStr, toStr := q.Get("from"), q.Get("to")
	hasRange := fromStr != "" || toStr != ""

	if q.Get("months") != "" {
		if hasRange {
			return core.Period{}, badRequest("use either months or from/to, not both")
		}
		months, err := parseIntParam(q, "months", 1, 1, maxWindowMonths)
		if err != nil {
			return core.Period{}, err
		}
		return core.RollingMonths(now, months), nil
	}
	if !hasRange {
		return core.RollingMonths(now, 1), nil
	}
	if fromStr == "" || toStr == "" {
		return core.Period{}, badRequest("from and to are both required")
	}
	from, err := parseDate("from", fromStr)
	if err != nil {
		return core.Period{}, err
	}
	to, err := parseDate("to", toStr)
	if err != nil {
		return core.Period{}, err
	}
	return core.NewPeriod(from, to)
}

// parseBool accepts the strconv spellings; anything else is false.
func parseBool(v string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(v))
	return b
}

// decodeJSON reads a single JSON object from the request body into dst.
// Unknown fields and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return badRequest("body larger than %d bytes", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return badRequest("empty body")
		default:
			return badRequest("invalid JSON: %v", err)
		}
	}
	if dec.More() {
		return badRequest("body must contain a single JSON object")
	}
	return nil
}
