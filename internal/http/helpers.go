package http

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"finreport/internal/log"
)

const maxUserIDLength = 128

// userID returns the caller identity set by the auth proxy. Control
// characters are stripped; an empty or oversized value is rejected.
func userID(r *http.Request) (string, bool) {
	id := sanitizeInput(r.Header.Get(log.UserIDHeader))
	if id == "" || len(id) > maxUserIDLength || !utf8.ValidString(id) {
		return "", false
	}
	return id, true
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}
