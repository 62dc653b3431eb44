package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// JSONResponseBuilder provides a fluent API for JSON responses with the
// {"message": ..., "data": ...} envelope.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	message    string
	data       any
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{statusCode: http.StatusOK, headers: make(map[string]string)}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	b.message = msg
	return b
}

func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.data = v
	return b
}

func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	body := struct {
		Message string `json:"message,omitempty"`
		Data    any    `json:"data,omitempty"`
	}{b.message, b.data}
	writeJSON(w, b.statusCode, body)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError writes {"error": code, "message": msg}.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

// writeBadRequest reports err (an errBadRequest or a domain validation
// error) as a 400.
func writeBadRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "invalid_request", strings.TrimPrefix(err.Error(), errBadRequest.Error()+": "))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}
