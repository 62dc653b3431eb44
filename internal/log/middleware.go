package log

import (
	"context"
	"net/http"
)

type contextKey string

const loggerContextKey contextKey = "logger"

// UserIDHeader carries the caller identity set by the upstream auth proxy.
const UserIDHeader = "X-User-ID"

// IntoContext stores logger in ctx.
func IntoContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext extracts a logger from the context, falling back to the
// process default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok {
		return logger
	}
	return Default("unknown")
}

// Middleware attaches a request-scoped logger carrying the request ID and,
// when present, the caller's user ID.
func Middleware(logger *Logger, extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := logger.WithComponent(ComponentHTTP)
			if extractRequestID != nil {
				if id := extractRequestID(r); id != "" {
					l = l.With(FieldRequestID, id)
				}
			}
			if userID := r.Header.Get(UserIDHeader); userID != "" {
				l = l.With(FieldUserID, userID)
			}
			next.ServeHTTP(w, r.WithContext(IntoContext(r.Context(), l)))
		})
	}
}
