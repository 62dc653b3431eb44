package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"finreport/internal/amqp"
	"finreport/internal/core"
	"finreport/internal/log"
	"finreport/internal/report"
	"finreport/internal/seed"
	"finreport/internal/store"
)

const (
	reportTimeout  = 30 * time.Second
	publishTimeout = 5 * time.Second
	seedTimeout    = 60 * time.Second
)

// handleGetReport builds a report synchronously. The body is the report
// itself, without the message envelope.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	user, _ := userID(r)
	period, err := ParseReportWindow(r.URL.Query(), s.now())
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reportTimeout)
	defer cancel()
	rep, err := s.deps.Reports.BuildReport(ctx, user, period.From, period.To)
	if err != nil {
		s.writeReportError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) writeReportError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.FromContext(r.Context())
	fields := log.NewFields().WithOperation(log.OpBuild).WithError(err)
	switch {
	case errors.Is(err, core.ErrInvalidRange), errors.Is(err, report.ErrInvalidWindow):
		writeBadRequest(w, err)
	case errors.Is(err, report.ErrUpstreamUnavailable):
		logger.LogWith(r.Context(), slog.LevelError, "Report failed: store unavailable", fields.WithErrorType(log.ErrorTypeUpstream))
		writeError(w, http.StatusBadGateway, "upstream_unavailable", "Transaction store unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		logger.LogWith(r.Context(), slog.LevelError, "Report timed out", fields.WithErrorType(log.ErrorTypeUpstream))
		writeError(w, http.StatusGatewayTimeout, "timeout", "Report generation timed out")
	default:
		logger.LogWith(r.Context(), slog.LevelError, "Report failed", fields.WithErrorType(log.ErrorTypeInternal))
		writeError(w, http.StatusInternalServerError, "internal", "Report generation failed")
	}
}

type reportRequestBody struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Months int    `json:"months"`
}

// handleRequestReport enqueues an asynchronous report build.
func (s *Server) handleRequestReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "queue_unavailable", "Report queue is not configured")
		return
	}
	user, _ := userID(r)

	var body reportRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}

	hasRange := body.From != "" || body.To != ""
	var msg *amqp.ReportRequestMessage
	switch {
	case body.Months != 0 && hasRange:
		writeBadRequest(w, badRequest("use either months or from/to, not both"))
		return
	case body.Months < 0 || body.Months > maxWindowMonths:
		writeBadRequest(w, badRequest("months must be between 1 and %d", maxWindowMonths))
		return
	case body.Months > 0:
		msg = amqp.NewRollingRequest(user, body.Months)
	case hasRange:
		from, err := parseDate("from", body.From)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		to, err := parseDate("to", body.To)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		if _, err := core.NewPeriod(from, to); err != nil {
			writeBadRequest(w, err)
			return
		}
		msg = amqp.NewRangeRequest(user, from, to)
	default:
		writeBadRequest(w, badRequest("months or from/to is required"))
		return
	}
	if err := msg.Validate(); err != nil {
		writeBadRequest(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), publishTimeout)
	defer cancel()
	if err := s.deps.Publisher.PublishReportRequest(ctx, msg); err != nil {
		log.FromContext(r.Context()).ErrorContext(ctx, "Failed to enqueue report request",
			log.FieldReportID, msg.RequestID, log.FieldError, err.Error())
		writeError(w, http.StatusServiceUnavailable, "queue_unavailable", "Could not enqueue report request")
		return
	}

	NewJSONResponse().
		Status(http.StatusAccepted).
		Message("Report request queued").
		Data(map[string]string{"requestId": msg.RequestID}).
		Write(w)
}

type historyEntry struct {
	ID          string          `json:"id"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Report      json.RawMessage `json:"report"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, _ := userID(r)
	size, err := parseIntParam(r.URL.Query(), "pageSize", defaultHistorySize, 1, maxHistorySize)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	records, err := s.deps.History.ListReports(r.Context(), user, size)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list report history", log.FieldError, err.Error())
		writeError(w, http.StatusBadGateway, "upstream_unavailable", "Report history unavailable")
		return
	}

	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, historyEntry{
			ID:          rec.ID,
			From:        rec.From.Format(time.DateOnly),
			To:          rec.To.Format(time.DateOnly),
			GeneratedAt: rec.GeneratedAt,
			Report:      json.RawMessage(rec.Payload),
		})
	}
	NewJSONResponse().Message("Reports history fetched successfully").Data(entries).Write(w)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	user, _ := userID(r)
	setting, err := s.deps.Settings.GetReportSetting(r.Context(), user)
	if errors.Is(err, store.ErrNotFound) {
		setting = store.ReportSetting{UserID: user, Months: 1}
	} else if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to read report setting", log.FieldError, err.Error())
		writeError(w, http.StatusBadGateway, "upstream_unavailable", "Report settings unavailable")
		return
	}
	NewJSONResponse().Data(setting).Write(w)
}

type settingsBody struct {
	Enabled *bool `json:"enabled"`
	Months  int   `json:"months"`
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	user, _ := userID(r)
	var body settingsBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	if body.Enabled == nil {
		writeBadRequest(w, badRequest("enabled is required"))
		return
	}
	if body.Months == 0 {
		body.Months = 1
	}
	if body.Months < 1 || body.Months > 12 {
		writeBadRequest(w, badRequest("months must be between 1 and 12"))
		return
	}

	setting := store.ReportSetting{UserID: user, Enabled: *body.Enabled, Months: body.Months, UpdatedAt: s.now().UTC()}
	if err := s.deps.Settings.UpsertReportSetting(r.Context(), setting); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to update report setting", log.FieldError, err.Error())
		writeError(w, http.StatusBadGateway, "upstream_unavailable", "Report settings unavailable")
		return
	}
	NewJSONResponse().Message("Reports setting updated successfully").Data(setting).Write(w)
}

// handleSeed replaces or creates a user's synthetic history.
func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	if s.deps.Seeder == nil {
		writeError(w, http.StatusConflict, "read_only", store.ErrReadOnly.Error())
		return
	}
	user, _ := userID(r)
	q := r.URL.Query()
	months, err := parseIntParam(q, "months", defaultSeedMonths, 1, maxSeedMonths)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	force := parseBool(q.Get("force"))

	ctx, cancel := context.WithTimeout(r.Context(), seedTimeout)
	defer cancel()
	res, err := s.deps.Seeder.Seed(ctx, user, months, force)
	switch {
	case errors.Is(err, seed.ErrAlreadySeeded):
		writeError(w, http.StatusConflict, "already_seeded", "User already has transactions; pass force=true to replace them")
		return
	case errors.Is(err, store.ErrReadOnly):
		writeError(w, http.StatusConflict, "read_only", err.Error())
		return
	case err != nil:
		log.FromContext(r.Context()).ErrorContext(ctx, "Seeding failed", log.FieldError, err.Error())
		writeError(w, http.StatusBadGateway, "upstream_unavailable", "Could not write transactions")
		return
	}

	if s.deps.Invalidator != nil {
		s.deps.Invalidator.Invalidate(user)
	}
	NewJSONResponse().Status(http.StatusCreated).Message("Transactions seeded successfully").Data(res).Write(w)
}
