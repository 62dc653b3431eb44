package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finreport/internal/amqp"
	"finreport/internal/core"
	"finreport/internal/log"
	"finreport/internal/report"
	"finreport/internal/store"
)

// ReportWorker builds reports requested over AMQP and stores them in the
// report history.
type ReportWorker struct {
	builder report.Builder
	history store.ReportHistory
	logger  *log.Logger
	now     func() time.Time
}

func NewReportWorker(builder report.Builder, history store.ReportHistory, logger *log.Logger) *ReportWorker {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &ReportWorker{
		builder: builder,
		history: history,
		logger:  logger.WithComponent(log.ComponentWorker),
		now:     time.Now,
	}
}

// HandleReportRequest processes a single report request message from AMQP.
// Requests with an invalid window, or whose report cannot be encoded, return
// an error wrapping amqp.ErrInvalidMessage or core.ErrInvalidRange so the
// consumer drops them. Store failures are returned as-is and the message is
// requeued.
func (w *ReportWorker) HandleReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error {
	fields := log.NewFields().WithOperation(log.OpBuild).WithUser(msg.UserID)
	fields[log.FieldReportID] = msg.RequestID

	period, err := msg.Period(w.now())
	if err != nil {
		w.logger.LogWith(ctx, slog.LevelWarn, "Rejected report request",
			fields.WithError(err).WithErrorType(log.ErrorTypeValidation))
		return err
	}
	fields = fields.WithReport(msg.UserID, period.From, period.To)

	start := time.Now()
	rep, err := w.builder.BuildReport(ctx, msg.UserID, period.From, period.To)
	if err != nil {
		errType := log.ErrorTypeInternal
		if errors.Is(err, report.ErrUpstreamUnavailable) {
			errType = log.ErrorTypeUpstream
		} else if errors.Is(err, core.ErrInvalidRange) {
			errType = log.ErrorTypeValidation
		}
		w.logger.LogWith(ctx, slog.LevelError, "Report build failed", fields.WithError(err).WithErrorType(errType))
		return fmt.Errorf("build report: %w", err)
	}

	// An unencodable report fails the same way on every retry.
	rec, err := report.Record(rep)
	if err != nil {
		w.logger.LogWith(ctx, slog.LevelError, "Report not storable, dropping request",
			fields.WithError(err).WithErrorType(log.ErrorTypeInternal).WithOperation(log.OpSave))
		return fmt.Errorf("%w: %w", amqp.ErrInvalidMessage, err)
	}
	if err := w.history.SaveReport(ctx, rec); err != nil {
		w.logger.LogWith(ctx, slog.LevelError, "Failed to store report",
			fields.WithError(err).WithErrorType(log.ErrorTypeDatabase).WithOperation(log.OpSave))
		return fmt.Errorf("save report: %w", err)
	}

	fields = fields.WithCounts(rep.TransactionCount, rep.Skipped)
	fields[log.FieldDuration] = time.Since(start).Milliseconds()
	w.logger.LogWith(ctx, slog.LevelInfo, "Report stored", fields)
	return nil
}
