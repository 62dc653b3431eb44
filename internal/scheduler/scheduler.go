// Package scheduler enqueues periodic report requests for users who enabled
// scheduled reports.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"finreport/internal/amqp"
	"finreport/internal/core"
	"finreport/internal/log"
	"finreport/internal/store"
)

const (
	publishConcurrency = 4
	runTimeout         = 5 * time.Minute
)

type Scheduler struct {
	settings  store.ReportSettings
	publisher amqp.Publisher
	logger    *log.Logger
	now       func() time.Time
	cron      *cron.Cron
}

func New(settings store.ReportSettings, publisher amqp.Publisher, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default(log.ComponentScheduler)
	}
	return &Scheduler{
		settings:  settings,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentScheduler),
		now:       time.Now,
		cron:      cron.New(),
	}
}

// Start runs RunOnce on every tick of spec (standard 5-field cron syntax).
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Scheduled run finished with errors", log.FieldError, err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("add cron job %q: %w", spec, err)
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", "schedule", spec)
	return nil
}

// Stop stops the cron loop; the returned context is done when a running
// job has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce publishes one request per enabled user: the previous calendar
// month, or a window of the user's configured months ending with it.
// Failures for one user do not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	settings, err := s.settings.ListEnabledReportSettings(ctx)
	if err != nil {
		return 0, fmt.Errorf("list report settings: %w", err)
	}

	now := s.now()
	var (
		mu        sync.Mutex
		published int
		errs      []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(publishConcurrency)
	for _, setting := range settings {
		g.Go(func() error {
			period := Window(now, setting.Months)
			err := s.publisher.PublishReportRequest(gctx, amqp.NewRangeRequest(setting.UserID, period.From, period.To))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.ErrorContext(gctx, "Failed to enqueue scheduled report",
					log.FieldUserID, setting.UserID, log.FieldError, err.Error())
				errs = append(errs, fmt.Errorf("user %s: %w", setting.UserID, err))
				return nil
			}
			published++
			return nil
		})
	}
	_ = g.Wait()

	s.logger.InfoContext(ctx, "Scheduled reports enqueued",
		"enabled", len(settings), "published", published, "failed", len(errs))
	return published, errors.Join(errs...)
}

// Window returns the scheduled report period for a user: months calendar
// months ending with the month before now.
func Window(now time.Time, months int) core.Period {
	prev := core.PreviousMonth(now)
	if months <= 1 {
		return prev
	}
	return core.Period{From: core.RollingMonths(prev.From, months).From, To: prev.To}
}
