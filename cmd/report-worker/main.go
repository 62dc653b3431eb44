package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finreport/internal/amqp"
	"finreport/internal/cli"
	"finreport/internal/log"
	"finreport/internal/scheduler"
	"finreport/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting report-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the report worker")
		os.Exit(1)
	}

	be := cli.OpenBackend(context.Background(), logger, cfg)
	defer be.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	reportWorker := worker.NewReportWorker(cli.NewAssembler(context.Background(), logger, cfg, be), be.History, logger)

	sched := scheduler.New(be.Settings, amqpClient, logger)
	if cfg.ReportSchedule != "" {
		if err := sched.Start(cfg.ReportSchedule); err != nil {
			logger.Error("Invalid report schedule", "schedule", cfg.ReportSchedule, log.FieldError, err)
			os.Exit(1)
		}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		select {
		case <-sched.Stop().Done():
		case <-ctx.Done():
		}
	})

	logger.Info("Consuming report requests", log.FieldQueue, cfg.AMQPQueue)
	if err := amqpClient.ConsumeReportRequests(ctx, reportWorker.HandleReportRequest); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	<-done
	logger.Info("Report worker stopped")
}
