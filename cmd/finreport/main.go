package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"time"

	"finreport/internal/amqp"
	"finreport/internal/cache"
	"finreport/internal/cli"
	apphttp "finreport/internal/http"
	"finreport/internal/log"
	"finreport/internal/report"
	"finreport/internal/seed"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	be := cli.OpenBackend(ctx, logger, cfg)
	defer be.Close()

	reportCache := cache.NewLRUCache[*report.Report](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	reports := report.NewCachedBuilder(cli.NewAssembler(ctx, logger, cfg, be), reportCache)
	caches := cache.NewManager()
	caches.Register(reportCache)
	caches.StartCleanup(cfg.ReportCacheTTL)
	defer caches.Stop()

	deps := apphttp.Deps{
		Reports:     reports,
		Invalidator: reports,
		History:     be.History,
		Settings:    be.Settings,
		Ready:       be.Ping,
		Logger:      logger,
	}
	if be.Writer != nil {
		gen := seed.NewGenerator(seed.DefaultOptions(), rand.New(rand.NewSource(time.Now().UnixNano())), time.Now)
		deps.Seeder = seed.NewSeeder(gen, be.Writer, logger)
	} else {
		logger.Info("Backend is read-only, seeding disabled", log.FieldBackend, be.Name.String())
	}

	// The queue is optional for the API: without it only async requests fail.
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, async report requests disabled", log.FieldError, err)
		} else {
			defer client.Close()
			deps.Publisher = client
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps, apphttp.Options{RateLimitPerMinute: cfg.RateLimitPerMinute})

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		m := srv.Metrics()
		logger.Info("Request totals", "requests", m.TotalRequests, "failed", m.FailedRequests)
	})

	logger.Info("Starting finreport server", "port", cfg.Port, log.FieldBackend, be.Name.String())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
