// Package cli provides common initialization for cmd/finreport,
// cmd/report-worker and cmd/seed.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finreport/internal/backend"
	"finreport/internal/config"
	"finreport/internal/insights"
	"finreport/internal/log"
	"finreport/internal/report"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger installs a text slog handler on stdout at level (LOG_LEVEL
// syntax) as the process default.
func SetupLogger(level, component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Component = component
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenBackend creates the configured data backend or exits.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldBackend, cfg.DataBackend, log.FieldError, err)
		os.Exit(1)
	}
	return res
}

// NewInsightGenerator returns the Gemini generator when insights are
// enabled. Reports never depend on insights, so a setup failure falls back
// to Noop with a warning.
func NewInsightGenerator(ctx context.Context, logger *log.Logger, cfg *config.Config) insights.Generator {
	if !cfg.InsightsEnabled {
		return insights.Noop{}
	}
	gen, err := insights.NewGemini(ctx, insights.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.InsightsTimeout,
	})
	if err != nil {
		logger.Warn("Insights disabled: Gemini client unavailable", log.FieldError, err)
		return insights.Noop{}
	}
	logger.Info("Gemini insights enabled", "model", cfg.GeminiModel)
	return gen
}

// NewAssembler wires the report assembler over the backend's fetcher.
func NewAssembler(ctx context.Context, logger *log.Logger, cfg *config.Config, be *backend.BackendResult) *report.Assembler {
	return report.NewAssembler(be.Fetcher,
		report.WithInsights(NewInsightGenerator(ctx, logger, cfg)),
		report.WithInsightTimeout(cfg.InsightsTimeout),
		report.WithLogger(logger),
	)
}

// GracefulShutdown returns a context cancelled on SIGINT/SIGTERM. cleanup
// runs with a context bounded by timeout before the returned channel
// closes.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}
