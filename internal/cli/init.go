// Package cli provides common CLI initialization utilities shared by the
// binaries under cmd/.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spendguard/internal/amqp"
	"spendguard/internal/backend"
	"spendguard/internal/config"
	applog "spendguard/internal/log"
	"spendguard/internal/sheets"
	gsheet "spendguard/internal/sheets/google"
)

// SetupLogger builds the component logger described by LOG_LEVEL and
// LOG_FORMAT and installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	lc := applog.DefaultConfig()
	lc.Component = component
	if cfg != nil {
		lc.Level = applog.ParseLevel(cfg.LogLevel)
		lc.Format = cfg.LogFormat
	}
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on failure.
func LoadAndValidateConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Configuration could not be parsed", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend opens the configured storage backend or exits the process.
func InitBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.Backend {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	b, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog()).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return b
}

// InitAMQP connects to the broker when configured. A nil client means
// messaging is disabled.
func InitAMQP(logger *applog.Logger, cfg *config.Config) (*amqp.Client, error) {
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP disabled, limit alerts stay local")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AlertQueue, cfg.ReportQueue)
	if err != nil {
		return nil, err
	}
	logger.Info("Initialized AMQP client",
		"exchange", cfg.AMQPExchange,
		"alert_queue", cfg.AlertQueue,
		"report_queue", cfg.ReportQueue)
	return client, nil
}

// InitSheetsExporter builds the Google Sheets report writer. Nil means
// export is disabled.
func InitSheetsExporter(ctx context.Context, logger *applog.Logger, cfg *config.Config) (sheets.ReportWriter, error) {
	if !cfg.SheetsEnabled() {
		return nil, nil
	}
	client, err := gsheet.LoadCredential(cfg.GoogleOAuthClientJSON, cfg.GoogleOAuthClientFile)
	if err != nil {
		return nil, err
	}
	token, err := gsheet.LoadCredential(cfg.GoogleOAuthTokenJSON, cfg.GoogleOAuthTokenFile)
	if err != nil {
		return nil, err
	}
	account, err := gsheet.LoadCredential(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
	if err != nil {
		return nil, err
	}
	w, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		OAuthClientJSON:    client,
		OAuthTokenJSON:     token,
		ServiceAccountJSON: account,
	}, logger.WithComponent(applog.ComponentSheets).Slog())
	if err != nil {
		return nil, err
	}
	logger.Info("Initialized Google Sheets export", "sheet", cfg.GoogleSheetName)
	return w, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// the signal, cleanup runs with a context bounded by timeout and done is
// closed once it returns.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
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

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
