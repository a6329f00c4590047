package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spendguard/internal/amqp"
	"spendguard/internal/auth"
	"spendguard/internal/budget"
	"spendguard/internal/cli"
	apphttp "spendguard/internal/http"
	applog "spendguard/internal/log"
	"spendguard/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	ctx := context.Background()
	be := cli.InitBackend(ctx, logger, cfg)

	// Alerts go to the broker when one is configured, else straight to the
	// audit trail.
	var notifier budget.Notifier = services.NewLocalAlerts(be.Alerts)
	amqpClient, err := cli.InitAMQP(logger, cfg)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, recording alerts locally", "error", err)
	} else if amqpClient != nil {
		notifier = amqp.NewEvents(amqpClient, cfg.AlertQueue, cfg.ReportQueue)
	}

	svc := budget.NewService(be.Store, notifier, budget.Options{
		Location:            cfg.Location(),
		StrictAdmission:     cfg.StrictAdmission,
		CrossOwnerInference: cfg.CrossOwnerInference,
		StoreTimeout:        cfg.StoreTimeout,
		Logger:              logger.WithComponent(applog.ComponentBudget).Slog(),
	})
	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, be.Revocations)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Budget:             svc,
		Verifier:           verifier,
		Alerts:             be.Alerts,
		Logger:             logger,
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMin,
		Ready:              be.Ping,
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if err := be.Close(); err != nil {
			logger.Warn("Backend close error", "error", err)
		}
	})

	logger.Info("Starting spendguard server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", amqpClient != nil,
		"strict_admission", cfg.StrictAdmission,
		"started_at", time.Now().UTC().Format(time.RFC3339))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		_ = be.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
