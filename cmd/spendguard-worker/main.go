package main

import (
	"context"
	"os"

	"spendguard/internal/amqp"
	"spendguard/internal/budget"
	"spendguard/internal/cli"
	applog "spendguard/internal/log"
	"spendguard/internal/services"
	"spendguard/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	ctx := context.Background()
	be := cli.InitBackend(ctx, logger, cfg)

	amqpClient, err := cli.InitAMQP(logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		_ = be.Close()
		os.Exit(1)
	}
	exporter, err := cli.InitSheetsExporter(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets export", "error", err)
		_ = be.Close()
		os.Exit(1)
	}

	svc := budget.NewService(be.Store, nil, budget.Options{
		Location:     cfg.Location(),
		StoreTimeout: cfg.StoreTimeout,
		Logger:       logger.WithComponent(applog.ComponentBudget).Slog(),
	})

	var (
		publisher services.ReportPublisher
		alerts    *services.AlertProcessor
	)
	if amqpClient != nil {
		publisher = amqp.NewEvents(amqpClient, cfg.AlertQueue, cfg.ReportQueue)
		alerts = services.NewAlertProcessor(amqpClient, be.Alerts, cfg.AlertQueue)
	}

	rcfg := services.DefaultRolloverConfig()
	rcfg.Location = cfg.Location()
	rollover := services.NewRolloverProcessor(svc, publisher, exporter, rcfg)
	scheduler, err := worker.NewScheduler(rollover, be.Revocations, worker.Config{
		RolloverSchedule: cfg.RolloverSchedule,
		PurgeSchedule:    cfg.TokenPurgeEvery,
		Location:         cfg.Location(),
	})
	if err != nil {
		logger.Error("Invalid worker schedule", "error", err)
		_ = be.Close()
		os.Exit(1)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if alerts != nil {
			if err := alerts.Stop(ctx); err != nil {
				logger.Warn("Alert processor stop error", "error", err)
			}
		}
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Scheduler stop error", "error", err)
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := be.Close(); err != nil {
			logger.Warn("Backend close error", "error", err)
		}
	})

	if alerts != nil {
		if err := alerts.Start(shutdownCtx); err != nil {
			logger.Error("Failed to start alert processor", "error", err)
			os.Exit(1)
		}
	}
	scheduler.Start(shutdownCtx)

	logger.Info("Worker started",
		"backend", cfg.DataBackend,
		"amqp_enabled", amqpClient != nil,
		"sheets_enabled", exporter != nil)

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Worker stopped")
}
