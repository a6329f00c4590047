// Command rollover closes one month for every owner and exits. It is meant
// for cron jobs and manual backfills.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"spendguard/internal/amqp"
	"spendguard/internal/budget"
	"spendguard/internal/cli"
	applog "spendguard/internal/log"
	"spendguard/internal/services"
)

func main() {
	year := flag.Int("year", 0, "year to close (default: the last closed month)")
	month := flag.Int("month", 0, "month to close, 1-12")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	be := cli.InitBackend(ctx, logger, cfg)
	defer be.Close()

	period := services.ClosedPeriod(time.Now(), cfg.Location())
	if *year != 0 || *month != 0 {
		period = services.Period{Year: *year, Month: *month}
	}

	var publisher services.ReportPublisher
	amqpClient, err := cli.InitAMQP(logger, cfg)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, reports will not be published", "error", err)
	} else if amqpClient != nil {
		defer amqpClient.Close()
		publisher = amqp.NewEvents(amqpClient, cfg.AlertQueue, cfg.ReportQueue)
	}
	exporter, err := cli.InitSheetsExporter(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets export", "error", err)
		os.Exit(1)
	}

	svc := budget.NewService(be.Store, nil, budget.Options{
		Location:     cfg.Location(),
		StoreTimeout: cfg.StoreTimeout,
		Logger:       logger.WithComponent(applog.ComponentBudget).Slog(),
	})
	rcfg := services.DefaultRolloverConfig()
	rcfg.Location = cfg.Location()
	processor := services.NewRolloverProcessor(svc, publisher, exporter, rcfg)

	logger.Info("Starting rollover", "period", period.String())
	res, err := processor.ProcessMonth(ctx, period.Year, period.Month)
	if err != nil {
		logger.Error("Rollover finished with errors",
			"period", period.String(),
			"failed", res.Failed,
			"error", err)
		// Deferred closers do not run after os.Exit.
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		_ = be.Close()
		os.Exit(1)
	}
	logger.Info("Rollover completed",
		"period", period.String(),
		"owners", res.Owners,
		"published", res.Published,
		"exported", res.Exported)
}
