package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"spendguard/internal/budget"
	"spendguard/internal/sheets"
)

// ReportSource produces closed-month reports.
type ReportSource interface {
	Owners(ctx context.Context) ([]string, error)
	MonthReport(ctx context.Context, owner string, year, month int) (budget.Report, error)
}

// ReportPublisher forwards a report to a broker.
type ReportPublisher interface {
	PublishReport(ctx context.Context, r budget.Report) error
}

// RolloverConfig tunes the rollover job.
type RolloverConfig struct {
	// Concurrency bounds how many owners are handled at once (default: 4)
	Concurrency int
	// Location used to decide which month has closed (default: UTC)
	Location *time.Location
}

func DefaultRolloverConfig() RolloverConfig {
	return RolloverConfig{Concurrency: 4, Location: time.UTC}
}

// RolloverResult summarises one rollover run.
type RolloverResult struct {
	Period    Period
	Owners    int
	Published int
	Exported  int
	Failed    int
}

// RolloverProcessor closes a month: it builds every owner's report and hands
// it to the publisher and the exporter, either of which may be nil.
type RolloverProcessor struct {
	source    ReportSource
	publisher ReportPublisher
	exporter  sheets.ReportWriter
	config    RolloverConfig

	mu   sync.Mutex
	last Period
}

func NewRolloverProcessor(source ReportSource, publisher ReportPublisher, exporter sheets.ReportWriter, config RolloverConfig) *RolloverProcessor {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &RolloverProcessor{
		source:    source,
		publisher: publisher,
		exporter:  exporter,
		config:    config,
	}
}

// LastProcessed returns the most recent period completed without failures.
func (p *RolloverProcessor) LastProcessed() Period {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// ProcessDue rolls over the month closed at now unless it was already done.
// ran is false when nothing was due.
func (p *RolloverProcessor) ProcessDue(ctx context.Context, now time.Time) (res RolloverResult, ran bool, err error) {
	if !RolloverDue(p.LastProcessed(), now, p.config.Location) {
		return RolloverResult{}, false, nil
	}
	period := ClosedPeriod(now, p.config.Location)
	res, err = p.ProcessMonth(ctx, period.Year, period.Month)
	return res, true, err
}

// ProcessMonth handles every owner for year/month. Failures of single owners
// do not stop the others; they are joined into the returned error.
func (p *RolloverProcessor) ProcessMonth(ctx context.Context, year, month int) (RolloverResult, error) {
	period := Period{Year: year, Month: month}
	res := RolloverResult{Period: period}
	if p.source == nil {
		return res, errors.New("rollover processor not properly initialized")
	}
	if month < 1 || month > 12 {
		return res, fmt.Errorf("invalid month: %d", month)
	}

	owners, err := p.source.Owners(ctx)
	if err != nil {
		return res, fmt.Errorf("list owners: %w", err)
	}
	res.Owners = len(owners)

	slog.InfoContext(ctx, "Processing monthly rollover",
		"period", period.String(),
		"owners", len(owners))

	var (
		published, exported atomic.Int64
		errMu               sync.Mutex
		failures            []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)
	for _, owner := range owners {
		g.Go(func() error {
			pub, exp, err := p.processOwner(gctx, owner, year, month)
			if pub {
				published.Add(1)
			}
			if exp {
				exported.Add(1)
			}
			if err != nil {
				slog.ErrorContext(gctx, "Rollover failed for owner",
					"owner", owner,
					"period", period.String(),
					"error", err)
				errMu.Lock()
				failures = append(failures, fmt.Errorf("owner %s: %w", owner, err))
				errMu.Unlock()
			}
			// Per-owner failures are collected, never cancel the group.
			return nil
		})
	}
	_ = g.Wait()

	res.Published = int(published.Load())
	res.Exported = int(exported.Load())
	res.Failed = len(failures)

	if len(failures) == 0 && ctx.Err() == nil {
		p.mu.Lock()
		if p.last.Before(period) {
			p.last = period
		}
		p.mu.Unlock()
	}

	slog.InfoContext(ctx, "Monthly rollover completed",
		"period", period.String(),
		"owners", res.Owners,
		"published", res.Published,
		"exported", res.Exported,
		"failed", res.Failed)

	if err := ctx.Err(); err != nil {
		failures = append(failures, err)
	}
	return res, errors.Join(failures...)
}

func (p *RolloverProcessor) processOwner(ctx context.Context, owner string, year, month int) (published, exported bool, err error) {
	rep, err := p.source.MonthReport(ctx, owner, year, month)
	if err != nil {
		return false, false, fmt.Errorf("build report: %w", err)
	}

	var errs []error
	if p.publisher != nil {
		if err := p.publisher.PublishReport(ctx, rep); err != nil {
			errs = append(errs, fmt.Errorf("publish report: %w", err))
		} else {
			published = true
		}
	}
	if p.exporter != nil {
		ref, err := p.exporter.WriteReport(ctx, rep)
		if err != nil {
			errs = append(errs, fmt.Errorf("export report: %w", err))
		} else {
			exported = true
			slog.DebugContext(ctx, "Report exported", "owner", owner, "ref", ref)
		}
	}
	return published, exported, errors.Join(errs...)
}
