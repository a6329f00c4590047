// Package worker schedules the periodic jobs of the worker process.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"spendguard/internal/services"
)

// Rollover is the job closing finished months.
type Rollover interface {
	ProcessDue(ctx context.Context, now time.Time) (services.RolloverResult, bool, error)
}

// TokenPurger drops revocations whose tokens have expired.
type TokenPurger interface {
	PurgeRevoked(ctx context.Context, now time.Time) (int64, error)
}

type Config struct {
	RolloverSchedule string
	PurgeSchedule    string
	Location         *time.Location
	// JobTimeout bounds a single job run (default: 5m)
	JobTimeout time.Duration
	Now        func() time.Time
}

// Scheduler runs the rollover and token purge on cron schedules. Either job
// may be nil.
type Scheduler struct {
	cron     *cron.Cron
	rollover Rollover
	purger   TokenPurger
	config   Config

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(rollover Rollover, purger TokenPurger, config Config) (*Scheduler, error) {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 5 * time.Minute
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	logger := cronLogger{slog.Default().With("component", "scheduler")}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(config.Location),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		rollover: rollover,
		purger:   purger,
		config:   config,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if rollover != nil {
		if _, err := s.cron.AddFunc(config.RolloverSchedule, func() { s.RunRollover(s.baseCtx()) }); err != nil {
			return nil, fmt.Errorf("rollover schedule %q: %w", config.RolloverSchedule, err)
		}
	}
	if purger != nil {
		if _, err := s.cron.AddFunc(config.PurgeSchedule, func() { s.RunPurge(s.baseCtx()) }); err != nil {
			return nil, fmt.Errorf("purge schedule %q: %w", config.PurgeSchedule, err)
		}
	}
	return s, nil
}

func (s *Scheduler) baseCtx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Start runs a catch-up rollover, then starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s.rollover != nil {
		s.RunRollover(ctx)
	}
	s.cron.Start()
	slog.InfoContext(ctx, "Scheduler started",
		"rollover_schedule", s.config.RolloverSchedule,
		"purge_schedule", s.config.PurgeSchedule,
		"location", s.config.Location.String())
}

// Stop halts the cron loop, cancels running jobs and waits for them.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		slog.InfoContext(ctx, "Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}
}

// Entries returns the number of scheduled jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// RunRollover runs the rollover once if a closed month is pending.
func (s *Scheduler) RunRollover(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	res, ran, err := s.rollover.ProcessDue(ctx, s.config.Now())
	switch {
	case err != nil:
		slog.ErrorContext(ctx, "Rollover job failed",
			"period", res.Period.String(),
			"failed", res.Failed,
			"error", err)
	case ran:
		slog.InfoContext(ctx, "Rollover job completed",
			"period", res.Period.String(),
			"owners", res.Owners)
	default:
		slog.DebugContext(ctx, "No rollover due")
	}
}

// RunPurge removes expired token revocations once.
func (s *Scheduler) RunPurge(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	n, err := s.purger.PurgeRevoked(ctx, s.config.Now().UTC())
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.ErrorContext(ctx, "Token purge failed", "error", err)
		}
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Purged expired token revocations", "count", n)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
