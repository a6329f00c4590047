// Package budget holds the budget enforcement logic: limit resolution,
// month-to-date spend aggregation, the admission decision for new
// transactions, payee-based category inference and monthly analytics.
package budget

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"spendguard/internal/ledger"
)

// Options tune the service. The zero value is usable.
type Options struct {
	// Now returns the current instant. Defaults to time.Now in UTC.
	Now func() time.Time
	// Location used for calendar month boundaries. Defaults to UTC.
	Location *time.Location
	// StrictAdmission serializes admissions per (owner, category) inside
	// this process.
	StrictAdmission bool
	// CrossOwnerInference enables the any-owner fallback of InferCategory.
	CrossOwnerInference bool
	// StoreTimeout bounds each store round trip. Zero means no extra bound.
	StoreTimeout time.Duration
	Logger       *slog.Logger
}

// DefaultOptions enable cross-owner inference and bound store calls to five seconds.
func DefaultOptions() Options {
	return Options{
		CrossOwnerInference: true,
		StoreTimeout:        5 * time.Second,
	}
}

// Service orchestrates budget operations against a ledger store.
type Service struct {
	store    ledger.Store
	notifier Notifier
	opts     Options
	logger   *slog.Logger
	locks    *keyedMutex
	infer    singleflight.Group
}

func NewService(store ledger.Store, notifier Notifier, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		store:    store,
		notifier: notifier,
		opts:     opts,
		logger:   logger.With("component", "budget"),
		locks:    newKeyedMutex(),
	}
}

func (s *Service) now() time.Time {
	return s.opts.Now().In(s.opts.Location)
}

// storeCtx applies the configured store timeout to ctx.
func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.StoreTimeout)
}
