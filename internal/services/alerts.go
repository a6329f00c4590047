package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"spendguard/internal/amqp"
	"spendguard/internal/budget"
	"spendguard/internal/core"
	"spendguard/internal/ledger"
)

// Consumer delivers queue messages to a handler until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler amqp.Handler) error
}

// AlertProcessor consumes limit alerts and keeps them as an audit trail.
type AlertProcessor struct {
	consumer Consumer
	recorder ledger.AlertRecorder
	queue    string

	processed atomic.Int64
	dropped   atomic.Int64

	// Lifecycle management
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

func NewAlertProcessor(consumer Consumer, recorder ledger.AlertRecorder, queue string) *AlertProcessor {
	return &AlertProcessor{consumer: consumer, recorder: recorder, queue: queue}
}

// HandleMessage stores one alert. Undecodable bodies are reported as
// amqp.ErrMalformed so the consumer drops them.
func (p *AlertProcessor) HandleMessage(ctx context.Context, body []byte) error {
	msg, err := amqp.LimitAlertMessageFromJSON(body)
	if err != nil {
		p.dropped.Add(1)
		return err
	}
	rec := ledger.AlertRecord{
		Owner:      msg.Owner,
		Category:   msg.Category,
		Payee:      msg.Payee,
		Outcome:    msg.Outcome,
		Amount:     core.Money{Cents: msg.AmountCents},
		Cap:        core.Money{Cents: msg.CapCents},
		Remaining:  core.Money{Cents: msg.RemainingCents},
		Exceed:     core.Money{Cents: msg.ExceedCents},
		OccurredAt: msg.OccurredAt.UTC(),
	}
	if err := p.recorder.RecordAlert(ctx, rec); err != nil {
		return fmt.Errorf("record alert: %w", err)
	}
	p.processed.Add(1)

	slog.WarnContext(ctx, "Budget limit alert",
		"owner", rec.Owner,
		"category", rec.Category,
		"outcome", rec.Outcome,
		"amount", rec.Amount.String(),
		"exceed", rec.Exceed.String())
	return nil
}

// Stats returns how many alerts were stored and how many were dropped.
func (p *AlertProcessor) Stats() (processed, dropped int64) {
	return p.processed.Load(), p.dropped.Load()
}

// Start consumes the alert queue in the background. Returns an error if
// already running.
func (p *AlertProcessor) Start(ctx context.Context) error {
	if p.consumer == nil || p.recorder == nil {
		return errors.New("alert processor not properly initialized")
	}
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("alert processor is already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.doneCh = make(chan struct{})
	done := p.doneCh
	p.mu.Unlock()

	go func() {
		defer close(done)
		err := p.consumer.Consume(runCtx, p.queue, p.HandleMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.ErrorContext(runCtx, "Alert consumer stopped", "queue", p.queue, "error", err)
		}
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	slog.InfoContext(ctx, "Alert processor started", "queue", p.queue)
	return nil
}

// Stop cancels the consumer and waits for it to return.
func (p *AlertProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.doneCh
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		slog.InfoContext(ctx, "Alert processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Alert processor stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the consumer loop is active.
func (p *AlertProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// LocalAlerts records limit alerts straight into the audit trail. It stands
// in for the broker when AMQP is disabled.
type LocalAlerts struct {
	recorder ledger.AlertRecorder
}

var _ budget.Notifier = (*LocalAlerts)(nil)

func NewLocalAlerts(recorder ledger.AlertRecorder) *LocalAlerts {
	return &LocalAlerts{recorder: recorder}
}

func (l *LocalAlerts) NotifyLimit(ctx context.Context, a budget.LimitAlert) error {
	return l.recorder.RecordAlert(ctx, ledger.AlertRecord{
		Owner:      a.Owner,
		Category:   a.Category,
		Payee:      a.Payee,
		Outcome:    a.Outcome.String(),
		Amount:     a.Amount,
		Cap:        a.Cap,
		Remaining:  a.Remaining,
		Exceed:     a.Exceed,
		OccurredAt: a.OccurredAt.UTC(),
	})
}
