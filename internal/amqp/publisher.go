package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spendguard/internal/budget"
)

// Publisher is the interface the rest of the app uses to emit messages.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Events turns budget events into messages on the configured queues.
type Events struct {
	pub         Publisher
	alertQueue  string
	reportQueue string
}

var _ budget.Notifier = (*Events)(nil)

func NewEvents(pub Publisher, alertQueue, reportQueue string) *Events {
	return &Events{pub: pub, alertQueue: alertQueue, reportQueue: reportQueue}
}

// NotifyLimit implements budget.Notifier.
func (e *Events) NotifyLimit(ctx context.Context, a budget.LimitAlert) error {
	msg := AlertFromBudget(a)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	if err := e.pub.Publish(ctx, e.alertQueue, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published limit alert",
		"owner", a.Owner,
		"category", a.Category,
		"outcome", msg.Outcome,
		"queue", e.alertQueue)
	return nil
}

// PublishReport sends a closed-month report.
func (e *Events) PublishReport(ctx context.Context, r budget.Report) error {
	msg := ReportFromBudget(r, time.Now().UTC())
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return e.pub.Publish(ctx, e.reportQueue, body)
}

func AlertFromBudget(a budget.LimitAlert) *LimitAlertMessage {
	return &LimitAlertMessage{
		Owner:          a.Owner,
		Category:       a.Category,
		Payee:          a.Payee,
		Outcome:        a.Outcome.String(),
		AmountCents:    a.Amount.Cents,
		CapCents:       a.Cap.Cents,
		PriorCents:     a.PriorSpend.Cents,
		RemainingCents: a.Remaining.Cents,
		ExceedCents:    a.Exceed.Cents,
		OccurredAt:     a.OccurredAt.UTC(),
	}
}

func ReportFromBudget(r budget.Report, at time.Time) *MonthlyReportMessage {
	lines := make([]CategoryLine, len(r.PerCategory))
	for i, c := range r.PerCategory {
		lines[i] = CategoryLine{Category: c.Category, SpentCents: c.Spent.Cents}
		if c.HasCap {
			capCents := c.Cap.Cents
			lines[i].CapCents = &capCents
		}
	}
	return &MonthlyReportMessage{
		Owner:       r.Owner,
		Year:        r.Year,
		Month:       r.Month,
		TotalCents:  r.Total.Cents,
		PerCategory: lines,
		GeneratedAt: at,
	}
}
