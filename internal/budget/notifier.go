package budget

import (
	"context"
	"time"

	"spendguard/internal/core"
)

// LimitAlert describes a transaction that crossed, or tried to cross, a cap.
type LimitAlert struct {
	Owner      string
	Category   string
	Payee      string
	Amount     core.Money
	Cap        core.Money
	PriorSpend core.Money
	Remaining  core.Money
	Exceed     core.Money
	Outcome    Outcome
	OccurredAt time.Time
}

// Notifier forwards limit alerts. Implementations must not block for long.
type Notifier interface {
	NotifyLimit(ctx context.Context, alert LimitAlert) error
}

type NopNotifier struct{}

func (NopNotifier) NotifyLimit(context.Context, LimitAlert) error { return nil }

func (s *Service) notify(ctx context.Context, owner, category string, req AdmissionRequest, d Decision, at time.Time) {
	alert := LimitAlert{
		Owner:      owner,
		Category:   category,
		Payee:      req.Payee,
		Amount:     req.Amount,
		Cap:        d.Cap,
		PriorSpend: d.PriorSpend,
		Remaining:  d.Remaining,
		Exceed:     d.Exceed,
		Outcome:    d.Outcome,
		OccurredAt: at,
	}
	if err := s.notifier.NotifyLimit(ctx, alert); err != nil {
		s.logger.WarnContext(ctx, "Limit alert not delivered",
			"owner", owner,
			"category", category,
			"error", err)
	}
}
