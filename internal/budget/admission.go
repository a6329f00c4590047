package budget

import (
	"context"
	"fmt"
	"strings"

	"spendguard/internal/core"
)

// Outcome of an admission decision.
type Outcome int

const (
	Admit Outcome = iota
	RejectOverLimit
	AdmitOverride
)

func (o Outcome) String() string {
	switch o {
	case Admit:
		return "admit"
	case RejectOverLimit:
		return "reject_over_limit"
	case AdmitOverride:
		return "admit_override"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Persists reports whether the outcome records a transaction.
func (o Outcome) Persists() bool {
	return o == Admit || o == AdmitOverride
}

// Decision is the result of comparing a new amount against a category cap.
// Remaining and Exceed are only meaningful when the cap was crossed.
type Decision struct {
	Outcome    Outcome
	PriorSpend core.Money
	Cap        core.Money
	HasCap     bool
	Remaining  core.Money
	Exceed     core.Money

	// Transaction is set when a record was persisted.
	Transaction *core.Transaction
}

// AdmissionRequest carries a new spending event submitted by an owner.
type AdmissionRequest struct {
	Category string
	Amount   core.Money
	Payee    string
	Redirect string
	Bypass   bool
}

func (r AdmissionRequest) Validate() error {
	if strings.TrimSpace(r.Category) == "" {
		return core.Invalid("category", core.ErrEmptyCategory)
	}
	if err := r.Amount.Validate(); err != nil {
		return core.Invalid("amount", err)
	}
	if strings.TrimSpace(r.Payee) == "" {
		return core.Invalid("payee", core.ErrEmptyPayee)
	}
	if strings.TrimSpace(r.Redirect) == "" {
		return core.Invalid("redirect", core.ErrEmptyRedirect)
	}
	return nil
}

// Decide is deterministic given its inputs. The boundary is inclusive:
// priorSpend + amount == cap admits.
func Decide(priorSpend, cap core.Money, hasCap bool, amount core.Money, bypass bool) Decision {
	d := Decision{Outcome: Admit, PriorSpend: priorSpend, Cap: cap, HasCap: hasCap}
	if !hasCap || priorSpend.Add(amount).Cents <= cap.Cents {
		return d
	}
	d.Remaining = cap.Sub(priorSpend)
	d.Exceed = amount.Sub(d.Remaining)
	if bypass {
		d.Outcome = AdmitOverride
	} else {
		d.Outcome = RejectOverLimit
	}
	return d
}

// Admit runs the admission flow for owner: validate, aggregate the
// month-to-date spend, resolve the cap, decide and persist at most one
// transaction. A RejectOverLimit decision is returned with a nil error.
func (s *Service) Admit(ctx context.Context, owner string, req AdmissionRequest) (Decision, error) {
	if strings.TrimSpace(owner) == "" {
		return Decision{}, core.Invalid("owner", core.ErrEmptyOwner)
	}
	if err := req.Validate(); err != nil {
		return Decision{}, err
	}
	category := strings.TrimSpace(req.Category)

	if s.opts.StrictAdmission {
		unlock := s.locks.Lock(owner + "\x00" + category)
		defer unlock()
	}

	now := s.now()
	window := core.MonthToDate(now)

	prior, err := s.SpendSoFar(ctx, owner, category, window.From, window.To)
	if err != nil {
		return Decision{}, err
	}
	cap, hasCap, err := s.ResolveLimit(ctx, owner, category)
	if err != nil {
		return Decision{}, err
	}

	d := Decide(prior, cap, hasCap, req.Amount, req.Bypass)
	if d.Outcome.Persists() {
		tx := core.Transaction{
			ID:            core.NewTransactionID(),
			Owner:         owner,
			Category:      category,
			Amount:        req.Amount,
			Payee:         strings.TrimSpace(req.Payee),
			Timestamp:     now,
			ExceededLimit: d.Outcome == AdmitOverride,
		}
		sctx, cancel := s.storeCtx(ctx)
		err := s.store.InsertTransaction(sctx, tx)
		cancel()
		if err != nil {
			return Decision{}, fmt.Errorf("insert transaction: %w", err)
		}
		d.Transaction = &tx
	}

	s.logger.InfoContext(ctx, "Admission decided",
		"owner", owner,
		"category", category,
		"amount_cents", req.Amount.Cents,
		"prior_cents", prior.Cents,
		"outcome", d.Outcome.String())

	if d.Outcome != Admit {
		s.notify(ctx, owner, category, req, d, now)
	}
	return d, nil
}
