package budget

import (
	"context"
	"fmt"
	"time"

	"spendguard/internal/core"
	"spendguard/internal/ledger"
)

// SpendSoFar sums the amounts of the owner's transactions in category whose
// timestamp falls within [from, to].
func (s *Service) SpendSoFar(ctx context.Context, owner, category string, from, to time.Time) (core.Money, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	filter := ledger.TransactionFilter{Owner: owner, Category: category, From: from, To: to}
	if summer, ok := s.store.(ledger.SpendSummer); ok {
		total, err := summer.SumAmounts(ctx, filter)
		if err != nil {
			return core.Money{}, fmt.Errorf("sum amounts: %w", err)
		}
		return total, nil
	}

	txs, err := s.store.FindTransactions(ctx, filter, ledger.Sort{})
	if err != nil {
		return core.Money{}, fmt.Errorf("find transactions: %w", err)
	}
	var total core.Money
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total, nil
}

// SpendInMonth sums spend over a full calendar month. A zero year or month
// selects the current one.
func (s *Service) SpendInMonth(ctx context.Context, owner, category string, year, month int) (core.Money, error) {
	w, err := s.monthWindow(year, month)
	if err != nil {
		return core.Money{}, err
	}
	return s.SpendSoFar(ctx, owner, category, w.From, w.To)
}

func (s *Service) monthWindow(year, month int) (core.Window, error) {
	now := s.now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	w, err := core.FullMonth(year, month, s.opts.Location)
	if err != nil {
		return core.Window{}, core.Invalid("month", err)
	}
	return w, nil
}
