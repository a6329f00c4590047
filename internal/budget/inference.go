package budget

import (
	"context"
	"fmt"
	"strings"

	"spendguard/internal/core"
	"spendguard/internal/ledger"
)

// InferCategory returns the category of the owner's most recent transaction
// with payee, then the most recent of any owner when cross-owner inference
// is enabled, then core.UnknownCategory.
func (s *Service) InferCategory(ctx context.Context, owner, payee string) (string, error) {
	payee = strings.TrimSpace(payee)
	if payee == "" {
		return "", core.Invalid("payee", core.ErrEmptyPayee)
	}

	// The lookup is shared by concurrent callers, so it must not die with
	// whichever request started it. Each caller still honours its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := s.infer.DoChan(owner+"\x00"+payee, func() (any, error) {
		cat, ok, err := s.latestCategory(shared, ledger.TransactionFilter{Owner: owner, Payee: payee})
		if err != nil || ok {
			return cat, err
		}
		if !s.opts.CrossOwnerInference {
			return core.UnknownCategory, nil
		}
		cat, ok, err = s.latestCategory(shared, ledger.TransactionFilter{Payee: payee})
		if err != nil || ok {
			return cat, err
		}
		return core.UnknownCategory, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Service) latestCategory(ctx context.Context, filter ledger.TransactionFilter) (string, bool, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	txs, err := s.store.FindTransactions(ctx, filter, ledger.Sort{NewestFirst: true, Limit: 1})
	if err != nil {
		return "", false, fmt.Errorf("find latest for payee: %w", err)
	}
	if len(txs) == 0 {
		return "", false, nil
	}
	return txs[0].Category, true, nil
}
