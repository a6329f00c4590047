package budget

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"spendguard/internal/core"
	"spendguard/internal/ledger"
)

// CategorySpend is one row of a monthly report. Cap is meaningful only when
// HasCap is true.
type CategorySpend struct {
	Category string
	Cap      core.Money
	HasCap   bool
	Spent    core.Money
}

// Remaining returns cap minus spent. It is negative once over the cap.
func (c CategorySpend) Remaining() core.Money {
	return c.Cap.Sub(c.Spent)
}

func (c CategorySpend) OverLimit() bool {
	return c.HasCap && c.Spent.Cents > c.Cap.Cents
}

type Report struct {
	Owner       string
	Year        int
	Month       int
	Total       core.Money
	PerCategory []CategorySpend
}

// MonthReport aggregates a full calendar month for owner. Categories with a
// limit but no spend, and categories with spend but no limit, are both
// listed.
func (s *Service) MonthReport(ctx context.Context, owner string, year, month int) (Report, error) {
	w, err := s.monthWindow(year, month)
	if err != nil {
		return Report{}, err
	}

	var (
		limits []core.CategoryLimit
		txs    []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		limits, err = s.ListLimits(gctx, owner)
		return err
	})
	g.Go(func() error {
		sctx, cancel := s.storeCtx(gctx)
		defer cancel()
		var err error
		txs, err = s.store.FindTransactions(sctx, ledger.TransactionFilter{Owner: owner, From: w.From, To: w.To}, ledger.Sort{})
		if err != nil {
			return fmt.Errorf("find transactions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	rows := make(map[string]*CategorySpend)
	row := func(cat string) *CategorySpend {
		r, ok := rows[cat]
		if !ok {
			r = &CategorySpend{Category: cat}
			rows[cat] = r
		}
		return r
	}
	for _, l := range limits {
		r := row(l.Category)
		r.Cap = l.Cap
		r.HasCap = true
	}

	rep := Report{Owner: owner, Year: w.From.Year(), Month: int(w.From.Month())}
	for _, t := range txs {
		r := row(t.Category)
		r.Spent = r.Spent.Add(t.Amount)
		rep.Total = rep.Total.Add(t.Amount)
	}

	rep.PerCategory = make([]CategorySpend, 0, len(rows))
	for _, r := range rows {
		rep.PerCategory = append(rep.PerCategory, *r)
	}
	sort.Slice(rep.PerCategory, func(i, j int) bool {
		return rep.PerCategory[i].Category < rep.PerCategory[j].Category
	})
	return rep, nil
}

// ListTransactions returns owner's transactions in a calendar month, newest
// first. Zero year or month selects the current one.
func (s *Service) ListTransactions(ctx context.Context, owner string, year, month int) ([]core.Transaction, error) {
	w, err := s.monthWindow(year, month)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	txs, err := s.store.FindTransactions(ctx,
		ledger.TransactionFilter{Owner: owner, From: w.From, To: w.To},
		ledger.Sort{NewestFirst: true})
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	return txs, nil
}

// Owners lists every owner with at least one configured limit.
func (s *Service) Owners(ctx context.Context) ([]string, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	owners, err := s.store.ListLimitOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	return owners, nil
}
