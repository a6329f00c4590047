package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"spendguard/internal/core"
	"spendguard/internal/ledger"
)

type limitKey struct {
	owner, category string
}

// Store keeps transactions and limits in process memory. It backs local
// development and the service tests.
type Store struct {
	mu     sync.Mutex
	items  []core.Transaction
	limits map[limitKey]core.CategoryLimit
	byID   map[string]struct{}
	alerts []ledger.AlertRecord
	now    func() time.Time
}

var (
	_ ledger.Store         = (*Store)(nil)
	_ ledger.SpendSummer   = (*Store)(nil)
	_ ledger.AlertRecorder = (*Store)(nil)
)

func New() *Store {
	return &Store{
		limits: make(map[limitKey]core.CategoryLimit),
		byID:   make(map[string]struct{}),
		now:    time.Now,
	}
}

// InsertTransaction stores a copy of t. IDs must be unique.
func (s *Store) InsertTransaction(_ context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = core.NewTransactionID()
	}
	if _, dup := s.byID[t.ID]; dup {
		return ledger.Unavailable("insert transaction", errDuplicateID)
	}
	s.byID[t.ID] = struct{}{}
	s.items = append(s.items, t)
	return nil
}

// FindTransactions returns matching transactions ordered by srt.
func (s *Store) FindTransactions(_ context.Context, filter ledger.TransactionFilter, srt ledger.Sort) ([]core.Transaction, error) {
	s.mu.Lock()
	out := make([]core.Transaction, 0)
	for _, t := range s.items {
		if filter.Matches(t) {
			out = append(out, t)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return srt.Less(out[i], out[j]) })
	if srt.Limit > 0 && len(out) > srt.Limit {
		out = out[:srt.Limit]
	}
	return out, nil
}

func (s *Store) SumAmounts(_ context.Context, filter ledger.TransactionFilter) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total core.Money
	for _, t := range s.items {
		if filter.Matches(t) {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

func (s *Store) FindLimit(_ context.Context, owner, category string) (core.CategoryLimit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limits[limitKey{owner, category}]
	return l, ok, nil
}

func (s *Store) ListLimits(_ context.Context, owner string) ([]core.CategoryLimit, error) {
	s.mu.Lock()
	out := make([]core.CategoryLimit, 0)
	for k, l := range s.limits {
		if k.owner == owner {
			out = append(out, l)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *Store) UpsertLimit(_ context.Context, owner, category string, cap core.Money) error {
	l := core.CategoryLimit{Owner: owner, Category: strings.TrimSpace(category), Cap: cap, UpdatedAt: s.now()}
	if err := l.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits[limitKey{owner, l.Category}] = l
	return nil
}

func (s *Store) ListLimitOwners(_ context.Context) ([]string, error) {
	s.mu.Lock()
	seen := map[string]struct{}{}
	for k := range s.limits {
		seen[k.owner] = struct{}{}
	}
	s.mu.Unlock()
	out := make([]string, 0, len(seen))
	for o := range seen {
		out = append(out, o)
	}
	sort.Strings(out)
	return out, nil
}

// Len returns the number of stored transactions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// LimitCount returns the number of stored limit records.
func (s *Store) LimitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limits)
}

func (s *Store) RecordAlert(_ context.Context, a ledger.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

// ListAlerts returns the most recent alerts of owner, newest first.
func (s *Store) ListAlerts(_ context.Context, owner string, limit int) ([]ledger.AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.AlertRecord
	for i := len(s.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		if s.alerts[i].Owner == owner {
			out = append(out, s.alerts[i])
		}
	}
	return out, nil
}

var errDuplicateID = errors.New("duplicate transaction id")
