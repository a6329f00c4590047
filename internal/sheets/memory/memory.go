// Package memory keeps exported reports in process, for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"spendguard/internal/budget"
	ports "spendguard/internal/sheets"
)

type Store struct {
	mu      sync.Mutex
	reports []budget.Report
	index   map[string]int
}

var _ ports.ReportWriter = (*Store)(nil)

func New() *Store {
	return &Store{index: make(map[string]int)}
}

// WriteReport stores rep once per owner and month and returns a synthetic
// reference.
func (s *Store) WriteReport(_ context.Context, rep budget.Report) (string, error) {
	if rep.Month < 1 || rep.Month > 12 {
		return "", fmt.Errorf("invalid month: %d", rep.Month)
	}
	key := fmt.Sprintf("%s|%04d-%02d", rep.Owner, rep.Year, rep.Month)

	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[key]; ok {
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	s.reports = append(s.reports, rep)
	s.index[key] = len(s.reports) - 1
	return fmt.Sprintf("mem:%d", len(s.reports)), nil
}

// Reports returns a copy of everything written so far.
func (s *Store) Reports() []budget.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]budget.Report(nil), s.reports...)
}
