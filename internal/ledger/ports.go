// Package ledger defines the store ports the budget logic depends on.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spendguard/internal/core"
)

// ErrStoreUnavailable wraps every failure coming from a store driver.
var ErrStoreUnavailable = errors.New("store unavailable")

// Unavailable wraps a driver error so callers can match ErrStoreUnavailable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// TransactionFilter selects transactions. Zero fields do not filter.
type TransactionFilter struct {
	Owner    string
	Category string
	Payee    string
	From     time.Time
	To       time.Time
}

// Matches applies the filter to a single transaction, bounds inclusive.
func (f TransactionFilter) Matches(t core.Transaction) bool {
	if f.Owner != "" && t.Owner != f.Owner {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Payee != "" && t.Payee != f.Payee {
		return false
	}
	if !f.From.IsZero() && t.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.Timestamp.After(f.To) {
		return false
	}
	return true
}

// AlertRecord is one entry of the limit alert audit trail.
type AlertRecord struct {
	Owner      string
	Category   string
	Payee      string
	Outcome    string
	Amount     core.Money
	Cap        core.Money
	Remaining  core.Money
	Exceed     core.Money
	OccurredAt time.Time
}

// Sort orders results by timestamp, then by ID in the same direction.
type Sort struct {
	NewestFirst bool
	Limit       int
}

// Ports for outbound adapters.
type (
	TransactionReader interface {
		FindTransactions(ctx context.Context, filter TransactionFilter, sort Sort) ([]core.Transaction, error)
	}

	TransactionWriter interface {
		InsertTransaction(ctx context.Context, t core.Transaction) error
	}

	LimitReader interface {
		// FindLimit returns ok=false when no limit is configured.
		FindLimit(ctx context.Context, owner, category string) (limit core.CategoryLimit, ok bool, err error)
		ListLimits(ctx context.Context, owner string) ([]core.CategoryLimit, error)
	}

	LimitWriter interface {
		// UpsertLimit replaces the cap of an existing (owner, category) pair.
		UpsertLimit(ctx context.Context, owner, category string, cap core.Money) error
	}

	// SpendSummer is an optional capability for stores that can sum amounts
	// without returning every row.
	SpendSummer interface {
		SumAmounts(ctx context.Context, filter TransactionFilter) (core.Money, error)
	}

	// OwnerLister enumerates owners that configured at least one limit.
	OwnerLister interface {
		ListLimitOwners(ctx context.Context) ([]string, error)
	}

	// AlertRecorder keeps the audit trail of limit alerts.
	AlertRecorder interface {
		RecordAlert(ctx context.Context, a AlertRecord) error
		ListAlerts(ctx context.Context, owner string, limit int) ([]AlertRecord, error)
	}

	// Store is everything the budget service needs.
	Store interface {
		TransactionReader
		TransactionWriter
		LimitReader
		LimitWriter
		OwnerLister
	}
)

// Less orders a before b according to s.
func (s Sort) Less(a, b core.Transaction) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		if s.NewestFirst {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.Timestamp.Before(b.Timestamp)
	}
	if s.NewestFirst {
		return a.ID > b.ID
	}
	return a.ID < b.ID
}
