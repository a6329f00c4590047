package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UnknownCategory is returned by category inference when no history exists for a payee.
const UnknownCategory = "unknown"

type (
	Money struct {
		Cents int64
	}

	// Transaction is one admitted spending event. It is never modified after insert.
	Transaction struct {
		ID            string
		Owner         string
		Category      string
		Amount        Money
		Payee         string
		Timestamp     time.Time
		ExceededLimit bool
	}

	// CategoryLimit is the monthly cap of one owner for one category.
	CategoryLimit struct {
		Owner     string
		Category  string
		Cap       Money
		UpdatedAt time.Time
	}
)

var (
	ErrEmptyOwner    = errors.New("empty owner")
	ErrEmptyCategory = errors.New("empty category")
	ErrEmptyPayee    = errors.New("empty payee")
	ErrEmptyRedirect = errors.New("empty redirect target")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidCap    = errors.New("invalid cap")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrNotText       = errors.New("value must be text")
)

// ValidationError reports which input field was rejected.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Invalid builds a ValidationError for field.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NewTransactionID returns a fresh record identity.
func NewTransactionID() string {
	return uuid.NewString()
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateCap accepts zero, which means no spending is allowed.
func (m Money) ValidateCap() error {
	if m.Cents < 0 {
		return ErrInvalidCap
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Owner) == "" {
		return Invalid("owner", ErrEmptyOwner)
	}
	if strings.TrimSpace(t.Category) == "" {
		return Invalid("category", ErrEmptyCategory)
	}
	if err := t.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	if strings.TrimSpace(t.Payee) == "" {
		return Invalid("payee", ErrEmptyPayee)
	}
	if t.Timestamp.IsZero() {
		return Invalid("timestamp", errors.New("timestamp cannot be zero"))
	}
	return nil
}

func (l CategoryLimit) Validate() error {
	if strings.TrimSpace(l.Owner) == "" {
		return Invalid("owner", ErrEmptyOwner)
	}
	if strings.TrimSpace(l.Category) == "" {
		return Invalid("category", ErrEmptyCategory)
	}
	if err := l.Cap.ValidateCap(); err != nil {
		return Invalid("cap", err)
	}
	return nil
}
