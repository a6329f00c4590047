package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformed marks a delivery that can never be processed. Consumers drop
// it instead of requeueing.
var ErrMalformed = errors.New("malformed message")

// LimitAlertMessage is published when an admission crosses a category cap.
// Money fields are cents.
type LimitAlertMessage struct {
	Owner          string    `json:"owner"`
	Category       string    `json:"category"`
	Payee          string    `json:"payee"`
	Outcome        string    `json:"outcome"`
	AmountCents    int64     `json:"amount_cents"`
	CapCents       int64     `json:"cap_cents"`
	PriorCents     int64     `json:"prior_cents"`
	RemainingCents int64     `json:"remaining_cents"`
	ExceedCents    int64     `json:"exceed_cents"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// CategoryLine is one category of a monthly report.
type CategoryLine struct {
	Category   string `json:"category"`
	CapCents   *int64 `json:"cap_cents,omitempty"`
	SpentCents int64  `json:"spent_cents"`
}

// MonthlyReportMessage carries the closed-month summary of one owner.
type MonthlyReportMessage struct {
	Owner       string         `json:"owner"`
	Year        int            `json:"year"`
	Month       int            `json:"month"`
	TotalCents  int64          `json:"total_cents"`
	PerCategory []CategoryLine `json:"per_category"`
	GeneratedAt time.Time      `json:"generated_at"`
}

func (m *LimitAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *MonthlyReportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LimitAlertMessageFromJSON(data []byte) (*LimitAlertMessage, error) {
	var msg LimitAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Owner == "" || msg.Category == "" {
		return nil, fmt.Errorf("%w: owner and category are required", ErrMalformed)
	}
	return &msg, nil
}
