package http

import (
	"strconv"
	"strings"
	"time"

	"spendguard/internal/budget"
	"spendguard/internal/core"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

const reportKeyPrefix = "report\x00"

// reportPrefix covers every cached report of owner.
func reportPrefix(owner string) string {
	return reportKeyPrefix + owner + "\x00"
}

func reportKey(owner string, p MonthParams) string {
	return reportPrefix(owner) + strconv.Itoa(p.Year) + "-" + strconv.Itoa(p.Month)
}

// Wire shapes. Amounts are currency units, not cents.

type transactionJSON struct {
	ID            string    `json:"id"`
	Category      string    `json:"category"`
	Amount        float64   `json:"amount"`
	Payee         string    `json:"payee"`
	Timestamp     time.Time `json:"timestamp"`
	ExceededLimit bool      `json:"exceededLimit"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:            t.ID,
		Category:      t.Category,
		Amount:        t.Amount.Float(),
		Payee:         t.Payee,
		Timestamp:     t.Timestamp,
		ExceededLimit: t.ExceededLimit,
	}
}

type limitJSON struct {
	Category  string    `json:"category"`
	Cap       float64   `json:"cap"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type admissionDetails struct {
	PriorSpend float64 `json:"priorSpend"`
	Cap        float64 `json:"cap"`
	Remaining  float64 `json:"remaining"`
	Exceed     float64 `json:"exceed"`
}

type admissionJSON struct {
	Outcome     string            `json:"outcome"`
	Message     string            `json:"message"`
	Redirect    string            `json:"redirect"`
	Details     *admissionDetails `json:"details,omitempty"`
	Transaction *transactionJSON  `json:"transaction,omitempty"`
}

func toAdmissionJSON(req budget.AdmissionRequest, d budget.Decision) admissionJSON {
	out := admissionJSON{
		Outcome:  d.Outcome.String(),
		Message:  budget.GuiltMessage(strings.TrimSpace(req.Category), d),
		Redirect: req.Redirect,
	}
	if d.Outcome != budget.Admit {
		out.Details = &admissionDetails{
			PriorSpend: d.PriorSpend.Float(),
			Cap:        d.Cap.Float(),
			Remaining:  d.Remaining.Float(),
			Exceed:     d.Exceed.Float(),
		}
	}
	if d.Transaction != nil {
		tx := toTransactionJSON(*d.Transaction)
		out.Transaction = &tx
	}
	return out
}

type categorySpendJSON struct {
	Category  string   `json:"category"`
	Spent     float64  `json:"spent"`
	Cap       *float64 `json:"cap"`
	Remaining *float64 `json:"remaining"`
	OverLimit bool     `json:"overLimit"`
}

type reportJSON struct {
	Year        int                 `json:"year"`
	Month       int                 `json:"month"`
	Total       float64             `json:"total"`
	PerCategory []categorySpendJSON `json:"perCategory"`
}

func toReportJSON(r budget.Report) reportJSON {
	out := reportJSON{
		Year:        r.Year,
		Month:       r.Month,
		Total:       r.Total.Float(),
		PerCategory: make([]categorySpendJSON, 0, len(r.PerCategory)),
	}
	for _, c := range r.PerCategory {
		row := categorySpendJSON{
			Category:  c.Category,
			Spent:     c.Spent.Float(),
			OverLimit: c.OverLimit(),
		}
		if c.HasCap {
			capV, rem := c.Cap.Float(), c.Remaining().Float()
			row.Cap, row.Remaining = &capV, &rem
		}
		out.PerCategory = append(out.PerCategory, row)
	}
	return out
}
