package storage

import (
	"strings"

	"spendguard/internal/ledger"
)

const (
	insertTransaction = `INSERT INTO transactions (id, owner, category, amount_cents, payee, occurred_at, exceeded_limit)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	selectTransactions = `SELECT id, owner, category, amount_cents, payee, occurred_at, exceeded_limit FROM transactions`

	sumTransactions = `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions`

	selectLimit = `SELECT cap_cents, updated_at FROM category_limits WHERE owner = ? AND category = ?`

	listLimits = `SELECT category, cap_cents, updated_at FROM category_limits WHERE owner = ? ORDER BY category`

	upsertLimit = `INSERT INTO category_limits (owner, category, cap_cents, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (owner, category) DO UPDATE SET cap_cents = excluded.cap_cents, updated_at = excluded.updated_at`

	listLimitOwners = `SELECT DISTINCT owner FROM category_limits ORDER BY owner`

	insertRevokedToken = `INSERT INTO revoked_tokens (jti, expires_at) VALUES (?, ?)
ON CONFLICT (jti) DO UPDATE SET expires_at = MAX(expires_at, excluded.expires_at)`

	selectRevokedToken = `SELECT 1 FROM revoked_tokens WHERE jti = ? AND expires_at > ?`

	purgeRevokedTokens = `DELETE FROM revoked_tokens WHERE expires_at <= ?`

	insertLimitAlert = `INSERT INTO limit_alerts
(owner, category, payee, outcome, amount_cents, cap_cents, remaining_cents, exceed_cents, occurred_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	listLimitAlerts = `SELECT owner, category, payee, outcome, amount_cents, cap_cents, remaining_cents, exceed_cents, occurred_at
FROM limit_alerts WHERE owner = ? ORDER BY occurred_at DESC, id DESC LIMIT ?`
)

// whereClause turns a filter into a parameterised WHERE. Bounds are inclusive.
func whereClause(f ledger.TransactionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Owner != "" {
		conds = append(conds, "owner = ?")
		args = append(args, f.Owner)
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.Payee != "" {
		conds = append(conds, "payee = ?")
		args = append(args, f.Payee)
	}
	if !f.From.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, f.From.UTC().UnixNano())
	}
	if !f.To.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, f.To.UTC().UnixNano())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderClause(s ledger.Sort) string {
	if s.NewestFirst {
		return " ORDER BY occurred_at DESC, id DESC"
	}
	return " ORDER BY occurred_at ASC, id ASC"
}
