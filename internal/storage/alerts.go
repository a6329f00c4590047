package storage

import (
	"context"
	"time"

	"spendguard/internal/ledger"
)

var _ ledger.AlertRecorder = (*SQLiteStore)(nil)

func (s *SQLiteStore) RecordAlert(ctx context.Context, a ledger.AlertRecord) error {
	_, err := s.db.ExecContext(ctx, insertLimitAlert,
		a.Owner, a.Category, a.Payee, a.Outcome,
		a.Amount.Cents, a.Cap.Cents, a.Remaining.Cents, a.Exceed.Cents,
		a.OccurredAt.UTC().UnixNano())
	if err != nil {
		return ledger.Unavailable("record alert", err)
	}
	return nil
}

// ListAlerts returns the most recent alerts of owner, newest first.
func (s *SQLiteStore) ListAlerts(ctx context.Context, owner string, limit int) ([]ledger.AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, listLimitAlerts, owner, limit)
	if err != nil {
		return nil, ledger.Unavailable("list alerts", err)
	}
	defer rows.Close()

	var out []ledger.AlertRecord
	for rows.Next() {
		var (
			a  ledger.AlertRecord
			ts int64
		)
		if err := rows.Scan(&a.Owner, &a.Category, &a.Payee, &a.Outcome,
			&a.Amount.Cents, &a.Cap.Cents, &a.Remaining.Cents, &a.Exceed.Cents, &ts); err != nil {
			return nil, ledger.Unavailable("scan alert", err)
		}
		a.OccurredAt = time.Unix(0, ts).UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Unavailable("iterate alerts", err)
	}
	return out, nil
}
