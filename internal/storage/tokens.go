package storage

import (
	"context"
	"database/sql"
	"time"

	"spendguard/internal/ledger"
)

// RevokeToken marks jti unusable until expiresAt.
func (s *SQLiteStore) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	if _, err := s.db.ExecContext(ctx, insertRevokedToken, jti, expiresAt.UTC().UnixNano()); err != nil {
		return ledger.Unavailable("revoke token", err)
	}
	return nil
}

// IsRevoked reports whether jti was revoked and the revocation has not yet
// expired at now.
func (s *SQLiteStore) IsRevoked(ctx context.Context, jti string, now time.Time) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, selectRevokedToken, jti, now.UTC().UnixNano()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, ledger.Unavailable("check revoked token", err)
	}
	return true, nil
}

// PurgeRevoked deletes revocations that expired at or before now.
func (s *SQLiteStore) PurgeRevoked(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, purgeRevokedTokens, now.UTC().UnixNano())
	if err != nil {
		return 0, ledger.Unavailable("purge revoked tokens", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, ledger.Unavailable("purge revoked tokens", err)
	}
	return n, nil
}
