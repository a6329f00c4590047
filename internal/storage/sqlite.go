// Package storage is the SQLite ledger: transactions, category limits,
// revoked tokens and the limit alert audit trail.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"spendguard/internal/core"
	"spendguard/internal/ledger"
)

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ ledger.Store       = (*SQLiteStore)(nil)
	_ ledger.SpendSummer = (*SQLiteStore)(nil)
)

// Open creates the database file if needed and migrates it to the latest
// schema.
func Open(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("SQLite ledger ready", "path", dbPath, "schema_version", version)

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return ledger.Unavailable("ping", err)
	}
	return nil
}

func (s *SQLiteStore) InsertTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = core.NewTransactionID()
	}
	_, err := s.db.ExecContext(ctx, insertTransaction,
		t.ID, t.Owner, t.Category, t.Amount.Cents, t.Payee,
		t.Timestamp.UTC().UnixNano(), boolToInt(t.ExceededLimit))
	if err != nil {
		return ledger.Unavailable("insert transaction", err)
	}
	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"owner", t.Owner,
		"category", t.Category,
		"amount_cents", t.Amount.Cents)
	return nil
}

func (s *SQLiteStore) FindTransactions(ctx context.Context, filter ledger.TransactionFilter, srt ledger.Sort) ([]core.Transaction, error) {
	where, args := whereClause(filter)
	q := selectTransactions + where + orderClause(srt)
	if srt.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, srt.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, ledger.Unavailable("find transactions", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		var (
			t        core.Transaction
			ts       int64
			exceeded int64
		)
		if err := rows.Scan(&t.ID, &t.Owner, &t.Category, &t.Amount.Cents, &t.Payee, &ts, &exceeded); err != nil {
			return nil, ledger.Unavailable("scan transaction", err)
		}
		t.Timestamp = time.Unix(0, ts).UTC()
		t.ExceededLimit = exceeded != 0
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Unavailable("iterate transactions", err)
	}
	return out, nil
}

func (s *SQLiteStore) SumAmounts(ctx context.Context, filter ledger.TransactionFilter) (core.Money, error) {
	where, args := whereClause(filter)
	var total int64
	if err := s.db.QueryRowContext(ctx, sumTransactions+where, args...).Scan(&total); err != nil {
		return core.Money{}, ledger.Unavailable("sum amounts", err)
	}
	return core.Money{Cents: total}, nil
}

func (s *SQLiteStore) FindLimit(ctx context.Context, owner, category string) (core.CategoryLimit, bool, error) {
	l := core.CategoryLimit{Owner: owner, Category: category}
	var updated int64
	err := s.db.QueryRowContext(ctx, selectLimit, owner, category).Scan(&l.Cap.Cents, &updated)
	if err == sql.ErrNoRows {
		return core.CategoryLimit{}, false, nil
	}
	if err != nil {
		return core.CategoryLimit{}, false, ledger.Unavailable("find limit", err)
	}
	l.UpdatedAt = time.Unix(0, updated).UTC()
	return l, true, nil
}

func (s *SQLiteStore) ListLimits(ctx context.Context, owner string) ([]core.CategoryLimit, error) {
	rows, err := s.db.QueryContext(ctx, listLimits, owner)
	if err != nil {
		return nil, ledger.Unavailable("list limits", err)
	}
	defer rows.Close()

	out := make([]core.CategoryLimit, 0)
	for rows.Next() {
		l := core.CategoryLimit{Owner: owner}
		var updated int64
		if err := rows.Scan(&l.Category, &l.Cap.Cents, &updated); err != nil {
			return nil, ledger.Unavailable("scan limit", err)
		}
		l.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Unavailable("iterate limits", err)
	}
	return out, nil
}

// UpsertLimit relies on UNIQUE(owner, category) so a second call replaces
// the cap instead of adding a row.
func (s *SQLiteStore) UpsertLimit(ctx context.Context, owner, category string, cap core.Money) error {
	l := core.CategoryLimit{Owner: owner, Category: strings.TrimSpace(category), Cap: cap}
	if err := l.Validate(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, upsertLimit, l.Owner, l.Category, l.Cap.Cents, s.now().UTC().UnixNano()); err != nil {
		return ledger.Unavailable("upsert limit", err)
	}
	return nil
}

func (s *SQLiteStore) ListLimitOwners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, listLimitOwners)
	if err != nil {
		return nil, ledger.Unavailable("list owners", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, ledger.Unavailable("scan owner", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Unavailable("iterate owners", err)
	}
	return out, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
