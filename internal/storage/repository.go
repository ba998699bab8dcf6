package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"saldo/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the default local store. It also carries the sync
// bookkeeping the spreadsheet mirror worker polls.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InsertTransaction implements TransactionStore. A violation of the
// natural key (owner, date, kind, category, amount) is reported as
// core.ErrAlreadyExists, distinct from generic store failures; nothing
// is committed in that case.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, owner, tx_date, kind, category, merchant, note, amount_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Owner, t.Date.String(), string(t.Kind), t.Category, t.Merchant, t.Note,
		t.Amount.Cents, t.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert transaction %s: %w", t.ID, core.ErrAlreadyExists)
		}
		return fmt.Errorf("insert transaction %s: %w", t.ID, err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"owner", t.Owner,
		"date", t.Date.String(),
		"kind", t.Kind,
		"amount_cents", t.Amount.Cents)
	return nil
}

// UpdateTransaction rewrites a transaction in place and bumps its
// version so the mirror worker re-syncs it.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET tx_date = ?, kind = ?, category = ?, merchant = ?, note = ?, amount_cents = ?,
		    version = version + 1, sync_status = 'pending'
		WHERE owner = ? AND id = ?`,
		t.Date.String(), string(t.Kind), t.Category, t.Merchant, t.Note, t.Amount.Cents,
		t.Owner, t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update transaction %s: %w", t.ID, core.ErrAlreadyExists)
		}
		return fmt.Errorf("update transaction %s: %w", t.ID, err)
	}
	return requireRow(res, t.ID)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE owner = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return requireRow(res, id)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, owner, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner, tx_date, kind, category, merchant, note, amount_cents, created_at
		FROM transactions WHERE owner = ? AND id = ?`, owner, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

// ListTransactions returns a consistent snapshot of the owner's history
// ordered by date, creation time, id. Zero from/to leave that end open.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, owner string, from, to core.Date) ([]core.Transaction, error) {
	query := `
		SELECT id, owner, tx_date, kind, category, merchant, note, amount_cents, created_at
		FROM transactions WHERE owner = ?`
	args := []any{owner}
	if !from.IsZero() {
		query += " AND tx_date >= ?"
		args = append(args, from.String())
	}
	if !to.IsZero() {
		query += " AND tx_date <= ?"
		args = append(args, to.String())
	}
	query += " ORDER BY tx_date, created_at, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

// GetOverrides implements OverrideStore.
func (r *SQLiteRepository) GetOverrides(ctx context.Context, owner string) (map[core.MonthKey]core.Money, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT month, amount_cents FROM opening_overrides WHERE owner = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("get overrides: %w", err)
	}
	defer rows.Close()

	out := make(map[core.MonthKey]core.Money)
	for rows.Next() {
		var month string
		var cents int64
		if err := rows.Scan(&month, &cents); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		out[core.MonthKey(month)] = core.Money{Cents: cents}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get overrides: %w", err)
	}
	return out, nil
}

// SetOverride upserts the opening balance for a month. Last write wins
// across concurrent sessions of the same owner.
func (r *SQLiteRepository) SetOverride(ctx context.Context, owner string, month core.MonthKey, amount core.Money) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO opening_overrides (owner, month, amount_cents, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (owner, month) DO UPDATE SET
			amount_cents = excluded.amount_cents,
			updated_at = CURRENT_TIMESTAMP`,
		owner, month.String(), amount.Cents)
	if err != nil {
		return fmt.Errorf("set override %s: %w", month, err)
	}
	slog.InfoContext(ctx, "Opening override set", "owner", owner, "month", month, "amount_cents", amount.Cents)
	return nil
}

// ClearOverride removes the override; clearing an absent override is
// not an error.
func (r *SQLiteRepository) ClearOverride(ctx context.Context, owner string, month core.MonthKey) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM opening_overrides WHERE owner = ? AND month = ?`, owner, month.String())
	if err != nil {
		return fmt.Errorf("clear override %s: %w", month, err)
	}
	return nil
}

// InitialBalance implements SettingsStore; absent settings read as zero.
func (r *SQLiteRepository) InitialBalance(ctx context.Context, owner string) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT initial_balance_cents FROM owner_settings WHERE owner = ?`, owner).Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, nil
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("get initial balance: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

func (r *SQLiteRepository) SetInitialBalance(ctx context.Context, owner string, amount core.Money) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO owner_settings (owner, initial_balance_cents, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (owner) DO UPDATE SET
			initial_balance_cents = excluded.initial_balance_cents,
			updated_at = CURRENT_TIMESTAMP`,
		owner, amount.Cents)
	if err != nil {
		return fmt.Errorf("set initial balance: %w", err)
	}
	return nil
}

// PendingSyncRow is the minimal data the mirror worker needs to queue a
// spreadsheet append.
type PendingSyncRow struct {
	ID      string
	Owner   string
	Version int64
}

// PendingSync returns transactions not yet mirrored to the spreadsheet.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]PendingSyncRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner, version FROM transactions
		WHERE sync_status = 'pending'
		ORDER BY created_at
		LIMIT ?`, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync rows: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncRow
	for rows.Next() {
		var p PendingSyncRow
		if err := rows.Scan(&p.ID, &p.Owner, &p.Version); err != nil {
			return nil, fmt.Errorf("scan pending sync row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced marks a transaction as successfully mirrored.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = 'synced' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a transaction as having failed to mirror.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t       core.Transaction
		date    string
		kind    string
		created string
	)
	if err := row.Scan(&t.ID, &t.Owner, &date, &kind, &t.Category, &t.Merchant, &t.Note,
		&t.Amount.Cents, &created); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	t.Date = d
	t.Kind = core.Kind(kind)
	if ts, err := parseTimestamp(created); err == nil {
		t.CreatedAt = ts
	}
	return t, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
