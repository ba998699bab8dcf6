// Package supabase implements the storage ports against a hosted
// Supabase (PostgREST) backend, for deployments that keep the ledger in
// the cloud instead of a local SQLite file. Table shapes mirror the
// SQLite schema; the uniqueness of (owner, date, kind, category,
// amount) is enforced by a Postgres constraint.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	supa "github.com/supabase-community/supabase-go"

	"saldo/internal/core"
	"saldo/internal/storage"
)

type Repository struct {
	client *supa.Client
}

var _ storage.Store = (*Repository)(nil)

func New(url, key string) (*Repository, error) {
	client, err := supa.NewClient(url, key, &supa.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Repository{client: client}, nil
}

// Close implements storage.Store; the PostgREST client holds no
// persistent connection.
func (r *Repository) Close() error { return nil }

type transactionRow struct {
	ID          string `json:"id"`
	Owner       string `json:"owner"`
	Date        string `json:"tx_date"`
	Kind        string `json:"kind"`
	Category    string `json:"category"`
	Merchant    string `json:"merchant"`
	Note        string `json:"note"`
	AmountCents int64  `json:"amount_cents"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type overrideRow struct {
	Owner       string `json:"owner"`
	Month       string `json:"month"`
	AmountCents int64  `json:"amount_cents"`
}

type settingsRow struct {
	Owner               string `json:"owner"`
	InitialBalanceCents int64  `json:"initial_balance_cents"`
}

func toRow(t core.Transaction) transactionRow {
	row := transactionRow{
		ID:          t.ID,
		Owner:       t.Owner,
		Date:        t.Date.String(),
		Kind:        string(t.Kind),
		Category:    t.Category,
		Merchant:    t.Merchant,
		Note:        t.Note,
		AmountCents: t.Amount.Cents,
	}
	if !t.CreatedAt.IsZero() {
		row.CreatedAt = t.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return row
}

func fromRow(row transactionRow) (core.Transaction, error) {
	d, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored date %q: %w", row.Date, err)
	}
	t := core.Transaction{
		ID:       row.ID,
		Owner:    row.Owner,
		Date:     d,
		Kind:     core.Kind(row.Kind),
		Category: row.Category,
		Merchant: row.Merchant,
		Note:     row.Note,
		Amount:   core.Money{Cents: row.AmountCents},
	}
	if row.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, row.CreatedAt); err == nil {
			t.CreatedAt = ts
		}
	}
	return t, nil
}

func (r *Repository) InsertTransaction(ctx context.Context, t core.Transaction) error {
	_, _, err := r.client.From("transactions").
		Insert(toRow(t), false, "", "", "").
		Execute()
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert transaction %s: %w", t.ID, core.ErrAlreadyExists)
		}
		return fmt.Errorf("insert transaction %s: %w", t.ID, err)
	}
	return nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	data, _, err := r.client.From("transactions").
		Update(toRow(t), "representation", "").
		Eq("id", t.ID).
		Eq("owner", t.Owner).
		Execute()
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update transaction %s: %w", t.ID, core.ErrAlreadyExists)
		}
		return fmt.Errorf("update transaction %s: %w", t.ID, err)
	}
	return requireRows(data, t.ID)
}

func (r *Repository) DeleteTransaction(ctx context.Context, owner, id string) error {
	data, _, err := r.client.From("transactions").
		Delete("representation", "").
		Eq("id", id).
		Eq("owner", owner).
		Execute()
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return requireRows(data, id)
}

func (r *Repository) GetTransaction(ctx context.Context, owner, id string) (core.Transaction, error) {
	data, _, err := r.client.From("transactions").
		Select("*", "", false).
		Eq("id", id).
		Eq("owner", owner).
		Execute()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	var rows []transactionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction %s: %w", id, err)
	}
	if len(rows) == 0 {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, core.ErrNotFound)
	}
	return fromRow(rows[0])
}

func (r *Repository) ListTransactions(ctx context.Context, owner string, from, to core.Date) ([]core.Transaction, error) {
	query := r.client.From("transactions").
		Select("*", "", false).
		Eq("owner", owner)
	if !from.IsZero() {
		query = query.Gte("tx_date", from.String())
	}
	if !to.IsZero() {
		query = query.Lte("tx_date", to.String())
	}
	query = query.Order("tx_date", nil).Order("created_at", nil).Order("id", nil)

	data, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	var rows []transactionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *Repository) GetOverrides(ctx context.Context, owner string) (map[core.MonthKey]core.Money, error) {
	data, _, err := r.client.From("opening_overrides").
		Select("*", "", false).
		Eq("owner", owner).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("get overrides: %w", err)
	}
	var rows []overrideRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse overrides: %w", err)
	}
	out := make(map[core.MonthKey]core.Money, len(rows))
	for _, row := range rows {
		out[core.MonthKey(row.Month)] = core.Money{Cents: row.AmountCents}
	}
	return out, nil
}

func (r *Repository) SetOverride(ctx context.Context, owner string, month core.MonthKey, amount core.Money) error {
	row := overrideRow{Owner: owner, Month: month.String(), AmountCents: amount.Cents}
	_, _, err := r.client.From("opening_overrides").
		Insert(row, true, "owner,month", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("set override %s: %w", month, err)
	}
	return nil
}

func (r *Repository) ClearOverride(ctx context.Context, owner string, month core.MonthKey) error {
	_, _, err := r.client.From("opening_overrides").
		Delete("", "").
		Eq("owner", owner).
		Eq("month", month.String()).
		Execute()
	if err != nil {
		return fmt.Errorf("clear override %s: %w", month, err)
	}
	return nil
}

func (r *Repository) InitialBalance(ctx context.Context, owner string) (core.Money, error) {
	data, _, err := r.client.From("owner_settings").
		Select("*", "", false).
		Eq("owner", owner).
		Execute()
	if err != nil {
		return core.Money{}, fmt.Errorf("get initial balance: %w", err)
	}
	var rows []settingsRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return core.Money{}, fmt.Errorf("parse settings: %w", err)
	}
	if len(rows) == 0 {
		return core.Money{}, nil
	}
	return core.Money{Cents: rows[0].InitialBalanceCents}, nil
}

func (r *Repository) SetInitialBalance(ctx context.Context, owner string, amount core.Money) error {
	row := settingsRow{Owner: owner, InitialBalanceCents: amount.Cents}
	_, _, err := r.client.From("owner_settings").
		Insert(row, true, "owner", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("set initial balance: %w", err)
	}
	return nil
}

func requireRows(data []byte, id string) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("parse mutation result for %s: %w", id, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// isUniqueViolation recognizes the Postgres duplicate-key error
// (SQLSTATE 23505) surfaced through PostgREST.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}
