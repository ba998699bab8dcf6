package storage

import (
	"context"

	"saldo/internal/core"
)

// Ports for the durable stores. The engine holds no durable state of
// its own; everything below is owned per-user and mutated only through
// explicit user actions.
type (
	// TransactionStore is durable CRUD for transaction records,
	// queried by owner and optional inclusive date range.
	TransactionStore interface {
		InsertTransaction(ctx context.Context, t core.Transaction) error
		UpdateTransaction(ctx context.Context, t core.Transaction) error
		DeleteTransaction(ctx context.Context, owner, id string) error
		GetTransaction(ctx context.Context, owner, id string) (core.Transaction, error)
		// ListTransactions returns the owner's transactions ordered by
		// date then creation time. Zero from/to leave that end open.
		ListTransactions(ctx context.Context, owner string, from, to core.Date) ([]core.Transaction, error)
	}

	// OverrideStore maps month keys to user-set opening balances.
	OverrideStore interface {
		GetOverrides(ctx context.Context, owner string) (map[core.MonthKey]core.Money, error)
		SetOverride(ctx context.Context, owner string, month core.MonthKey, amount core.Money) error
		ClearOverride(ctx context.Context, owner string, month core.MonthKey) error
	}

	// SettingsStore holds the assumed balance before any recorded
	// month. Absent settings read as zero.
	SettingsStore interface {
		InitialBalance(ctx context.Context, owner string) (core.Money, error)
		SetInitialBalance(ctx context.Context, owner string, amount core.Money) error
	}

	// Store is the full persistence surface the service layer needs.
	Store interface {
		TransactionStore
		OverrideStore
		SettingsStore
		Close() error
	}
)
