// Package service orchestrates the ledger engine over a Store: boundary
// validation, identifier assignment, balance projections, and the
// best-effort hand-off to the spreadsheet mirror queue.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"saldo/internal/core"
	"saldo/internal/ledger"
	"saldo/internal/storage"
)

// SyncPublisher is the async queue the mirror worker listens on.
// Publishing is best-effort: a queue outage never fails a ledger write.
type SyncPublisher interface {
	PublishLedgerSync(ctx context.Context, id, owner string, version int64) error
	PublishLedgerDelete(ctx context.Context, id, owner string) error
	Close() error
}

// TransactionInput is the decoded write payload before validation.
// Amount is the already-parsed cent value; string parsing belongs to
// the transport layer.
type TransactionInput struct {
	Date     core.Date
	Kind     core.Kind
	Category string
	Merchant string
	Note     string
	Amount   core.Money
}

// MonthReport is the projection for one requested month: the balance
// line plus the transactions that produced it.
type MonthReport struct {
	Balance      ledger.MonthlyBalance
	Transactions []core.Transaction
	Synthesized  bool
	HasOverride  bool
}

type LedgerService struct {
	store     storage.Store
	publisher SyncPublisher
	logger    *slog.Logger
}

func NewLedgerService(store storage.Store, publisher SyncPublisher, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{store: store, publisher: publisher, logger: logger}
}

// AddTransaction validates, normalizes, and persists a new transaction,
// then queues it for the spreadsheet mirror.
func (s *LedgerService) AddTransaction(ctx context.Context, owner string, in TransactionInput) (core.Transaction, error) {
	t := core.Transaction{
		ID:        uuid.New().String(),
		Owner:     owner,
		Date:      in.Date,
		Kind:      in.Kind,
		Category:  in.Category,
		Merchant:  in.Merchant,
		Note:      in.Note,
		Amount:    in.Amount,
		CreatedAt: time.Now().UTC(),
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.InsertTransaction(ctx, t); err != nil {
		return core.Transaction{}, err
	}

	s.publishSync(ctx, t.ID, owner, 1)
	return t, nil
}

// UpdateTransaction rewrites an existing transaction. The stored row
// must belong to the owner; cross-owner ids read as not found.
func (s *LedgerService) UpdateTransaction(ctx context.Context, owner, id string, in TransactionInput) (core.Transaction, error) {
	existing, err := s.store.GetTransaction(ctx, owner, id)
	if err != nil {
		return core.Transaction{}, err
	}

	t := existing
	t.Date = in.Date
	t.Kind = in.Kind
	t.Category = in.Category
	t.Merchant = in.Merchant
	t.Note = in.Note
	t.Amount = in.Amount
	t.Normalize()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return core.Transaction{}, err
	}

	s.publishSync(ctx, t.ID, owner, 0)
	return t, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, owner, id string) error {
	if err := s.store.DeleteTransaction(ctx, owner, id); err != nil {
		return err
	}
	if s.publisher != nil {
		if err := s.publisher.PublishLedgerDelete(ctx, id, owner); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish delete message, mirror will drift",
				"error", err, "transaction_id", id)
		}
	}
	return nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, owner, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, owner, id)
}

// ListTransactions returns the owner's transactions matching the
// criteria, in date/creation order. The date range narrows the store
// query; the remaining dimensions filter in memory.
func (s *LedgerService) ListTransactions(ctx context.Context, owner string, crit ledger.Criteria) ([]core.Transaction, error) {
	txns, err := s.store.ListTransactions(ctx, owner, crit.From, crit.To)
	if err != nil {
		return nil, err
	}
	return ledger.Filter(txns, crit), nil
}

// Trend computes the full monthly balance chain for the transactions
// matching the criteria. Filtered trends re-chain over the filtered
// subset; balances then reflect that subset only.
func (s *LedgerService) Trend(ctx context.Context, owner string, crit ledger.Criteria) ([]ledger.MonthlyBalance, error) {
	txns, err := s.ListTransactions(ctx, owner, crit)
	if err != nil {
		return nil, err
	}
	overrides, initial, err := s.chainInputs(ctx, owner)
	if err != nil {
		return nil, err
	}
	return ledger.Chain(ledger.Aggregate(txns), overrides, initial), nil
}

// Month returns the balance line for one month plus its transactions.
// Months without data yield a synthesized carry-forward line; nothing
// is written.
func (s *LedgerService) Month(ctx context.Context, owner string, month core.MonthKey, crit ledger.Criteria) (MonthReport, error) {
	txns, err := s.ListTransactions(ctx, owner, crit)
	if err != nil {
		return MonthReport{}, err
	}
	overrides, initial, err := s.chainInputs(ctx, owner)
	if err != nil {
		return MonthReport{}, err
	}

	chain := ledger.Chain(ledger.Aggregate(txns), overrides, initial)
	balance := ledger.MonthView(chain, overrides, initial, month)

	synthesized := true
	for _, mb := range chain {
		if mb.Month == month {
			synthesized = false
			break
		}
	}

	var inMonth []core.Transaction
	for _, t := range txns {
		if core.MonthKeyOf(t.Date) == month {
			inMonth = append(inMonth, t)
		}
	}

	_, hasOverride := overrides[month]
	return MonthReport{
		Balance:      balance,
		Transactions: inMonth,
		Synthesized:  synthesized,
		HasOverride:  hasOverride,
	}, nil
}

// Cumulative returns the running balance after every transaction in the
// owner's full history. Filters never apply here: the series is always
// computed over the unfiltered history.
func (s *LedgerService) Cumulative(ctx context.Context, owner string) ([]ledger.BalancePoint, error) {
	txns, err := s.store.ListTransactions(ctx, owner, core.Date{}, core.Date{})
	if err != nil {
		return nil, err
	}
	return ledger.Cumulative(txns), nil
}

// SetOpeningOverride pins the opening balance of a month. Subsequent
// months re-chain from the overridden closing on the next read.
func (s *LedgerService) SetOpeningOverride(ctx context.Context, owner string, month core.MonthKey, amount core.Money) error {
	return s.store.SetOverride(ctx, owner, month, amount)
}

// ClearOpeningOverride reverts a month to derived chaining. Clearing an
// absent override is a no-op.
func (s *LedgerService) ClearOpeningOverride(ctx context.Context, owner string, month core.MonthKey) error {
	return s.store.ClearOverride(ctx, owner, month)
}

func (s *LedgerService) InitialBalance(ctx context.Context, owner string) (core.Money, error) {
	return s.store.InitialBalance(ctx, owner)
}

func (s *LedgerService) SetInitialBalance(ctx context.Context, owner string, amount core.Money) error {
	return s.store.SetInitialBalance(ctx, owner, amount)
}

func (s *LedgerService) chainInputs(ctx context.Context, owner string) (map[core.MonthKey]core.Money, core.Money, error) {
	overrides, err := s.store.GetOverrides(ctx, owner)
	if err != nil {
		return nil, core.Money{}, fmt.Errorf("load overrides: %w", err)
	}
	initial, err := s.store.InitialBalance(ctx, owner)
	if err != nil {
		return nil, core.Money{}, fmt.Errorf("load initial balance: %w", err)
	}
	return overrides, initial, nil
}

func (s *LedgerService) publishSync(ctx context.Context, id, owner string, version int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerSync(ctx, id, owner, version); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish sync message, worker will catch up on poll",
			"error", err, "transaction_id", id)
	}
}

// Close releases the store and the publisher, reporting every failure.
func (s *LedgerService) Close() error {
	var errs []error
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
