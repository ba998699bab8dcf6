package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"saldo/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "saldo.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testTransaction(id string) core.Transaction {
	return core.Transaction{
		ID:        id,
		Owner:     "user-1",
		Date:      core.NewDate(2024, 1, 5),
		Kind:      core.Income,
		Category:  "Salary",
		Merchant:  "Acme",
		Note:      "january payroll",
		Amount:    core.Money{Cents: 100000},
		CreatedAt: time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC),
	}
}

func TestInsertAndGetTransaction(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	want := testTransaction("tx-1")
	if err := repo.InsertTransaction(ctx, want); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.GetTransaction(ctx, "user-1", "tx-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Date.String() != "2024-01-05" || got.Kind != core.Income ||
		got.Category != "Salary" || got.Merchant != "Acme" ||
		got.Note != "january payroll" || got.Amount.Cents != 100000 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestDuplicateInsertRejectedAsAlreadyExists(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.InsertTransaction(ctx, testTransaction("tx-1")); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	// Same natural key (owner, date, kind, category, amount), new id.
	dup := testTransaction("tx-2")
	err := repo.InsertTransaction(ctx, dup)
	if !errors.Is(err, core.ErrAlreadyExists) {
		t.Fatalf("duplicate insert error = %v, want ErrAlreadyExists", err)
	}

	// Store contents unchanged.
	list, err := repo.ListTransactions(ctx, "user-1", core.Date{}, core.Date{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 row after rejected duplicate, got %d", len(list))
	}
}

func TestListTransactionsDateRangeAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	dates := []string{"2024-02-10", "2024-01-05", "2024-03-01"}
	for i, ds := range dates {
		txn := testTransaction("tx-" + ds)
		d, _ := core.ParseDate(ds)
		txn.Date = d
		txn.Amount.Cents = int64(100 * (i + 1)) // distinct natural keys
		if err := repo.InsertTransaction(ctx, txn); err != nil {
			t.Fatalf("insert %s: %v", ds, err)
		}
	}

	all, err := repo.ListTransactions(ctx, "user-1", core.Date{}, core.Date{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 || all[0].Date.String() != "2024-01-05" || all[2].Date.String() != "2024-03-01" {
		t.Errorf("unexpected order: %+v", all)
	}

	from, _ := core.ParseDate("2024-02-01")
	to, _ := core.ParseDate("2024-02-28")
	feb, err := repo.ListTransactions(ctx, "user-1", from, to)
	if err != nil {
		t.Fatalf("list range: %v", err)
	}
	if len(feb) != 1 || feb[0].Date.String() != "2024-02-10" {
		t.Errorf("range query returned %+v", feb)
	}
}

func TestListTransactionsOwnerScoped(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mine := testTransaction("tx-mine")
	theirs := testTransaction("tx-theirs")
	theirs.Owner = "user-2"
	if err := repo.InsertTransaction(ctx, mine); err != nil {
		t.Fatalf("insert mine: %v", err)
	}
	if err := repo.InsertTransaction(ctx, theirs); err != nil {
		t.Fatalf("insert theirs: %v", err)
	}

	list, err := repo.ListTransactions(ctx, "user-1", core.Date{}, core.Date{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "tx-mine" {
		t.Errorf("owner scoping broken: %+v", list)
	}
}

func TestUpdateTransaction(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	txn := testTransaction("tx-1")
	if err := repo.InsertTransaction(ctx, txn); err != nil {
		t.Fatalf("insert: %v", err)
	}

	txn.Amount.Cents = 123400
	txn.Note = "corrected"
	if err := repo.UpdateTransaction(ctx, txn); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetTransaction(ctx, "user-1", "tx-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Cents != 123400 || got.Note != "corrected" {
		t.Errorf("update not applied: %+v", got)
	}

	missing := testTransaction("tx-missing")
	if err := repo.UpdateTransaction(ctx, missing); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("update missing error = %v, want ErrNotFound", err)
	}
}

func TestDeleteTransaction(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.InsertTransaction(ctx, testTransaction("tx-1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.DeleteTransaction(ctx, "user-1", "tx-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetTransaction(ctx, "user-1", "tx-1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("get after delete error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteTransaction(ctx, "user-1", "tx-1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestOverridesLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SetOverride(ctx, "user-1", "2024-02", core.Money{Cents: 100000}); err != nil {
		t.Fatalf("set override: %v", err)
	}
	// Upsert: second set for the same month replaces the value.
	if err := repo.SetOverride(ctx, "user-1", "2024-02", core.Money{Cents: -2500}); err != nil {
		t.Fatalf("replace override: %v", err)
	}

	got, err := repo.GetOverrides(ctx, "user-1")
	if err != nil {
		t.Fatalf("get overrides: %v", err)
	}
	if len(got) != 1 || got["2024-02"].Cents != -2500 {
		t.Errorf("overrides = %+v, want single 2024-02 entry of -2500", got)
	}

	if err := repo.ClearOverride(ctx, "user-1", "2024-02"); err != nil {
		t.Fatalf("clear override: %v", err)
	}
	// Clearing an absent override is a no-op, not an error.
	if err := repo.ClearOverride(ctx, "user-1", "2024-02"); err != nil {
		t.Errorf("clear absent override: %v", err)
	}

	got, err = repo.GetOverrides(ctx, "user-1")
	if err != nil {
		t.Fatalf("get overrides after clear: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no overrides, got %+v", got)
	}
}

func TestInitialBalance(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	got, err := repo.InitialBalance(ctx, "user-1")
	if err != nil {
		t.Fatalf("initial balance default: %v", err)
	}
	if got.Cents != 0 {
		t.Errorf("default initial balance = %d, want 0", got.Cents)
	}

	if err := repo.SetInitialBalance(ctx, "user-1", core.Money{Cents: 50000}); err != nil {
		t.Fatalf("set initial balance: %v", err)
	}
	got, err = repo.InitialBalance(ctx, "user-1")
	if err != nil {
		t.Fatalf("initial balance: %v", err)
	}
	if got.Cents != 50000 {
		t.Errorf("initial balance = %d, want 50000", got.Cents)
	}
}

func TestSyncQueueLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.InsertTransaction(ctx, testTransaction("tx-1")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	pending, err := repo.PendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "tx-1" || pending[0].Version != 1 {
		t.Fatalf("pending = %+v", pending)
	}

	if err := repo.MarkSynced(ctx, "tx-1"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	pending, err = repo.PendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("pending after sync: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected empty queue, got %+v", pending)
	}

	// An update re-queues the row with a bumped version.
	txn := testTransaction("tx-1")
	txn.Amount.Cents = 999
	if err := repo.UpdateTransaction(ctx, txn); err != nil {
		t.Fatalf("update: %v", err)
	}
	pending, err = repo.PendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("pending after update: %v", err)
	}
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Errorf("pending after update = %+v, want version 2", pending)
	}
}
