package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/storage"
)

type fakeSheet struct {
	rows      map[string]core.Transaction
	appendErr error
}

func newFakeSheet() *fakeSheet {
	return &fakeSheet{rows: make(map[string]core.Transaction)}
}

func (f *fakeSheet) Append(_ context.Context, t core.Transaction) (string, error) {
	if f.appendErr != nil {
		return "", f.appendErr
	}
	f.rows[t.ID] = t
	return "Ledger!A2:G2", nil
}

func (f *fakeSheet) Delete(_ context.Context, id string) error {
	delete(f.rows, id)
	return nil
}

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "worker.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func insertTestTransaction(t *testing.T, repo *storage.SQLiteRepository, id string, cents int64) core.Transaction {
	t.Helper()
	txn := core.Transaction{
		ID:        id,
		Owner:     "alice",
		Date:      core.NewDate(2024, 1, 15),
		Kind:      core.Expense,
		Category:  "Groceries",
		Amount:    core.Money{Cents: cents},
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.InsertTransaction(context.Background(), txn); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return txn
}

func TestHandleSyncMessageMirrorsAndMarksSynced(t *testing.T) {
	repo := newTestRepo(t)
	sheet := newFakeSheet()
	w := NewSyncWorker(repo, sheet, sheet, 10)
	ctx := context.Background()

	txn := insertTestTransaction(t, repo, "txn-1", 4550)

	msg := amqp.NewLedgerSyncMessage(txn.ID, txn.Owner, 1)
	if err := w.HandleSyncMessage(ctx, msg); err != nil {
		t.Fatalf("handle sync: %v", err)
	}
	if _, ok := sheet.rows[txn.ID]; !ok {
		t.Error("row not mirrored")
	}

	pending, err := repo.PendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}

func TestHandleSyncMessageReplacesStaleRow(t *testing.T) {
	repo := newTestRepo(t)
	sheet := newFakeSheet()
	w := NewSyncWorker(repo, sheet, sheet, 10)
	ctx := context.Background()

	txn := insertTestTransaction(t, repo, "txn-1", 4550)
	if err := w.HandleSyncMessage(ctx, amqp.NewLedgerSyncMessage(txn.ID, txn.Owner, 1)); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	txn.Amount = core.Money{Cents: 9900}
	if err := repo.UpdateTransaction(ctx, txn); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := w.HandleSyncMessage(ctx, amqp.NewLedgerSyncMessage(txn.ID, txn.Owner, 2)); err != nil {
		t.Fatalf("re-sync: %v", err)
	}

	if len(sheet.rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(sheet.rows))
	}
	if sheet.rows[txn.ID].Amount.Cents != 9900 {
		t.Errorf("mirrored amount = %d, want 9900", sheet.rows[txn.ID].Amount.Cents)
	}
}

func TestHandleSyncMessageMissingTransaction(t *testing.T) {
	repo := newTestRepo(t)
	sheet := newFakeSheet()
	w := NewSyncWorker(repo, sheet, sheet, 10)

	err := w.HandleSyncMessage(context.Background(), amqp.NewLedgerSyncMessage("ghost", "alice", 1))
	if err == nil {
		t.Error("expected error for missing transaction")
	}
}

func TestHandleDeleteMessageRemovesRow(t *testing.T) {
	repo := newTestRepo(t)
	sheet := newFakeSheet()
	w := NewSyncWorker(repo, sheet, sheet, 10)
	ctx := context.Background()

	txn := insertTestTransaction(t, repo, "txn-1", 100)
	if err := w.HandleSyncMessage(ctx, amqp.NewLedgerSyncMessage(txn.ID, txn.Owner, 1)); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := w.HandleDeleteMessage(ctx, amqp.NewLedgerDeleteMessage(txn.ID, txn.Owner)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(sheet.rows) != 0 {
		t.Errorf("rows = %d, want 0", len(sheet.rows))
	}
}

func TestProcessPendingBackstop(t *testing.T) {
	repo := newTestRepo(t)
	sheet := newFakeSheet()
	w := NewSyncWorker(repo, sheet, sheet, 10)
	ctx := context.Background()

	insertTestTransaction(t, repo, "txn-1", 100)
	insertTestTransaction(t, repo, "txn-2", 200)

	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("process pending: %v", err)
	}
	if len(sheet.rows) != 2 {
		t.Errorf("rows = %d, want 2", len(sheet.rows))
	}
	pending, _ := repo.PendingSync(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}

func TestProcessPendingMarksErrors(t *testing.T) {
	repo := newTestRepo(t)
	sheet := newFakeSheet()
	sheet.appendErr = fmt.Errorf("quota exceeded")
	w := NewSyncWorker(repo, sheet, sheet, 10)
	ctx := context.Background()

	insertTestTransaction(t, repo, "txn-1", 100)

	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("process pending should continue past row errors: %v", err)
	}
	pending, _ := repo.PendingSync(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("failed row should leave pending state, got %d pending", len(pending))
	}
}
