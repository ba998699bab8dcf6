// Package worker mirrors ledger transactions from the local store to
// the spreadsheet, driven by AMQP messages with a periodic poll as a
// backstop for lost deliveries.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"saldo/internal/amqp"
	"saldo/internal/sheets"
	"saldo/internal/storage"
)

type SyncWorker struct {
	storage   *storage.SQLiteRepository
	writer    sheets.LedgerWriter
	deleter   sheets.LedgerDeleter
	batchSize int
}

func NewSyncWorker(repo *storage.SQLiteRepository, writer sheets.LedgerWriter, deleter sheets.LedgerDeleter, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   repo,
		writer:    writer,
		deleter:   deleter,
		batchSize: batchSize,
	}
}

// HandleSyncMessage mirrors one transaction. Re-syncs after an edit
// first remove the stale row so the sheet never holds two versions.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.LedgerSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"transaction_id", msg.TransactionID,
		"owner", msg.Owner,
		"version", msg.Version)

	return w.mirror(ctx, msg.Owner, msg.TransactionID)
}

// HandleDeleteMessage removes a mirrored row for a deleted transaction.
func (w *SyncWorker) HandleDeleteMessage(ctx context.Context, msg *amqp.LedgerDeleteMessage) error {
	slog.InfoContext(ctx, "Processing delete message",
		"transaction_id", msg.TransactionID,
		"owner", msg.Owner)

	if w.deleter == nil {
		slog.WarnContext(ctx, "No sheet deleter configured, skipping",
			"transaction_id", msg.TransactionID)
		return nil
	}
	if err := w.deleter.Delete(ctx, msg.TransactionID); err != nil {
		return fmt.Errorf("delete mirrored row: %w", err)
	}
	return nil
}

// ProcessPending mirrors transactions still marked pending. This is the
// backstop for AMQP messages lost between service and worker.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.storage.PendingSync(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending rows: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	for _, p := range pending {
		if err := w.mirror(ctx, p.Owner, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror pending transaction",
				"transaction_id", p.ID, "error", err)
			if err := w.storage.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error",
					"transaction_id", p.ID, "error", err)
			}
			continue
		}
	}
	return nil
}

func (w *SyncWorker) mirror(ctx context.Context, owner, id string) error {
	t, err := w.storage.GetTransaction(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}

	// Drop any stale copy first so edits replace rather than duplicate.
	if w.deleter != nil {
		if err := w.deleter.Delete(ctx, id); err != nil {
			return fmt.Errorf("remove stale row: %w", err)
		}
	}

	rowRef, err := w.writer.Append(ctx, t)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error",
				"transaction_id", id, "error", markErr)
		}
		return fmt.Errorf("append row: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, id); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}

	slog.InfoContext(ctx, "Transaction mirrored",
		"transaction_id", id,
		"row", rowRef)
	return nil
}
