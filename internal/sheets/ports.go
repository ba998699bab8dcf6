package sheets

import (
	"context"

	"saldo/internal/core"
)

// Ports for the spreadsheet mirror adapters.
type (
	// LedgerWriter appends one transaction row to the mirror sheet.
	LedgerWriter interface {
		Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	// LedgerDeleter removes a previously mirrored row, matched by
	// transaction id.
	LedgerDeleter interface {
		Delete(ctx context.Context, transactionID string) error
	}
)
