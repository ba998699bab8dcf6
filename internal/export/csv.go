// Package export renders transaction listings as CSV for download.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"saldo/internal/core"
)

var header = []string{"date", "kind", "category", "merchant", "note", "amount"}

// CSV renders the transactions, in the order given, as a CSV document
// with a header row and decimal amounts.
func CSV(txns []core.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, t := range txns {
		record := []string{
			t.Date.String(),
			string(t.Kind),
			t.Category,
			t.Merchant,
			t.Note,
			t.Amount.Decimal(),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write row %s: %w", t.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
