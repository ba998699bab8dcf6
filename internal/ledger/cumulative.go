package ledger

import (
	"sort"

	"saldo/internal/core"
)

// BalancePoint is one step of the running balance: the balance after
// the transaction with the given id was applied.
type BalancePoint struct {
	Date    core.Date
	ID      string
	Balance core.Money
}

// Cumulative computes the running balance over the full, unfiltered
// transaction history: a prefix sum where income adds and expense
// subtracts. It answers "what is the true balance", so it must never be
// fed a filtered projection. Input order does not matter; transactions
// are sorted ascending by date with a stable tie-break on creation time
// and then record id.
func Cumulative(txns []core.Transaction) []BalancePoint {
	sorted := make([]core.Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.Before(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	out := make([]BalancePoint, 0, len(sorted))
	var running core.Money
	for _, t := range sorted {
		running = running.Add(t.Signed())
		out = append(out, BalancePoint{Date: t.Date, ID: t.ID, Balance: running})
	}
	return out
}
