// Package ledger implements the monthly ledger balance engine: pure,
// synchronous folds that turn an unordered set of dated transactions
// plus optional opening-balance overrides into per-month totals,
// chained opening/closing balances and a cumulative running balance.
//
// All functions are free of internal state; callers thread the store
// snapshot, overrides and initial balance in as explicit parameters.
package ledger

import (
	"log/slog"

	"saldo/internal/core"
)

// MonthTotals holds the per-month income and expense sums in cents.
type MonthTotals struct {
	Income  core.Money
	Expense core.Money
}

// Aggregate groups transactions by month key and sums amounts per kind.
// A month with transactions of only one kind still carries a zero total
// for the other. Transactions with a zero date are skipped and logged,
// never fatal. Months that only have an override are not synthesized
// here; that is the chain's read-time concern.
func Aggregate(txns []core.Transaction) map[core.MonthKey]MonthTotals {
	out := make(map[core.MonthKey]MonthTotals)
	for _, t := range txns {
		if t.Date.IsZero() {
			slog.Warn("Skipping transaction with invalid date", "id", t.ID)
			continue
		}
		key := core.MonthKeyOf(t.Date)
		totals := out[key]
		switch t.Kind {
		case core.Income:
			totals.Income = totals.Income.Add(t.Amount)
		case core.Expense:
			totals.Expense = totals.Expense.Add(t.Amount)
		default:
			slog.Warn("Skipping transaction with unknown kind", "id", t.ID, "kind", t.Kind)
			continue
		}
		out[key] = totals
	}
	return out
}
