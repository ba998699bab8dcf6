package ledger

import (
	"sort"

	"saldo/internal/core"
)

// MonthlyBalance is the derived balance sheet line for one month.
// Invariant: Closing == Opening + Income - Expense, in exact cents.
type MonthlyBalance struct {
	Month   core.MonthKey
	Income  core.Money
	Expense core.Money
	Opening core.Money
	Closing core.Money
}

// Chain folds aggregated month totals, in ascending month order, into
// opening/closing balances. The opening of each month is the override
// for that month when one exists, otherwise the closing of the previous
// month with data, otherwise the initial balance. The function is total
// over well-formed input and deterministic: recomputing on unchanged
// input yields identical output.
func Chain(aggregates map[core.MonthKey]MonthTotals, overrides map[core.MonthKey]core.Money, initial core.Money) []MonthlyBalance {
	months := make([]core.MonthKey, 0, len(aggregates))
	for m := range aggregates {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })

	out := make([]MonthlyBalance, 0, len(months))
	prevClosing := initial
	havePrev := false
	for _, m := range months {
		totals := aggregates[m]
		opening := initial
		if havePrev {
			opening = prevClosing
		}
		if ov, ok := overrides[m]; ok {
			opening = ov
		}
		closing := opening.Add(totals.Income).Sub(totals.Expense)
		out = append(out, MonthlyBalance{
			Month:   m,
			Income:  totals.Income,
			Expense: totals.Expense,
			Opening: opening,
			Closing: closing,
		})
		prevClosing = closing
		havePrev = true
	}
	return out
}

// MonthView returns the balance line for one requested month. If the
// month is present in the chain it is returned as computed. Otherwise a
// gap entry is synthesized at read time: zero totals, opening from the
// override if set, else the closing of the latest chained month
// strictly before the requested one, else the initial balance. The
// synthesized entry is a projection only and is never persisted, so no
// history is fabricated.
func MonthView(chain []MonthlyBalance, overrides map[core.MonthKey]core.Money, initial core.Money, month core.MonthKey) MonthlyBalance {
	var prev *MonthlyBalance
	for i := range chain {
		if chain[i].Month == month {
			return chain[i]
		}
		if chain[i].Month.Before(month) {
			prev = &chain[i]
		}
	}

	opening := initial
	if prev != nil {
		opening = prev.Closing
	}
	if ov, ok := overrides[month]; ok {
		opening = ov
	}
	return MonthlyBalance{
		Month:   month,
		Opening: opening,
		Closing: opening,
	}
}
