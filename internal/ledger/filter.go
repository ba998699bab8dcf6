package ledger

import (
	"strings"

	"saldo/internal/core"
)

// Criteria is an explicit filter configuration for on-screen summaries
// and export. Every dimension is conjunctive and an unset dimension
// matches everything. The cumulative balance intentionally ignores
// criteria; it always reflects the full history.
type Criteria struct {
	// From/To bound the date range, inclusive on both ends. Zero
	// dates leave the corresponding end open.
	From core.Date
	To   core.Date

	// Kinds restricts to the given transaction kinds.
	Kinds []core.Kind

	// Categories matches a category exactly or by prefix.
	Categories []string

	// Merchants matches the merchant label exactly.
	Merchants []string

	// NoteContains is a case-insensitive substring match on the note.
	NoteContains string

	// MinAmount/MaxAmount bound the unsigned amount, inclusive.
	// Nil leaves the corresponding bound open.
	MinAmount *core.Money
	MaxAmount *core.Money
}

// IsZero reports whether no dimension is set.
func (c Criteria) IsZero() bool {
	return c.From.IsZero() && c.To.IsZero() &&
		len(c.Kinds) == 0 && len(c.Categories) == 0 && len(c.Merchants) == 0 &&
		c.NoteContains == "" && c.MinAmount == nil && c.MaxAmount == nil
}

// Match reports whether a single transaction satisfies all set
// dimensions.
func (c Criteria) Match(t core.Transaction) bool {
	if !c.From.IsZero() && t.Date.Before(c.From) {
		return false
	}
	if !c.To.IsZero() && t.Date.After(c.To) {
		return false
	}
	if len(c.Kinds) > 0 && !containsKind(c.Kinds, t.Kind) {
		return false
	}
	if len(c.Categories) > 0 && !matchesCategory(c.Categories, t.Category) {
		return false
	}
	if len(c.Merchants) > 0 && !containsString(c.Merchants, t.Merchant) {
		return false
	}
	if c.NoteContains != "" &&
		!strings.Contains(strings.ToLower(t.Note), strings.ToLower(c.NoteContains)) {
		return false
	}
	if c.MinAmount != nil && t.Amount.Cents < c.MinAmount.Cents {
		return false
	}
	if c.MaxAmount != nil && t.Amount.Cents > c.MaxAmount.Cents {
		return false
	}
	return true
}

// Filter returns the matching subset, preserving input order.
func Filter(txns []core.Transaction, c Criteria) []core.Transaction {
	if c.IsZero() {
		out := make([]core.Transaction, len(txns))
		copy(out, txns)
		return out
	}
	out := make([]core.Transaction, 0, len(txns))
	for _, t := range txns {
		if c.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

func containsKind(kinds []core.Kind, k core.Kind) bool {
	for _, kk := range kinds {
		if kk == k {
			return true
		}
	}
	return false
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func matchesCategory(patterns []string, category string) bool {
	for _, p := range patterns {
		if category == p || strings.HasPrefix(category, p) {
			return true
		}
	}
	return false
}
