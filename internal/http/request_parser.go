package http

import (
	"fmt"
	"net/url"
	"strings"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

// parseCriteria builds filter criteria from query parameters. All
// dimensions are optional and combine conjunctively:
//
//	from, to      - inclusive YYYY-MM-DD bounds
//	kind          - income or expense, repeatable
//	category      - exact name or prefix, repeatable
//	merchant      - exact name, repeatable
//	note          - case-insensitive substring
//	min, max      - inclusive decimal amount bounds
func parseCriteria(query url.Values) (ledger.Criteria, error) {
	var crit ledger.Criteria

	if v := strings.TrimSpace(query.Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return ledger.Criteria{}, fmt.Errorf("invalid from date %q", v)
		}
		crit.From = d
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return ledger.Criteria{}, fmt.Errorf("invalid to date %q", v)
		}
		crit.To = d
	}
	if !crit.From.IsZero() && !crit.To.IsZero() && crit.To.Before(crit.From) {
		return ledger.Criteria{}, fmt.Errorf("from date is after to date")
	}

	for _, v := range query["kind"] {
		k := core.Kind(strings.TrimSpace(v))
		if err := k.Validate(); err != nil {
			return ledger.Criteria{}, fmt.Errorf("invalid kind %q", v)
		}
		crit.Kinds = append(crit.Kinds, k)
	}

	for _, v := range query["category"] {
		if v = strings.TrimSpace(v); v != "" {
			crit.Categories = append(crit.Categories, v)
		}
	}
	for _, v := range query["merchant"] {
		if v = strings.TrimSpace(v); v != "" {
			crit.Merchants = append(crit.Merchants, v)
		}
	}
	crit.NoteContains = strings.TrimSpace(query.Get("note"))

	if v := strings.TrimSpace(query.Get("min")); v != "" {
		cents, err := core.ParseSignedCents(v)
		if err != nil {
			return ledger.Criteria{}, fmt.Errorf("invalid min amount %q", v)
		}
		crit.MinAmount = &core.Money{Cents: cents}
	}
	if v := strings.TrimSpace(query.Get("max")); v != "" {
		cents, err := core.ParseSignedCents(v)
		if err != nil {
			return ledger.Criteria{}, fmt.Errorf("invalid max amount %q", v)
		}
		crit.MaxAmount = &core.Money{Cents: cents}
	}

	return crit, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
