package http

import (
	"net/url"
	"testing"

	"saldo/internal/core"
)

func TestParseCriteriaEmpty(t *testing.T) {
	crit, err := parseCriteria(url.Values{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !crit.IsZero() {
		t.Errorf("expected zero criteria, got %+v", crit)
	}
}

func TestParseCriteriaAllDimensions(t *testing.T) {
	query := url.Values{
		"from":     {"2024-01-01"},
		"to":       {"2024-03-31"},
		"kind":     {"expense"},
		"category": {"Groceries", "Food"},
		"merchant": {"Esselunga"},
		"note":     {"weekly"},
		"min":      {"10.00"},
		"max":      {"99.99"},
	}

	crit, err := parseCriteria(query)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if crit.From.String() != "2024-01-01" || crit.To.String() != "2024-03-31" {
		t.Errorf("range = %s..%s", crit.From, crit.To)
	}
	if len(crit.Kinds) != 1 || crit.Kinds[0] != core.Expense {
		t.Errorf("kinds = %v", crit.Kinds)
	}
	if len(crit.Categories) != 2 || len(crit.Merchants) != 1 {
		t.Errorf("categories = %v, merchants = %v", crit.Categories, crit.Merchants)
	}
	if crit.NoteContains != "weekly" {
		t.Errorf("note = %q", crit.NoteContains)
	}
	if crit.MinAmount.Cents != 1000 || crit.MaxAmount.Cents != 9999 {
		t.Errorf("amounts = %v..%v", crit.MinAmount, crit.MaxAmount)
	}
}

func TestParseCriteriaRejectsBadInput(t *testing.T) {
	cases := []url.Values{
		{"from": {"not-a-date"}},
		{"to": {"2024-13-01"}},
		{"kind": {"transfer"}},
		{"min": {"abc"}},
		{"from": {"2024-02-01"}, "to": {"2024-01-01"}},
	}
	for _, query := range cases {
		if _, err := parseCriteria(query); err == nil {
			t.Errorf("expected error for %v", query)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  hello\x00world  "); got != "helloworld" {
		t.Errorf("sanitize = %q", got)
	}
	if got := sanitizeInput("line1\nline2"); got != "line1\nline2" {
		t.Errorf("newlines should survive, got %q", got)
	}
}
