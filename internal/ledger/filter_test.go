package ledger

import (
	"testing"

	"saldo/internal/core"
)

func filterFixture() []core.Transaction {
	groceries := tx("2024-01-05", core.Expense, 4550)
	groceries.ID = "t1"
	groceries.Category = "Groceries"
	groceries.Merchant = "Lidl"
	groceries.Note = "weekly shop"

	salary := tx("2024-01-25", core.Income, 250000)
	salary.ID = "t2"
	salary.Category = "Salary"
	salary.Note = "January payroll"

	rent := tx("2024-02-01", core.Expense, 90000)
	rent.ID = "t3"
	rent.Category = "Housing"
	rent.Merchant = "Landlord"
	rent.Note = "rent february"

	return []core.Transaction{groceries, salary, rent}
}

func ids(txns []core.Transaction) []string {
	out := make([]string, len(txns))
	for i, t := range txns {
		out[i] = t.ID
	}
	return out
}

func TestFilterUnsetCriteriaMatchesEverything(t *testing.T) {
	in := filterFixture()
	out := Filter(in, Criteria{})
	if len(out) != len(in) {
		t.Errorf("expected all %d rows, got %d", len(in), len(out))
	}
}

func TestFilterDimensions(t *testing.T) {
	in := filterFixture()
	min := core.Money{Cents: 50000}
	max := core.Money{Cents: 100000}
	from, _ := core.ParseDate("2024-01-10")
	to, _ := core.ParseDate("2024-02-01")

	tests := []struct {
		name string
		c    Criteria
		want []string
	}{
		{"date range inclusive", Criteria{From: from, To: to}, []string{"t2", "t3"}},
		{"kind", Criteria{Kinds: []core.Kind{core.Income}}, []string{"t2"}},
		{"category exact", Criteria{Categories: []string{"Housing"}}, []string{"t3"}},
		{"category prefix", Criteria{Categories: []string{"Groc"}}, []string{"t1"}},
		{"merchant", Criteria{Merchants: []string{"Lidl"}}, []string{"t1"}},
		{"note substring case-insensitive", Criteria{NoteContains: "PAYROLL"}, []string{"t2"}},
		{"amount range", Criteria{MinAmount: &min, MaxAmount: &max}, []string{"t3"}},
		{"conjunction", Criteria{Kinds: []core.Kind{core.Expense}, NoteContains: "rent"}, []string{"t3"}},
		{"no match", Criteria{Merchants: []string{"Amazon"}}, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(Filter(in, tc.c))
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("got %v, want %v", got, tc.want)
					break
				}
			}
		})
	}
}

func TestFilterPreservesInputOrder(t *testing.T) {
	in := filterFixture()
	// Reverse the fixture; the subset must keep the reversed order.
	rev := []core.Transaction{in[2], in[1], in[0]}
	got := ids(Filter(rev, Criteria{Kinds: []core.Kind{core.Expense}}))
	if len(got) != 2 || got[0] != "t3" || got[1] != "t1" {
		t.Errorf("order not preserved: %v", got)
	}
}

func TestFilteredChainVersusCumulative(t *testing.T) {
	// Filtering feeds the month summaries but must not change the
	// cumulative series, which always uses the full history.
	in := filterFixture()
	filtered := Filter(in, Criteria{Kinds: []core.Kind{core.Expense}})

	full := Cumulative(in)
	chainFiltered := Chain(Aggregate(filtered), nil, core.Money{})

	if full[len(full)-1].Balance.Cents != 155450 {
		t.Errorf("full cumulative = %d, want 155450", full[len(full)-1].Balance.Cents)
	}
	if chainFiltered[len(chainFiltered)-1].Closing.Cents != -94550 {
		t.Errorf("filtered chain closing = %d, want -94550", chainFiltered[len(chainFiltered)-1].Closing.Cents)
	}
}
