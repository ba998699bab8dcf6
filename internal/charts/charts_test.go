package charts

import (
	"bytes"
	"testing"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

func TestCumulativeBalanceRendersPNG(t *testing.T) {
	points := []ledger.BalancePoint{
		{Date: core.NewDate(2024, 1, 10), ID: "t1", Balance: core.Money{Cents: 250000}},
		{Date: core.NewDate(2024, 1, 15), ID: "t2", Balance: core.Money{Cents: 245450}},
		{Date: core.NewDate(2024, 2, 1), ID: "t3", Balance: core.Money{Cents: 155450}},
	}

	out, err := NewChartGenerator().CumulativeBalance(points)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}
}

func TestCumulativeBalanceSinglePoint(t *testing.T) {
	points := []ledger.BalancePoint{
		{Date: core.NewDate(2024, 1, 10), ID: "t1", Balance: core.Money{Cents: 100}},
	}
	out, err := NewChartGenerator().CumulativeBalance(points)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(out) == 0 {
		t.Error("expected chart bytes")
	}
}

func TestCumulativeBalanceEmpty(t *testing.T) {
	out, err := NewChartGenerator().CumulativeBalance(nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != nil {
		t.Error("expected nil for empty series")
	}
}
