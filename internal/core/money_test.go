package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"12.34", 1234, false},
		{"12,34", 1234, false},
		{"12", 1200, false},
		{"0.5", 50, false},
		{"12.345", 1234, false}, // third decimal rounds half-up
		{"12.346", 1235, false},
		{"0", 0, false},
		{"0.00", 0, false},
		{"", 0, true},
		{"-5", 0, true},
		{"+5", 500, false},
		{"1.2.3", 0, true},
		{"abc", 0, true},
		{"12e3", 0, true},
	}
	for _, tc := range tests {
		got, err := ParseDecimalToCents(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDecimalToCents(%q) = %d, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDecimalToCents(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDecimalToCents(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseSignedCents(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"-12.34", -1234},
		{"-0.01", -1},
		{"100", 10000},
		{"0", 0},
	}
	for _, tc := range tests {
		got, err := ParseSignedCents(tc.in)
		if err != nil {
			t.Errorf("ParseSignedCents(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseSignedCents(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if _, err := ParseSignedCents("--1"); err == nil {
		t.Error("expected error for double sign")
	}
}

func TestMoneyDecimal(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{1234, "12.34"},
		{-1234, "-12.34"},
		{5, "0.05"},
		{0, "0.00"},
		{100000, "1000.00"},
	}
	for _, tc := range tests {
		if got := (Money{Cents: tc.cents}).Decimal(); got != tc.want {
			t.Errorf("Money{%d}.Decimal() = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := Money{Cents: 100}
	b := Money{Cents: 35}
	if a.Add(b).Cents != 135 {
		t.Errorf("Add = %d, want 135", a.Add(b).Cents)
	}
	if a.Sub(b).Cents != 65 {
		t.Errorf("Sub = %d, want 65", a.Sub(b).Cents)
	}
}
