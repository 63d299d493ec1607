package core

import "testing"

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"4000.00", 400000, true},
		{"12.34", 1234, true},
		{"12,34", 1234, true},
		{"12.344", 1234, true}, // rounds down
		{"12.345", 1235, true}, // half-up on the third decimal
		{"12.346", 1235, true}, // rounds up
		{"0.01", 1, true},
		{"7", 700, true},
		{"", 0, false},
		{"0", 0, false},
		{"-5", 0, false},
		{"+5", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}
	for _, tc := range cases {
		m, err := ParseMoney(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("ParseMoney(%q) unexpected error: %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseMoney(%q) expected error", tc.in)
		}
		if tc.ok && m.Cents != tc.cents {
			t.Fatalf("ParseMoney(%q) = %d cents, want %d", tc.in, m.Cents, tc.cents)
		}
	}
}

func TestParsePercent(t *testing.T) {
	cases := []struct {
		in         string
		hundredths int64
		ok         bool
	}{
		{"25", 2500, true},
		{"12.5", 1250, true},
		{"100", 10000, true},
		{"100.01", 0, false},
		{"0", 0, false},
		{"-1", 0, false},
	}
	for _, tc := range cases {
		p, err := ParsePercent(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("ParsePercent(%q) unexpected error: %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParsePercent(%q) expected error", tc.in)
		}
		if tc.ok && p.Cents != tc.hundredths {
			t.Fatalf("ParsePercent(%q) = %d, want %d", tc.in, p.Cents, tc.hundredths)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{400000, "4000.00"},
		{1, "0.01"},
		{-1234, "-12.34"},
		{0, "0.00"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.want {
			t.Fatalf("Money{%d}.String() = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestMinMoney(t *testing.T) {
	if got := MinMoney(Money{Cents: 5}, Money{Cents: 3}); got.Cents != 3 {
		t.Fatalf("MinMoney = %d, want 3", got.Cents)
	}
	if got := MinMoney(Money{Cents: 2}, Money{Cents: 3}); got.Cents != 2 {
		t.Fatalf("MinMoney = %d, want 2", got.Cents)
	}
}
