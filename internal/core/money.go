// Package core holds the domain model of the finance tracker: money
// arithmetic, accounts, salary cycles with their distribution rules, and the
// pure distribution-planning algorithm.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Money is a fixed-point amount in centavos. All arithmetic in the tracker
// happens on cents; floats appear only at the display boundary.
type Money struct {
	Cents int64
}

// Pesos returns the peso value as a float64 for display purposes only.
func (m Money) Pesos() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount with two decimals, e.g. "4000.00".
func (m Money) String() string {
	c := m.Cents
	neg := c < 0
	if neg {
		c = -c
	}
	s := fmt.Sprintf("%d.%02d", c/100, c%100)
	if neg {
		return "-" + s
	}
	return s
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.Cents > 0
}

// MinMoney returns the smaller of a and b.
func MinMoney(a, b Money) Money {
	if a.Cents < b.Cents {
		return a
	}
	return b
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ParseMoney converts a decimal string to Money with half-up rounding on the
// third decimal place. Both dot and comma separators are accepted. Only
// strictly positive amounts parse successfully.
//
//	ParseMoney("4000.00") -> 400000 cents
//	ParseMoney("12.344")  -> 1234 cents (rounds down)
//	ParseMoney("12.345")  -> 1235 cents (rounds up)
func ParseMoney(s string) (Money, error) {
	cents, err := parseCents(s)
	if err != nil {
		return Money{}, err
	}
	if cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

// ParsePercent converts a percentage string to hundredths of a percent, the
// fixed-point representation distribution rules store percentage nominals in
// ("25" -> 2500, "12.5" -> 1250). Percentages above 100 are rejected.
func ParsePercent(s string) (Money, error) {
	hundredths, err := parseCents(s)
	if err != nil {
		return Money{}, err
	}
	if hundredths <= 0 || hundredths > 10000 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: hundredths}, nil
}

// parseCents parses a non-negative decimal string into fixed-point hundredths,
// rounding half-up on the third decimal digit.
func parseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafe = (1<<63 - 1) / 100
	if iv > maxSafe {
		return 0, ErrInvalidAmount
	}
	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				frac++
			}
		}
	}
	return iv*100 + frac, nil
}
