// Package core provides money parsing and handling utilities.
//
// This file contains the fixed-point Money type used for every amount in the
// ledger. Amounts are kept as decimals rounded to two places; nothing in the
// ledger ever goes through float64.
package core

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a non-currency-aware fixed-point amount with two decimal places.
type Money struct {
	Amount decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{Amount: decimal.Zero}

// NewMoneyFromCents builds a Money from an integer number of cents.
func NewMoneyFromCents(cents int64) Money {
	return Money{Amount: decimal.New(cents, -2)}
}

// NewMoney rounds d half-up to two decimal places.
func NewMoney(d decimal.Decimal) Money {
	return Money{Amount: d.Round(2)}
}

// ParseMoney converts a decimal string to Money with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs are
// accepted so balances can be parsed too; use Validate to require a positive
// amount.
//
// Examples:
//
//	ParseMoney("12.34")  -> 12.34
//	ParseMoney("12,345") -> 12.35
//	ParseMoney("-3")     -> -3.00
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return NewMoney(d), nil
}

// Cents returns the amount as an integer number of cents.
func (m Money) Cents() int64 {
	return m.Amount.Shift(2).Round(0).IntPart()
}

func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount.Add(other.Amount)}
}

func (m Money) Sub(other Money) Money {
	return Money{Amount: m.Amount.Sub(other.Amount)}
}

func (m Money) Equal(other Money) bool {
	return m.Amount.Equal(other.Amount)
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// String formats the amount with exactly two decimals, e.g. "1380.00".
func (m Money) String() string {
	return m.Amount.StringFixed(2)
}

// Validate requires a strictly positive amount.
func (m Money) Validate() error {
	if !m.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON encodes the amount as a fixed two-decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both JSON numbers and strings.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return ErrInvalidAmount
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ErrInvalidAmount
		}
		raw = s
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Sum adds up a list of amounts.
func Sum(amounts ...Money) Money {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.Amount)
	}
	return Money{Amount: total}
}
