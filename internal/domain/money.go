package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value in one of the two wallet currencies.
// Amount is stored as BIGINT micros (10^-6) to avoid floating point errors.
type Money struct {
	Amount   int64  // micros
	Currency string // CurrencyCoin or CurrencyChip
}

// NewMoney creates a new Money instance from micros.
func NewMoney(amount int64, currency string) Money {
	return Money{
		Amount:   amount,
		Currency: currency,
	}
}

// ToDecimal converts the int64 micros to a shopspring/decimal.Decimal.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount).Div(decimal.NewFromInt(1_000_000))
}

// FromDecimal converts a decimal.Decimal to int64 micros.
func FromDecimal(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(1_000_000)).IntPart()
}

// Convert applies a fixed exchange rate (target units per source unit) and
// returns the value in the target currency. Rounds down.
func (m Money) Convert(targetCurrency string, rate decimal.Decimal) Money {
	amountDec := m.ToDecimal().Mul(rate)
	return Money{
		Amount:   FromDecimal(amountDec),
		Currency: targetCurrency,
	}
}

// ParseAmount converts a decimal amount string (e.g. "10.5") to micros.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// String returns the string representation of the money.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.ToDecimal().StringFixed(2), m.Currency)
}
