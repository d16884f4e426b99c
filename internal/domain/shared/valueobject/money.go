package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Money is an amount bound to a currency. Values are immutable.
//
// Arithmetic keeps full decimal precision; only Round and TaxAt snap the
// amount to the currency's minor unit.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney binds amount to currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{amount: amount, currency: currency}, nil
}

// Zero is the empty amount in currency
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() Currency      { return m.currency }

// Precision is the number of minor-unit decimals of the currency
func (m Money) Precision() int32 {
	return CurrencyPrecision(string(m.currency))
}

// Plus sums two amounts of the same currency
func (m Money) Plus(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("currency mismatch: %s + %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Times scales the amount by a quantity
func (m Money) Times(qty decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(qty), currency: m.currency}
}

// TaxAt returns percent% of the amount rounded to the currency precision
func (m Money) TaxAt(percent decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(percent).Div(hundred), currency: m.currency}.Round()
}

// Round snaps to the currency precision, half away from zero
func (m Money) Round() Money {
	return Money{amount: m.amount.Round(m.Precision()), currency: m.currency}
}

// IsRepresentable reports whether the amount is a whole number of minor units
func (m Money) IsRepresentable() bool {
	return m.amount.Equal(m.amount.Round(m.Precision()))
}

// String renders "12.50 USD"
func (m Money) String() string {
	return m.StringFixed() + " " + string(m.currency)
}

// StringFixed renders the amount at currency precision without the code
func (m Money) StringFixed() string {
	return m.amount.StringFixed(m.Precision())
}

// Format renders the amount with the currency symbol and separators
func (m Money) Format() string {
	return FormatAmount(m.amount, string(m.currency))
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"amount":   m.StringFixed(),
		"currency": string(m.currency),
	})
}
