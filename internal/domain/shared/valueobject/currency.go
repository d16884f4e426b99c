package valueobject

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	AED Currency = "AED"
	INR Currency = "INR"
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	SGD Currency = "SGD"
	AUD Currency = "AUD"
	CAD Currency = "CAD"
	JPY Currency = "JPY"
	CNY Currency = "CNY"
	SAR Currency = "SAR"
	QAR Currency = "QAR"
	KWD Currency = "KWD"
)

// DefaultCurrency is used when a branch has no currency configured
const DefaultCurrency = USD

// defaultPrecision applies to codes that are neither registered nor ISO 4217
const defaultPrecision int32 = 2

// CurrencyFormat describes how amounts in a currency are stored and displayed
type CurrencyFormat struct {
	Code               Currency
	Symbol             string
	Name               string
	DecimalPlaces      int32
	DecimalSeparator   string
	ThousandsSeparator string
}

var currencyFormats = map[Currency]CurrencyFormat{
	AED: {Code: AED, Symbol: "د.إ", Name: "UAE Dirham", DecimalPlaces: 2, DecimalSeparator: ".", ThousandsSeparator: ","},
	INR: {Code: INR, Symbol: "₹", Name: "Indian Rupee", DecimalPlaces: 2, DecimalSeparator: ".", ThousandsSeparator: ","},
	USD: {Code: USD, Symbol: "$", Name: "US Dollar", DecimalPlaces: 2, DecimalSeparator: ".", ThousandsSeparator: ","},
	EUR: {Code: EUR, Symbol: "€", Name: "Euro", DecimalPlaces: 2, DecimalSeparator: ",", ThousandsSeparator: "."},
	GBP: {Code: GBP, Symbol: "£", Name: "British Pound", DecimalPlaces: 2, DecimalSeparator: ".", ThousandsSeparator: ","},
	SGD: {Code: SGD, Symbol: "S$", Name: "Singapore Dollar", DecimalPlaces: 2, DecimalSeparator: ".", ThousandsSeparator: ","},
	AUD: {Code: AUD, Symbol: "A$", Name: "Australian Dollar", DecimalPlaces: 2, DecimalSeparator: ".", ThousandsSeparator: ","},
	CAD: {Code: CAD, Symbol: "C$", Name: "Canadian Dollar", DecimalPlaces: 2, DecimalSeparator: ".", ThousandsSeparator: ","},
	JPY: {Code: JPY, Symbol: "¥", Name: "Japanese Yen", DecimalPlaces: 0, DecimalSeparator: ".", ThousandsSeparator: ","},
	CNY: {Code: CNY, Symbol: "¥", Name: "Chinese Yuan", DecimalPlaces: 2, DecimalSeparator: ".", ThousandsSeparator: ","},
	SAR: {Code: SAR, Symbol: "﷼", Name: "Saudi Riyal", DecimalPlaces: 2, DecimalSeparator: ".", ThousandsSeparator: ","},
	QAR: {Code: QAR, Symbol: "ر.ق", Name: "Qatari Riyal", DecimalPlaces: 2, DecimalSeparator: ".", ThousandsSeparator: ","},
	KWD: {Code: KWD, Symbol: "د.ك", Name: "Kuwaiti Dinar", DecimalPlaces: 3, DecimalSeparator: ".", ThousandsSeparator: ","},
}

// ParseCurrency normalizes and validates a currency code.
// Registered codes and any ISO 4217 code are accepted.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := currencyFormats[c]; ok {
		return c, nil
	}
	if _, err := currency.ParseISO(string(c)); err != nil {
		return "", fmt.Errorf("unknown currency code %q", code)
	}
	return c, nil
}

// LookupCurrency returns the display format for a currency.
// Unregistered ISO codes get a format derived from the CLDR rounding data,
// with the code itself standing in for the symbol and name.
func LookupCurrency(code string) (CurrencyFormat, bool) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if f, ok := currencyFormats[c]; ok {
		return f, true
	}
	unit, err := currency.ParseISO(string(c))
	if err != nil {
		return CurrencyFormat{}, false
	}
	scale, _ := currency.Standard.Rounding(unit)
	return CurrencyFormat{
		Code:               c,
		Symbol:             string(c),
		Name:               string(c),
		DecimalPlaces:      int32(scale),
		DecimalSeparator:   ".",
		ThousandsSeparator: ",",
	}, true
}

// CurrencyPrecision returns the number of minor-unit decimals for a currency
func CurrencyPrecision(code string) int32 {
	if f, ok := LookupCurrency(code); ok {
		return f.DecimalPlaces
	}
	return defaultPrecision
}

// SupportedCurrencies returns the registered currencies ordered by code
func SupportedCurrencies() []CurrencyFormat {
	out := make([]CurrencyFormat, 0, len(currencyFormats))
	for _, f := range currencyFormats {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// FormatAmount renders amount with the currency's symbol, separators and precision,
// e.g. "$1,234.50", "€1.234,50", "¥1,235".
func FormatAmount(amount decimal.Decimal, code string) string {
	f, ok := LookupCurrency(code)
	if !ok {
		f = currencyFormats[DefaultCurrency]
	}

	fixed := amount.Abs().StringFixed(f.DecimalPlaces)
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if amount.IsNegative() && !amount.Round(f.DecimalPlaces).IsZero() {
		b.WriteString("-")
	}
	b.WriteString(f.Symbol)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(f.ThousandsSeparator)
		}
		b.WriteRune(r)
	}
	if fracPart != "" {
		b.WriteString(f.DecimalSeparator)
		b.WriteString(fracPart)
	}
	return b.String()
}
