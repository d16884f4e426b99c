package billing

import (
	"fmt"
	"strings"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

var (
	minQuantity = decimal.NewFromInt(1)
	maxTaxRate  = decimal.NewFromInt(100)
)

// Quantities and tax rates are stored as DECIMAL(_,4)
const storedScale = 4

// ItemInput is a line item as submitted by a caller, before totals are computed
type ItemInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// LineItem is a priced line of a document
type LineItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal // Quantity * UnitPrice
}

// Totals is the result of pricing a set of items in one currency
type Totals struct {
	Items     []LineItem
	Subtotal  decimal.Decimal
	TaxRate   decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal
	Currency  valueobject.Currency
	Precision int32
}

// Compute prices items at the given tax rate (percent) in the given currency.
//
// Every unit price and line total must already be expressible in the currency's
// minor unit, so the subtotal is an exact sum. Tax is the only derived amount that
// needs rounding: subtotal * rate / 100, rounded half away from zero to the currency
// precision. Total is subtotal + tax.
func Compute(items []ItemInput, taxRate decimal.Decimal, currencyCode string) (Totals, error) {
	cur, err := valueobject.ParseCurrency(currencyCode)
	if err != nil {
		return Totals{}, shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Unsupported currency %q", currencyCode))
	}
	if len(items) == 0 {
		return Totals{}, shared.NewDomainError(shared.CodeValidation, "At least one item is required")
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(maxTaxRate) {
		return Totals{}, shared.NewDomainError(shared.CodeValidation, "Tax rate must be between 0 and 100")
	}
	if !fitsScale(taxRate) {
		return Totals{}, shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("Tax rate cannot have more than %d decimals", storedScale))
	}

	precision := valueobject.CurrencyPrecision(string(cur))
	subtotal := valueobject.Zero(cur)
	lines := make([]LineItem, 0, len(items))

	for i, in := range items {
		line, err := priceItem(i, in, cur)
		if err != nil {
			return Totals{}, err
		}
		lineTotal, _ := valueobject.NewMoney(line.LineTotal, cur)
		if subtotal, err = subtotal.Plus(lineTotal); err != nil {
			return Totals{}, shared.NewDomainError(shared.CodeValidation, err.Error())
		}
		lines = append(lines, line)
	}

	tax := subtotal.TaxAt(taxRate)
	total, _ := subtotal.Plus(tax)

	return Totals{
		Items:     lines,
		Subtotal:  subtotal.Amount(),
		TaxRate:   taxRate,
		Tax:       tax.Amount(),
		Total:     total.Amount(),
		Currency:  cur,
		Precision: precision,
	}, nil
}

func priceItem(idx int, in ItemInput, cur valueobject.Currency) (LineItem, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return LineItem{}, itemError(idx, "description is required")
	}
	if in.Quantity.LessThan(minQuantity) {
		return LineItem{}, itemError(idx, "quantity must be at least 1")
	}
	if !fitsScale(in.Quantity) {
		return LineItem{}, itemError(idx, fmt.Sprintf("quantity cannot have more than %d decimals", storedScale))
	}
	if in.UnitPrice.IsNegative() {
		return LineItem{}, itemError(idx, "unit price cannot be negative")
	}

	price, _ := valueobject.NewMoney(in.UnitPrice, cur)
	if !price.IsRepresentable() {
		return LineItem{}, itemError(idx, fmt.Sprintf("unit price %s has more than %d decimals for %s",
			in.UnitPrice.String(), price.Precision(), cur))
	}
	lineTotal := price.Times(in.Quantity)
	if !lineTotal.IsRepresentable() {
		return LineItem{}, itemError(idx, fmt.Sprintf("line total %s is not a whole amount of %s",
			lineTotal.Amount().String(), cur))
	}

	return LineItem{
		Description: desc,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		LineTotal:   lineTotal.Amount(),
	}, nil
}

func fitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(storedScale))
}

func itemError(idx int, msg string) error {
	return shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Item %d: %s", idx+1, msg))
}
