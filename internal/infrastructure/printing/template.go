package printing

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const dateLayout = "2 Jan 2006"

type labelValue struct {
	Label string
	Value string
}

type itemRow struct {
	Description string
	Quantity    string
	UnitPrice   string
	LineTotal   string
}

type customerBlock struct {
	Name    string
	Email   string
	Address string
}

// pageData is the flattened view the template prints; all formatting happens in Go
type pageData struct {
	Title        string
	Heading      string
	Number       string
	Status       string
	Branch       string
	Customer     customerBlock
	Dates        []labelValue
	Items        []itemRow
	Totals       []labelValue
	CurrencyNote string
	Payment      []labelValue
	Notes        string
	Terms        string
}

// DocumentTemplate renders a document view to HTML
type DocumentTemplate struct {
	tmpl *template.Template
}

// NewDocumentTemplate parses the embedded document template
func NewDocumentTemplate() (*DocumentTemplate, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/document.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse document template: %w", err)
	}
	return &DocumentTemplate{tmpl: tmpl}, nil
}

// RenderHTML renders view as a standalone HTML page
func (t *DocumentTemplate) RenderHTML(view appbilling.DocumentView) ([]byte, error) {
	if view.Document == nil {
		return nil, fmt.Errorf("document is required")
	}
	var buf bytes.Buffer
	if err := t.tmpl.ExecuteTemplate(&buf, "document.html.tmpl", buildPage(view)); err != nil {
		return nil, fmt.Errorf("failed to render document template: %w", err)
	}
	return buf.Bytes(), nil
}

// buildPage flattens a view for the template. Casers hold state, so each call gets its own.
func buildPage(view appbilling.DocumentView) pageData {
	doc := view.Document
	title := cases.Title(language.English)
	label := func(name, value string) labelValue {
		return labelValue{Label: title.String(name), Value: value}
	}
	heading := title.String(doc.Type.String())
	money := func(amount decimal.Decimal) string { return formatMoney(doc.Currency, amount) }

	p := pageData{
		Title:        heading + " " + doc.Number,
		Heading:      heading,
		Number:       doc.Number,
		Status:       title.String(string(doc.Status)),
		CurrencyNote: fmt.Sprintf("Amounts in %s (%s)", doc.Currency.Name, doc.Currency.Code),
		Notes:        doc.Notes,
		Terms:        doc.Terms,
	}
	if view.Branch != nil {
		p.Branch = view.Branch.Name
	}
	if view.Customer != nil {
		p.Customer = customerBlock{Name: view.Customer.Name, Email: view.Customer.Email, Address: view.Customer.Address}
	}

	p.Dates = append(p.Dates, label("issue date", doc.IssueDate.Format(dateLayout)))
	if doc.DueDate != nil {
		p.Dates = append(p.Dates, label("due date", doc.DueDate.Format(dateLayout)))
	}
	if doc.ValidUntil != nil {
		p.Dates = append(p.Dates, label("valid until", doc.ValidUntil.Format(dateLayout)))
	}

	for _, it := range doc.Items {
		p.Items = append(p.Items, itemRow{
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			UnitPrice:   money(it.UnitPrice),
			LineTotal:   money(it.LineTotal),
		})
	}

	p.Totals = []labelValue{
		label("subtotal", money(doc.Subtotal)),
		{Label: fmt.Sprintf("Tax (%s%%)", doc.TaxRate.Mul(decimal.NewFromInt(100)).String()), Value: money(doc.Tax)},
		label("total", money(doc.Total)),
	}

	if pay := doc.Payment; pay != nil {
		p.Payment = []labelValue{
			label("method", title.String(strings.ReplaceAll(pay.Method, "_", " "))),
			label("paid on", pay.PaidAt.Format(dateLayout)),
			label("amount", money(pay.Amount)),
		}
		if pay.TransactionID != "" {
			p.Payment = append(p.Payment, label("reference", pay.TransactionID))
		}
	}
	return p
}

// formatMoney uses the registry format for known currencies and the document's
// own symbol and ISO precision for the rest
func formatMoney(c billing.CurrencySnapshot, amount decimal.Decimal) string {
	if _, ok := valueobject.LookupCurrency(c.Code); ok {
		return valueobject.FormatAmount(amount, c.Code)
	}
	return c.Symbol + amount.StringFixed(valueobject.CurrencyPrecision(c.Code))
}
