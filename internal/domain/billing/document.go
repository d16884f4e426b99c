package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CurrencySnapshot is the branch currency copied into a document at creation
type CurrencySnapshot struct {
	Code   string
	Symbol string
	Name   string
}

// Snapshot is everything a document freezes from its branch
type Snapshot struct {
	Currency CurrencySnapshot
	TaxRate  decimal.Decimal
}

// PaymentDetails records how an invoice was settled
type PaymentDetails struct {
	Method        string
	TransactionID string
	PaidAt        time.Time
	Amount        decimal.Decimal
}

// AttachmentKind tells staff uploads apart from customer uploads
type AttachmentKind string

const (
	AttachmentKindStaff    AttachmentKind = "staff-upload"
	AttachmentKindCustomer AttachmentKind = "customer-upload"
)

// Attachment is a file stored alongside a document
type Attachment struct {
	ID          uuid.UUID
	DocumentID  uuid.UUID
	Name        string
	ObjectKey   string
	ContentType string
	Size        int64
	Kind        AttachmentKind
	UploadedBy  uuid.UUID
	UploadedAt  time.Time
}

// Document is the aggregate root shared by invoices and quotations.
// Number, CustomerID, BranchID, currency and tax rate never change after creation.
type Document struct {
	shared.BaseAggregateRoot
	Type          DocumentType
	Number        string
	CustomerID    uuid.UUID
	BranchID      uuid.UUID
	IssueDate     time.Time
	DueDate       *time.Time // invoices
	ValidUntil    *time.Time // quotations
	Items         []LineItem
	Subtotal      decimal.Decimal
	TaxRate       decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	Currency      CurrencySnapshot
	Status        DocumentStatus
	ConvertedToID *uuid.UUID
	Notes         string
	Terms         string
	Payment       *PaymentDetails
	Attachments   []Attachment
}

var _ shared.AggregateRoot = (*Document)(nil)

// NewDocumentParams holds the inputs for NewDocument
type NewDocumentParams struct {
	Type       DocumentType
	CustomerID uuid.UUID
	BranchID   uuid.UUID
	Snapshot   Snapshot
	IssueDate  time.Time
	DueDate    *time.Time
	ValidUntil *time.Time
	Items      []ItemInput
	Notes      string
	Terms      string
}

// NewDocument creates a draft document with computed totals.
// The number is assigned later by AssignNumber, inside the persisting transaction.
func NewDocument(p NewDocumentParams) (*Document, error) {
	if !p.Type.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Document type must be invoice or quotation")
	}
	if p.CustomerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "Customer is required")
	}
	if p.BranchID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "Branch is required")
	}
	if p.IssueDate.IsZero() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Issue date is required")
	}

	issue := TruncateDate(p.IssueDate)
	doc := &Document{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Type:              p.Type,
		CustomerID:        p.CustomerID,
		BranchID:          p.BranchID,
		IssueDate:         issue,
		Currency:          p.Snapshot.Currency,
		TaxRate:           p.Snapshot.TaxRate,
		Status:            InitialStatus(),
		Notes:             p.Notes,
		Terms:             p.Terms,
		Attachments:       make([]Attachment, 0),
	}
	if err := doc.setDates(p.DueDate, p.ValidUntil); err != nil {
		return nil, err
	}
	if err := doc.price(p.Items); err != nil {
		return nil, err
	}

	return doc, nil
}

// AssignNumber sets the document number from an allocated sequence value. It may only be called once.
func (d *Document) AssignNumber(seq int64) error {
	if d.Number != "" {
		return shared.NewDomainError(shared.CodeNumberingFailure, fmt.Sprintf("Document already numbered %s", d.Number))
	}
	if seq < 1 {
		return shared.NewDomainError(shared.CodeNumberingFailure, fmt.Sprintf("Invalid sequence value %d", seq))
	}
	d.Number = FormatNumber(d.Type, seq)
	return nil
}

// IsInvoice returns true for invoices
func (d *Document) IsInvoice() bool {
	return d.Type == DocumentTypeInvoice
}

// IsQuotation returns true for quotations
func (d *Document) IsQuotation() bool {
	return d.Type == DocumentTypeQuotation
}

// IsTerminal reports whether the document has reached a final status
func (d *Document) IsTerminal() bool {
	return IsTerminal(d.Type, d.Status)
}

// DraftChanges is a partial update of a draft document. Nil fields are left unchanged.
type DraftChanges struct {
	Items      []ItemInput
	Notes      *string
	Terms      *string
	DueDate    *time.Time
	ValidUntil *time.Time
}

// ApplyDraftChanges updates a draft document. Only allowed in draft.
// New items are priced with the frozen tax rate and currency.
func (d *Document) ApplyDraftChanges(c DraftChanges) error {
	if !IsEditable(d.Status) {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Cannot edit a %s %s", d.Status, d.Type))
	}

	due, valid := d.DueDate, d.ValidUntil
	if c.DueDate != nil {
		due = c.DueDate
	}
	if c.ValidUntil != nil {
		valid = c.ValidUntil
	}
	if err := d.setDates(due, valid); err != nil {
		return err
	}
	if c.Items != nil {
		if err := d.price(c.Items); err != nil {
			return err
		}
	}
	if c.Notes != nil {
		d.Notes = *c.Notes
	}
	if c.Terms != nil {
		d.Terms = *c.Terms
	}
	d.Touch(time.Now())
	return nil
}

// Apply moves the document through event.
// Payment and conversion carry extra data and go through RecordPayment and MarkConverted.
func (d *Document) Apply(event Event, now time.Time) error {
	switch event {
	case EventRecordPayment:
		return shared.NewDomainError(shared.CodeValidation, "Payment details are required to record a payment")
	case EventConvert:
		return shared.NewDomainError(shared.CodeValidation, "Conversion must go through the convert operation")
	}

	next, err := NextStatus(d.Type, d.Status, event)
	if err != nil {
		return err
	}
	if err := d.checkElapsed(event, now); err != nil {
		return err
	}

	d.Status = next
	d.Touch(now)
	return nil
}

// RecordPayment settles an invoice in full
func (d *Document) RecordPayment(p PaymentDetails, now time.Time) error {
	next, err := NextStatus(d.Type, d.Status, EventRecordPayment)
	if err != nil {
		return err
	}
	if strings.TrimSpace(p.Method) == "" {
		return shared.NewDomainError(shared.CodeValidation, "Payment method is required")
	}
	if !p.Amount.Equal(d.Total) {
		return shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("Payment amount %s must equal the invoice total %s", p.Amount.String(), d.TotalMoney().StringFixed()))
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = now
	}
	p.Method = strings.TrimSpace(p.Method)

	d.Payment = &p
	d.Status = next
	d.Touch(now)
	return nil
}

// MarkConverted records the invoice created from this quotation
func (d *Document) MarkConverted(invoiceID uuid.UUID, now time.Time) error {
	if d.ConvertedToID != nil {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Quotation %s was already converted", d.Number))
	}
	next, err := NextStatus(d.Type, d.Status, EventConvert)
	if err != nil {
		return err
	}
	if invoiceID == uuid.Nil {
		return shared.NewDomainError(shared.CodeValidation, "Converted invoice id is required")
	}

	d.ConvertedToID = &invoiceID
	d.Status = next
	d.Touch(now)
	return nil
}

// ConvertToInvoice builds the draft invoice for an accepted quotation.
// The quotation's items, tax rate and currency snapshot carry over unchanged.
func (d *Document) ConvertToInvoice(issueDate, dueDate time.Time) (*Document, error) {
	if !CanApply(d.Type, d.Status, EventConvert) || d.ConvertedToID != nil {
		return nil, shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Cannot convert a %s %s", d.Status, d.Type))
	}

	items := make([]ItemInput, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, ItemInput{Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}

	notes := d.Notes
	if d.Number != "" {
		notes = strings.TrimSpace(fmt.Sprintf("Converted from quotation %s\n%s", d.Number, d.Notes))
	}

	return NewDocument(NewDocumentParams{
		Type:       DocumentTypeInvoice,
		CustomerID: d.CustomerID,
		BranchID:   d.BranchID,
		Snapshot:   Snapshot{Currency: d.Currency, TaxRate: d.TaxRate},
		IssueDate:  issueDate,
		DueDate:    &dueDate,
		Items:      items,
		Notes:      notes,
		Terms:      d.Terms,
	})
}

// ElapsedEvent returns the date-driven event that applies at now, if any
func (d *Document) ElapsedEvent(now time.Time) (Event, bool) {
	switch d.Type {
	case DocumentTypeInvoice:
		if d.DueDate != nil && DateElapsed(*d.DueDate, now) && CanApply(d.Type, d.Status, EventDueDateElapsed) {
			return EventDueDateElapsed, true
		}
	case DocumentTypeQuotation:
		if d.ValidUntil != nil && DateElapsed(*d.ValidUntil, now) && CanApply(d.Type, d.Status, EventValidUntilElapsed) {
			return EventValidUntilElapsed, true
		}
	}
	return "", false
}

// AddAttachment links an uploaded file to the document
func (d *Document) AddAttachment(a Attachment) error {
	if strings.TrimSpace(a.Name) == "" {
		return shared.NewDomainError(shared.CodeValidation, "Attachment name is required")
	}
	if a.ObjectKey == "" {
		return shared.NewDomainError(shared.CodeValidation, "Attachment object key is required")
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.DocumentID = d.ID
	if a.UploadedAt.IsZero() {
		a.UploadedAt = time.Now()
	}
	d.Attachments = append(d.Attachments, a)
	return nil
}

// FindAttachment returns the attachment with the given id
func (d *Document) FindAttachment(id uuid.UUID) (*Attachment, bool) {
	for i := range d.Attachments {
		if d.Attachments[i].ID == id {
			return &d.Attachments[i], true
		}
	}
	return nil, false
}

// SubtotalMoney returns the subtotal as Money
func (d *Document) SubtotalMoney() valueobject.Money {
	return d.money(d.Subtotal)
}

// TaxMoney returns the tax as Money
func (d *Document) TaxMoney() valueobject.Money {
	return d.money(d.Tax)
}

// TotalMoney returns the total as Money
func (d *Document) TotalMoney() valueobject.Money {
	return d.money(d.Total)
}

// Money wraps an amount in the document currency
func (d *Document) Money(amount decimal.Decimal) valueobject.Money {
	return d.money(amount)
}

func (d *Document) money(amount decimal.Decimal) valueobject.Money {
	m, err := valueobject.NewMoney(amount, valueobject.Currency(d.Currency.Code))
	if err != nil {
		return valueobject.Zero(valueobject.DefaultCurrency)
	}
	return m
}

func (d *Document) price(items []ItemInput) error {
	totals, err := Compute(items, d.TaxRate, d.Currency.Code)
	if err != nil {
		return err
	}
	d.Items = totals.Items
	d.Subtotal = totals.Subtotal
	d.Tax = totals.Tax
	d.Total = totals.Total
	return nil
}

func (d *Document) setDates(due, validUntil *time.Time) error {
	switch d.Type {
	case DocumentTypeInvoice:
		if due == nil || due.IsZero() {
			return shared.NewDomainError(shared.CodeValidation, "Invoice due date is required")
		}
		t := TruncateDate(*due)
		if t.Before(d.IssueDate) {
			return shared.NewDomainError(shared.CodeValidation, "Due date cannot be before the issue date")
		}
		d.DueDate, d.ValidUntil = &t, nil
	case DocumentTypeQuotation:
		if validUntil == nil || validUntil.IsZero() {
			return shared.NewDomainError(shared.CodeValidation, "Quotation valid-until date is required")
		}
		t := TruncateDate(*validUntil)
		if t.Before(d.IssueDate) {
			return shared.NewDomainError(shared.CodeValidation, "Valid-until date cannot be before the issue date")
		}
		d.ValidUntil, d.DueDate = &t, nil
	}
	return nil
}

func (d *Document) checkElapsed(event Event, now time.Time) error {
	switch event {
	case EventDueDateElapsed:
		if d.DueDate == nil || !DateElapsed(*d.DueDate, now) {
			return shared.NewDomainError(shared.CodeInvalidTransition, "Due date has not passed yet")
		}
	case EventValidUntilElapsed:
		if d.ValidUntil == nil || !DateElapsed(*d.ValidUntil, now) {
			return shared.NewDomainError(shared.CodeInvalidTransition, "Quotation is still valid")
		}
	}
	return nil
}

// TruncateDate drops the time of day, in UTC
func TruncateDate(t time.Time) time.Time {
	y, m, day := t.UTC().Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// DateElapsed reports whether the calendar day d is over at now
func DateElapsed(d, now time.Time) bool {
	return TruncateDate(now).After(TruncateDate(d))
}
