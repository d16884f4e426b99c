package billing

import (
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"

// ==================== Requests ====================

// ItemInput represents a line item in create and update requests.
// Quantity is at least 1 with up to 4 decimals. unit_price and quantity * unit_price
// must both be whole amounts of the currency's minor unit, so 1.5 x 0.25 USD (0.375)
// is rejected with VALIDATION.
type ItemInput struct {
	Description string          `json:"description" binding:"required,min=1,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" binding:"decimal_nonneg"`
}

// CreateDocumentRequest represents a request to create an invoice or quotation.
// Tax is always derived from the branch tax rate, so there is no tax field.
type CreateDocumentRequest struct {
	Type       string      `json:"type" binding:"required,oneof=invoice quotation"`
	CustomerID uuid.UUID   `json:"customer_id" binding:"required"`
	BranchID   uuid.UUID   `json:"branch_id" binding:"required"`
	IssueDate  *string     `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
	DueDate    *string     `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	ValidUntil *string     `json:"valid_until" binding:"omitempty,datetime=2006-01-02"`
	Items      []ItemInput `json:"items" binding:"required,min=1,dive"`
	Notes      string      `json:"notes" binding:"max=5000"`
	Terms      *string     `json:"terms" binding:"omitempty,max=5000"`
}

// UpdateDocumentRequest edits a draft. Version must match the stored document.
type UpdateDocumentRequest struct {
	Version    int          `json:"version" binding:"required,min=1"`
	Items      *[]ItemInput `json:"items" binding:"omitempty,min=1,dive"`
	Notes      *string      `json:"notes" binding:"omitempty,max=5000"`
	Terms      *string      `json:"terms" binding:"omitempty,max=5000"`
	DueDate    *string      `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	ValidUntil *string      `json:"valid_until" binding:"omitempty,datetime=2006-01-02"`
}

// TransitionRequest applies a lifecycle event.
// ExpectedStatus, when set, must match the current status.
type TransitionRequest struct {
	Event          string `json:"event" binding:"required"`
	ExpectedStatus string `json:"expected_status"`
}

// RecordPaymentRequest settles an invoice
type RecordPaymentRequest struct {
	Method        string          `json:"method" binding:"required,min=1,max=50"`
	TransactionID string          `json:"transaction_id" binding:"max=100"`
	PaidAt        *time.Time      `json:"paid_at"`
	Amount        decimal.Decimal `json:"amount" binding:"decimal_nonneg"`
}

// ConvertRequest converts an accepted quotation into an invoice
type ConvertRequest struct {
	IssueDate *string `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
	DueDate   *string `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
}

// QuotationRequestItem is an item a customer asks to be quoted
type QuotationRequestItem struct {
	Description string          `json:"description" binding:"required,min=1,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// QuotationRequest is submitted by a customer through the portal
type QuotationRequest struct {
	Title            string                 `json:"title" binding:"required,min=1,max=200"`
	Description      string                 `json:"description" binding:"required,min=1,max=5000"`
	Items            []QuotationRequestItem `json:"items" binding:"required,min=1,dive"`
	PreferredDueDate *string                `json:"preferred_due_date" binding:"omitempty,datetime=2006-01-02"`
	AdditionalNotes  string                 `json:"additional_notes" binding:"max=5000"`
}

// DocumentListFilter represents filter options for document list
type DocumentListFilter struct {
	Type       string     `form:"type" binding:"omitempty,oneof=invoice quotation"`
	Status     string     `form:"status"`
	CustomerID *uuid.UUID `form:"customer_id"`
	BranchID   *uuid.UUID `form:"branch_id"`
	Search     string     `form:"search"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	PageSize   int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string     `form:"order_by"`
	OrderDir   string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ==================== Responses ====================

// CurrencyResponse is the currency snapshot of a document
type CurrencyResponse struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// LineItemResponse represents a priced line
type LineItemResponse struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

// PaymentResponse represents recorded payment details
type PaymentResponse struct {
	Method        string    `json:"method"`
	TransactionID string    `json:"transaction_id,omitempty"`
	PaidAt        time.Time `json:"paid_at"`
	Amount        string    `json:"amount"`
}

// AttachmentResponse represents a stored file
type AttachmentResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Kind        string    `json:"kind"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// DocumentResponse represents a document in API responses
type DocumentResponse struct {
	ID             uuid.UUID            `json:"id"`
	Type           string               `json:"type"`
	Number         string               `json:"number"`
	CustomerID     uuid.UUID            `json:"customer_id"`
	BranchID       uuid.UUID            `json:"branch_id"`
	IssueDate      string               `json:"issue_date"`
	DueDate        *string              `json:"due_date,omitempty"`
	ValidUntil     *string              `json:"valid_until,omitempty"`
	Items          []LineItemResponse   `json:"items"`
	Subtotal       string               `json:"subtotal"`
	TaxRate        string               `json:"tax_rate"`
	Tax            string               `json:"tax"`
	Total          string               `json:"total"`
	FormattedTotal string               `json:"formatted_total"`
	Currency       CurrencyResponse     `json:"currency"`
	Status         string               `json:"status"`
	AllowedEvents  []string             `json:"allowed_events"`
	ConvertedToID  *uuid.UUID           `json:"converted_to_id,omitempty"`
	Notes          string               `json:"notes"`
	Terms          string               `json:"terms"`
	Payment        *PaymentResponse     `json:"payment,omitempty"`
	Attachments    []AttachmentResponse `json:"attachments"`
	Version        int                  `json:"version"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// ConversionResponse is the outcome of converting a quotation
type ConversionResponse struct {
	Quotation DocumentResponse `json:"quotation"`
	Invoice   DocumentResponse `json:"invoice"`
}

// SweepResponse reports how many documents an elapsed sweep moved
type SweepResponse struct {
	Overdue int64 `json:"overdue"`
	Expired int64 `json:"expired"`
}

// ToDocumentResponse converts a domain document to a response
func ToDocumentResponse(d *billing.Document) DocumentResponse {
	items := make([]LineItemResponse, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, LineItemResponse{
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			UnitPrice:   d.Money(it.UnitPrice).StringFixed(),
			LineTotal:   d.Money(it.LineTotal).StringFixed(),
		})
	}

	events := billing.AllowedEvents(d.Type, d.Status)
	allowed := make([]string, 0, len(events))
	for _, e := range events {
		allowed = append(allowed, e.String())
	}

	attachments := make([]AttachmentResponse, 0, len(d.Attachments))
	for _, a := range d.Attachments {
		attachments = append(attachments, AttachmentResponse{
			ID:          a.ID,
			Name:        a.Name,
			ContentType: a.ContentType,
			Size:        a.Size,
			Kind:        string(a.Kind),
			UploadedAt:  a.UploadedAt,
		})
	}

	resp := DocumentResponse{
		ID:             d.ID,
		Type:           d.Type.String(),
		Number:         d.Number,
		CustomerID:     d.CustomerID,
		BranchID:       d.BranchID,
		IssueDate:      d.IssueDate.Format(DateLayout),
		DueDate:        formatDate(d.DueDate),
		ValidUntil:     formatDate(d.ValidUntil),
		Items:          items,
		Subtotal:       d.SubtotalMoney().StringFixed(),
		TaxRate:        d.TaxRate.String(),
		Tax:            d.TaxMoney().StringFixed(),
		Total:          d.TotalMoney().StringFixed(),
		FormattedTotal: d.TotalMoney().Format(),
		Currency: CurrencyResponse{
			Code:   d.Currency.Code,
			Symbol: d.Currency.Symbol,
			Name:   d.Currency.Name,
		},
		Status:        d.Status.String(),
		AllowedEvents: allowed,
		ConvertedToID: d.ConvertedToID,
		Notes:         d.Notes,
		Terms:         d.Terms,
		Attachments:   attachments,
		Version:       d.Version,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	if d.Payment != nil {
		resp.Payment = &PaymentResponse{
			Method:        d.Payment.Method,
			TransactionID: d.Payment.TransactionID,
			PaidAt:        d.Payment.PaidAt,
			Amount:        d.Money(d.Payment.Amount).StringFixed(),
		}
	}
	return resp
}

// ToDocumentResponses converts a slice of domain documents
func ToDocumentResponses(docs []billing.Document) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(docs))
	for i := range docs {
		out = append(out, ToDocumentResponse(&docs[i]))
	}
	return out
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}
