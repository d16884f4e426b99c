package models

import (
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentModel is the persistence model for invoices and quotations
type DocumentModel struct {
	AggregateModel
	Type                 billing.DocumentType   `gorm:"type:varchar(20);not null;uniqueIndex:idx_documents_type_number,priority:1;index:idx_documents_type_status,priority:1"`
	Number               string                 `gorm:"type:varchar(30);not null;uniqueIndex:idx_documents_type_number,priority:2"`
	Sequence             int64                  `gorm:"not null"`
	CustomerID           uuid.UUID              `gorm:"type:uuid;not null;index"`
	BranchID             uuid.UUID              `gorm:"type:uuid;not null;index"`
	IssueDate            time.Time              `gorm:"type:date;not null"`
	DueDate              *time.Time             `gorm:"type:date"`
	ValidUntil           *time.Time             `gorm:"type:date"`
	Subtotal             decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	TaxRate              decimal.Decimal        `gorm:"type:decimal(7,4);not null"`
	Tax                  decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	Total                decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	CurrencyCode         string                 `gorm:"type:varchar(3);not null"`
	CurrencySymbol       string                 `gorm:"type:varchar(10);not null"`
	CurrencyName         string                 `gorm:"type:varchar(100);not null"`
	Status               billing.DocumentStatus `gorm:"type:varchar(20);not null;index:idx_documents_type_status,priority:2"`
	ConvertedToID        *uuid.UUID             `gorm:"type:uuid"`
	Notes                string                 `gorm:"type:text"`
	Terms                string                 `gorm:"type:text"`
	PaymentMethod        string                 `gorm:"type:varchar(50)"`
	PaymentTransactionID string                 `gorm:"type:varchar(100)"`
	PaidAt               *time.Time
	PaymentAmount        decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	Items                []DocumentItemModel `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
	Attachments          []AttachmentModel   `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

// DocumentItemModel is one priced line of a document
type DocumentItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	DocumentID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position    int             `gorm:"not null"`
	Description string          `gorm:"type:varchar(500);not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (DocumentItemModel) TableName() string {
	return "document_items"
}

// AttachmentModel records a file stored in object storage
type AttachmentModel struct {
	ID          uuid.UUID              `gorm:"type:uuid;primary_key"`
	DocumentID  uuid.UUID              `gorm:"type:uuid;not null;index"`
	Name        string                 `gorm:"type:varchar(255);not null"`
	ObjectKey   string                 `gorm:"type:varchar(500);not null"`
	ContentType string                 `gorm:"type:varchar(100);not null"`
	Size        int64                  `gorm:"not null"`
	Kind        billing.AttachmentKind `gorm:"type:varchar(20);not null"`
	UploadedBy  uuid.UUID              `gorm:"type:uuid;not null"`
	UploadedAt  time.Time              `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AttachmentModel) TableName() string {
	return "document_attachments"
}

// DocumentSequenceModel holds the last issued sequence value per document type
type DocumentSequenceModel struct {
	DocumentType billing.DocumentType `gorm:"type:varchar(20);primary_key"`
	LastValue    int64                `gorm:"not null;default:0"`
	UpdatedAt    time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentSequenceModel) TableName() string {
	return "document_sequences"
}

// ToDomain converts the persistence model to a domain Document
func (m *DocumentModel) ToDomain() *billing.Document {
	doc := &billing.Document{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Type:              m.Type,
		Number:            m.Number,
		CustomerID:        m.CustomerID,
		BranchID:          m.BranchID,
		IssueDate:         billing.TruncateDate(m.IssueDate),
		DueDate:           truncatePtr(m.DueDate),
		ValidUntil:        truncatePtr(m.ValidUntil),
		Items:             make([]billing.LineItem, 0, len(m.Items)),
		Subtotal:          m.Subtotal,
		TaxRate:           m.TaxRate,
		Tax:               m.Tax,
		Total:             m.Total,
		Currency: billing.CurrencySnapshot{
			Code:   m.CurrencyCode,
			Symbol: m.CurrencySymbol,
			Name:   m.CurrencyName,
		},
		Status:        m.Status,
		ConvertedToID: m.ConvertedToID,
		Notes:         m.Notes,
		Terms:         m.Terms,
		Attachments:   make([]billing.Attachment, 0, len(m.Attachments)),
	}
	for _, it := range m.Items {
		doc.Items = append(doc.Items, billing.LineItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		})
	}
	for i := range m.Attachments {
		doc.Attachments = append(doc.Attachments, *m.Attachments[i].ToDomain())
	}
	if m.PaymentMethod != "" {
		doc.Payment = &billing.PaymentDetails{
			Method:        m.PaymentMethod,
			TransactionID: m.PaymentTransactionID,
			Amount:        m.PaymentAmount.Decimal,
		}
		if m.PaidAt != nil {
			doc.Payment.PaidAt = *m.PaidAt
		}
	}
	return doc
}

// FromDomain populates the persistence model from a domain Document.
// Items get fresh row ids in document order.
func (m *DocumentModel) FromDomain(d *billing.Document) {
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	m.Type = d.Type
	m.Number = d.Number
	if seq, err := billing.ParseNumber(d.Type, d.Number); err == nil {
		m.Sequence = seq
	}
	m.CustomerID = d.CustomerID
	m.BranchID = d.BranchID
	m.IssueDate = d.IssueDate
	m.DueDate = d.DueDate
	m.ValidUntil = d.ValidUntil
	m.Subtotal = d.Subtotal
	m.TaxRate = d.TaxRate
	m.Tax = d.Tax
	m.Total = d.Total
	m.CurrencyCode = d.Currency.Code
	m.CurrencySymbol = d.Currency.Symbol
	m.CurrencyName = d.Currency.Name
	m.Status = d.Status
	m.ConvertedToID = d.ConvertedToID
	m.Notes = d.Notes
	m.Terms = d.Terms
	m.applyPayment(d.Payment)
	m.Items = ItemModelsFromDomain(d.ID, d.Items)
	m.Attachments = make([]AttachmentModel, 0, len(d.Attachments))
	for i := range d.Attachments {
		var a AttachmentModel
		a.FromDomain(&d.Attachments[i])
		m.Attachments = append(m.Attachments, a)
	}
}

func (m *DocumentModel) applyPayment(p *billing.PaymentDetails) {
	if p == nil {
		m.PaymentMethod, m.PaymentTransactionID, m.PaidAt = "", "", nil
		m.PaymentAmount = decimal.NullDecimal{}
		return
	}
	paidAt := p.PaidAt
	m.PaymentMethod = p.Method
	m.PaymentTransactionID = p.TransactionID
	m.PaidAt = &paidAt
	m.PaymentAmount = decimal.NewNullDecimal(p.Amount)
}

// StatusColumns returns the columns written by a status change
func StatusColumns(d *billing.Document) map[string]any {
	var m DocumentModel
	m.applyPayment(d.Payment)
	return map[string]any{
		"status":                 d.Status,
		"converted_to_id":        d.ConvertedToID,
		"payment_method":         m.PaymentMethod,
		"payment_transaction_id": m.PaymentTransactionID,
		"paid_at":                m.PaidAt,
		"payment_amount":         m.PaymentAmount,
		"updated_at":             d.UpdatedAt,
	}
}

// DraftColumns returns the columns written by a draft edit
func DraftColumns(d *billing.Document) map[string]any {
	return map[string]any{
		"due_date":    d.DueDate,
		"valid_until": d.ValidUntil,
		"subtotal":    d.Subtotal,
		"tax":         d.Tax,
		"total":       d.Total,
		"notes":       d.Notes,
		"terms":       d.Terms,
		"updated_at":  d.UpdatedAt,
	}
}

// ItemModelsFromDomain maps line items to rows of documentID
func ItemModelsFromDomain(documentID uuid.UUID, items []billing.LineItem) []DocumentItemModel {
	rows := make([]DocumentItemModel, 0, len(items))
	for i, it := range items {
		rows = append(rows, DocumentItemModel{
			ID:          uuid.New(),
			DocumentID:  documentID,
			Position:    i + 1,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		})
	}
	return rows
}

// ToDomain converts the persistence model to a domain Attachment
func (m *AttachmentModel) ToDomain() *billing.Attachment {
	return &billing.Attachment{
		ID:          m.ID,
		DocumentID:  m.DocumentID,
		Name:        m.Name,
		ObjectKey:   m.ObjectKey,
		ContentType: m.ContentType,
		Size:        m.Size,
		Kind:        m.Kind,
		UploadedBy:  m.UploadedBy,
		UploadedAt:  m.UploadedAt,
	}
}

// FromDomain populates the persistence model from a domain Attachment
func (m *AttachmentModel) FromDomain(a *billing.Attachment) {
	m.ID = a.ID
	m.DocumentID = a.DocumentID
	m.Name = a.Name
	m.ObjectKey = a.ObjectKey
	m.ContentType = a.ContentType
	m.Size = a.Size
	m.Kind = a.Kind
	m.UploadedBy = a.UploadedBy
	m.UploadedAt = a.UploadedAt
}

func truncatePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := billing.TruncateDate(*t)
	return &d
}
