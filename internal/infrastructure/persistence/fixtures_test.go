package persistence

import (
	"context"
	"testing"
	"time"

	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testIssueDate = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func newDraft(t *testing.T, docType billing.DocumentType, customerID, branchID uuid.UUID) *billing.Document {
	t.Helper()
	deadline := testIssueDate.AddDate(0, 0, 30)
	params := billing.NewDocumentParams{
		Type:       docType,
		CustomerID: customerID,
		BranchID:   branchID,
		Snapshot: billing.Snapshot{
			Currency: billing.CurrencySnapshot{Code: "USD", Symbol: "$", Name: "US Dollar"},
			TaxRate:  decimal.NewFromInt(10),
		},
		IssueDate: testIssueDate,
		Items: []billing.ItemInput{
			{Description: "Consulting", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("50.25")},
			{Description: "Hosting", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(20)},
		},
		Notes: "March retainer",
	}
	if docType == billing.DocumentTypeInvoice {
		params.DueDate = &deadline
	} else {
		params.ValidUntil = &deadline
	}
	doc, err := billing.NewDocument(params)
	require.NoError(t, err)
	return doc
}

// persistNumbered allocates a number and inserts doc the way the document service does
func persistNumbered(t *testing.T, db *gorm.DB, doc *billing.Document) {
	t.Helper()
	require.NoError(t, allocateAndCreate(db, doc))
}

func allocateAndCreate(db *gorm.DB, doc *billing.Document) error {
	scope := NewGormTransactionScope(db)
	return scope.Execute(context.Background(), func(repos appbilling.TransactionalRepositories) error {
		n, err := repos.Sequences().Next(context.Background(), doc.Type)
		if err != nil {
			return err
		}
		if err := doc.AssignNumber(n); err != nil {
			return err
		}
		return repos.Documents().Create(context.Background(), doc)
	})
}
