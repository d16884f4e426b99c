package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormDocumentRepository_UpdateStatus_SQL(t *testing.T) {
	doc := newDraft(t, billing.DocumentTypeInvoice, uuid.New(), uuid.New())
	doc.Number = "INV-0007"
	doc.Status = billing.StatusSent

	t.Run("guards on the expected status and bumps the version", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "documents" SET .*"status"=\$\d+.*"version"=version \+ 1.* WHERE id = \$\d+ AND status = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		before := doc.Version
		ok, err := NewGormDocumentRepository(db.DB).UpdateStatus(context.Background(), doc, billing.StatusDraft)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, before+1, doc.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no matching row reports a lost race", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "documents" SET`).WillReturnResult(sqlmock.NewResult(0, 0))

		before := doc.Version
		ok, err := NewGormDocumentRepository(db.DB).UpdateStatus(context.Background(), doc, billing.StatusDraft)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, before, doc.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database errors become persistence errors", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "documents" SET`).WillReturnError(errors.New("connection refused"))

		_, err := NewGormDocumentRepository(db.DB).UpdateStatus(context.Background(), doc, billing.StatusDraft)
		assert.ErrorIs(t, err, shared.ErrPersistence)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormDocumentRepository_FindByID_NotFound_SQL(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "documents" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewGormDocumentRepository(db.DB).FindByID(context.Background(), id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDocumentRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDatabase(t).DB
	repo := NewGormDocumentRepository(db)

	doc := newDraft(t, billing.DocumentTypeInvoice, uuid.New(), uuid.New())
	persistNumbered(t, db, doc)
	assert.Equal(t, "INV-0001", doc.Number)

	found, err := repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-0001", found.Number)
	assert.Equal(t, billing.StatusDraft, found.Status)
	assert.Equal(t, billing.CurrencySnapshot{Code: "USD", Symbol: "$", Name: "US Dollar"}, found.Currency)
	assert.True(t, found.Subtotal.Equal(decimal.RequireFromString("120.50")), found.Subtotal.String())
	assert.True(t, found.Total.Equal(doc.Total), found.Total.String())
	require.Len(t, found.Items, 2)
	assert.Equal(t, "Consulting", found.Items[0].Description)
	assert.Equal(t, "Hosting", found.Items[1].Description)
	require.NotNil(t, found.DueDate)
	assert.True(t, found.DueDate.Equal(*doc.DueDate))
	assert.Nil(t, found.ValidUntil)
	assert.Nil(t, found.Payment)

	byNumber, err := repo.FindByNumber(ctx, billing.DocumentTypeInvoice, "inv-0001")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byNumber.ID)

	_, err = repo.FindByNumber(ctx, billing.DocumentTypeQuotation, "INV-0001")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	exists, err := repo.Exists(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGormDocumentRepository_Create_DuplicateNumber(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDatabase(t).DB
	repo := NewGormDocumentRepository(db)

	first := newDraft(t, billing.DocumentTypeQuotation, uuid.New(), uuid.New())
	require.NoError(t, first.AssignNumber(5))
	require.NoError(t, repo.Create(ctx, first))

	second := newDraft(t, billing.DocumentTypeQuotation, uuid.New(), uuid.New())
	require.NoError(t, second.AssignNumber(5))
	err := repo.Create(ctx, second)
	assert.ErrorIs(t, err, shared.ErrNumberingFailure)

	// The same suffix is free for the other type
	invoice := newDraft(t, billing.DocumentTypeInvoice, uuid.New(), uuid.New())
	require.NoError(t, invoice.AssignNumber(5))
	assert.NoError(t, repo.Create(ctx, invoice))
}

func TestGormDocumentRepository_FindAll(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDatabase(t).DB
	repo := NewGormDocumentRepository(db)

	customerA, customerB := uuid.New(), uuid.New()
	branch := uuid.New()
	for i := 0; i < 3; i++ {
		persistNumbered(t, db, newDraft(t, billing.DocumentTypeInvoice, customerA, branch))
	}
	quote := newDraft(t, billing.DocumentTypeQuotation, customerB, branch)
	quote.Notes = "Website redesign"
	persistNumbered(t, db, quote)

	t.Run("filters by type", func(t *testing.T) {
		docs, total, err := repo.FindAll(ctx, billing.DocumentFilter{Type: billing.DocumentTypeInvoice})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, docs, 3)
	})

	t.Run("filters by customer", func(t *testing.T) {
		docs, total, err := repo.FindAll(ctx, billing.DocumentFilter{CustomerID: &customerB})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, docs, 1)
		assert.Equal(t, "Q-0001", docs[0].Number)
	})

	t.Run("searches number and notes case-insensitively", func(t *testing.T) {
		docs, _, err := repo.FindAll(ctx, billing.DocumentFilter{Filter: shared.Filter{Search: "REDESIGN"}})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, quote.ID, docs[0].ID)

		docs, _, err = repo.FindAll(ctx, billing.DocumentFilter{Filter: shared.Filter{Search: "inv-0002"}})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "INV-0002", docs[0].Number)
	})

	t.Run("pages in number order with the full count", func(t *testing.T) {
		docs, total, err := repo.FindAll(ctx, billing.DocumentFilter{
			Type:   billing.DocumentTypeInvoice,
			Filter: shared.Filter{Page: 2, PageSize: 2, OrderBy: "number", OrderDir: "asc"},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, docs, 1)
		assert.Equal(t, "INV-0003", docs[0].Number)
		assert.Len(t, docs[0].Items, 2)
	})

	t.Run("filters by status", func(t *testing.T) {
		_, total, err := repo.FindAll(ctx, billing.DocumentFilter{Status: billing.StatusSent})
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}

func TestGormDocumentRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDatabase(t).DB
	repo := NewGormDocumentRepository(db)

	doc := newDraft(t, billing.DocumentTypeInvoice, uuid.New(), uuid.New())
	persistNumbered(t, db, doc)

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, doc.Apply(billing.EventSend, now))
	ok, err := repo.UpdateStatus(ctx, doc, billing.StatusDraft)
	require.NoError(t, err)
	require.True(t, ok)

	// A second writer still believing the document is a draft loses
	stale := *doc
	stale.Status = billing.StatusCancelled
	ok, err = repo.UpdateStatus(ctx, &stale, billing.StatusDraft)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, doc.RecordPayment(billing.PaymentDetails{
		Method:        "card",
		TransactionID: "txn_123",
		PaidAt:        now,
		Amount:        doc.Total,
	}, now))
	ok, err = repo.UpdateStatus(ctx, doc, billing.StatusSent)
	require.NoError(t, err)
	require.True(t, ok)

	found, err := repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, found.Status)
	assert.Equal(t, doc.Version, found.Version)
	require.NotNil(t, found.Payment)
	assert.Equal(t, "card", found.Payment.Method)
	assert.Equal(t, "txn_123", found.Payment.TransactionID)
	assert.True(t, found.Payment.Amount.Equal(doc.Total))
}

func TestGormDocumentRepository_UpdateDraft(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDatabase(t).DB
	repo := NewGormDocumentRepository(db)

	doc := newDraft(t, billing.DocumentTypeQuotation, uuid.New(), uuid.New())
	persistNumbered(t, db, doc)
	version := doc.Version

	require.NoError(t, doc.ApplyDraftChanges(billing.DraftChanges{Items: []billing.ItemInput{
		{Description: "Audit", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(100)},
	}}))
	doc.Notes = "Revised"

	ok, err := repo.UpdateDraft(ctx, doc, version)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, version+1, doc.Version)

	found, err := repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Audit", found.Items[0].Description)
	assert.Equal(t, "Revised", found.Notes)
	assert.True(t, found.Subtotal.Equal(decimal.NewFromInt(300)))

	t.Run("stale version is rejected", func(t *testing.T) {
		ok, err := repo.UpdateDraft(ctx, doc, version)
		require.NoError(t, err)
		assert.False(t, ok)

		found, err := repo.FindByID(ctx, doc.ID)
		require.NoError(t, err)
		assert.Len(t, found.Items, 1)
	})

	t.Run("non-draft is rejected", func(t *testing.T) {
		require.NoError(t, doc.Apply(billing.EventSend, testIssueDate))
		ok, err := repo.UpdateStatus(ctx, doc, billing.StatusDraft)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = repo.UpdateDraft(ctx, doc, doc.Version)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestGormDocumentRepository_DeleteDraft(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDatabase(t).DB
	repo := NewGormDocumentRepository(db)

	draft := newDraft(t, billing.DocumentTypeInvoice, uuid.New(), uuid.New())
	persistNumbered(t, db, draft)
	require.NoError(t, repo.AddAttachment(ctx, &billing.Attachment{
		ID:          uuid.New(),
		DocumentID:  draft.ID,
		Name:        "po.pdf",
		ObjectKey:   "documents/po.pdf",
		ContentType: "application/pdf",
		Size:        1024,
		Kind:        billing.AttachmentKindStaff,
		UploadedBy:  uuid.New(),
		UploadedAt:  testIssueDate,
	}))

	sent := newDraft(t, billing.DocumentTypeInvoice, uuid.New(), uuid.New())
	persistNumbered(t, db, sent)
	require.NoError(t, sent.Apply(billing.EventSend, testIssueDate))
	ok, err := repo.UpdateStatus(ctx, sent, billing.StatusDraft)
	require.NoError(t, err)
	require.True(t, ok)

	keys, deleted, err := repo.DeleteDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, []string{"documents/po.pdf"}, keys)

	var items, attachments int64
	require.NoError(t, db.Model(&models.DocumentItemModel{}).Where("document_id = ?", draft.ID).Count(&items).Error)
	require.NoError(t, db.Model(&models.AttachmentModel{}).Where("document_id = ?", draft.ID).Count(&attachments).Error)
	assert.Zero(t, items)
	assert.Zero(t, attachments)

	keys, deleted, err = repo.DeleteDraft(ctx, sent.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Empty(t, keys)

	_, deleted, err = repo.DeleteDraft(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestGormDocumentRepository_MarkElapsed(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDatabase(t).DB
	repo := NewGormDocumentRepository(db)

	send := func(doc *billing.Document) {
		persistNumbered(t, db, doc)
		require.NoError(t, doc.Apply(billing.EventSend, testIssueDate))
		ok, err := repo.UpdateStatus(ctx, doc, billing.StatusDraft)
		require.NoError(t, err)
		require.True(t, ok)
	}

	overdue := newDraft(t, billing.DocumentTypeInvoice, uuid.New(), uuid.New())
	send(overdue)
	draft := newDraft(t, billing.DocumentTypeInvoice, uuid.New(), uuid.New())
	persistNumbered(t, db, draft)
	quote := newDraft(t, billing.DocumentTypeQuotation, uuid.New(), uuid.New())
	send(quote)

	due := *overdue.DueDate

	t.Run("nothing moves on the due date itself", func(t *testing.T) {
		n, err := repo.MarkElapsed(ctx, billing.DocumentTypeInvoice,
			[]billing.DocumentStatus{billing.StatusSent}, billing.StatusOverdue, due.Add(23*time.Hour))
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("sent invoices past due become overdue", func(t *testing.T) {
		n, err := repo.MarkElapsed(ctx, billing.DocumentTypeInvoice,
			[]billing.DocumentStatus{billing.StatusSent}, billing.StatusOverdue, due.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		found, err := repo.FindByID(ctx, overdue.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusOverdue, found.Status)
		assert.Equal(t, overdue.Version+1, found.Version)

		untouched, err := repo.FindByID(ctx, draft.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusDraft, untouched.Status)
	})

	t.Run("quotations use their validity date", func(t *testing.T) {
		n, err := repo.MarkElapsed(ctx, billing.DocumentTypeQuotation,
			[]billing.DocumentStatus{billing.StatusSent}, billing.StatusExpired, due.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("empty source set is a no-op", func(t *testing.T) {
		n, err := repo.MarkElapsed(ctx, billing.DocumentTypeInvoice, nil, billing.StatusOverdue, due.AddDate(1, 0, 0))
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestGormDocumentRepository_MaxSequence(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDatabase(t).DB
	repo := NewGormDocumentRepository(db)

	highest, err := repo.MaxSequence(ctx, billing.DocumentTypeInvoice)
	require.NoError(t, err)
	assert.Zero(t, highest)

	doc := newDraft(t, billing.DocumentTypeInvoice, uuid.New(), uuid.New())
	require.NoError(t, doc.AssignNumber(10000))
	require.NoError(t, repo.Create(ctx, doc))
	persistNumbered(t, db, newDraft(t, billing.DocumentTypeInvoice, uuid.New(), uuid.New()))

	highest, err = repo.MaxSequence(ctx, billing.DocumentTypeInvoice)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), highest)
}

func TestGormTransactionScope_ConversionIsAtomic(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDatabase(t).DB
	repo := NewGormDocumentRepository(db)
	scope := NewGormTransactionScope(db)

	quote := newDraft(t, billing.DocumentTypeQuotation, uuid.New(), uuid.New())
	persistNumbered(t, db, quote)
	for _, ev := range []billing.Event{billing.EventSend, billing.EventAccept} {
		expected := quote.Status
		require.NoError(t, quote.Apply(ev, testIssueDate))
		ok, err := repo.UpdateStatus(ctx, quote, expected)
		require.NoError(t, err)
		require.True(t, ok)
	}

	convert := func(fail error) error {
		invoice, err := quote.ConvertToInvoice(testIssueDate, testIssueDate.AddDate(0, 0, 14))
		require.NoError(t, err)
		working := *quote
		return scope.Execute(ctx, func(repos appbilling.TransactionalRepositories) error {
			n, err := repos.Sequences().Next(ctx, invoice.Type)
			if err != nil {
				return err
			}
			if err := invoice.AssignNumber(n); err != nil {
				return err
			}
			if err := repos.Documents().Create(ctx, invoice); err != nil {
				return err
			}
			if fail != nil {
				return fail
			}
			if err := working.MarkConverted(invoice.ID, testIssueDate); err != nil {
				return err
			}
			ok, err := repos.Documents().UpdateStatus(ctx, &working, billing.StatusAccepted)
			if err != nil {
				return err
			}
			if !ok {
				return shared.ErrConcurrentModification
			}
			return nil
		})
	}

	t.Run("failure leaves neither invoice nor consumed number", func(t *testing.T) {
		boom := errors.New("boom")
		assert.ErrorIs(t, convert(boom), boom)

		_, total, err := repo.FindAll(ctx, billing.DocumentFilter{Type: billing.DocumentTypeInvoice})
		require.NoError(t, err)
		assert.Zero(t, total)

		current, err := NewGormSequenceAllocator(db).Current(ctx, billing.DocumentTypeInvoice)
		require.NoError(t, err)
		assert.Zero(t, current)

		stored, err := repo.FindByID(ctx, quote.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusAccepted, stored.Status)
	})

	t.Run("success commits both sides", func(t *testing.T) {
		require.NoError(t, convert(nil))

		stored, err := repo.FindByID(ctx, quote.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusConverted, stored.Status)
		require.NotNil(t, stored.ConvertedToID)

		invoice, err := repo.FindByID(ctx, *stored.ConvertedToID)
		require.NoError(t, err)
		assert.Equal(t, "INV-0001", invoice.Number)
		assert.Equal(t, stored.Currency, invoice.Currency)
		assert.Len(t, invoice.Items, len(stored.Items))
	})

	t.Run("a second conversion loses the status guard", func(t *testing.T) {
		assert.ErrorIs(t, convert(nil), shared.ErrConcurrentModification)

		_, total, err := repo.FindAll(ctx, billing.DocumentFilter{Type: billing.DocumentTypeInvoice})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})
}
