package billing

import (
	"context"
	"time"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
)

// SequenceAllocator hands out document sequence values.
// Next must be a single atomic read-modify-write on durable storage; when called
// inside a transaction, rolling the transaction back un-consumes the value.
type SequenceAllocator interface {
	Next(ctx context.Context, t DocumentType) (int64, error)
	Current(ctx context.Context, t DocumentType) (int64, error)
	// AdvanceTo raises the counter to at least value. It never lowers it.
	AdvanceTo(ctx context.Context, t DocumentType, value int64) error
}

// DocumentFilter narrows document listings
type DocumentFilter struct {
	shared.Filter
	Type       DocumentType
	Status     DocumentStatus
	CustomerID *uuid.UUID
	BranchID   *uuid.UUID
}

// DocumentRepository persists documents.
// Status and draft updates are conditional and report false when the stored
// document no longer matches the expected state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*Document, error)
	FindByNumber(ctx context.Context, t DocumentType, number string) (*Document, error)
	FindAll(ctx context.Context, filter DocumentFilter) ([]Document, int64, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// UpdateStatus writes doc's status, payment and conversion fields if the stored status is still expected
	UpdateStatus(ctx context.Context, doc *Document, expected DocumentStatus) (bool, error)
	// UpdateDraft writes items, totals and editable fields if the stored document is a draft at expectedVersion
	UpdateDraft(ctx context.Context, doc *Document, expectedVersion int) (bool, error)
	// DeleteDraft removes a draft document with its items and attachment rows.
	// It returns the object keys of the removed attachments.
	DeleteDraft(ctx context.Context, id uuid.UUID) (objectKeys []string, deleted bool, err error)
	// MarkElapsed moves documents of type t whose deadline is before cutoff from any of from to to
	MarkElapsed(ctx context.Context, t DocumentType, from []DocumentStatus, to DocumentStatus, cutoff time.Time) (int64, error)
	// MaxSequence returns the highest numeric suffix stored for t, or 0
	MaxSequence(ctx context.Context, t DocumentType) (int64, error)

	AddAttachment(ctx context.Context, a *Attachment) error
}
