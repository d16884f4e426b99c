package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDocumentRepository implements billing.DocumentRepository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

// Create inserts doc with its items and attachments.
// A clash on (type, number) is reported as NUMBERING_FAILURE so callers can retry with a fresh number.
func (r *GormDocumentRepository) Create(ctx context.Context, doc *billing.Document) error {
	var model models.DocumentModel
	model.FromDomain(doc)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isDuplicateKey(err) {
			return shared.WrapDomainError(shared.CodeNumberingFailure,
				fmt.Sprintf("Document number %s is already taken", doc.Number), err)
		}
		return persistenceError("Failed to save document", err)
	}
	return nil
}

// FindByID finds a document by its ID
func (r *GormDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Document, error) {
	var model models.DocumentModel
	if err := r.withAssociations(r.db.WithContext(ctx)).First(&model, "id = ?", id).Error; err != nil {
		return nil, r.notFound(err, "Document not found")
	}
	return model.ToDomain(), nil
}

// FindByNumber finds a document by its type and display number
func (r *GormDocumentRepository) FindByNumber(ctx context.Context, t billing.DocumentType, number string) (*billing.Document, error) {
	var model models.DocumentModel
	if err := r.withAssociations(r.db.WithContext(ctx)).
		Where("type = ? AND number = ?", t, strings.ToUpper(strings.TrimSpace(number))).
		First(&model).Error; err != nil {
		return nil, r.notFound(err, fmt.Sprintf("Document %s not found", number))
	}
	return model.ToDomain(), nil
}

// FindAll finds documents matching the filter and the total count before paging
func (r *GormDocumentRepository) FindAll(ctx context.Context, filter billing.DocumentFilter) ([]billing.Document, int64, error) {
	var total int64
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.DocumentModel{}), filter).Count(&total).Error; err != nil {
		return nil, 0, persistenceError("Failed to count documents", err)
	}

	var rows []models.DocumentModel
	query := r.applyFilter(r.db.WithContext(ctx), filter)
	if err := r.withAssociations(r.applyPaging(query, filter.Filter)).Find(&rows).Error; err != nil {
		return nil, 0, persistenceError("Failed to list documents", err)
	}

	docs := make([]billing.Document, 0, len(rows))
	for i := range rows {
		docs = append(docs, *rows[i].ToDomain())
	}
	return docs, total, nil
}

// Exists checks if a document exists by ID
func (r *GormDocumentRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.DocumentModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, persistenceError("Failed to check document", err)
	}
	return count > 0, nil
}

// UpdateStatus writes the status, payment and conversion columns of doc when the
// stored status is still expected. On success doc's version is advanced to match the row.
func (r *GormDocumentRepository) UpdateStatus(ctx context.Context, doc *billing.Document, expected billing.DocumentStatus) (bool, error) {
	columns := models.StatusColumns(doc)
	columns["version"] = gorm.Expr("version + 1")

	result := r.db.WithContext(ctx).Model(&models.DocumentModel{}).
		Where("id = ? AND status = ?", doc.ID, expected).
		Updates(columns)
	if result.Error != nil {
		return false, persistenceError("Failed to update document status", result.Error)
	}
	if result.RowsAffected != 1 {
		return false, nil
	}
	doc.IncrementVersion()
	return true, nil
}

// UpdateDraft rewrites the editable columns and items of a draft at expectedVersion
func (r *GormDocumentRepository) UpdateDraft(ctx context.Context, doc *billing.Document, expectedVersion int) (bool, error) {
	updated := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		columns := models.DraftColumns(doc)
		columns["version"] = gorm.Expr("version + 1")

		result := tx.Model(&models.DocumentModel{}).
			Where("id = ? AND status = ? AND version = ?", doc.ID, billing.StatusDraft, expectedVersion).
			Updates(columns)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return nil
		}

		if err := tx.Where("document_id = ?", doc.ID).Delete(&models.DocumentItemModel{}).Error; err != nil {
			return err
		}
		if items := models.ItemModelsFromDomain(doc.ID, doc.Items); len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		updated = true
		return nil
	})
	if err != nil {
		return false, persistenceError("Failed to update draft", err)
	}
	if updated {
		doc.IncrementVersion()
	}
	return updated, nil
}

// DeleteDraft removes a draft with its items and attachment records
func (r *GormDocumentRepository) DeleteDraft(ctx context.Context, id uuid.UUID) ([]string, bool, error) {
	var keys []string
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND status = ?", id, billing.StatusDraft).Delete(&models.DocumentModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		if err := tx.Where("document_id = ?", id).Delete(&models.DocumentItemModel{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.AttachmentModel{}).Where("document_id = ?", id).Pluck("object_key", &keys).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", id).Delete(&models.AttachmentModel{}).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return nil, false, persistenceError("Failed to delete draft", err)
	}
	return keys, deleted, nil
}

// MarkElapsed moves every document of type t in one of from whose deadline
// (due date for invoices, validity for quotations) is before cutoff's date
func (r *GormDocumentRepository) MarkElapsed(ctx context.Context, t billing.DocumentType, from []billing.DocumentStatus, to billing.DocumentStatus, cutoff time.Time) (int64, error) {
	if len(from) == 0 {
		return 0, nil
	}
	deadline := "due_date"
	if t == billing.DocumentTypeQuotation {
		deadline = "valid_until"
	}

	result := r.db.WithContext(ctx).Model(&models.DocumentModel{}).
		Where("type = ? AND status IN ?", t, from).
		Where(deadline+" IS NOT NULL AND "+deadline+" < ?", billing.TruncateDate(cutoff)).
		Updates(map[string]any{
			"status":     to,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, persistenceError("Failed to sweep elapsed documents", result.Error)
	}
	return result.RowsAffected, nil
}

// MaxSequence returns the highest stored numeric suffix for t
func (r *GormDocumentRepository) MaxSequence(ctx context.Context, t billing.DocumentType) (int64, error) {
	var highest int64
	if err := r.db.WithContext(ctx).Model(&models.DocumentModel{}).
		Where("type = ?", t).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&highest).Error; err != nil {
		return 0, persistenceError("Failed to read highest document number", err)
	}
	return highest, nil
}

// AddAttachment records an uploaded file against its document
func (r *GormDocumentRepository) AddAttachment(ctx context.Context, a *billing.Attachment) error {
	var model models.AttachmentModel
	model.FromDomain(a)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return persistenceError("Failed to save attachment", err)
	}
	return nil
}

func (r *GormDocumentRepository) withAssociations(query *gorm.DB) *gorm.DB {
	return query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("uploaded_at ASC") })
}

func (r *GormDocumentRepository) applyFilter(query *gorm.DB, filter billing.DocumentFilter) *gorm.DB {
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.BranchID != nil {
		query = query.Where("branch_id = ?", *filter.BranchID)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("(LOWER(number) LIKE ? OR LOWER(notes) LIKE ?)", pattern, pattern)
	}
	return query
}

func (r *GormDocumentRepository) applyPaging(query *gorm.DB, filter shared.Filter) *gorm.DB {
	sortField := ValidateSortField(filter.OrderBy, DocumentSortFields, "created_at")
	if sortField == "number" {
		sortField = "sequence"
	}
	query = query.Order(sortField + " " + ValidateSortOrder(filter.OrderDir)).Order("id ASC")

	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return query
}

func (r *GormDocumentRepository) notFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.NewDomainError(shared.CodeNotFound, message)
	}
	return persistenceError("Failed to load document", err)
}

// Ensure GormDocumentRepository implements billing.DocumentRepository
var _ billing.DocumentRepository = (*GormDocumentRepository)(nil)
