package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

const (
	nextSequenceSQL = `INSERT INTO document_sequences (document_type, last_value, updated_at) VALUES (?, 1, ?) ` +
		`ON CONFLICT (document_type) DO UPDATE SET last_value = document_sequences.last_value + 1, updated_at = excluded.updated_at ` +
		`RETURNING last_value`

	advanceSequenceSQL = `INSERT INTO document_sequences (document_type, last_value, updated_at) VALUES (?, ?, ?) ` +
		`ON CONFLICT (document_type) DO UPDATE SET last_value = CASE WHEN excluded.last_value > document_sequences.last_value ` +
		`THEN excluded.last_value ELSE document_sequences.last_value END, updated_at = excluded.updated_at`
)

// GormSequenceAllocator implements billing.SequenceAllocator on the document_sequences table.
// Next is one upsert statement, so the row lock taken by the database serializes
// concurrent callers and no two of them read the same value.
type GormSequenceAllocator struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormSequenceAllocator creates a new GormSequenceAllocator
func NewGormSequenceAllocator(db *gorm.DB) *GormSequenceAllocator {
	return &GormSequenceAllocator{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Next increments and returns the counter for t, creating it at 1
func (a *GormSequenceAllocator) Next(ctx context.Context, t billing.DocumentType) (int64, error) {
	if !t.IsValid() {
		return 0, fmt.Errorf("unknown document type %q", t)
	}
	var value int64
	result := a.db.WithContext(ctx).Raw(nextSequenceSQL, t, a.now()).Scan(&value)
	if result.Error != nil {
		return 0, fmt.Errorf("allocate %s sequence: %w", t, result.Error)
	}
	if value < 1 {
		return 0, fmt.Errorf("allocate %s sequence: no value returned", t)
	}
	return value, nil
}

// Current returns the last issued value for t, or 0 if none was issued
func (a *GormSequenceAllocator) Current(ctx context.Context, t billing.DocumentType) (int64, error) {
	var row models.DocumentSequenceModel
	err := a.db.WithContext(ctx).Where("document_type = ?", t).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, persistenceError("Failed to read document sequence", err)
	}
	return row.LastValue, nil
}

// AdvanceTo raises the counter for t to value when it is lower
func (a *GormSequenceAllocator) AdvanceTo(ctx context.Context, t billing.DocumentType, value int64) error {
	if value < 0 {
		return fmt.Errorf("sequence value must not be negative: %d", value)
	}
	if err := a.db.WithContext(ctx).Exec(advanceSequenceSQL, t, value, a.now()).Error; err != nil {
		return persistenceError("Failed to advance document sequence", err)
	}
	return nil
}

// Ensure GormSequenceAllocator implements billing.SequenceAllocator
var _ billing.SequenceAllocator = (*GormSequenceAllocator)(nil)
