package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBranchDirectory implements billing.BranchDirectory using GORM.
// Branches are owned by another service; Save exists for seeding and tests.
type GormBranchDirectory struct {
	db *gorm.DB
}

// NewGormBranchDirectory creates a new GormBranchDirectory
func NewGormBranchDirectory(db *gorm.DB) *GormBranchDirectory {
	return &GormBranchDirectory{db: db}
}

// GetBranch returns an active branch by ID
func (r *GormBranchDirectory) GetBranch(ctx context.Context, id uuid.UUID) (*billing.Branch, error) {
	var model models.BranchModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND active = ?", id, true).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Branch not found")
		}
		return nil, persistenceError("Failed to load branch", err)
	}
	return model.ToDomain(), nil
}

// DefaultBranch returns the first active branch ordered by code
func (r *GormBranchDirectory) DefaultBranch(ctx context.Context) (*billing.Branch, error) {
	var model models.BranchModel
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("code ASC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "No active branch configured")
		}
		return nil, persistenceError("Failed to load default branch", err)
	}
	return model.ToDomain(), nil
}

// List returns all branches ordered by code
func (r *GormBranchDirectory) List(ctx context.Context) ([]billing.Branch, error) {
	var rows []models.BranchModel
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&rows).Error; err != nil {
		return nil, persistenceError("Failed to list branches", err)
	}
	branches := make([]billing.Branch, 0, len(rows))
	for i := range rows {
		branches = append(branches, *rows[i].ToDomain())
	}
	return branches, nil
}

// Save inserts a branch or updates it by code
func (r *GormBranchDirectory) Save(ctx context.Context, b *billing.Branch) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.Code = strings.ToUpper(strings.TrimSpace(b.Code))

	var model models.BranchModel
	model.FromDomain(b)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "currency_code", "currency_symbol", "currency_name",
			"tax_rate", "quotation_terms", "payment_terms_days", "active", "updated_at",
		}),
	}).Create(&model).Error
	if err != nil {
		return persistenceError("Failed to save branch", err)
	}
	return nil
}

// GormCustomerDirectory implements billing.CustomerDirectory using GORM
type GormCustomerDirectory struct {
	db *gorm.DB
}

// NewGormCustomerDirectory creates a new GormCustomerDirectory
func NewGormCustomerDirectory(db *gorm.DB) *GormCustomerDirectory {
	return &GormCustomerDirectory{db: db}
}

// CustomerExists checks if a customer exists by ID
func (r *GormCustomerDirectory) CustomerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CustomerModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, persistenceError("Failed to check customer", err)
	}
	return count > 0, nil
}

// GetCustomer finds a customer by ID
func (r *GormCustomerDirectory) GetCustomer(ctx context.Context, id uuid.UUID) (*billing.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Customer not found")
		}
		return nil, persistenceError("Failed to load customer", err)
	}
	return model.ToDomain(), nil
}

// Save inserts or fully updates a customer
func (r *GormCustomerDirectory) Save(ctx context.Context, c *billing.Customer) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	var model models.CustomerModel
	model.FromDomain(c)
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return persistenceError("Failed to save customer", err)
	}
	return nil
}

// Ensure the directories implement the billing read interfaces
var (
	_ billing.BranchDirectory   = (*GormBranchDirectory)(nil)
	_ billing.CustomerDirectory = (*GormCustomerDirectory)(nil)
)
