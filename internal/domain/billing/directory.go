package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Branch is a business unit issuing documents in its own currency.
// Branches are maintained outside this service; documents only read them.
type Branch struct {
	ID               uuid.UUID
	Code             string
	Name             string
	Currency         CurrencySnapshot
	TaxRate          decimal.Decimal
	QuotationTerms   string
	PaymentTermsDays int
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Customer is the party a document is addressed to
type Customer struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BranchDirectory reads branch settings
type BranchDirectory interface {
	// GetBranch returns an active branch; missing or inactive branches yield NOT_FOUND
	GetBranch(ctx context.Context, id uuid.UUID) (*Branch, error)
	// DefaultBranch returns the first active branch ordered by code
	DefaultBranch(ctx context.Context) (*Branch, error)
}

// CustomerDirectory reads customers
type CustomerDirectory interface {
	CustomerExists(ctx context.Context, id uuid.UUID) (bool, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error)
}
