package models

import (
	"github.com/erp/billing/internal/domain/billing"
	"github.com/shopspring/decimal"
)

// BranchModel is the persistence model for branches
type BranchModel struct {
	BaseModel
	Code             string          `gorm:"type:varchar(20);not null;uniqueIndex"`
	Name             string          `gorm:"type:varchar(200);not null"`
	CurrencyCode     string          `gorm:"type:varchar(3);not null"`
	CurrencySymbol   string          `gorm:"type:varchar(10)"`
	CurrencyName     string          `gorm:"type:varchar(100)"`
	TaxRate          decimal.Decimal `gorm:"type:decimal(7,4);not null"`
	QuotationTerms   string          `gorm:"type:text"`
	PaymentTermsDays int             `gorm:"not null;default:0"`
	Active           bool            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BranchModel) TableName() string {
	return "branches"
}

// ToDomain converts the persistence model to a domain Branch
func (m *BranchModel) ToDomain() *billing.Branch {
	return &billing.Branch{
		ID:   m.ID,
		Code: m.Code,
		Name: m.Name,
		Currency: billing.CurrencySnapshot{
			Code:   m.CurrencyCode,
			Symbol: m.CurrencySymbol,
			Name:   m.CurrencyName,
		},
		TaxRate:          m.TaxRate,
		QuotationTerms:   m.QuotationTerms,
		PaymentTermsDays: m.PaymentTermsDays,
		Active:           m.Active,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Branch
func (m *BranchModel) FromDomain(b *billing.Branch) {
	m.ID = b.ID
	m.CreatedAt = b.CreatedAt
	m.UpdatedAt = b.UpdatedAt
	m.Code = b.Code
	m.Name = b.Name
	m.CurrencyCode = b.Currency.Code
	m.CurrencySymbol = b.Currency.Symbol
	m.CurrencyName = b.Currency.Name
	m.TaxRate = b.TaxRate
	m.QuotationTerms = b.QuotationTerms
	m.PaymentTermsDays = b.PaymentTermsDays
	m.Active = b.Active
}

// CustomerModel is the persistence model for customers
type CustomerModel struct {
	BaseModel
	Name    string `gorm:"type:varchar(200);not null"`
	Email   string `gorm:"type:varchar(200);index"`
	Phone   string `gorm:"type:varchar(50)"`
	Address string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer
func (m *CustomerModel) ToDomain() *billing.Customer {
	return &billing.Customer{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		Address:   m.Address,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Customer
func (m *CustomerModel) FromDomain(c *billing.Customer) {
	m.ID = c.ID
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
	m.Name = c.Name
	m.Email = c.Email
	m.Phone = c.Phone
	m.Address = c.Address
}
