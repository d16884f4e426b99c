package models

import (
	"time"

	"github.com/erp/billing/internal/domain/identity"
	"github.com/google/uuid"
)

// UserModel is the persistence model for the User domain entity
type UserModel struct {
	BaseModel
	Name         string        `gorm:"type:varchar(200);not null"`
	Email        string        `gorm:"type:varchar(200);not null;uniqueIndex"`
	PasswordHash string        `gorm:"type:varchar(255);not null"`
	Role         identity.Role `gorm:"type:varchar(20);not null"`
	BranchID     *uuid.UUID    `gorm:"type:uuid;index"`
	CustomerID   *uuid.UUID    `gorm:"type:uuid;index"`
	Active       bool          `gorm:"not null"`
	LastLoginAt  *time.Time
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts the persistence model to a domain User
func (m *UserModel) ToDomain() *identity.User {
	return &identity.User{
		BaseEntity:   m.BaseModel.entity(),
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         m.Role,
		BranchID:     m.BranchID,
		CustomerID:   m.CustomerID,
		Active:       m.Active,
		LastLoginAt:  m.LastLoginAt,
	}
}

// FromDomain populates the persistence model from a domain User
func (m *UserModel) FromDomain(u *identity.User) {
	m.BaseModel = baseModelOf(u.BaseEntity)
	m.Name = u.Name
	m.Email = u.Email
	m.PasswordHash = u.PasswordHash
	m.Role = u.Role
	m.BranchID = u.BranchID
	m.CustomerID = u.CustomerID
	m.Active = u.Active
	m.LastLoginAt = u.LastLoginAt
}

// AllModels lists every model in migration order
func AllModels() []any {
	return []any{
		&BranchModel{},
		&CustomerModel{},
		&UserModel{},
		&DocumentSequenceModel{},
		&DocumentModel{},
		&DocumentItemModel{},
		&AttachmentModel{},
	}
}
