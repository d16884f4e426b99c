package identity

import (
	"regexp"
	"strings"
	"time"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Role is the access level of a user
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

// IsValid checks if the role is known
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleCustomer:
		return true
	}
	return false
}

// String returns the string representation of Role
func (r Role) String() string {
	return string(r)
}

// IsInternal reports whether the role belongs to the billing team rather than a customer
func (r Role) IsInternal() bool {
	return r == RoleAdmin || r == RoleStaff
}

// Password cost for bcrypt
const bcryptCost = 12

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// User is a person who can sign in.
// Staff users belong to a branch; customer users act for one customer.
type User struct {
	shared.BaseEntity
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	BranchID     *uuid.UUID
	CustomerID   *uuid.UUID
	Active       bool
	LastLoginAt  *time.Time
}

// NewUser creates an active user with a hashed password
func NewUser(name, email, password string, role Role, branchID, customerID *uuid.UUID) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "Name is required")
	}
	if len(email) > 200 || !emailRegex.MatchString(email) {
		return nil, shared.NewDomainError(shared.CodeValidation, "Invalid email format")
	}
	if !role.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Role must be admin, staff or customer")
	}
	if role == RoleStaff && (branchID == nil || *branchID == uuid.Nil) {
		return nil, shared.NewDomainError(shared.CodeValidation, "Staff users must belong to a branch")
	}
	if role == RoleCustomer && (customerID == nil || *customerID == uuid.Nil) {
		return nil, shared.NewDomainError(shared.CodeValidation, "Customer users must be linked to a customer")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeValidation, "Failed to hash password", err)
	}

	u := &User{
		BaseEntity:   shared.NewBaseEntity(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	if role != RoleCustomer {
		u.BranchID = branchID
	}
	if role == RoleCustomer {
		u.CustomerID = customerID
	}
	return u, nil
}

// VerifyPassword checks the password against the stored hash
func (u *User) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// CanLogin reports whether the user may sign in
func (u *User) CanLogin() bool {
	return u.Active
}

// RecordLogin stamps a successful sign-in
func (u *User) RecordLogin(at time.Time) {
	u.LastLoginAt = &at
	u.Touch(at)
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return shared.NewDomainError(shared.CodeValidation, "Password must be at least 8 characters")
	}
	if len(password) > 72 {
		return shared.NewDomainError(shared.CodeValidation, "Password cannot exceed 72 characters")
	}
	return nil
}
