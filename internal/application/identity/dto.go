package identity

import (
	"time"

	"github.com/erp/billing/internal/domain/identity"
	"github.com/google/uuid"
)

// LoginInput contains login credentials
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// LoginResult contains the issued token and the user it belongs to
type LoginResult struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresAt   time.Time     `json:"expires_at"`
	User        *UserResponse `json:"user"`
}

// CreateUserInput contains the data for a new user
type CreateUserInput struct {
	Name       string
	Email      string
	Password   string
	Role       identity.Role
	BranchID   *uuid.UUID
	CustomerID *uuid.UUID
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	BranchID    *uuid.UUID `json:"branch_id,omitempty"`
	CustomerID  *uuid.UUID `json:"customer_id,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// ToUserResponse converts a domain user to a response
func ToUserResponse(u *identity.User) *UserResponse {
	return &UserResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role.String(),
		BranchID:    u.BranchID,
		CustomerID:  u.CustomerID,
		LastLoginAt: u.LastLoginAt,
	}
}
