package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/erp/billing/internal/domain/identity"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/auth"
	"github.com/erp/billing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CodeInvalidCredentials is returned for unknown emails and wrong passwords alike
const CodeInvalidCredentials = "INVALID_CREDENTIALS"

// AuthService handles authentication operations
type AuthService struct {
	userRepo   identity.UserRepository
	jwtService *auth.JWTService
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(userRepo identity.UserRepository, jwtService *auth.JWTService, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		userRepo:   userRepo,
		jwtService: jwtService,
		logger:     logger,
		now:        time.Now,
	}
}

// Login authenticates a user and returns an access token
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "auth", "Login")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(input.Email))
	invalid := shared.NewDomainError(CodeInvalidCredentials, "Invalid email or password")

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("Login attempt for unknown email", zap.String("email", email))
			return nil, invalid
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	if !user.VerifyPassword(input.Password) {
		s.logger.Warn("Invalid password attempt", zap.String("user_id", user.ID.String()))
		return nil, invalid
	}

	if !user.CanLogin() {
		s.logger.Warn("Login attempt for inactive account", zap.String("user_id", user.ID.String()))
		return nil, shared.NewDomainError(shared.CodeForbidden, "Account has been deactivated")
	}

	token, err := s.jwtService.GenerateAccessToken(auth.GenerateTokenInput{
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role.String(),
		CustomerID: user.CustomerID,
		BranchID:   user.BranchID,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to generate access token", zap.Error(err))
		return nil, shared.WrapDomainError(shared.CodeUnauthorized, "Failed to generate authentication token", err)
	}

	now := s.now()
	user.RecordLogin(now)
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		// Login still succeeds
		s.logger.Error("Failed to record last login", zap.Error(err))
	}

	s.logger.Info("User logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("role", user.Role.String()))

	return &LoginResult{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresAt:   token.ExpiresAt,
		User:        ToUserResponse(user),
	}, nil
}

// CreateUser registers a new user. Emails are unique case-insensitively.
func (s *AuthService) CreateUser(ctx context.Context, input CreateUserInput) (*UserResponse, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "Email is already registered")
	}

	user, err := identity.NewUser(input.Name, email, input.Password, input.Role, input.BranchID, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User created",
		zap.String("user_id", user.ID.String()),
		zap.String("role", user.Role.String()))
	return ToUserResponse(user), nil
}
