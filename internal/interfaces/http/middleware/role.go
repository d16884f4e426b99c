package middleware

import (
	"net/http"
	"slices"

	"github.com/erp/billing/internal/domain/identity"
	"github.com/erp/billing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequireRole allows the request through only when the caller holds one of roles.
// It must run after JWTAuthMiddleware.
func RequireRole(log *zap.Logger, roles ...identity.Role) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	allowed := make([]string, 0, len(roles))
	for _, r := range roles {
		allowed = append(allowed, r.String())
	}

	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeUnauthorized, "Authentication required", c.GetString(RequestIDKey)))
			return
		}
		if !slices.Contains(allowed, claims.Role) {
			log.Debug("Role check failed",
				zap.String("user_id", claims.UserID),
				zap.String("role", claims.Role),
				zap.Strings("required_any", allowed),
			)
			c.AbortWithStatusJSON(http.StatusForbidden,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeForbidden, "Insufficient role for this operation", c.GetString(RequestIDKey)))
			return
		}
		c.Next()
	}
}

// RequireInternal allows admin and staff users
func RequireInternal(log *zap.Logger) gin.HandlerFunc {
	return RequireRole(log, identity.RoleAdmin, identity.RoleStaff)
}
