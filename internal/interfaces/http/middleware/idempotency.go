package middleware

import (
	"net/http"

	"github.com/erp/billing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader lets clients retry create and convert safely
const IdempotencyKeyHeader = "Idempotency-Key"

const (
	idempotencyKeyCtx    = "idempotency_key"
	maxIdempotencyKeyLen = 255
)

// IdempotencyKey validates the Idempotency-Key header and exposes it to handlers.
// Requests without the header pass through untouched.
func IdempotencyKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen || !printableASCII(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeBadRequest,
					"Idempotency-Key must be printable ASCII of at most 255 characters", c.GetString(RequestIDKey)))
			return
		}
		c.Set(idempotencyKeyCtx, key)
		c.Next()
	}
}

// GetIdempotencyKey returns the validated key, or "" when the client sent none
func GetIdempotencyKey(c *gin.Context) string {
	return c.GetString(idempotencyKeyCtx)
}

func printableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
