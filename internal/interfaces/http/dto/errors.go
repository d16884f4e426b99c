package dto

import (
	"net/http"

	"github.com/erp/billing/internal/domain/shared"
)

// Error codes carried in ErrorInfo.Code. Domain codes pass through unchanged.
const (
	ErrCodeValidation             = shared.CodeValidation
	ErrCodeNotFound               = shared.CodeNotFound
	ErrCodeInvalidTransition      = shared.CodeInvalidTransition
	ErrCodeNumberingFailure       = shared.CodeNumberingFailure
	ErrCodeConcurrentModification = shared.CodeConcurrentModification
	ErrCodePersistence            = shared.CodePersistence
	ErrCodeUnauthorized           = shared.CodeUnauthorized
	ErrCodeForbidden              = shared.CodeForbidden
)

// Transport-level error codes
const (
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeTokenExpired        = "TOKEN_EXPIRED"
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	ErrCodeRenderFailed        = "RENDER_FAILED"
	ErrCodePrintingDisabled    = "PRINTING_DISABLED"
	ErrCodeTimeout             = "TIMEOUT"
	ErrCodeInternal            = "INTERNAL"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeValidation:             http.StatusBadRequest,
	ErrCodeBadRequest:             http.StatusBadRequest,
	ErrCodeNotFound:               http.StatusNotFound,
	ErrCodeInvalidTransition:      http.StatusUnprocessableEntity,
	ErrCodeNumberingFailure:       http.StatusServiceUnavailable,
	ErrCodeConcurrentModification: http.StatusConflict,
	ErrCodeIdempotencyConflict:    http.StatusConflict,
	ErrCodePersistence:            http.StatusInternalServerError,
	ErrCodeInternal:               http.StatusInternalServerError,
	ErrCodeUnauthorized:           http.StatusUnauthorized,
	ErrCodeInvalidCredentials:     http.StatusUnauthorized,
	ErrCodeTokenExpired:           http.StatusUnauthorized,
	ErrCodeForbidden:              http.StatusForbidden,
	ErrCodePayloadTooLarge:        http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:            http.StatusTooManyRequests,
	ErrCodeRenderFailed:           http.StatusBadGateway,
	ErrCodePrintingDisabled:       http.StatusServiceUnavailable,
	ErrCodeTimeout:                http.StatusGatewayTimeout,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsServerError reports whether the code describes a failure the client cannot fix
func IsServerError(code string) bool {
	return GetHTTPStatus(code) >= http.StatusInternalServerError
}
