package handler

import (
	"errors"
	"net/http"

	"github.com/erp/billing/internal/domain/identity"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/logger"
	"github.com/erp/billing/internal/interfaces/http/dto"
	"github.com/erp/billing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// principal is the authenticated caller
type principal struct {
	UserID     uuid.UUID
	Role       identity.Role
	CustomerID *uuid.UUID
}

// IsCustomer reports whether the caller is a customer portal user
func (p principal) IsCustomer() bool {
	return p.Role == identity.RoleCustomer
}

// Owns reports whether the caller may see documents of customerID
func (p principal) Owns(customerID uuid.UUID) bool {
	if !p.IsCustomer() {
		return true
	}
	return p.CustomerID != nil && *p.CustomerID == customerID
}

func getRequestID(c *gin.Context) string {
	return c.GetString(middleware.RequestIDKey)
}

// currentPrincipal reads the caller from JWT claims
func currentPrincipal(c *gin.Context) (principal, error) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		return principal{}, shared.ErrUnauthorized
	}
	userID, err := claims.GetUserUUID()
	if err != nil {
		return principal{}, shared.ErrUnauthorized
	}
	p := principal{UserID: userID, Role: identity.Role(claims.Role)}
	if p.IsCustomer() {
		p.CustomerID = middleware.GetJWTCustomerID(c)
		if p.CustomerID == nil {
			return principal{}, shared.NewDomainError(shared.CodeForbidden, "Customer account is not linked to a customer")
		}
	}
	return p, nil
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the status derived from code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeNotFound, message)
}

// BindJSON binds the body and writes a field-level 400 on failure
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// BindQuery binds query parameters and writes a field-level 400 on failure
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// ParseUUIDParam reads a path parameter as a UUID and writes a 400 when it is not one
func (h *BaseHandler) ParseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// HandleError converts errors to HTTP responses.
// Server-side failures are logged with their cause and reported with a generic message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	code := dto.ErrCodeInternal
	message := "An unexpected error occurred"

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code = domainErr.Code
		message = domainErr.Message
	}

	if dto.IsServerError(code) {
		logger.L(c.Request.Context()).Error("Request failed",
			zap.String("code", code),
			zap.Error(err),
		)
		if code == dto.ErrCodePersistence || code == dto.ErrCodeInternal {
			message = "An unexpected error occurred"
		}
	}

	h.Error(c, code, message)
}
