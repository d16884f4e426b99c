package handler

import (
	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// PortalHandler serves customer self-service endpoints
type PortalHandler struct {
	BaseHandler
	documents *appbilling.DocumentService
}

// NewPortalHandler creates a new PortalHandler
func NewPortalHandler(documents *appbilling.DocumentService) *PortalHandler {
	return &PortalHandler{documents: documents}
}

// RequestQuotation opens a zero-priced draft quotation for the caller's customer
func (h *PortalHandler) RequestQuotation(c *gin.Context) {
	p, err := currentPrincipal(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var req appbilling.QuotationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if p.CustomerID == nil {
		h.Error(c, dto.ErrCodeForbidden, "Only customer accounts can request quotations")
		return
	}
	doc, err := h.documents.RequestQuotation(c.Request.Context(), *p.CustomerID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}
