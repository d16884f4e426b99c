package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentHandler serves invoices and quotations
type DocumentHandler struct {
	BaseHandler
	documents   *appbilling.DocumentService
	idempotency *idempotencyGuard
}

// NewDocumentHandler creates a new DocumentHandler.
// store may be nil, in which case Idempotency-Key headers are ignored.
func NewDocumentHandler(documents *appbilling.DocumentService, store shared.IdempotencyStore, idempotencyTTL time.Duration) *DocumentHandler {
	return &DocumentHandler{
		documents:   documents,
		idempotency: &idempotencyGuard{store: store, ttl: idempotencyTTL},
	}
}

// List returns a page of documents. Customers only ever see their own.
func (h *DocumentHandler) List(c *gin.Context) {
	p, err := currentPrincipal(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var filter appbilling.DocumentListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	if p.IsCustomer() {
		filter.CustomerID = p.CustomerID
	}

	docs, total, err := h.documents.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	page, pageSize := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	h.SuccessWithMeta(c, docs, total, page, pageSize)
}

// Create issues a draft invoice or quotation.
// Line totals that are not whole minor units of the currency are rejected, never rounded.
func (h *DocumentHandler) Create(c *gin.Context) {
	var req appbilling.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	h.idempotency.serve(c, &h.BaseHandler, "documents.create", http.StatusCreated,
		func(ctx context.Context) (string, any, error) {
			doc, err := h.createWithRetry(ctx, req)
			if err != nil {
				return "", nil, err
			}
			return doc.ID.String(), doc, nil
		},
		func(ctx context.Context, resourceID string) (any, error) {
			id, err := uuid.Parse(resourceID)
			if err != nil {
				return nil, err
			}
			return h.documents.GetByID(ctx, id)
		},
	)
}

// createWithRetry retries once when the number allocator is briefly unavailable
func (h *DocumentHandler) createWithRetry(ctx context.Context, req appbilling.CreateDocumentRequest) (*appbilling.DocumentResponse, error) {
	doc, err := h.documents.Create(ctx, req)
	if err == nil || !errors.Is(err, shared.ErrNumberingFailure) {
		return doc, err
	}
	logger.L(ctx).Warn("Number allocation failed, retrying once", zap.Error(err))
	return h.documents.Create(ctx, req)
}

// Get returns a document by ID
func (h *DocumentHandler) Get(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.loadVisible(c, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// GetByNumber finds a document by its type and number, e.g. /number/invoice/INV-0001
func (h *DocumentHandler) GetByNumber(c *gin.Context) {
	doc, err := h.documents.GetByNumber(c.Request.Context(), c.Param("type"), c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Update edits a draft
func (h *DocumentHandler) Update(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req appbilling.UpdateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, err := h.documents.UpdateDraft(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Delete removes a draft
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.documents.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ApplyEvent moves a document through its lifecycle
func (h *DocumentHandler) ApplyEvent(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req appbilling.TransitionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, err := h.documents.Transition(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// RecordPayment marks an invoice paid
func (h *DocumentHandler) RecordPayment(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req appbilling.RecordPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, err := h.documents.RecordPayment(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Convert turns an accepted quotation into a draft invoice
func (h *DocumentHandler) Convert(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req appbilling.ConvertRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	h.idempotency.serve(c, &h.BaseHandler, "documents.convert:"+id.String(), http.StatusCreated,
		func(ctx context.Context) (string, any, error) {
			result, err := h.documents.Convert(ctx, id, req)
			if err != nil {
				return "", nil, err
			}
			return result.Invoice.ID.String(), result, nil
		},
		func(ctx context.Context, resourceID string) (any, error) {
			invoiceID, err := uuid.Parse(resourceID)
			if err != nil {
				return nil, err
			}
			quote, err := h.documents.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			invoice, err := h.documents.GetByID(ctx, invoiceID)
			if err != nil {
				return nil, err
			}
			return &appbilling.ConversionResponse{Quotation: *quote, Invoice: *invoice}, nil
		},
	)
}

// Sweep applies elapsed due and valid-until dates to every eligible document
func (h *DocumentHandler) Sweep(c *gin.Context) {
	result, err := h.documents.SweepElapsed(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// loadVisible fetches a document and hides other customers' documents as not found
func (h *DocumentHandler) loadVisible(c *gin.Context, id uuid.UUID) (*appbilling.DocumentResponse, error) {
	return visibleDocument(c, h.documents, id)
}

func visibleDocument(c *gin.Context, documents *appbilling.DocumentService, id uuid.UUID) (*appbilling.DocumentResponse, error) {
	p, err := currentPrincipal(c)
	if err != nil {
		return nil, err
	}
	return documents.GetVisible(c.Request.Context(), id, p.Owns)
}
