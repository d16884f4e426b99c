package handler

import (
	"mime"
	"net/http"

	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/gin-gonic/gin"
)

// DocumentFileHandler serves printed PDFs and attachments
type DocumentFileHandler struct {
	BaseHandler
	documents   *appbilling.DocumentService
	renderer    *appbilling.RenderService
	attachments *appbilling.AttachmentService
}

// NewDocumentFileHandler creates a new DocumentFileHandler
func NewDocumentFileHandler(documents *appbilling.DocumentService, renderer *appbilling.RenderService, attachments *appbilling.AttachmentService) *DocumentFileHandler {
	return &DocumentFileHandler{
		documents:   documents,
		renderer:    renderer,
		attachments: attachments,
	}
}

// PDF renders the document as a PDF download
func (h *DocumentFileHandler) PDF(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	if _, err := visibleDocument(c, h.documents, id); err != nil {
		h.HandleError(c, err)
		return
	}

	file, err := h.renderer.Render(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.FileName}))
	c.Data(http.StatusOK, "application/pdf", file.Content)
}

// UploadAttachment stores the multipart "file" field against the document.
// Customers may attach files to their own quotations only.
func (h *DocumentFileHandler) UploadAttachment(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	p, err := currentPrincipal(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	doc, err := visibleDocument(c, h.documents, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	kind := billing.AttachmentKindStaff
	if p.IsCustomer() {
		if doc.Type != billing.DocumentTypeQuotation.String() {
			h.HandleError(c, shared.NewDomainError(shared.CodeForbidden, "Customers can only attach files to quotations"))
			return
		}
		kind = billing.AttachmentKindCustomer
	}

	header, err := c.FormFile("file")
	if err != nil {
		h.BadRequest(c, "Multipart field \"file\" is required")
		return
	}
	f, err := header.Open()
	if err != nil {
		h.BadRequest(c, "Uploaded file could not be read")
		return
	}
	defer f.Close()

	attachment, err := h.attachments.Upload(c.Request.Context(), id, appbilling.UploadAttachmentInput{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        f,
		UploadedBy:  p.UserID,
		Kind:        kind,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, attachment)
}

// DownloadAttachment redirects to a presigned URL.
// With ?redirect=false the link is returned as JSON instead.
func (h *DocumentFileHandler) DownloadAttachment(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	attachmentID, ok := h.ParseUUIDParam(c, "attachmentId")
	if !ok {
		return
	}
	if _, err := visibleDocument(c, h.documents, id); err != nil {
		h.HandleError(c, err)
		return
	}

	link, err := h.attachments.DownloadURL(c.Request.Context(), id, attachmentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if c.Query("redirect") == "false" {
		h.Success(c, link)
		return
	}
	c.Redirect(http.StatusFound, link.URL)
}
