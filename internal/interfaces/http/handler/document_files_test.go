package handler

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/interfaces/http/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func uploadRequest(t *testing.T, path, token, field, name, contentType, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+name+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+token)
	return req
}

func TestDocumentFileHandler_PDF(t *testing.T) {
	env := newTestEnv(t)
	doc := env.createDocument(t, env.documentBody("invoice", env.customer.ID))
	path := "/api/v1/documents/" + doc.ID.String() + "/pdf"

	t.Run("owner downloads the pdf", func(t *testing.T) {
		env.renderer.On("RenderPDF", mock.Anything, mock.MatchedBy(func(v appbilling.DocumentView) bool {
			return v.Document.ID == doc.ID && v.Customer.Name == "Acme Ltd" && v.Branch != nil
		})).Return([]byte("%PDF-1.7"), nil).Once()

		w := env.do(t, http.MethodGet, path, env.customerToken(t, env.customer), nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Equal(t, "attachment; filename=INV-0001.pdf", w.Header().Get("Content-Disposition"))
		assert.Equal(t, "%PDF-1.7", w.Body.String())
	})

	t.Run("other customers cannot print it", func(t *testing.T) {
		w := env.do(t, http.MethodGet, path, env.customerToken(t, env.otherCustomer), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("renderer failure", func(t *testing.T) {
		env.renderer.On("RenderPDF", mock.Anything, mock.Anything).Return(nil, errors.New("browser gone")).Once()
		w := env.do(t, http.MethodGet, path, env.staffToken(t), nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "RENDER_FAILED", errorCode(t, w))
	})
}

func TestDocumentFileHandler_Attachments(t *testing.T) {
	env := newTestEnv(t)
	invoice := env.createDocument(t, env.documentBody("invoice", env.customer.ID))
	quote := env.createDocument(t, env.documentBody("quotation", env.customer.ID))
	invoicePath := "/api/v1/documents/" + invoice.ID.String() + "/attachments"
	quotePath := "/api/v1/documents/" + quote.ID.String() + "/attachments"

	var staffUpload appbilling.AttachmentResponse

	t.Run("staff attach to an invoice", func(t *testing.T) {
		w := env.serve(uploadRequest(t, invoicePath, env.staffToken(t), "file", "po.txt", "text/plain", "PO-991"))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		staffUpload = decode[appbilling.AttachmentResponse](t, w).Data
		assert.Equal(t, "po.txt", staffUpload.Name)
		assert.Equal(t, "staff-upload", staffUpload.Kind)
		assert.Equal(t, int64(6), staffUpload.Size)
	})

	t.Run("download redirects to the object", func(t *testing.T) {
		w := env.do(t, http.MethodGet, invoicePath+"/"+staffUpload.ID.String(), env.customerToken(t, env.customer), nil)
		require.Equal(t, http.StatusFound, w.Code, w.Body.String())
		assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "https://files.test/"))
	})

	t.Run("download link as json", func(t *testing.T) {
		w := env.do(t, http.MethodGet, invoicePath+"/"+staffUpload.ID.String()+"?redirect=false", env.staffToken(t), nil)
		require.Equal(t, http.StatusOK, w.Code)
		link := decode[appbilling.DownloadLink](t, w).Data
		assert.Contains(t, link.URL, "po.txt")
		assert.False(t, link.ExpiresAt.IsZero())
	})

	t.Run("unknown attachment", func(t *testing.T) {
		w := env.do(t, http.MethodGet, invoicePath+"/"+uuid.NewString(), env.staffToken(t), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("customers cannot attach to invoices", func(t *testing.T) {
		w := env.serve(uploadRequest(t, invoicePath, env.customerToken(t, env.customer), "file", "x.txt", "text/plain", "hi"))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("customers attach to their own quotation", func(t *testing.T) {
		w := env.serve(uploadRequest(t, quotePath, env.customerToken(t, env.customer), "file", "brief.pdf", "application/pdf", "%PDF-"))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, "customer-upload", decode[appbilling.AttachmentResponse](t, w).Data.Kind)

		w = env.do(t, http.MethodGet, "/api/v1/documents/"+quote.ID.String(), env.staffToken(t), nil)
		assert.Len(t, decode[appbilling.DocumentResponse](t, w).Data.Attachments, 1)
	})

	t.Run("other customers cannot attach", func(t *testing.T) {
		w := env.serve(uploadRequest(t, quotePath, env.customerToken(t, env.otherCustomer), "file", "brief.pdf", "application/pdf", "%PDF-"))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		w := env.serve(uploadRequest(t, invoicePath, env.staffToken(t), "upload", "po.txt", "text/plain", "PO"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("disallowed content type", func(t *testing.T) {
		w := env.serve(uploadRequest(t, invoicePath, env.staffToken(t), "file", "run.sh", "application/x-sh", "echo"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
