package printing

import (
	"context"
	"fmt"
	"time"

	appbilling "github.com/erp/billing/internal/application/billing"
	"go.uber.org/zap"
)

// HTMLConverter prints a standalone HTML page to PDF
type HTMLConverter interface {
	Convert(ctx context.Context, doc []byte, title string) ([]byte, error)
	Close() error
}

// RenderError is returned when a document cannot be printed
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering failures
const (
	ErrCodeRenderTimeout    = "RENDER_TIMEOUT"
	ErrCodeRenderFailed     = "RENDER_FAILED"
	ErrCodeInvalidHTML      = "INVALID_HTML"
	ErrCodeInvalidPaperSize = "INVALID_PAPER_SIZE"
	ErrCodeTemplateFailed   = "TEMPLATE_FAILED"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{Code: code, Message: message, Cause: cause}
}

// DocumentRenderer prints invoices and quotations through an HTML template
type DocumentRenderer struct {
	template  *DocumentTemplate
	converter HTMLConverter
	logger    *zap.Logger
}

// NewDocumentRenderer creates a renderer from a parsed template and a converter
func NewDocumentRenderer(template *DocumentTemplate, converter HTMLConverter, logger *zap.Logger) *DocumentRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentRenderer{template: template, converter: converter, logger: logger}
}

// RenderPDF implements appbilling.DocumentRenderer
func (r *DocumentRenderer) RenderPDF(ctx context.Context, view appbilling.DocumentView) ([]byte, error) {
	html, err := r.template.RenderHTML(view)
	if err != nil {
		return nil, NewRenderError(ErrCodeTemplateFailed, "failed to build document HTML", err)
	}

	start := time.Now()
	title := fmt.Sprintf("%s %s", view.Document.Type, view.Document.Number)
	pdf, err := r.converter.Convert(ctx, html, title)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Document rendered",
		zap.String("number", view.Document.Number),
		zap.Int("bytes", len(pdf)),
		zap.Duration("duration", time.Since(start)))
	return pdf, nil
}

// Close releases the converter
func (r *DocumentRenderer) Close() error {
	return r.converter.Close()
}

var _ appbilling.DocumentRenderer = (*DocumentRenderer)(nil)
