package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CodePrintingDisabled is reported when PDF output is switched off in configuration
const CodePrintingDisabled = "PRINTING_DISABLED"

// ErrPrintingDisabled is wrapped by renderers that refuse every document
var ErrPrintingDisabled = errors.New("pdf printing is disabled")

// DocumentView is everything needed to print a document
type DocumentView struct {
	Document *billing.Document
	Customer *billing.Customer
	Branch   *billing.Branch
}

// DocumentRenderer turns a document into a PDF
type DocumentRenderer interface {
	RenderPDF(ctx context.Context, view DocumentView) ([]byte, error)
}

// RenderedDocument is a printable file
type RenderedDocument struct {
	FileName string
	Content  []byte
}

// RenderService prints invoices and quotations
type RenderService struct {
	documents *DocumentService
	customers billing.CustomerDirectory
	branches  billing.BranchDirectory
	renderer  DocumentRenderer
	logger    *zap.Logger
}

// NewRenderService creates a new RenderService
func NewRenderService(documents *DocumentService, customers billing.CustomerDirectory, branches billing.BranchDirectory, renderer DocumentRenderer, logger *zap.Logger) *RenderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenderService{
		documents: documents,
		customers: customers,
		branches:  branches,
		renderer:  renderer,
		logger:    logger,
	}
}

// Render builds the PDF of a document
func (s *RenderService) Render(ctx context.Context, id uuid.UUID) (*RenderedDocument, error) {
	doc, err := s.documents.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	view, err := s.View(ctx, doc)
	if err != nil {
		return nil, err
	}

	pdf, err := s.renderer.RenderPDF(ctx, *view)
	if errors.Is(err, ErrPrintingDisabled) {
		return nil, shared.WrapDomainError(CodePrintingDisabled, "PDF printing is disabled on this server", err)
	}
	if err != nil {
		s.logger.Error("Failed to render document", zap.String("number", doc.Number), zap.Error(err))
		return nil, shared.WrapDomainError("RENDER_FAILED", "Document could not be rendered", err)
	}

	return &RenderedDocument{
		FileName: fmt.Sprintf("%s.pdf", doc.Number),
		Content:  pdf,
	}, nil
}

// View gathers the customer and branch shown on a printed document.
// A branch that has since been deactivated is omitted rather than failing the print.
func (s *RenderService) View(ctx context.Context, doc *billing.Document) (*DocumentView, error) {
	customer, err := s.customers.GetCustomer(ctx, doc.CustomerID)
	if err != nil {
		return nil, err
	}
	branch, err := s.branches.GetBranch(ctx, doc.BranchID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		branch = nil
	}
	return &DocumentView{Document: doc, Customer: customer, Branch: branch}, nil
}
