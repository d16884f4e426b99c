package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RequestQuotation creates a draft quotation on behalf of a customer.
// Items are unpriced; staff fill in prices while the quotation is still a draft.
func (s *DocumentService) RequestQuotation(ctx context.Context, customerID uuid.UUID, req QuotationRequest) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "request_quotation")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCustomerID, customerID.String())

	exists, err := s.customers.CustomerExists(ctx, customerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !exists {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Customer not found")
	}

	branch, snap, err := s.resolver.DefaultBranch(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var preferred string
	if req.PreferredDueDate != nil && strings.TrimSpace(*req.PreferredDueDate) != "" {
		d, err := parseDate(*req.PreferredDueDate, "preferred_due_date")
		if err != nil {
			return nil, err
		}
		preferred = d.Format(DateLayout)
	}

	items := make([]billing.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, billing.ItemInput{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   decimal.Zero,
		})
	}

	issue := billing.TruncateDate(s.now())
	validUntil := issue.AddDate(0, 0, s.config.QuotationValidityDays)

	doc, err := billing.NewDocument(billing.NewDocumentParams{
		Type:       billing.DocumentTypeQuotation,
		CustomerID: customerID,
		BranchID:   branch.ID,
		Snapshot:   snap,
		IssueDate:  issue,
		ValidUntil: &validUntil,
		Items:      items,
		Notes:      composeRequestNotes(req, preferred),
		Terms:      s.quotationTerms(branch),
	})
	if err != nil {
		return nil, err
	}

	if err := s.persistNew(ctx, doc); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Quotation requested by customer",
		zap.String("customer_id", customerID.String()),
		zap.String("number", doc.Number),
		zap.String("branch", branch.Code))

	response := ToDocumentResponse(doc)
	return &response, nil
}

func composeRequestNotes(req QuotationRequest, preferredDueDate string) string {
	notes := strings.TrimSpace(req.AdditionalNotes)
	if notes == "" {
		notes = "None"
	}
	if preferredDueDate == "" {
		preferredDueDate = "Not specified"
	}
	return fmt.Sprintf("Customer Request: %s\n\n%s\n\nAdditional Notes: %s\n\nPreferred Due Date: %s",
		strings.TrimSpace(req.Title), strings.TrimSpace(req.Description), notes, preferredDueDate)
}
