package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ServiceConfig holds defaults applied when a request leaves dates or terms open
type ServiceConfig struct {
	DefaultDueDays        int
	QuotationValidityDays int
	DefaultTerms          string
}

// DefaultServiceConfig returns default configuration
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		DefaultDueDays:        30,
		QuotationValidityDays: 30,
		DefaultTerms:          "Standard terms apply.",
	}
}

// DocumentService handles invoice and quotation operations
type DocumentService struct {
	documents billing.DocumentRepository
	customers billing.CustomerDirectory
	resolver  *SnapshotResolver
	txScope   TransactionScope
	config    ServiceConfig
	metrics   DocumentMetrics
	purger    ObjectPurger
	logger    *zap.Logger
	now       func() time.Time
}

// ObjectPurger removes stored attachment objects
type ObjectPurger interface {
	PurgeObjects(ctx context.Context, objectKeys []string)
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	documents billing.DocumentRepository,
	customers billing.CustomerDirectory,
	resolver *SnapshotResolver,
	txScope TransactionScope,
	config ServiceConfig,
	logger *zap.Logger,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		documents: documents,
		customers: customers,
		resolver:  resolver,
		txScope:   txScope,
		config:    config,
		metrics:   noopMetrics{},
		logger:    logger,
		now:       time.Now,
	}
}

// SetMetrics sets the business metrics sink
func (s *DocumentService) SetMetrics(m DocumentMetrics) {
	if m != nil {
		s.metrics = m
	}
}

// SetObjectPurger sets where attachment objects of deleted drafts are removed
func (s *DocumentService) SetObjectPurger(p ObjectPurger) {
	s.purger = p
}

// SetClock overrides the time source
func (s *DocumentService) SetClock(now func() time.Time) {
	s.now = now
}

// Create creates a draft invoice or quotation
func (s *DocumentService) Create(ctx context.Context, req CreateDocumentRequest) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "create")
	defer span.End()

	docType, err := billing.ParseDocumentType(req.Type)
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentType, docType.String(),
		telemetry.SpanAttrBranchID, req.BranchID.String(),
	)

	if err := s.ensureCustomer(ctx, req.CustomerID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	branch, snap, err := s.resolver.ResolveBranch(ctx, req.BranchID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.now()
	issue, err := parseOptionalDate(req.IssueDate, now, "issue_date")
	if err != nil {
		return nil, err
	}

	params := billing.NewDocumentParams{
		Type:       docType,
		CustomerID: req.CustomerID,
		BranchID:   req.BranchID,
		Snapshot:   snap,
		IssueDate:  issue,
		Items:      toItemInputs(req.Items),
		Notes:      req.Notes,
	}

	switch docType {
	case billing.DocumentTypeInvoice:
		due, err := parseOptionalDate(req.DueDate, issue.AddDate(0, 0, s.dueDays(branch)), "due_date")
		if err != nil {
			return nil, err
		}
		params.DueDate = &due
	case billing.DocumentTypeQuotation:
		valid, err := parseOptionalDate(req.ValidUntil, issue.AddDate(0, 0, s.config.QuotationValidityDays), "valid_until")
		if err != nil {
			return nil, err
		}
		params.ValidUntil = &valid
	}

	if req.Terms != nil {
		params.Terms = *req.Terms
	} else if docType == billing.DocumentTypeQuotation {
		params.Terms = s.quotationTerms(branch)
	}

	doc, err := billing.NewDocument(params)
	if err != nil {
		return nil, err
	}

	if err := s.persistNew(ctx, doc); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentNumber, doc.Number)

	s.logger.Info("Document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("number", doc.Number),
		zap.String("type", doc.Type.String()),
		zap.String("currency", doc.Currency.Code))

	response := ToDocumentResponse(doc)
	return &response, nil
}

// GetByID retrieves a document, applying any elapsed due or valid-until date first
func (s *DocumentService) GetByID(ctx context.Context, id uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToDocumentResponse(doc)
	return &response, nil
}

// GetVisible retrieves a document when visible accepts its customer. A rejected
// document reads as not found and no elapsed date is applied to it.
func (s *DocumentService) GetVisible(ctx context.Context, id uuid.UUID, visible func(customerID uuid.UUID) bool) (*DocumentResponse, error) {
	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visible(doc.CustomerID) {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Document not found")
	}
	if doc, err = s.refreshElapsed(ctx, doc); err != nil {
		return nil, err
	}
	response := ToDocumentResponse(doc)
	return &response, nil
}

// GetDocument returns the domain document, with elapsed dates applied
func (s *DocumentService) GetDocument(ctx context.Context, id uuid.UUID) (*billing.Document, error) {
	return s.load(ctx, id)
}

// GetByNumber retrieves a document by type and number
func (s *DocumentService) GetByNumber(ctx context.Context, docType, number string) (*DocumentResponse, error) {
	t, err := billing.ParseDocumentType(docType)
	if err != nil {
		return nil, err
	}
	doc, err := s.documents.FindByNumber(ctx, t, strings.ToUpper(strings.TrimSpace(number)))
	if err != nil {
		return nil, err
	}
	doc, err = s.refreshElapsed(ctx, doc)
	if err != nil {
		return nil, err
	}
	response := ToDocumentResponse(doc)
	return &response, nil
}

// List retrieves documents with filtering and pagination
func (s *DocumentService) List(ctx context.Context, filter DocumentListFilter) ([]DocumentResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "created_at"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	domainFilter := billing.DocumentFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   strings.TrimSpace(filter.Search),
		},
		CustomerID: filter.CustomerID,
		BranchID:   filter.BranchID,
	}
	if filter.Type != "" {
		t, err := billing.ParseDocumentType(filter.Type)
		if err != nil {
			return nil, 0, err
		}
		domainFilter.Type = t
	}
	if filter.Status != "" {
		status := billing.DocumentStatus(strings.ToLower(filter.Status))
		if !status.IsValidFor(billing.DocumentTypeInvoice) && !status.IsValidFor(billing.DocumentTypeQuotation) {
			return nil, 0, shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Unknown status %q", filter.Status))
		}
		domainFilter.Status = status
	}

	docs, total, err := s.documents.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	for i := range docs {
		refreshed, err := s.refreshElapsed(ctx, &docs[i])
		if err != nil {
			return nil, 0, err
		}
		docs[i] = *refreshed
	}

	return ToDocumentResponses(docs), total, nil
}

// UpdateDraft edits items, notes, terms or dates of a draft document
func (s *DocumentService) UpdateDraft(ctx context.Context, id uuid.UUID, req UpdateDocumentRequest) (*DocumentResponse, error) {
	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Version != req.Version {
		s.metrics.ConcurrentModification(ctx, doc.Type)
		return nil, shared.NewDomainError(shared.CodeConcurrentModification,
			fmt.Sprintf("Document %s is at version %d, not %d", doc.Number, doc.Version, req.Version))
	}

	changes := billing.DraftChanges{Notes: req.Notes, Terms: req.Terms}
	if req.Items != nil {
		changes.Items = toItemInputs(*req.Items)
	}
	if req.DueDate != nil {
		due, err := parseDate(*req.DueDate, "due_date")
		if err != nil {
			return nil, err
		}
		changes.DueDate = &due
	}
	if req.ValidUntil != nil {
		valid, err := parseDate(*req.ValidUntil, "valid_until")
		if err != nil {
			return nil, err
		}
		changes.ValidUntil = &valid
	}

	if err := doc.ApplyDraftChanges(changes); err != nil {
		return nil, err
	}

	ok, err := s.documents.UpdateDraft(ctx, doc, req.Version)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.ConcurrentModification(ctx, doc.Type)
		return nil, shared.NewDomainError(shared.CodeConcurrentModification,
			fmt.Sprintf("Document %s changed while it was being edited", doc.Number))
	}

	response := ToDocumentResponse(doc)
	return &response, nil
}

// Delete removes a draft document. Documents that left draft are cancelled instead.
func (s *DocumentService) Delete(ctx context.Context, id uuid.UUID) error {
	keys, ok, err := s.documents.DeleteDraft(ctx, id)
	if err != nil {
		return err
	}
	if ok {
		s.logger.Info("Draft document deleted", zap.String("document_id", id.String()), zap.Int("attachments", len(keys)))
		if s.purger != nil && len(keys) > 0 {
			s.purger.PurgeObjects(ctx, keys)
		}
		return nil
	}

	exists, err := s.documents.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return shared.NewDomainError(shared.CodeNotFound, "Document not found")
	}
	return shared.NewDomainError(shared.CodeInvalidTransition, "Only draft documents can be deleted; cancel it instead")
}

// Transition applies a lifecycle event with an optimistic status check
func (s *DocumentService) Transition(ctx context.Context, id uuid.UUID, req TransitionRequest) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "transition")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentID, id.String(),
		telemetry.SpanAttrEvent, req.Event,
	)

	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	expected := doc.Status
	if req.ExpectedStatus != "" && billing.DocumentStatus(req.ExpectedStatus) != expected {
		s.metrics.ConcurrentModification(ctx, doc.Type)
		return nil, shared.NewDomainError(shared.CodeConcurrentModification,
			fmt.Sprintf("Document %s is %s, not %s", doc.Number, expected, req.ExpectedStatus))
	}

	event := billing.Event(strings.ToLower(strings.TrimSpace(req.Event)))
	if err := doc.Apply(event, s.now()); err != nil {
		return nil, err
	}
	if err := s.saveStatus(ctx, doc, expected); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.metrics.TransitionApplied(ctx, doc.Type, event)

	s.logger.Info("Document status changed",
		zap.String("number", doc.Number),
		zap.String("event", event.String()),
		zap.String("from", expected.String()),
		zap.String("to", doc.Status.String()))

	response := ToDocumentResponse(doc)
	return &response, nil
}

// RecordPayment marks a sent or overdue invoice as paid
func (s *DocumentService) RecordPayment(ctx context.Context, id uuid.UUID, req RecordPaymentRequest) (*DocumentResponse, error) {
	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := doc.Status
	now := s.now()

	payment := billing.PaymentDetails{
		Method:        req.Method,
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
	}
	if req.PaidAt != nil {
		payment.PaidAt = req.PaidAt.UTC()
	}
	if err := doc.RecordPayment(payment, now); err != nil {
		return nil, err
	}
	if err := s.saveStatus(ctx, doc, expected); err != nil {
		return nil, err
	}
	s.metrics.TransitionApplied(ctx, doc.Type, billing.EventRecordPayment)

	response := ToDocumentResponse(doc)
	return &response, nil
}

// Convert turns an accepted quotation into a new draft invoice.
// The invoice insert and the quotation status change commit together or not at all.
func (s *DocumentService) Convert(ctx context.Context, id uuid.UUID, req ConvertRequest) (*ConversionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "convert")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentID, id.String())

	quote, err := s.documents.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !quote.IsQuotation() {
		return nil, shared.NewDomainError(shared.CodeInvalidTransition, "Only quotations can be converted")
	}

	now := s.now()
	issue, err := parseOptionalDate(req.IssueDate, now, "issue_date")
	if err != nil {
		return nil, err
	}
	due, err := parseOptionalDate(req.DueDate, issue.AddDate(0, 0, s.config.DefaultDueDays), "due_date")
	if err != nil {
		return nil, err
	}

	invoice, err := quote.ConvertToInvoice(issue, due)
	if err != nil {
		return nil, err
	}
	expected := quote.Status

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := s.allocateNumber(ctx, repos.Sequences(), invoice); err != nil {
			return err
		}
		if err := repos.Documents().Create(ctx, invoice); err != nil {
			return err
		}
		if err := quote.MarkConverted(invoice.ID, now); err != nil {
			return err
		}
		ok, err := repos.Documents().UpdateStatus(ctx, quote, expected)
		if err != nil {
			return err
		}
		if !ok {
			return shared.NewDomainError(shared.CodeConcurrentModification,
				fmt.Sprintf("Quotation %s changed while it was being converted", quote.Number))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrConcurrentModification) {
			s.metrics.ConcurrentModification(ctx, quote.Type)
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.DocumentCreated(ctx, invoice.Type, invoice.Currency.Code)
	s.metrics.TransitionApplied(ctx, quote.Type, billing.EventConvert)
	s.logger.Info("Quotation converted",
		zap.String("quotation", quote.Number),
		zap.String("invoice", invoice.Number))

	return &ConversionResponse{
		Quotation: ToDocumentResponse(quote),
		Invoice:   ToDocumentResponse(invoice),
	}, nil
}

// SweepElapsed applies due-date-elapsed and valid-until-elapsed to every eligible document.
// It runs within the calling request; there is no background scheduler.
func (s *DocumentService) SweepElapsed(ctx context.Context) (*SweepResponse, error) {
	cutoff := billing.TruncateDate(s.now())

	overdue, err := s.markElapsed(ctx, billing.DocumentTypeInvoice, billing.EventDueDateElapsed, cutoff)
	if err != nil {
		return nil, err
	}
	expired, err := s.markElapsed(ctx, billing.DocumentTypeQuotation, billing.EventValidUntilElapsed, cutoff)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Elapsed sweep finished", zap.Int64("overdue", overdue), zap.Int64("expired", expired))
	return &SweepResponse{Overdue: overdue, Expired: expired}, nil
}

func (s *DocumentService) markElapsed(ctx context.Context, t billing.DocumentType, event billing.Event, cutoff time.Time) (int64, error) {
	from := billing.SourceStatuses(t, event)
	if len(from) == 0 {
		return 0, nil
	}
	to, err := billing.NextStatus(t, from[0], event)
	if err != nil {
		return 0, err
	}
	n, err := s.documents.MarkElapsed(ctx, t, from, to, cutoff)
	if err != nil {
		return 0, err
	}
	for i := int64(0); i < n; i++ {
		s.metrics.TransitionApplied(ctx, t, event)
	}
	return n, nil
}

// persistNew allocates a number and inserts doc in one transaction
func (s *DocumentService) persistNew(ctx context.Context, doc *billing.Document) error {
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := s.allocateNumber(ctx, repos.Sequences(), doc); err != nil {
			return err
		}
		return repos.Documents().Create(ctx, doc)
	})
	if err != nil {
		if errors.Is(err, shared.ErrNumberingFailure) {
			s.metrics.NumberingFailed(ctx, doc.Type)
		}
		doc.Number = ""
		return err
	}
	s.metrics.DocumentCreated(ctx, doc.Type, doc.Currency.Code)
	return nil
}

func (s *DocumentService) allocateNumber(ctx context.Context, seq billing.SequenceAllocator, doc *billing.Document) error {
	n, err := seq.Next(ctx, doc.Type)
	if err != nil {
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			return err
		}
		return shared.WrapDomainError(shared.CodeNumberingFailure,
			fmt.Sprintf("Could not allocate a %s number", doc.Type), err)
	}
	return doc.AssignNumber(n)
}

func (s *DocumentService) saveStatus(ctx context.Context, doc *billing.Document, expected billing.DocumentStatus) error {
	ok, err := s.documents.UpdateStatus(ctx, doc, expected)
	if err != nil {
		return err
	}
	if !ok {
		s.metrics.ConcurrentModification(ctx, doc.Type)
		return shared.NewDomainError(shared.CodeConcurrentModification,
			fmt.Sprintf("Document %s is no longer %s", doc.Number, expected))
	}
	return nil
}

func (s *DocumentService) load(ctx context.Context, id uuid.UUID) (*billing.Document, error) {
	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.refreshElapsed(ctx, doc)
}

// refreshElapsed applies a pending elapsed event to doc with the same conditional
// update as an explicit transition. When another request wins the race the stored
// document is reloaded.
func (s *DocumentService) refreshElapsed(ctx context.Context, doc *billing.Document) (*billing.Document, error) {
	now := s.now()
	event, ok := doc.ElapsedEvent(now)
	if !ok {
		return doc, nil
	}

	expected := doc.Status
	if err := doc.Apply(event, now); err != nil {
		return nil, err
	}
	updated, err := s.documents.UpdateStatus(ctx, doc, expected)
	if err != nil {
		return nil, err
	}
	if !updated {
		return s.documents.FindByID(ctx, doc.ID)
	}

	s.metrics.TransitionApplied(ctx, doc.Type, event)
	s.logger.Debug("Elapsed status applied on read",
		zap.String("number", doc.Number),
		zap.String("status", doc.Status.String()))
	return doc, nil
}

func (s *DocumentService) ensureCustomer(ctx context.Context, customerID uuid.UUID) error {
	if customerID == uuid.Nil {
		return shared.NewDomainError(shared.CodeValidation, "Customer is required")
	}
	exists, err := s.customers.CustomerExists(ctx, customerID)
	if err != nil {
		return err
	}
	if !exists {
		return shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Customer %s does not exist", customerID))
	}
	return nil
}

func (s *DocumentService) dueDays(branch *billing.Branch) int {
	if branch != nil && branch.PaymentTermsDays > 0 {
		return branch.PaymentTermsDays
	}
	return s.config.DefaultDueDays
}

func (s *DocumentService) quotationTerms(branch *billing.Branch) string {
	if branch != nil && strings.TrimSpace(branch.QuotationTerms) != "" {
		return branch.QuotationTerms
	}
	return s.config.DefaultTerms
}

func toItemInputs(items []ItemInput) []billing.ItemInput {
	out := make([]billing.ItemInput, 0, len(items))
	for _, it := range items {
		out = append(out, billing.ItemInput{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	return out
}

func parseOptionalDate(value *string, fallback time.Time, field string) (time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return billing.TruncateDate(fallback), nil
	}
	return parseDate(*value, field)
}

func parseDate(value, field string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field))
	}
	return t, nil
}
