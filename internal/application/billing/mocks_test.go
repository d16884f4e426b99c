package billing

import (
	"context"
	"io"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockDocumentRepository is a mock implementation of DocumentRepository
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *billing.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindByNumber(ctx context.Context, t billing.DocumentType, number string) (*billing.Document, error) {
	args := m.Called(ctx, t, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindAll(ctx context.Context, filter billing.DocumentFilter) ([]billing.Document, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]billing.Document), args.Get(1).(int64), args.Error(2)
}

func (m *MockDocumentRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockDocumentRepository) UpdateStatus(ctx context.Context, doc *billing.Document, expected billing.DocumentStatus) (bool, error) {
	args := m.Called(ctx, doc, expected)
	return args.Bool(0), args.Error(1)
}

func (m *MockDocumentRepository) UpdateDraft(ctx context.Context, doc *billing.Document, expectedVersion int) (bool, error) {
	args := m.Called(ctx, doc, expectedVersion)
	return args.Bool(0), args.Error(1)
}

func (m *MockDocumentRepository) DeleteDraft(ctx context.Context, id uuid.UUID) ([]string, bool, error) {
	args := m.Called(ctx, id)
	keys, _ := args.Get(0).([]string)
	return keys, args.Bool(1), args.Error(2)
}

func (m *MockDocumentRepository) MarkElapsed(ctx context.Context, t billing.DocumentType, from []billing.DocumentStatus, to billing.DocumentStatus, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, t, from, to, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDocumentRepository) MaxSequence(ctx context.Context, t billing.DocumentType) (int64, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDocumentRepository) AddAttachment(ctx context.Context, a *billing.Attachment) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

// MockSequenceAllocator is a mock implementation of SequenceAllocator
type MockSequenceAllocator struct {
	mock.Mock
}

func (m *MockSequenceAllocator) Next(ctx context.Context, t billing.DocumentType) (int64, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSequenceAllocator) Current(ctx context.Context, t billing.DocumentType) (int64, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSequenceAllocator) AdvanceTo(ctx context.Context, t billing.DocumentType, value int64) error {
	args := m.Called(ctx, t, value)
	return args.Error(0)
}

// MockBranchDirectory is a mock implementation of BranchDirectory
type MockBranchDirectory struct {
	mock.Mock
}

func (m *MockBranchDirectory) GetBranch(ctx context.Context, id uuid.UUID) (*billing.Branch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Branch), args.Error(1)
}

func (m *MockBranchDirectory) DefaultBranch(ctx context.Context) (*billing.Branch, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Branch), args.Error(1)
}

// MockCustomerDirectory is a mock implementation of CustomerDirectory
type MockCustomerDirectory struct {
	mock.Mock
}

func (m *MockCustomerDirectory) CustomerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockCustomerDirectory) GetCustomer(ctx context.Context, id uuid.UUID) (*billing.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Customer), args.Error(1)
}

// MockObjectStorage is a mock implementation of ObjectStorage
type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) Put(ctx context.Context, storageKey string, body io.Reader, size int64, contentType string) error {
	args := m.Called(ctx, storageKey, body, size, contentType)
	return args.Error(0)
}

func (m *MockObjectStorage) GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	args := m.Called(ctx, storageKey, expiresIn)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockObjectStorage) DeleteObject(ctx context.Context, storageKey string) error {
	args := m.Called(ctx, storageKey)
	return args.Error(0)
}

// MockDocumentRenderer is a mock implementation of DocumentRenderer
type MockDocumentRenderer struct {
	mock.Mock
}

func (m *MockDocumentRenderer) RenderPDF(ctx context.Context, view DocumentView) ([]byte, error) {
	args := m.Called(ctx, view)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// recordingMetrics counts the business events reported by the service
type recordingMetrics struct {
	created    map[billing.DocumentType]int
	events     map[billing.Event]int
	numbering  int
	concurrent int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		created: make(map[billing.DocumentType]int),
		events:  make(map[billing.Event]int),
	}
}

func (r *recordingMetrics) DocumentCreated(_ context.Context, t billing.DocumentType, _ string) {
	r.created[t]++
}

func (r *recordingMetrics) TransitionApplied(_ context.Context, _ billing.DocumentType, e billing.Event) {
	r.events[e]++
}

func (r *recordingMetrics) NumberingFailed(context.Context, billing.DocumentType) {
	r.numbering++
}

func (r *recordingMetrics) ConcurrentModification(context.Context, billing.DocumentType) {
	r.concurrent++
}

// ==================== Fixtures ====================

var fixedNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

type serviceFixture struct {
	documents *MockDocumentRepository
	sequences *MockSequenceAllocator
	branches  *MockBranchDirectory
	customers *MockCustomerDirectory
	metrics   *recordingMetrics
	service   *DocumentService
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		documents: new(MockDocumentRepository),
		sequences: new(MockSequenceAllocator),
		branches:  new(MockBranchDirectory),
		customers: new(MockCustomerDirectory),
		metrics:   newRecordingMetrics(),
	}
	f.service = NewDocumentService(
		f.documents,
		f.customers,
		NewSnapshotResolver(f.branches),
		NewNoOpTransactionScope(f.documents, f.sequences),
		DefaultServiceConfig(),
		nil,
	)
	f.service.SetMetrics(f.metrics)
	f.service.SetClock(func() time.Time { return fixedNow })
	return f
}

func testBranch() *billing.Branch {
	return &billing.Branch{
		ID:               uuid.New(),
		Code:             "LON",
		Name:             "London",
		Currency:         billing.CurrencySnapshot{Code: "GBP", Symbol: "£", Name: "Pound Sterling"},
		TaxRate:          decimal.NewFromInt(20),
		QuotationTerms:   "Valid for 30 days.",
		PaymentTermsDays: 14,
		Active:           true,
	}
}

func newTestDocument(docType billing.DocumentType, status billing.DocumentStatus, seq int64) *billing.Document {
	issue := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	deadline := issue.AddDate(0, 0, 30)
	params := billing.NewDocumentParams{
		Type:       docType,
		CustomerID: uuid.New(),
		BranchID:   uuid.New(),
		Snapshot: billing.Snapshot{
			Currency: billing.CurrencySnapshot{Code: "USD", Symbol: "$", Name: "US Dollar"},
			TaxRate:  decimal.NewFromInt(10),
		},
		IssueDate: issue,
		Items: []billing.ItemInput{
			{Description: "Consulting", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("50.25")},
			{Description: "Hosting", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(20)},
		},
	}
	if docType == billing.DocumentTypeInvoice {
		params.DueDate = &deadline
	} else {
		params.ValidUntil = &deadline
	}
	doc, err := billing.NewDocument(params)
	if err != nil {
		panic(err)
	}
	if seq > 0 {
		if err := doc.AssignNumber(seq); err != nil {
			panic(err)
		}
	}
	doc.Status = status
	return doc
}

func strPtr(s string) *string {
	return &s
}
