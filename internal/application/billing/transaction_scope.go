package billing

import (
	"context"

	"github.com/erp/billing/internal/domain/billing"
)

// TransactionScope provides transactional access to the document repositories.
// Number allocation and the document insert share one transaction, so a failed
// insert never leaves a consumed number behind.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes repositories bound to the current transaction
type TransactionalRepositories interface {
	Documents() billing.DocumentRepository
	Sequences() billing.SequenceAllocator
}

// NoOpTransactionScope runs functions without a transaction.
// Used by unit tests that exercise service logic against mocks.
type NoOpTransactionScope struct {
	documents billing.DocumentRepository
	sequences billing.SequenceAllocator
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(documents billing.DocumentRepository, sequences billing.SequenceAllocator) *NoOpTransactionScope {
	return &NoOpTransactionScope{documents: documents, sequences: sequences}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Documents returns the document repository.
func (s *NoOpTransactionScope) Documents() billing.DocumentRepository {
	return s.documents
}

// Sequences returns the sequence allocator.
func (s *NoOpTransactionScope) Sequences() billing.SequenceAllocator {
	return s.sequences
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
