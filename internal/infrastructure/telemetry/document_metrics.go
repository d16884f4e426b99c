package telemetry

import (
	"context"

	"github.com/erp/billing/internal/domain/billing"
	"go.opentelemetry.io/otel/metric"
)

// DocumentMetrics counts document lifecycle activity
type DocumentMetrics struct {
	created           *Counter
	transitions       *Counter
	numberingFailures *Counter
	conflicts         *Counter
}

// NewDocumentMetrics registers the billing counters on meter
func NewDocumentMetrics(meter metric.Meter) (*DocumentMetrics, error) {
	created, err := NewCounter(meter, "billing.documents.created", "Documents created", "{document}")
	if err != nil {
		return nil, err
	}
	transitions, err := NewCounter(meter, "billing.documents.transitions", "Status transitions applied", "{transition}")
	if err != nil {
		return nil, err
	}
	numbering, err := NewCounter(meter, "billing.numbering.failures", "Document number allocations that failed", "{failure}")
	if err != nil {
		return nil, err
	}
	conflicts, err := NewCounter(meter, "billing.documents.conflicts", "Writes rejected by a concurrent modification", "{conflict}")
	if err != nil {
		return nil, err
	}
	return &DocumentMetrics{
		created:           created,
		transitions:       transitions,
		numberingFailures: numbering,
		conflicts:         conflicts,
	}, nil
}

// DocumentCreated counts a new draft
func (m *DocumentMetrics) DocumentCreated(ctx context.Context, t billing.DocumentType, currency string) {
	m.created.Inc(ctx, AttrDocumentType.String(t.String()), AttrCurrency.String(currency))
}

// TransitionApplied counts a status change
func (m *DocumentMetrics) TransitionApplied(ctx context.Context, t billing.DocumentType, event billing.Event) {
	m.transitions.Inc(ctx, AttrDocumentType.String(t.String()), AttrEvent.String(event.String()))
}

// NumberingFailed counts a failed number allocation
func (m *DocumentMetrics) NumberingFailed(ctx context.Context, t billing.DocumentType) {
	m.numberingFailures.Inc(ctx, AttrDocumentType.String(t.String()))
}

// ConcurrentModification counts a lost update race
func (m *DocumentMetrics) ConcurrentModification(ctx context.Context, t billing.DocumentType) {
	m.conflicts.Inc(ctx, AttrDocumentType.String(t.String()))
}
