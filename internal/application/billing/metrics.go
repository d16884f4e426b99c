package billing

import (
	"context"

	"github.com/erp/billing/internal/domain/billing"
)

// DocumentMetrics receives business counters from the document service
type DocumentMetrics interface {
	DocumentCreated(ctx context.Context, t billing.DocumentType, branchCurrency string)
	TransitionApplied(ctx context.Context, t billing.DocumentType, event billing.Event)
	NumberingFailed(ctx context.Context, t billing.DocumentType)
	ConcurrentModification(ctx context.Context, t billing.DocumentType)
}

type noopMetrics struct{}

func (noopMetrics) DocumentCreated(context.Context, billing.DocumentType, string)          {}
func (noopMetrics) TransitionApplied(context.Context, billing.DocumentType, billing.Event) {}
func (noopMetrics) NumberingFailed(context.Context, billing.DocumentType)                  {}
func (noopMetrics) ConcurrentModification(context.Context, billing.DocumentType)           {}
