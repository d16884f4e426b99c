package billing

import (
	"testing"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allEvents = []Event{
	EventSend, EventRecordPayment, EventDueDateElapsed, EventCancel,
	EventAccept, EventReject, EventValidUntilElapsed, EventConvert,
}

func TestNextStatus_Invoice(t *testing.T) {
	tests := []struct {
		from  DocumentStatus
		event Event
		to    DocumentStatus
	}{
		{StatusDraft, EventSend, StatusSent},
		{StatusSent, EventRecordPayment, StatusPaid},
		{StatusSent, EventDueDateElapsed, StatusOverdue},
		{StatusOverdue, EventRecordPayment, StatusPaid},
		{StatusDraft, EventCancel, StatusCancelled},
		{StatusSent, EventCancel, StatusCancelled},
		{StatusOverdue, EventCancel, StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			to, err := NextStatus(DocumentTypeInvoice, tt.from, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestNextStatus_Quotation(t *testing.T) {
	tests := []struct {
		from  DocumentStatus
		event Event
		to    DocumentStatus
	}{
		{StatusDraft, EventSend, StatusSent},
		{StatusSent, EventAccept, StatusAccepted},
		{StatusSent, EventReject, StatusRejected},
		{StatusDraft, EventValidUntilElapsed, StatusExpired},
		{StatusSent, EventValidUntilElapsed, StatusExpired},
		{StatusAccepted, EventConvert, StatusConverted},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			to, err := NextStatus(DocumentTypeQuotation, tt.from, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestNextStatus_RejectsUnlistedEvents(t *testing.T) {
	tests := []struct {
		docType DocumentType
		from    DocumentStatus
		event   Event
	}{
		{DocumentTypeInvoice, StatusDraft, EventRecordPayment},
		{DocumentTypeInvoice, StatusDraft, EventDueDateElapsed},
		{DocumentTypeInvoice, StatusSent, EventSend},
		{DocumentTypeInvoice, StatusSent, EventAccept},
		{DocumentTypeQuotation, StatusDraft, EventCancel},
		{DocumentTypeQuotation, StatusDraft, EventAccept},
		{DocumentTypeQuotation, StatusSent, EventConvert},
		{DocumentTypeQuotation, StatusAccepted, EventValidUntilElapsed},
	}

	for _, tt := range tests {
		t.Run(string(tt.docType)+"/"+string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			_, err := NextStatus(tt.docType, tt.from, tt.event)
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrInvalidTransition)
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := map[DocumentType][]DocumentStatus{
		DocumentTypeInvoice:   {StatusPaid, StatusCancelled},
		DocumentTypeQuotation: {StatusRejected, StatusExpired, StatusConverted},
	}

	for docType, statuses := range terminal {
		for _, s := range statuses {
			t.Run(string(docType)+"/"+string(s), func(t *testing.T) {
				assert.True(t, IsTerminal(docType, s))
				assert.Empty(t, AllowedEvents(docType, s))
				for _, e := range allEvents {
					_, err := NextStatus(docType, s, e)
					assert.ErrorIs(t, err, shared.ErrInvalidTransition, "event %s", e)
				}
			})
		}
	}

	assert.False(t, IsTerminal(DocumentTypeInvoice, StatusOverdue))
	assert.False(t, IsTerminal(DocumentTypeQuotation, StatusAccepted))
}

func TestAllowedEvents(t *testing.T) {
	assert.Equal(t, []Event{EventCancel, EventSend}, AllowedEvents(DocumentTypeInvoice, StatusDraft))
	assert.Equal(t, []Event{EventAccept, EventReject, EventValidUntilElapsed}, AllowedEvents(DocumentTypeQuotation, StatusSent))
	assert.Equal(t, []Event{EventConvert}, AllowedEvents(DocumentTypeQuotation, StatusAccepted))
}

func TestSourceStatuses(t *testing.T) {
	assert.Equal(t, []DocumentStatus{StatusSent}, SourceStatuses(DocumentTypeInvoice, EventDueDateElapsed))
	assert.Equal(t, []DocumentStatus{StatusDraft, StatusSent}, SourceStatuses(DocumentTypeQuotation, EventValidUntilElapsed))
	assert.Equal(t, []DocumentStatus{StatusDraft, StatusOverdue, StatusSent}, SourceStatuses(DocumentTypeInvoice, EventCancel))
}

func TestStatusIsValidFor(t *testing.T) {
	assert.True(t, StatusOverdue.IsValidFor(DocumentTypeInvoice))
	assert.False(t, StatusOverdue.IsValidFor(DocumentTypeQuotation))
	assert.True(t, StatusConverted.IsValidFor(DocumentTypeQuotation))
	assert.False(t, StatusPaid.IsValidFor(DocumentTypeQuotation))
	assert.True(t, StatusDraft.IsValidFor(DocumentTypeQuotation))
	assert.False(t, DocumentStatus("archived").IsValidFor(DocumentTypeInvoice))
}
