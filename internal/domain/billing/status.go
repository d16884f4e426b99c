package billing

import (
	"fmt"
	"sort"

	"github.com/erp/billing/internal/domain/shared"
)

// DocumentStatus is the lifecycle state of a document
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "draft"
	StatusSent      DocumentStatus = "sent"
	StatusPaid      DocumentStatus = "paid"
	StatusOverdue   DocumentStatus = "overdue"
	StatusCancelled DocumentStatus = "cancelled"
	StatusAccepted  DocumentStatus = "accepted"
	StatusRejected  DocumentStatus = "rejected"
	StatusExpired   DocumentStatus = "expired"
	StatusConverted DocumentStatus = "converted"
)

// String returns the string representation of DocumentStatus
func (s DocumentStatus) String() string {
	return string(s)
}

// IsValidFor reports whether s is a state of the given document type
func (s DocumentStatus) IsValidFor(t DocumentType) bool {
	if s == StatusDraft {
		return t.IsValid()
	}
	for _, edges := range transitions[t] {
		for _, to := range edges {
			if to == s {
				return true
			}
		}
	}
	return false
}

// Event triggers a status transition
type Event string

const (
	EventSend              Event = "send"
	EventRecordPayment     Event = "record-payment"
	EventDueDateElapsed    Event = "due-date-elapsed"
	EventCancel            Event = "cancel"
	EventAccept            Event = "accept"
	EventReject            Event = "reject"
	EventValidUntilElapsed Event = "valid-until-elapsed"
	EventConvert           Event = "convert"
)

// String returns the string representation of Event
func (e Event) String() string {
	return string(e)
}

// transitions is the complete lifecycle: any (type, status, event) not listed is rejected.
// A status with no outgoing edges is terminal.
var transitions = map[DocumentType]map[DocumentStatus]map[Event]DocumentStatus{
	DocumentTypeInvoice: {
		StatusDraft: {
			EventSend:   StatusSent,
			EventCancel: StatusCancelled,
		},
		StatusSent: {
			EventRecordPayment:  StatusPaid,
			EventDueDateElapsed: StatusOverdue,
			EventCancel:         StatusCancelled,
		},
		StatusOverdue: {
			EventRecordPayment: StatusPaid,
			EventCancel:        StatusCancelled,
		},
	},
	DocumentTypeQuotation: {
		StatusDraft: {
			EventSend:              StatusSent,
			EventValidUntilElapsed: StatusExpired,
		},
		StatusSent: {
			EventAccept:            StatusAccepted,
			EventReject:            StatusRejected,
			EventValidUntilElapsed: StatusExpired,
		},
		StatusAccepted: {
			EventConvert: StatusConverted,
		},
	},
}

// InitialStatus is the status every new document starts in
func InitialStatus() DocumentStatus {
	return StatusDraft
}

// NextStatus returns the state reached by applying event to a document of type t in state from
func NextStatus(t DocumentType, from DocumentStatus, event Event) (DocumentStatus, error) {
	if to, ok := transitions[t][from][event]; ok {
		return to, nil
	}
	return "", shared.NewDomainError(shared.CodeInvalidTransition,
		fmt.Sprintf("Cannot apply %s to %s %s", event, from, t))
}

// CanApply reports whether event is allowed for a document of type t in state from
func CanApply(t DocumentType, from DocumentStatus, event Event) bool {
	_, ok := transitions[t][from][event]
	return ok
}

// IsTerminal reports whether no transition leaves status s
func IsTerminal(t DocumentType, s DocumentStatus) bool {
	return len(transitions[t][s]) == 0
}

// IsEditable reports whether items and totals may still change
func IsEditable(s DocumentStatus) bool {
	return s == StatusDraft
}

// AllowedEvents lists the events accepted in state s, sorted by name
func AllowedEvents(t DocumentType, s DocumentStatus) []Event {
	edges := transitions[t][s]
	events := make([]Event, 0, len(edges))
	for e := range edges {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })
	return events
}

// SourceStatuses returns the states from which event leads to a transition, sorted by name
func SourceStatuses(t DocumentType, event Event) []DocumentStatus {
	var from []DocumentStatus
	for s, edges := range transitions[t] {
		if _, ok := edges[event]; ok {
			from = append(from, s)
		}
	}
	sort.Slice(from, func(i, j int) bool { return from[i] < from[j] })
	return from
}
