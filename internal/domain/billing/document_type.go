package billing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/erp/billing/internal/domain/shared"
)

// DocumentType distinguishes invoices from quotations
type DocumentType string

const (
	DocumentTypeInvoice   DocumentType = "invoice"
	DocumentTypeQuotation DocumentType = "quotation"
)

// numberWidth is the minimum zero-padded width of the numeric suffix
const numberWidth = 4

// IsValid checks if the type is a known DocumentType
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypeInvoice, DocumentTypeQuotation:
		return true
	}
	return false
}

// String returns the string representation of DocumentType
func (t DocumentType) String() string {
	return string(t)
}

// Prefix returns the document number prefix for the type
func (t DocumentType) Prefix() string {
	switch t {
	case DocumentTypeInvoice:
		return "INV"
	case DocumentTypeQuotation:
		return "Q"
	}
	return ""
}

// ParseDocumentType parses a type name, case-insensitively
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Unknown document type %q", s))
	}
	return t, nil
}

// FormatNumber renders a sequence value as a document number, e.g. INV-0001.
// Values beyond four digits are printed in full (INV-10000).
func FormatNumber(t DocumentType, seq int64) string {
	return fmt.Sprintf("%s-%0*d", t.Prefix(), numberWidth, seq)
}

// ParseNumber extracts the sequence value from a document number of type t
func ParseNumber(t DocumentType, number string) (int64, error) {
	prefix := t.Prefix() + "-"
	if prefix == "-" || !strings.HasPrefix(number, prefix) {
		return 0, shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Document number %q does not match type %s", number, t))
	}
	digits := strings.TrimPrefix(number, prefix)
	if len(digits) < numberWidth {
		return 0, shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Document number %q is too short", number))
	}
	seq, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || seq < 1 {
		return 0, shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Document number %q has an invalid sequence", number))
	}
	return seq, nil
}
