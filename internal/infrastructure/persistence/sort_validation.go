package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField if it is whitelisted, otherwise defaultField
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// DocumentSortFields contains allowed sort fields for documents.
// "number" sorts by the numeric sequence so INV-10000 follows INV-9999.
var DocumentSortFields = map[string]bool{
	"created_at":  true,
	"updated_at":  true,
	"issue_date":  true,
	"due_date":    true,
	"valid_until": true,
	"number":      true,
	"total":       true,
	"status":      true,
}
