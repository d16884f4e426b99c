package persistence

import (
	"errors"
	"strings"

	"github.com/erp/billing/internal/domain/shared"
	"gorm.io/gorm"
)

// isDuplicateKey reports whether err is a unique constraint violation.
// TranslateError covers connections opened by NewDatabase; the message checks
// cover handles opened elsewhere.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

func persistenceError(message string, err error) error {
	return shared.WrapDomainError(shared.CodePersistence, message, err)
}
