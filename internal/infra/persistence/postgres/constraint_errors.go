package postgres

import (
	"strings"

	"authflow/internal/errors"

	"gorm.io/gorm"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// isUniqueConstraintViolation reports a unique index rejection. GORM translates it to
// ErrDuplicatedKey when TranslateError is on; the SQLSTATE check covers sessions without it.
func isUniqueConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	return strings.Contains(err.Error(), "SQLSTATE "+pgUniqueViolation)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
