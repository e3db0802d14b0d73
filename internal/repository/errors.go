package repository

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when trying to create a user with an existing email
	ErrDuplicateEmail = errors.New("user with this email already exists")

	// ErrDuplicateToken is returned when the same refresh token string is stored twice
	ErrDuplicateToken = errors.New("refresh token already exists")

	// ErrAccountLocked is returned when a write requires an unlocked account
	ErrAccountLocked = errors.New("account is locked")
)

// isUniqueViolation reports whether err is a PostgreSQL unique_violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UniqueViolation
}
