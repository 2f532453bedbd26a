// Package apperrors defines error values shared across the service.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrCacheUnavailable  = errors.New("semantic cache unavailable")
	ErrRetriesExhausted  = errors.New("query execution retries exhausted")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrOwnershipMismatch = errors.New("conversation does not belong to user")
)

// PermissionDeniedError reports tables referenced by generated SQL that the
// caller's role is not allowed to query.
type PermissionDeniedError struct {
	Role   string
	Tables []string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("role %q has no access to tables: %s", e.Role, strings.Join(e.Tables, ", "))
}

// IsPermissionDenied reports whether err is (or wraps) a
// PermissionDeniedError, returning the typed error when it is.
func IsPermissionDenied(err error) (*PermissionDeniedError, bool) {
	var pd *PermissionDeniedError
	if errors.As(err, &pd) {
		return pd, true
	}
	return nil, false
}
