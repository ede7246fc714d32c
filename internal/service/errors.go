package service

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrForbidden covers role, ownership and state-guard violations alike.
	ErrForbidden = errors.New("unauthorized action")
	ErrNotFound  = errors.New("refueling request not found")
	// ErrConflict means the request changed between read and write; callers reload and retry.
	ErrConflict = errors.New("refueling request was modified concurrently")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// ValidationError carries user-correctable messages keyed by request field.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
