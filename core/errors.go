package core

import (
	"errors"
	"regexp"
)

// ErrNotFound is a sentinel error for "not found" cases
var ErrNotFound = errors.New("not found")

// ErrInvalid is a sentinel error for validation failures. Callers wrap it with
// the concrete reason, e.g. fmt.Errorf("%w: ended_at must be after started_at", core.ErrInvalid)
var ErrInvalid = errors.New("invalid input")

// IsNotFoundError checks if an error is a "not found" error
// This function handles both the ErrNotFound sentinel error and legacy string-based errors
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	// Check for the sentinel error
	if errors.Is(err, ErrNotFound) {
		return true
	}
	// Check for legacy string-based errors for backward compatibility
	return containsNotFound(err.Error())
}

// IsValidationError checks if an error is a validation failure
func IsValidationError(err error) bool {
	return err != nil && errors.Is(err, ErrInvalid)
}

// containsNotFound checks if an error message contains "not found"
func containsNotFound(errMsg string) bool {
	// Use case-insensitive matching for various "not found" formats
	return len(errMsg) > 0 && (regexp.MustCompile(`(?i)not found`).MatchString(errMsg))
}
