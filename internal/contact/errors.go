package contact

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by contact operations.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, contact.ErrNotFound) {
//	    // report, nothing was written
//	}
var (
	// ErrValidation is returned when input is missing a required field or
	// carries a value of the wrong type. The concrete error is a
	// *ValidationError listing the offending paths.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when no contact has the requested id.
	ErrNotFound = errors.New("contact not found")

	// ErrDuplicateKey is returned when creating a contact whose id is
	// already stored.
	ErrDuplicateKey = errors.New("contact id already exists")

	// ErrMalformedDocument is returned when an import document cannot be
	// parsed, is not a mapping, or has no contactId.
	ErrMalformedDocument = errors.New("malformed contact document")

	// ErrStorage wraps failures of the underlying database engine.
	ErrStorage = errors.New("storage failure")
)

// FieldError is one validation problem.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in one input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Path, f.Message))
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

// Unwrap makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Paths returns the offending field paths.
func (e *ValidationError) Paths() []string {
	paths := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		paths[i] = f.Path
	}
	return paths
}

// IsUserError returns true if the error is correctable by the caller
// (bad input, unknown id, unreadable document).
func IsUserError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrMalformedDocument)
}

// IsFatal returns true if the error aborted the operation for reasons the
// caller cannot fix by changing its input.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrStorage) || errors.Is(err, ErrDuplicateKey)
}
