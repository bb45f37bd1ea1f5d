package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeUnavailable   = "UNAVAILABLE"
)

// Validation errors
var (
	ErrEmptyQuestion = NewDomainError(ErrCodeValidation, "question cannot be empty")
	ErrEmptyDocument = NewDomainError(ErrCodeValidation, "document text cannot be empty")
	ErrEmptySource   = NewDomainError(ErrCodeValidation, "document source name cannot be empty")
)

// Retrieval errors. ErrCollectionNotFound and ErrCollectionEmpty are the
// only retrieval failures surfaced to the caller; both end the run
// before any answer token is produced.
var (
	ErrCollectionNotFound = NewDomainError(ErrCodeNotFound, "document collection does not exist")
	ErrCollectionEmpty    = NewDomainError(ErrCodeNotFound, "no documents have been ingested yet")
)

// Service errors
var (
	ErrEmbeddingFailed = NewDomainError(ErrCodeUnavailable, "embedding service call failed")
	ErrArchiveNotFound = NewDomainError(ErrCodeNotFound, "no archived original for this source")
)
