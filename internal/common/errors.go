package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Pipeline error taxonomy. Each job-level failure is classified against one
// of these so the orchestrator can convert it into job or verdict state
// instead of aborting the batch.
var (
	ErrExtraction   = errors.New("extraction failed")        // engine could not process the image
	ErrNoExtraction = errors.New("no fields extracted")      // engine ran, neither field found
	ErrLookup       = errors.New("dispatch lookup failed")   // store unreachable during lookup
	ErrCommit       = errors.New("dispatch update rejected") // store failure during commit
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapKind attaches one of the taxonomy sentinels to an underlying cause so
// callers can classify with errors.Is while keeping the full chain.
func WrapKind(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}
