package pipeline

import (
	"errors"
	"fmt"
)

// ErrorCode identifies well-known error categories used across the engine.
type ErrorCode string

const (
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeExecution  ErrorCode = "EXECUTION_ERROR"
	ErrCodeTimeout    ErrorCode = "TIMEOUT"
	ErrCodeCancelled  ErrorCode = "CANCELLED"
	ErrCodeState      ErrorCode = "INVALID_STATE"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeDuplicate  ErrorCode = "DUPLICATE_ID"
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
)

// DomainError represents a typed error enriched with contextual data while
// remaining free from infrastructure dependencies.
type DomainError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As usage.
func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is allows errors.Is comparisons against other DomainError values.
func (e *DomainError) Is(target error) bool {
	var domainErr *DomainError
	if !errors.As(target, &domainErr) {
		return false
	}
	return e.Code == domainErr.Code && e.Message == domainErr.Message
}

// WithContext clones the error with additional contextual metadata.
func (e *DomainError) WithContext(ctx map[string]interface{}) *DomainError {
	if e == nil {
		return nil
	}
	merged := make(map[string]interface{}, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		merged[k] = v
	}
	for k, v := range ctx {
		merged[k] = v
	}
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Context: merged,
	}
}

// NewError constructs a DomainError with the supplied code and message.
func NewError(code ErrorCode, message string, cause error, context map[string]interface{}) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: context,
	}
}

// Helper constructors to simplify error creation throughout the engine.

// NewValidationError reports a precondition rejected before any side effect.
func NewValidationError(message string, context map[string]interface{}) *DomainError {
	return NewError(ErrCodeValidation, message, nil, context)
}

// NewExecutionError reports a step that failed while executing.
func NewExecutionError(step string, cause error) *DomainError {
	return NewError(ErrCodeExecution, "step execution failed", cause, map[string]interface{}{
		"step": step,
	})
}

// NewTimeoutError reports a per-step or global deadline elapsing.
func NewTimeoutError(message string, cause error) *DomainError {
	return NewError(ErrCodeTimeout, message, cause, nil)
}

// NewCancelledError reports externally requested cancellation.
func NewCancelledError(message string, cause error) *DomainError {
	return NewError(ErrCodeCancelled, message, cause, nil)
}

// NewStateError reports a caller/programming error such as re-entrant
// execution. It never reflects pipeline data problems.
func NewStateError(message string, context map[string]interface{}) *DomainError {
	return NewError(ErrCodeState, message, nil, context)
}

// NewDuplicateError reports a name registered twice.
func NewDuplicateError(identifier string) *DomainError {
	return NewError(ErrCodeDuplicate, "duplicate identifier", nil, map[string]interface{}{
		"id": identifier,
	})
}

// NewNotFoundError reports a lookup miss.
func NewNotFoundError(kind, identifier string) *DomainError {
	return NewError(ErrCodeNotFound, kind+" not found", nil, map[string]interface{}{
		"id": identifier,
	})
}

// AsDomainError converts an arbitrary error into a DomainError, wrapping
// unknown errors under ErrCodeExecution.
func AsDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var derr *DomainError
	if errors.As(err, &derr) {
		return derr
	}
	return &DomainError{
		Code:    ErrCodeExecution,
		Message: err.Error(),
		Cause:   err,
	}
}
