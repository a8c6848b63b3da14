package engerr

import (
	"fmt"
)

// ErrorCategory represents different types of errors surfaced by the engine
type ErrorCategory string

const (
	// Errors that should stop engine construction
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"
	ErrorCategoryValidation    ErrorCategory = "VALIDATION"

	// Errors that degrade to a documented fallback instead of propagating
	ErrorCategoryNumerical ErrorCategory = "NUMERICAL"
)

// EngineError represents a categorized error with context
type EngineError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s in %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s in %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// IsFatal returns whether this error should stop engine construction
func (e *EngineError) IsFatal() bool {
	return e.Category == ErrorCategoryConfiguration || e.Category == ErrorCategoryValidation
}

// NewEngineError creates a new categorized engine error
func NewEngineError(category ErrorCategory, component, operation, message string) *EngineError {
	return &EngineError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
	}
}

// WrapError wraps an existing error with engine error context
func WrapError(err error, category ErrorCategory, component, operation string) *EngineError {
	if err == nil {
		return nil
	}

	return &EngineError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
	}
}

// Common error constructors
func NewValidationError(component, operation, message string) *EngineError {
	return NewEngineError(ErrorCategoryValidation, component, operation, message)
}

func NewConfigurationError(component, operation, message string) *EngineError {
	return NewEngineError(ErrorCategoryConfiguration, component, operation, message)
}

func NewNumericalError(component, operation string, err error) *EngineError {
	return WrapError(err, ErrorCategoryNumerical, component, operation)
}
