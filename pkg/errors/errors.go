package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"

	// ErrorTypeDatasetUnavailable indicates that no file or table matched a dataset name.
	// Callers should report "no data" rather than fail hard.
	ErrorTypeDatasetUnavailable ErrorType = "DATASET_UNAVAILABLE"

	// ErrorTypeFeatureSchema indicates a required feature column is missing or malformed
	ErrorTypeFeatureSchema ErrorType = "FEATURE_SCHEMA"

	// ErrorTypeInvalidRange indicates a malformed or inverted date range
	ErrorTypeInvalidRange ErrorType = "INVALID_RANGE"

	// ErrorTypeModelNotTrained indicates scoring was attempted before fitting a model
	ErrorTypeModelNotTrained ErrorType = "MODEL_NOT_TRAINED"
)

// Sentinels usable with errors.Is. An *AppError matches the sentinel of its Type.
var (
	ErrNotFound           = stderrors.New("not found")
	ErrDatasetUnavailable = stderrors.New("dataset unavailable")
	ErrFeatureSchema      = stderrors.New("feature schema error")
	ErrInvalidRange       = stderrors.New("invalid range")
	ErrModelNotTrained    = stderrors.New("model not trained")
)

var sentinels = map[ErrorType]error{
	ErrorTypeNotFound:           ErrNotFound,
	ErrorTypeDatasetUnavailable: ErrDatasetUnavailable,
	ErrorTypeFeatureSchema:      ErrFeatureSchema,
	ErrorTypeInvalidRange:       ErrInvalidRange,
	ErrorTypeModelNotTrained:    ErrModelNotTrained,
}

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's type.
func (e *AppError) Is(target error) bool {
	sentinel, ok := sentinels[e.Type]
	return ok && sentinel == target
}

// IsType reports whether err (or anything it wraps) is an *AppError of type t.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// NewDatasetUnavailableError creates an error for a dataset with no matching source
func NewDatasetUnavailableError(table string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeDatasetUnavailable,
		Message: fmt.Sprintf("dataset %q not found", table),
		Err:     err,
	}
}

// NewFeatureSchemaError creates an error for a missing or malformed feature column
func NewFeatureSchemaError(column, reason string) *AppError {
	return &AppError{
		Type:    ErrorTypeFeatureSchema,
		Message: fmt.Sprintf("column %q %s", column, reason),
	}
}

// NewInvalidRangeError creates a date range validation error
func NewInvalidRangeError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidRange,
		Message: message,
		Err:     err,
	}
}

// NewModelNotTrainedError creates an error for scoring with an unfitted model
func NewModelNotTrainedError() *AppError {
	return &AppError{
		Type:    ErrorTypeModelNotTrained,
		Message: "risk model has not been fitted",
	}
}
