// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies application errors
type ErrorType string

const (
	// Generic error types
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeTimeout    ErrorType = "timeout"

	// Structuring and editing error types
	ErrorTypeUnparsable         ErrorType = "unparsable_response"
	ErrorTypeInvalidPath        ErrorType = "invalid_path"
	ErrorTypePostEditValidation ErrorType = "post_edit_validation"
)

// AppError is the application error structure
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string      // user-facing error code
	Details interface{} // optional structured payload (violations, raw answer)
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements error chaining
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError creates a processing error
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// NewConflictError creates a conflict error
func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

// NewUnparsableError creates the error returned when a model answer cannot
// be coerced into a document. The raw answer is kept for diagnosis.
func NewUnparsableError(message string, rawAnswer string) *AppError {
	appErr := NewAppError(ErrorTypeUnparsable, message, nil)
	appErr.Details = map[string]interface{}{"raw_answer": rawAnswer}
	return appErr
}

// NewInvalidPathError creates the error for an edit path that does not
// resolve against the current document.
func NewInvalidPathError(path string, reason string) *AppError {
	appErr := NewAppError(ErrorTypeInvalidPath,
		fmt.Sprintf("path %q does not resolve: %s", path, reason), nil)
	appErr.Details = map[string]interface{}{"path": path}
	return appErr
}

// NewPostEditValidationError creates the error for an edit whose result
// failed revalidation. The document is left untouched in that case.
func NewPostEditValidationError(message string, violations interface{}) *AppError {
	appErr := NewAppError(ErrorTypePostEditValidation, message, nil)
	appErr.Details = violations
	return appErr
}

// IsValidationError checks for a validation error
func IsValidationError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeValidation
	}
	return false
}

// IsNotFoundError checks for a not-found error
func IsNotFoundError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeNotFound
	}
	return false
}

// IsConflictError checks for a conflict error
func IsConflictError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeConflict
	}
	return false
}

// IsUnparsableError checks for an unparsable-response error
func IsUnparsableError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeUnparsable
	}
	return false
}

// IsInvalidPathError checks for an invalid-path error
func IsInvalidPathError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeInvalidPath
	}
	return false
}

// IsPostEditValidationError checks for a failed post-edit revalidation
func IsPostEditValidationError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypePostEditValidation
	}
	return false
}

// generateErrorCode derives the user-facing code from the error type
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeUnparsable:
		return "UNPARSABLE_RESPONSE"
	case ErrorTypeInvalidPath:
		return "INVALID_PATH"
	case ErrorTypePostEditValidation:
		return "POST_EDIT_VALIDATION"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError wraps an existing error
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// already an AppError, keep its type and code
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
			Details: appError.Details,
		}
	}

	return NewAppError(errType, message, err)
}
