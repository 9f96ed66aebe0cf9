// internal/api/error_codes.go
package api

// API error code constants
const (
	// generic errors
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"

	// document errors
	ErrorDocumentNotFound     = "DOCUMENT_NOT_FOUND"
	ErrorDocumentCreateFailed = "DOCUMENT_CREATE_FAILED"
	ErrorDocumentInvalid      = "DOCUMENT_INVALID"

	// structuring errors
	ErrorUnparsableResponse = "UNPARSABLE_RESPONSE"
	ErrorSchemaViolation    = "SCHEMA_VIOLATION"

	// edit errors
	ErrorBlockNotFound      = "BLOCK_NOT_FOUND"
	ErrorInvalidPath        = "INVALID_PATH"
	ErrorPostEditValidation = "POST_EDIT_VALIDATION"

	// progress errors
	ErrorTaskNotFound = "TASK_NOT_FOUND"

	// LLM service errors
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"
	ErrorConnectionFailed      = "CONNECTION_FAILED"

	// export errors
	ErrorExportFormatInvalid = "EXPORT_FORMAT_INVALID"
)
