// internal/api/response_helpers.go
package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// ResponseHelper builds the standard API envelopes
type ResponseHelper struct{}

// NewResponseHelper creates a response helper
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success sends a 200 response
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	if len(message) > 0 {
		response.Message = message[0]
	}

	c.JSON(http.StatusOK, response)
}

// Created sends a 201 response
func (rh *ResponseHelper) Created(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	if len(message) > 0 {
		response.Message = message[0]
	} else {
		response.Message = "Resource created"
	}

	c.JSON(http.StatusCreated, response)
}

// Accepted sends a 202 response for work continuing in the background
func (rh *ResponseHelper) Accepted(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	if len(message) > 0 {
		response.Message = message[0]
	}

	c.JSON(http.StatusAccepted, response)
}

// sanitizeErrorMessage keeps credential material out of client-facing errors
func sanitizeErrorMessage(message string) string {
	lower := strings.ToLower(message)
	for _, pattern := range []string{"api_key", "apikey", "secret", "token", "password"} {
		if strings.Contains(lower, pattern) {
			return "An internal error occurred"
		}
	}
	return message
}

// Error sends an error response with the standard envelope
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	apiError := &APIError{
		Code:    errorCode,
		Message: sanitizeErrorMessage(message),
	}

	if len(details) > 0 {
		apiError.Details = sanitizeErrorMessage(details[0])
	}

	response := &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// BadRequest sends a 400 response
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

// NotFound sends a 404 response
func (rh *ResponseHelper) NotFound(c *gin.Context, resource string, details ...string) {
	message := resource + " not found"
	code := ErrorNotFound
	if resource != "" {
		code = rh.getResourceNotFoundCode(resource)
	}
	rh.Error(c, http.StatusNotFound, code, message, details...)
}

// InternalError sends a 500 response
func (rh *ResponseHelper) InternalError(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusInternalServerError, ErrorInternalError, message, details...)
}

// Conflict sends a 409 response
func (rh *ResponseHelper) Conflict(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusConflict, ErrorConflict, message, details...)
}

// UnprocessableEntity sends a 422 response, used for validation and edit
// failures that carry a violation list
func (rh *ResponseHelper) UnprocessableEntity(c *gin.Context, errorCode, message string, violations interface{}) {
	apiError := &APIError{
		Code:    errorCode,
		Message: sanitizeErrorMessage(message),
	}
	if violations != nil {
		apiError.Details = fmt.Sprintf("%v", violations)
	}

	response := &APIResponse{
		Success:   false,
		Error:     apiError,
		Data:      gin.H{"violations": violations},
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	c.JSON(http.StatusUnprocessableEntity, response)
}

// FileResponse sends content as a named download
func (rh *ResponseHelper) FileResponse(c *gin.Context, content string, filename string, contentType string) {
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.String(http.StatusOK, content)
}

func (rh *ResponseHelper) getRequestID(c *gin.Context) string {
	if requestID := c.GetString("request_id"); requestID != "" {
		return requestID
	}
	return ""
}

func (rh *ResponseHelper) getResourceNotFoundCode(resource string) string {
	switch resource {
	case "document":
		return ErrorDocumentNotFound
	case "block":
		return ErrorBlockNotFound
	case "task":
		return ErrorTaskNotFound
	default:
		return ErrorNotFound
	}
}
