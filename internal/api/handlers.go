// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/aulanotes/AulaNotes/internal/errors"
	"github.com/aulanotes/AulaNotes/internal/llm"
	"github.com/aulanotes/AulaNotes/internal/models"
	"github.com/aulanotes/AulaNotes/internal/services"
	"github.com/aulanotes/AulaNotes/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// APIResponse is the standard envelope for every JSON endpoint
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError carries a machine-readable code alongside the message
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Handler holds the service dependencies for the HTTP endpoints
type Handler struct {
	documentService *services.DocumentService
	progressService *services.ProgressService
	llmService      *services.LLMService
	response        *ResponseHelper
}

// NewHandler creates an API handler
func NewHandler(
	documentService *services.DocumentService,
	progressService *services.ProgressService,
	llmService *services.LLMService,
) *Handler {
	return &Handler{
		documentService: documentService,
		progressService: progressService,
		llmService:      llmService,
		response:        NewResponseHelper(),
	}
}

// respondAppError translates a service error into the right HTTP response
func (h *Handler) respondAppError(c *gin.Context, err error) {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		h.response.InternalError(c, err.Error())
		return
	}

	switch {
	case apperrors.IsUnparsableError(err):
		h.response.UnprocessableEntity(c, ErrorUnparsableResponse, appErr.Message, appErr.Details)
	case apperrors.IsPostEditValidationError(err):
		h.response.UnprocessableEntity(c, ErrorPostEditValidation, appErr.Message, appErr.Details)
	case apperrors.IsValidationError(err):
		h.response.UnprocessableEntity(c, ErrorSchemaViolation, appErr.Message, appErr.Details)
	case apperrors.IsInvalidPathError(err):
		h.response.Error(c, 400, ErrorInvalidPath, appErr.Message)
	case apperrors.IsNotFoundError(err):
		h.response.Error(c, 404, ErrorNotFound, appErr.Message)
	case apperrors.IsConflictError(err):
		h.response.Conflict(c, appErr.Message)
	default:
		h.response.InternalError(c, appErr.Message)
	}
}

// CreateDocument runs the full structuring pipeline for a transcript.
// With ?async=true the pipeline runs in the background and the caller polls
// /api/progress/:taskID or subscribes to /ws/progress/:taskID.
// POST /api/documents
func (h *Handler) CreateDocument(c *gin.Context) {
	var req services.ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	if req.TranscriptText == "" && len(req.Segments) == 0 {
		h.response.BadRequest(c, "Either transcript_text or segments is required")
		return
	}

	if req.TaskID == "" {
		req.TaskID = "task_" + uuid.NewString()
	}

	if c.Query("async") == "true" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if _, err := h.documentService.ProcessTranscript(ctx, req); err != nil {
				utils.GetLogger().Error("Background structuring failed", map[string]interface{}{
					"task_id": req.TaskID,
					"err":     err.Error(),
				})
			}
		}()

		h.response.Accepted(c, gin.H{"task_id": req.TaskID}, "Structuring started")
		return
	}

	result, err := h.documentService.ProcessTranscript(c.Request.Context(), req)
	if err != nil {
		h.respondAppError(c, err)
		return
	}

	h.response.Created(c, gin.H{
		"document": result.Document,
		"warnings": result.Warnings,
		"task_id":  req.TaskID,
	}, "Document created")
}

// ListDocuments returns summaries of all stored documents
// GET /api/documents
func (h *Handler) ListDocuments(c *gin.Context) {
	summaries, err := h.documentService.ListDocuments()
	if err != nil {
		h.respondAppError(c, err)
		return
	}

	h.response.Success(c, gin.H{
		"documents": summaries,
		"count":     len(summaries),
	})
}

// GetDocument returns one document by id
// GET /api/documents/:id
func (h *Handler) GetDocument(c *gin.Context) {
	docID := c.Param("id")
	if docID == "" {
		h.response.BadRequest(c, "Document ID is required")
		return
	}

	doc, err := h.documentService.GetDocument(docID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			h.response.NotFound(c, "document", docID)
			return
		}
		h.respondAppError(c, err)
		return
	}

	h.response.Success(c, doc)
}

// DeleteDocument removes a stored document
// DELETE /api/documents/:id
func (h *Handler) DeleteDocument(c *gin.Context) {
	docID := c.Param("id")
	if docID == "" {
		h.response.BadRequest(c, "Document ID is required")
		return
	}

	if err := h.documentService.DeleteDocument(docID); err != nil {
		if apperrors.IsNotFoundError(err) {
			h.response.NotFound(c, "document", docID)
			return
		}
		h.respondAppError(c, err)
		return
	}

	h.response.Success(c, gin.H{"doc_id": docID}, "Document deleted")
}

// editRequest is the body of a document or block edit. The path may be a
// dotted string ("blocks[0].text") or a JSON array mixing field names and
// indices (["blocks", 0, "text"]).
type editRequest struct {
	Path  json.RawMessage `json:"path"`
	Value interface{}     `json:"value"`
}

// parseEditPath accepts both path encodings
func parseEditPath(raw json.RawMessage) (models.Path, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("path is required")
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return models.ParsePath(asString)
	}

	var asArray []interface{}
	if err := json.Unmarshal(raw, &asArray); err != nil {
		return nil, fmt.Errorf("path must be a string or an array")
	}

	if len(asArray) == 0 {
		return nil, fmt.Errorf("path must not be empty")
	}

	path := make(models.Path, 0, len(asArray))
	for i, elem := range asArray {
		switch v := elem.(type) {
		case string:
			if v == "" {
				return nil, fmt.Errorf("path element %d is empty", i)
			}
			path = append(path, models.FieldSegment(v))
		case float64:
			idx := int(v)
			if float64(idx) != v || idx < 0 {
				return nil, fmt.Errorf("path element %d is not a valid index", i)
			}
			path = append(path, models.IndexSegment(idx))
		default:
			return nil, fmt.Errorf("path element %d must be a string or a number", i)
		}
	}
	return path, nil
}

// EditDocument applies a single path mutation to a document
// PATCH /api/documents/:id
func (h *Handler) EditDocument(c *gin.Context) {
	docID := c.Param("id")
	if docID == "" {
		h.response.BadRequest(c, "Document ID is required")
		return
	}

	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	path, err := parseEditPath(req.Path)
	if err != nil {
		h.response.Error(c, 400, ErrorInvalidPath, err.Error())
		return
	}

	doc, err := h.documentService.EditDocument(docID, path, req.Value)
	if err != nil {
		h.respondAppError(c, err)
		return
	}

	h.response.Success(c, doc, "Document updated")
}

// EditBlock applies a mutation addressed relative to one block
// POST /api/documents/:id/blocks/:block_id
func (h *Handler) EditBlock(c *gin.Context) {
	docID := c.Param("id")
	blockID := c.Param("block_id")
	if docID == "" || blockID == "" {
		h.response.BadRequest(c, "Document ID and block ID are required")
		return
	}

	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	path, err := parseEditPath(req.Path)
	if err != nil {
		h.response.Error(c, 400, ErrorInvalidPath, err.Error())
		return
	}

	doc, err := h.documentService.EditBlock(docID, blockID, path, req.Value)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			h.response.NotFound(c, "block", blockID)
			return
		}
		h.respondAppError(c, err)
		return
	}

	h.response.Success(c, doc, "Block updated")
}

// ExportDocument downloads a document as json, markdown or plain text
// GET /api/documents/:id/export?format=json|markdown|txt
func (h *Handler) ExportDocument(c *gin.Context) {
	docID := c.Param("id")
	if docID == "" {
		h.response.BadRequest(c, "Document ID is required")
		return
	}

	format := c.DefaultQuery("format", "json")

	doc, err := h.documentService.GetDocument(docID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			h.response.NotFound(c, "document", docID)
			return
		}
		h.respondAppError(c, err)
		return
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			h.response.InternalError(c, "Failed to serialize document")
			return
		}
		h.response.FileResponse(c, string(data), docID+".json", "application/json")

	case "markdown", "md":
		h.response.FileResponse(c, renderMarkdown(doc), docID+".md", "text/markdown")

	case "txt", "text":
		h.response.FileResponse(c, renderPlainText(doc), docID+".txt", "text/plain")

	default:
		h.response.Error(c, 400, ErrorExportFormatInvalid,
			fmt.Sprintf("Unsupported export format: %s", format))
	}
}

// renderMarkdown flattens a document into markdown
func renderMarkdown(doc *models.Document) string {
	var sb strings.Builder

	if doc.Meta.Course != "" {
		sb.WriteString("# " + doc.Meta.Course + "\n\n")
	}
	if doc.Meta.Subject != "" {
		sb.WriteString("*" + doc.Meta.Subject + "*\n\n")
	}

	for _, block := range doc.Blocks {
		switch block.Kind {
		case models.KindHeading1:
			sb.WriteString("# " + block.Text + "\n\n")
		case models.KindHeading2:
			sb.WriteString("## " + block.Text + "\n\n")
		case models.KindHeading3:
			sb.WriteString("### " + block.Text + "\n\n")
		case models.KindQuote:
			sb.WriteString("> " + block.Text + "\n\n")
		case models.KindCode, models.KindFormula:
			sb.WriteString("```\n" + block.Text + "\n```\n\n")
		case models.KindBulletList:
			for _, item := range block.Items {
				sb.WriteString("- " + item + "\n")
			}
			sb.WriteString("\n")
		case models.KindNumberedList:
			for i, item := range block.Items {
				sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, item))
			}
			sb.WriteString("\n")
		case models.KindConcept:
			sb.WriteString("**" + block.Term + "**: " + block.Definition + "\n\n")
			for _, example := range block.Examples {
				sb.WriteString("- " + example + "\n")
			}
			if len(block.Examples) > 0 {
				sb.WriteString("\n")
			}
		default:
			if text := block.PlainText(); text != "" {
				sb.WriteString(text + "\n\n")
			}
		}
	}

	return sb.String()
}

// renderPlainText flattens a document into plain text
func renderPlainText(doc *models.Document) string {
	var parts []string
	for _, block := range doc.Blocks {
		if text := block.PlainText(); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// GetProgress returns a one-shot progress snapshot for a task
// GET /api/progress/:taskID
func (h *Handler) GetProgress(c *gin.Context) {
	taskID := c.Param("taskID")
	if taskID == "" {
		h.response.BadRequest(c, "Task ID is required")
		return
	}

	tracker, exists := h.progressService.GetTracker(taskID)
	if !exists {
		h.response.NotFound(c, "task", taskID)
		return
	}

	snapshot := tracker.Snapshot()
	h.response.Success(c, gin.H{
		"task_id":  taskID,
		"progress": snapshot.Progress,
		"message":  snapshot.Message,
		"status":   snapshot.Status,
	})
}

// GetLLMStatus reports provider readiness
// GET /api/llm/status
func (h *Handler) GetLLMStatus(c *gin.Context) {
	ready, state := h.llmService.GetProviderStatus()

	h.response.Success(c, gin.H{
		"ready":    ready,
		"state":    state,
		"provider": h.llmService.GetProviderName(),
		"model":    h.llmService.GetDefaultModel(),
	})
}

// GetLLMModels lists providers and the active provider's models
// GET /api/llm/models
func (h *Handler) GetLLMModels(c *gin.Context) {
	var supported []string
	if provider := h.llmService.GetProvider(); provider != nil {
		supported = provider.GetSupportedModels()
	}

	h.response.Success(c, gin.H{
		"provider":  h.llmService.GetProviderName(),
		"models":    supported,
		"providers": llm.ListProviders(),
	})
}

// updateLLMConfigRequest swaps the provider at runtime
type updateLLMConfigRequest struct {
	Provider string            `json:"provider" binding:"required"`
	Config   map[string]string `json:"config"`
}

// UpdateLLMConfig reconfigures the LLM provider
// PUT /api/llm/config
func (h *Handler) UpdateLLMConfig(c *gin.Context) {
	var req updateLLMConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	if req.Config == nil {
		req.Config = make(map[string]string)
	}

	if err := h.llmService.UpdateProvider(req.Provider, req.Config); err != nil {
		h.response.Error(c, 400, ErrorLLMConfigInvalid, err.Error())
		return
	}

	ready, state := h.llmService.GetProviderStatus()
	h.response.Success(c, gin.H{
		"provider": req.Provider,
		"ready":    ready,
		"state":    state,
	}, "LLM provider updated")
}

// GetWebSocketStatus reports active WebSocket connections
// GET /api/ws/status
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	h.response.Success(c, wsManager.GetStatus())
}

// CleanupWebSocketConnections closes expired WebSocket connections
// POST /api/ws/cleanup
func (h *Handler) CleanupWebSocketConnections(c *gin.Context) {
	cleaned := wsManager.CleanupExpiredConnections(90 * time.Second)
	h.response.Success(c, gin.H{"cleaned": cleaned}, "Cleanup complete")
}

// GetMetrics returns a snapshot of in-process counters and histograms
// GET /api/metrics
func (h *Handler) GetMetrics(c *gin.Context) {
	h.response.Success(c, utils.GetMetricsCollector().GetMetrics())
}
