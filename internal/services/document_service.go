// internal/services/document_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aulanotes/AulaNotes/internal/errors"
	"github.com/aulanotes/AulaNotes/internal/models"
	"github.com/aulanotes/AulaNotes/internal/storage"
	"github.com/aulanotes/AulaNotes/internal/utils"
)

const (
	structureMaxAttempts = 3
	structureBaseBackoff = 500 * time.Millisecond
)

// ProcessRequest is one transcript-to-document pipeline invocation
type ProcessRequest struct {
	DocID          string              `json:"doc_id,omitempty"`
	Meta           models.DocumentMeta `json:"meta"`
	Segments       []models.Segment    `json:"segments,omitempty"`
	TranscriptText string              `json:"transcript_text,omitempty"`
	TaskID         string              `json:"task_id,omitempty"`
}

// ProcessResult is the pipeline outcome: the final document plus any
// non-fatal warnings raised along the way
type ProcessResult struct {
	Document *models.Document  `json:"document"`
	Warnings []PipelineWarning `json:"warnings,omitempty"`
}

// PipelineWarning is a non-fatal problem surfaced alongside a pipeline
// result rather than failing it
type PipelineWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WarningLocalStructuring marks a document structured by the offline
// splitter because no model provider was ready
const WarningLocalStructuring = "local_structuring"

// DocumentService orchestrates the full pipeline: ingest, structure,
// validate, align, persist. Each invocation owns its own document and
// segment instances; invocations for different documents run concurrently
// with no shared state.
type DocumentService struct {
	Structure *StructureService
	Align     *AlignService
	Validator *ValidateService
	Mutation  *MutationService
	Store     *storage.DocumentStore
	Progress  *ProgressService

	lockManager *LockManager
}

// NewDocumentService wires the pipeline services together
func NewDocumentService(
	structure *StructureService,
	align *AlignService,
	validator *ValidateService,
	mutation *MutationService,
	store *storage.DocumentStore,
	progress *ProgressService,
) *DocumentService {
	return &DocumentService{
		Structure:   structure,
		Align:       align,
		Validator:   validator,
		Mutation:    mutation,
		Store:       store,
		Progress:    progress,
		lockManager: NewLockManager(),
	}
}

// ProcessTranscript runs the sequential pipeline for one transcript. The
// model round-trip is the only suspending step; cancellation happens there
// through the context.
func (s *DocumentService) ProcessTranscript(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	started := time.Now()
	tracker := s.trackerFor(req.TaskID)

	transcriptText := req.TranscriptText
	if len(req.Segments) > 0 {
		if err := models.CheckSegments(req.Segments); err != nil {
			return nil, errors.NewValidationError("transcript segments are malformed", err)
		}
		if transcriptText == "" {
			transcriptText = joinSegmentTexts(req.Segments)
		}
	}
	if strings.TrimSpace(transcriptText) == "" {
		return nil, errors.NewValidationError("request carries neither transcript text nor segments", nil)
	}

	docID := req.DocID
	if docID == "" {
		docID = models.NewDocID()
	}

	if tracker != nil {
		tracker.UpdateProgress(10, "Structuring transcript")
	}

	doc, localFallback, err := s.structureWithRetry(ctx, transcriptText, req.Meta, docID)
	if err != nil {
		if tracker != nil {
			tracker.Fail(err.Error())
		}
		return nil, err
	}

	var warnings []PipelineWarning
	if localFallback {
		warnings = append(warnings, PipelineWarning{
			Code:    WarningLocalStructuring,
			Message: "model provider not ready, document was structured locally",
		})
	}

	if tracker != nil {
		tracker.UpdateProgress(60, "Aligning blocks with transcript timing")
	}

	aligned, warning := s.Align.Align(doc.Blocks, req.Segments)
	doc.Blocks = aligned
	if warning != nil {
		warnings = append(warnings, *warning)
		utils.GetLogger().Warn("Alignment raised a warning", map[string]interface{}{
			"doc_id": docID,
			"code":   warning.Code,
		})
	}

	if tracker != nil {
		tracker.UpdateProgress(85, "Persisting document")
	}

	if err := s.Store.SaveDocument(doc); err != nil {
		if tracker != nil {
			tracker.Fail(err.Error())
		}
		return nil, err
	}

	if tracker != nil {
		tracker.Complete("Document ready")
	}

	utils.GetLogger().Info("Transcript processed", map[string]interface{}{
		"doc_id": docID,
		"blocks": len(doc.Blocks),
	})
	utils.NewAPIMetrics().RecordDocumentPipeline(docID, len(doc.Blocks), time.Since(started))

	return &ProcessResult{Document: doc, Warnings: warnings}, nil
}

// structureWithRetry retries the model round-trip with bounded exponential
// backoff. Only transient failures are retried: an unparsable or
// schema-violating answer is a terminal outcome for this transcript. The
// second return reports whether the offline splitter produced the document
// so callers can surface that to clients.
func (s *DocumentService) structureWithRetry(ctx context.Context, transcriptText string, meta models.DocumentMeta, docID string) (*models.Document, bool, error) {
	if !s.Structure.LLMService.IsReady() {
		// offline fallback, coarser than model output but always valid
		utils.GetLogger().Warn("LLM provider not ready, structuring locally", map[string]interface{}{
			"doc_id": docID,
		})
		return StructureLocally(transcriptText, meta, docID), true, nil
	}

	var lastErr error
	for attempt := 0; attempt < structureMaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := structureBaseBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, false, ctx.Err()
			case <-time.After(backoff):
			}
		}

		doc, err := s.Structure.StructureTranscript(ctx, transcriptText, meta, docID)
		if err == nil {
			return doc, false, nil
		}
		lastErr = err

		if errors.IsUnparsableError(err) || errors.IsValidationError(err) {
			return nil, false, err
		}
		if ctx.Err() != nil {
			return nil, false, err
		}

		utils.GetLogger().Warn("Structuring attempt failed, retrying", map[string]interface{}{
			"doc_id":  docID,
			"attempt": attempt + 1,
			"err":     err.Error(),
		})
	}

	return nil, false, errors.WrapError(lastErr,
		fmt.Sprintf("structuring failed after %d attempts", structureMaxAttempts),
		errors.ErrorTypeError)
}

// GetDocument loads a stored document
func (s *DocumentService) GetDocument(docID string) (*models.Document, error) {
	return s.Store.LoadDocument(docID)
}

// ListDocuments lists stored document summaries
func (s *DocumentService) ListDocuments() ([]storage.DocumentSummary, error) {
	return s.Store.ListDocuments()
}

// DeleteDocument removes a stored document
func (s *DocumentService) DeleteDocument(docID string) error {
	return s.lockManager.ExecuteWithDocumentLock(docID, func() error {
		return s.Store.DeleteDocument(docID)
	})
}

// EditDocument applies a path-addressed edit to a stored document and
// persists the revalidated result. The stored document is only replaced
// when the edit succeeds end to end; concurrent edits on the same document
// serialize on a per-document lock.
func (s *DocumentService) EditDocument(docID string, path models.Path, value interface{}) (*models.Document, error) {
	var edited *models.Document
	err := s.lockManager.ExecuteWithDocumentLock(docID, func() error {
		doc, err := s.Store.LoadDocument(docID)
		if err != nil {
			return err
		}

		edited, err = s.Mutation.ApplyEdit(doc, path, value)
		if err != nil {
			return err
		}

		return s.Store.SaveDocument(edited)
	})
	if err != nil {
		utils.NewAPIMetrics().RecordDocumentEdit(docID, "rejected")
		return nil, err
	}
	utils.NewAPIMetrics().RecordDocumentEdit(docID, "applied")
	return edited, nil
}

// EditBlock applies an edit with a path relative to one block of a stored
// document
func (s *DocumentService) EditBlock(docID, blockID string, relative models.Path, value interface{}) (*models.Document, error) {
	var edited *models.Document
	err := s.lockManager.ExecuteWithDocumentLock(docID, func() error {
		doc, err := s.Store.LoadDocument(docID)
		if err != nil {
			return err
		}

		edited, err = s.Mutation.ApplyBlockEdit(doc, blockID, relative, value)
		if err != nil {
			return err
		}

		return s.Store.SaveDocument(edited)
	})
	if err != nil {
		return nil, err
	}
	return edited, nil
}

func (s *DocumentService) trackerFor(taskID string) *ProgressTracker {
	if taskID == "" || s.Progress == nil {
		return nil
	}
	return s.Progress.CreateTracker(taskID)
}

func joinSegmentTexts(segments []models.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		parts = append(parts, segment.Text)
	}
	return strings.Join(parts, " ")
}
