// internal/services/document_service_test.go
package services

import (
	"context"
	"testing"

	apperrors "github.com/aulanotes/AulaNotes/internal/errors"
	"github.com/aulanotes/AulaNotes/internal/llm/providers/mock"
	"github.com/aulanotes/AulaNotes/internal/models"
	"github.com/aulanotes/AulaNotes/internal/storage"
)

const pipelineAnswer = "```json\n" + `{
	"blocks": [
		{"id": "blk_h", "kind": "heading1", "text": "Introduccion al tema"},
		{"id": "blk_p", "kind": "paragraph", "text": "Hoy veremos matrices y determinantes"}
	]
}` + "\n```"

func newPipelineForTest(t *testing.T, provider *mock.Provider) *DocumentService {
	t.Helper()

	fileStorage, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("storage setup failed: %v", err)
	}

	var llmService *LLMService
	if provider != nil {
		llmService = NewLLMServiceWithProvider("mock", provider)
	} else {
		llmService = NewEmptyLLMService()
	}

	validator := NewValidateService()
	return NewDocumentService(
		NewStructureService(llmService, validator),
		NewAlignService(),
		validator,
		NewMutationService(validator),
		storage.NewDocumentStore(fileStorage),
		NewProgressService(),
	)
}

func pipelineRequest() ProcessRequest {
	return ProcessRequest{
		Meta: models.DocumentMeta{Course: "Algebra", Language: "es"},
		Segments: []models.Segment{
			{Index: 0, Start: 0, End: 2, Text: "hoy veremos matrices"},
			{Index: 1, Start: 2, End: 4, Text: "y determinantes"},
		},
	}
}

func TestProcessTranscriptFullPipeline(t *testing.T) {
	provider := &mock.Provider{}
	provider.QueueResponse(pipelineAnswer)
	service := newPipelineForTest(t, provider)

	req := pipelineRequest()
	req.TaskID = "task_pipeline"

	result, err := service.ProcessTranscript(context.Background(), req)
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}

	doc := result.Document
	if len(doc.Blocks) != 2 {
		t.Fatalf("blocks = %d", len(doc.Blocks))
	}

	// the paragraph spans both segments, the invented heading gets a
	// zero-width marker
	if doc.Blocks[0].Time == nil || doc.Blocks[0].Time.Start != doc.Blocks[0].Time.End {
		t.Errorf("heading time = %v, want zero width", doc.Blocks[0].Time)
	}
	if doc.Blocks[1].Time == nil || doc.Blocks[1].Time.Start != 0 || doc.Blocks[1].Time.End != 4 {
		t.Errorf("paragraph time = %v, want {0, 4}", doc.Blocks[1].Time)
	}

	// persisted and loadable
	stored, err := service.GetDocument(doc.DocID)
	if err != nil {
		t.Fatalf("stored document not loadable: %v", err)
	}
	if stored.DocID != doc.DocID || len(stored.Blocks) != 2 {
		t.Errorf("stored = %+v", stored)
	}

	// progress completed
	tracker, exists := service.Progress.GetTracker("task_pipeline")
	if !exists {
		t.Fatal("tracker missing")
	}
	if snapshot := tracker.Snapshot(); snapshot.Status != "completed" || snapshot.Progress != 100 {
		t.Errorf("tracker = %+v", snapshot)
	}
}

func TestProcessTranscriptReusedTaskID(t *testing.T) {
	provider := &mock.Provider{}
	provider.QueueResponse(pipelineAnswer)
	provider.QueueResponse(pipelineAnswer)
	service := newPipelineForTest(t, provider)

	req := pipelineRequest()
	req.TaskID = "task_shared"

	if _, err := service.ProcessTranscript(context.Background(), req); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// the second run reuses the finished task id; it must track and finish
	// cleanly rather than tripping over the previous run's Done channel
	if _, err := service.ProcessTranscript(context.Background(), req); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	tracker, ok := service.Progress.GetTracker("task_shared")
	if !ok {
		t.Fatal("tracker missing after rerun")
	}
	if snapshot := tracker.Snapshot(); snapshot.Status != "completed" {
		t.Errorf("status = %q, want completed", snapshot.Status)
	}
}

func TestProcessTranscriptNoSegmentsWarning(t *testing.T) {
	provider := &mock.Provider{}
	provider.QueueResponse(pipelineAnswer)
	service := newPipelineForTest(t, provider)

	result, err := service.ProcessTranscript(context.Background(), ProcessRequest{
		Meta:           models.DocumentMeta{Language: "es"},
		TranscriptText: "hoy veremos matrices y determinantes",
	})
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	if len(result.Warnings) != 1 || result.Warnings[0].Code != WarningNoSegments {
		t.Fatalf("warnings = %v, want one %s", result.Warnings, WarningNoSegments)
	}
	for i, block := range result.Document.Blocks {
		if block.Time == nil || block.Time.Start != 0 || block.Time.End != 0 {
			t.Errorf("block %d time = %v, want {0, 0}", i, block.Time)
		}
	}
}

func TestProcessTranscriptMalformedSegments(t *testing.T) {
	service := newPipelineForTest(t, &mock.Provider{})

	_, err := service.ProcessTranscript(context.Background(), ProcessRequest{
		Meta: models.DocumentMeta{Language: "es"},
		Segments: []models.Segment{
			{Index: 0, Start: 5, End: 2, Text: "mal"},
		},
	})
	if err == nil {
		t.Fatal("malformed segments must be rejected")
	}
	if !apperrors.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProcessTranscriptEmptyRequest(t *testing.T) {
	service := newPipelineForTest(t, &mock.Provider{})

	_, err := service.ProcessTranscript(context.Background(), ProcessRequest{
		Meta: models.DocumentMeta{Language: "es"},
	})
	if err == nil {
		t.Fatal("empty request must be rejected")
	}
	if !apperrors.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProcessTranscriptTerminalOnUnparsable(t *testing.T) {
	provider := &mock.Provider{}
	// every queued answer is prose; if unparsable answers were retried the
	// call count would climb past one
	provider.QueueResponse("no tengo un documento para ti")
	provider.QueueResponse("sigo sin tenerlo")
	service := newPipelineForTest(t, provider)

	_, err := service.ProcessTranscript(context.Background(), pipelineRequest())
	if err == nil {
		t.Fatal("unparsable answer must fail the pipeline")
	}
	if !apperrors.IsUnparsableError(err) {
		t.Fatalf("expected unparsable error, got %v", err)
	}
	if provider.Calls() != 1 {
		t.Errorf("unparsable answers are terminal, got %d calls", provider.Calls())
	}
}

func TestProcessTranscriptOfflineFallback(t *testing.T) {
	// no provider configured: the rule-table fallback still yields a
	// valid, persisted document
	service := newPipelineForTest(t, nil)

	result, err := service.ProcessTranscript(context.Background(), ProcessRequest{
		Meta:           models.DocumentMeta{Language: "es"},
		TranscriptText: "# Matrices\n\nUna matriz es un arreglo rectangular.",
	})
	if err != nil {
		t.Fatalf("offline pipeline failed: %v", err)
	}

	doc := result.Document
	if len(doc.Blocks) != 2 {
		t.Fatalf("blocks = %d: %+v", len(doc.Blocks), doc.Blocks)
	}
	if doc.Blocks[0].Kind != models.KindHeading1 {
		t.Errorf("first block kind = %s", doc.Blocks[0].Kind)
	}
	if _, err := service.GetDocument(doc.DocID); err != nil {
		t.Errorf("offline document not persisted: %v", err)
	}

	// clients must be able to tell the coarse local result from model output
	var found bool
	for _, warning := range result.Warnings {
		if warning.Code == WarningLocalStructuring {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want %s among them", result.Warnings, WarningLocalStructuring)
	}
}

func TestEditDocumentPersists(t *testing.T) {
	provider := &mock.Provider{}
	provider.QueueResponse(pipelineAnswer)
	service := newPipelineForTest(t, provider)

	result, err := service.ProcessTranscript(context.Background(), pipelineRequest())
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	docID := result.Document.DocID

	path, _ := models.ParsePath("blocks[1].text")
	edited, err := service.EditDocument(docID, path, "texto nuevo")
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if edited.Blocks[1].Text != "texto nuevo" {
		t.Errorf("text = %q", edited.Blocks[1].Text)
	}

	reloaded, err := service.GetDocument(docID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Blocks[1].Text != "texto nuevo" {
		t.Error("edit was not persisted")
	}
}

func TestEditDocumentFailureDoesNotPersist(t *testing.T) {
	provider := &mock.Provider{}
	provider.QueueResponse(pipelineAnswer)
	service := newPipelineForTest(t, provider)

	result, err := service.ProcessTranscript(context.Background(), pipelineRequest())
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	docID := result.Document.DocID

	path, _ := models.ParsePath("blocks[1].text")
	if _, err := service.EditDocument(docID, path, ""); err == nil {
		t.Fatal("invalidating edit must fail")
	}

	reloaded, err := service.GetDocument(docID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Blocks[1].Text != "Hoy veremos matrices y determinantes" {
		t.Errorf("failed edit leaked into storage: %q", reloaded.Blocks[1].Text)
	}
}

func TestEditBlockByID(t *testing.T) {
	provider := &mock.Provider{}
	provider.QueueResponse(pipelineAnswer)
	service := newPipelineForTest(t, provider)

	result, err := service.ProcessTranscript(context.Background(), pipelineRequest())
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	path, _ := models.ParsePath("text")
	edited, err := service.EditBlock(result.Document.DocID, "blk_h", path, "Panorama del tema")
	if err != nil {
		t.Fatalf("block edit failed: %v", err)
	}
	if edited.Blocks[0].Text != "Panorama del tema" {
		t.Errorf("text = %q", edited.Blocks[0].Text)
	}
}

func TestDeleteDocument(t *testing.T) {
	provider := &mock.Provider{}
	provider.QueueResponse(pipelineAnswer)
	service := newPipelineForTest(t, provider)

	result, err := service.ProcessTranscript(context.Background(), pipelineRequest())
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	if err := service.DeleteDocument(result.Document.DocID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := service.GetDocument(result.Document.DocID); !apperrors.IsNotFoundError(err) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}
