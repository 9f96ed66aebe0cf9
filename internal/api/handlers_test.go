// internal/api/handlers_test.go
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aulanotes/AulaNotes/internal/llm/providers/mock"
	"github.com/aulanotes/AulaNotes/internal/services"
	"github.com/aulanotes/AulaNotes/internal/storage"
	"github.com/gin-gonic/gin"
)

const handlerTestAnswer = "```json\n" + `{
	"blocks": [
		{"id": "blk_h", "kind": "heading1", "text": "Introduccion al tema"},
		{"id": "blk_p", "kind": "paragraph", "text": "Hoy veremos matrices y determinantes"}
	]
}` + "\n```"

type handlerFixture struct {
	router   *gin.Engine
	provider *mock.Provider
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fileStorage, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("storage setup failed: %v", err)
	}

	provider := &mock.Provider{}
	llmService := services.NewLLMServiceWithProvider("mock", provider)
	validator := services.NewValidateService()
	progressService := services.NewProgressService()

	documentService := services.NewDocumentService(
		services.NewStructureService(llmService, validator),
		services.NewAlignService(),
		validator,
		services.NewMutationService(validator),
		storage.NewDocumentStore(fileStorage),
		progressService,
	)

	handler := NewHandler(documentService, progressService, llmService)

	router := gin.New()
	router.Use(RequestIDMiddleware())
	apiGroup := router.Group("/api")
	docGroup := apiGroup.Group("/documents")
	docGroup.GET("", handler.ListDocuments)
	docGroup.POST("", handler.CreateDocument)
	docGroup.GET("/:id", handler.GetDocument)
	docGroup.PATCH("/:id", handler.EditDocument)
	docGroup.DELETE("/:id", handler.DeleteDocument)
	docGroup.POST("/:id/blocks/:block_id", handler.EditBlock)
	docGroup.GET("/:id/export", handler.ExportDocument)
	apiGroup.GET("/progress/:taskID", handler.GetProgress)
	apiGroup.GET("/llm/status", handler.GetLLMStatus)

	return &handlerFixture{router: router, provider: provider}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	return recorder
}

func decodeEnvelope(t *testing.T, recorder *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var response APIResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("response is not an envelope: %v\n%s", err, recorder.Body.String())
	}
	return response
}

func (f *handlerFixture) createDocument(t *testing.T) string {
	t.Helper()
	f.provider.QueueResponse(handlerTestAnswer)

	recorder := f.do(t, http.MethodPost, "/api/documents", map[string]interface{}{
		"meta": map[string]string{"course": "Algebra", "language": "es"},
		"segments": []map[string]interface{}{
			{"index": 0, "start": 0, "end": 2, "text": "hoy veremos matrices"},
			{"index": 1, "start": 2, "end": 4, "text": "y determinantes"},
		},
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", recorder.Code, recorder.Body.String())
	}

	response := decodeEnvelope(t, recorder)
	data := response.Data.(map[string]interface{})
	document := data["document"].(map[string]interface{})
	return document["doc_id"].(string)
}

func TestCreateDocumentEndpoint(t *testing.T) {
	fixture := newHandlerFixture(t)
	docID := fixture.createDocument(t)

	if !strings.HasPrefix(docID, "doc_") {
		t.Errorf("doc_id = %q", docID)
	}
}

func TestCreateDocumentAsync(t *testing.T) {
	fixture := newHandlerFixture(t)
	fixture.provider.QueueResponse(handlerTestAnswer)

	recorder := fixture.do(t, http.MethodPost, "/api/documents?async=true", map[string]interface{}{
		"meta":            map[string]string{"language": "es"},
		"transcript_text": "hoy veremos matrices y determinantes",
		"task_id":         "task_async",
	})

	if recorder.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body.String())
	}
	response := decodeEnvelope(t, recorder)
	data := response.Data.(map[string]interface{})
	if data["task_id"] != "task_async" {
		t.Errorf("task_id = %v", data["task_id"])
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		progress := fixture.do(t, http.MethodGet, "/api/progress/task_async", nil)
		if progress.Code == http.StatusOK {
			envelope := decodeEnvelope(t, progress)
			status := envelope.Data.(map[string]interface{})["status"]
			if status == "completed" {
				break
			}
			if status == "failed" {
				t.Fatalf("background structuring failed: %s", progress.Body.String())
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("structuring did not complete in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCreateDocumentUnparsable(t *testing.T) {
	fixture := newHandlerFixture(t)
	fixture.provider.QueueResponse("lo siento, no puedo")

	recorder := fixture.do(t, http.MethodPost, "/api/documents", map[string]interface{}{
		"meta":            map[string]string{"language": "es"},
		"transcript_text": "hoy veremos matrices",
	})

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body.String())
	}
	response := decodeEnvelope(t, recorder)
	if response.Error == nil || response.Error.Code != ErrorUnparsableResponse {
		t.Errorf("error = %+v", response.Error)
	}
}

func TestCreateDocumentSchemaViolation(t *testing.T) {
	fixture := newHandlerFixture(t)
	fixture.provider.QueueResponse(`{"blocks": [{"id": "b1", "kind": "paragraph"}]}`)

	recorder := fixture.do(t, http.MethodPost, "/api/documents", map[string]interface{}{
		"meta":            map[string]string{"language": "es"},
		"transcript_text": "hoy veremos matrices",
	})

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body.String())
	}
	response := decodeEnvelope(t, recorder)
	if response.Error == nil || response.Error.Code != ErrorSchemaViolation {
		t.Errorf("error = %+v", response.Error)
	}
}

func TestCreateDocumentMissingBody(t *testing.T) {
	fixture := newHandlerFixture(t)

	recorder := fixture.do(t, http.MethodPost, "/api/documents", map[string]interface{}{
		"meta": map[string]string{"language": "es"},
	})

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", recorder.Code)
	}
}

func TestGetDocumentEndpoint(t *testing.T) {
	fixture := newHandlerFixture(t)
	docID := fixture.createDocument(t)

	recorder := fixture.do(t, http.MethodGet, "/api/documents/"+docID, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}

	recorder = fixture.do(t, http.MethodGet, "/api/documents/doc_missing", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d", recorder.Code)
	}
	response := decodeEnvelope(t, recorder)
	if response.Error == nil || response.Error.Code != ErrorDocumentNotFound {
		t.Errorf("error = %+v", response.Error)
	}
}

func TestListDocumentsEndpoint(t *testing.T) {
	fixture := newHandlerFixture(t)
	fixture.createDocument(t)

	recorder := fixture.do(t, http.MethodGet, "/api/documents", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}

	response := decodeEnvelope(t, recorder)
	data := response.Data.(map[string]interface{})
	if data["count"].(float64) != 1 {
		t.Errorf("count = %v", data["count"])
	}
}

func TestEditDocumentEndpoint(t *testing.T) {
	fixture := newHandlerFixture(t)
	docID := fixture.createDocument(t)

	recorder := fixture.do(t, http.MethodPatch, "/api/documents/"+docID, map[string]interface{}{
		"path":  "blocks[1].text",
		"value": "texto corregido",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body.String())
	}

	// the array path encoding addresses the same location
	recorder = fixture.do(t, http.MethodPatch, "/api/documents/"+docID, map[string]interface{}{
		"path":  []interface{}{"blocks", 1, "text"},
		"value": "texto corregido otra vez",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("array path status = %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestEditDocumentInvalidPath(t *testing.T) {
	fixture := newHandlerFixture(t)
	docID := fixture.createDocument(t)

	recorder := fixture.do(t, http.MethodPatch, "/api/documents/"+docID, map[string]interface{}{
		"path":  "blocks[0].missing_field",
		"value": "x",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body.String())
	}
	response := decodeEnvelope(t, recorder)
	if response.Error == nil || response.Error.Code != ErrorInvalidPath {
		t.Errorf("error = %+v", response.Error)
	}
}

func TestEditDocumentPostEditValidation(t *testing.T) {
	fixture := newHandlerFixture(t)
	docID := fixture.createDocument(t)

	recorder := fixture.do(t, http.MethodPatch, "/api/documents/"+docID, map[string]interface{}{
		"path":  "blocks[1].text",
		"value": "",
	})
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body.String())
	}
	response := decodeEnvelope(t, recorder)
	if response.Error == nil || response.Error.Code != ErrorPostEditValidation {
		t.Errorf("error = %+v", response.Error)
	}
}

func TestEditBlockEndpoint(t *testing.T) {
	fixture := newHandlerFixture(t)
	docID := fixture.createDocument(t)

	recorder := fixture.do(t, http.MethodPost, "/api/documents/"+docID+"/blocks/blk_h", map[string]interface{}{
		"path":  "text",
		"value": "Nuevo titulo",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = fixture.do(t, http.MethodPost, "/api/documents/"+docID+"/blocks/blk_missing", map[string]interface{}{
		"path":  "text",
		"value": "x",
	})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d", recorder.Code)
	}
	response := decodeEnvelope(t, recorder)
	if response.Error == nil || response.Error.Code != ErrorBlockNotFound {
		t.Errorf("error = %+v", response.Error)
	}
}

func TestDeleteDocumentEndpoint(t *testing.T) {
	fixture := newHandlerFixture(t)
	docID := fixture.createDocument(t)

	recorder := fixture.do(t, http.MethodDelete, "/api/documents/"+docID, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}

	recorder = fixture.do(t, http.MethodGet, "/api/documents/"+docID, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status after delete = %d", recorder.Code)
	}
}

func TestExportDocumentEndpoint(t *testing.T) {
	fixture := newHandlerFixture(t)
	docID := fixture.createDocument(t)

	recorder := fixture.do(t, http.MethodGet, "/api/documents/"+docID+"/export?format=markdown", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "# Introduccion al tema") {
		t.Errorf("markdown export missing heading:\n%s", recorder.Body.String())
	}
	if disposition := recorder.Header().Get("Content-Disposition"); !strings.Contains(disposition, docID+".md") {
		t.Errorf("disposition = %q", disposition)
	}

	recorder = fixture.do(t, http.MethodGet, "/api/documents/"+docID+"/export?format=xml", nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unsupported format status = %d", recorder.Code)
	}
}

func TestGetProgressEndpoint(t *testing.T) {
	fixture := newHandlerFixture(t)

	recorder := fixture.do(t, http.MethodGet, "/api/progress/task_missing", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d", recorder.Code)
	}
	response := decodeEnvelope(t, recorder)
	if response.Error == nil || response.Error.Code != ErrorTaskNotFound {
		t.Errorf("error = %+v", response.Error)
	}
}

func TestGetLLMStatusEndpoint(t *testing.T) {
	fixture := newHandlerFixture(t)

	recorder := fixture.do(t, http.MethodGet, "/api/llm/status", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}

	response := decodeEnvelope(t, recorder)
	data := response.Data.(map[string]interface{})
	if data["provider"] != "mock" {
		t.Errorf("provider = %v", data["provider"])
	}
	if data["ready"] != true {
		t.Errorf("ready = %v", data["ready"])
	}
}

func TestRequestIDEchoed(t *testing.T) {
	fixture := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("X-Request-ID", "req_abc")
	recorder := httptest.NewRecorder()
	fixture.router.ServeHTTP(recorder, req)

	if got := recorder.Header().Get("X-Request-ID"); got != "req_abc" {
		t.Errorf("X-Request-ID = %q", got)
	}
	response := decodeEnvelope(t, recorder)
	if response.RequestID != "req_abc" {
		t.Errorf("envelope request_id = %q", response.RequestID)
	}
}

func TestParseEditPathEncodings(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"string form", `"blocks[0].text"`, "blocks[0].text", false},
		{"array form", `["blocks", 0, "text"]`, "blocks[0].text", false},
		{"empty array", `[]`, "", true},
		{"fractional index", `["blocks", 1.5]`, "", true},
		{"bool element", `["blocks", true]`, "", true},
		{"missing", ``, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := parseEditPath(json.RawMessage(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", path)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if path.String() != tt.want {
				t.Errorf("path = %q, want %q", path.String(), tt.want)
			}
		})
	}
}
