// internal/storage/document_store_test.go
package storage

import (
	"testing"

	apperrors "github.com/aulanotes/AulaNotes/internal/errors"
	"github.com/aulanotes/AulaNotes/internal/models"
)

func newStoreForTest(t *testing.T) *DocumentStore {
	t.Helper()
	files, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("storage setup failed: %v", err)
	}
	return NewDocumentStore(files)
}

func storedDocument(docID string) *models.Document {
	return &models.Document{
		DocID:   docID,
		Meta:    models.DocumentMeta{Course: "Algebra", Subject: "Matrices", Language: "es"},
		Version: models.SchemaVersion,
		Blocks: []models.Block{
			{ID: "blk_1", Kind: models.KindParagraph, Text: "hola", Tags: []string{}},
		},
	}
}

func TestSaveAndLoadDocument(t *testing.T) {
	store := newStoreForTest(t)

	if err := store.SaveDocument(storedDocument("doc_1")); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.LoadDocument("doc_1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.DocID != "doc_1" || loaded.Meta.Language != "es" || len(loaded.Blocks) != 1 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestSaveDocumentReplacesPrevious(t *testing.T) {
	store := newStoreForTest(t)

	first := storedDocument("doc_1")
	if err := store.SaveDocument(first); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	second := storedDocument("doc_1")
	second.Blocks[0].Text = "version nueva"
	if err := store.SaveDocument(second); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	loaded, err := store.LoadDocument("doc_1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Blocks[0].Text != "version nueva" {
		t.Errorf("text = %q, want the replacing version", loaded.Blocks[0].Text)
	}
}

func TestLoadDocumentNotFound(t *testing.T) {
	store := newStoreForTest(t)

	_, err := store.LoadDocument("doc_missing")
	if err == nil {
		t.Fatal("expected not found")
	}
	if !apperrors.IsNotFoundError(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestSaveDocumentRejectsBadIDs(t *testing.T) {
	store := newStoreForTest(t)

	for _, docID := range []string{"", "../escape", "a/b"} {
		doc := storedDocument(docID)
		if err := store.SaveDocument(doc); err == nil {
			t.Errorf("doc_id %q should be rejected", docID)
		}
	}
}

func TestListDocuments(t *testing.T) {
	store := newStoreForTest(t)

	// empty store lists empty, not an error
	summaries, err := store.ListDocuments()
	if err != nil {
		t.Fatalf("list on empty store failed: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("expected empty listing, got %v", summaries)
	}

	for _, docID := range []string{"doc_a", "doc_b"} {
		if err := store.SaveDocument(storedDocument(docID)); err != nil {
			t.Fatalf("save %s failed: %v", docID, err)
		}
	}

	summaries, err = store.ListDocuments()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %v", summaries)
	}

	seen := make(map[string]DocumentSummary)
	for _, summary := range summaries {
		seen[summary.DocID] = summary
	}
	if summary, ok := seen["doc_a"]; !ok || summary.BlockCount != 1 || summary.Course != "Algebra" {
		t.Errorf("doc_a summary = %+v", summary)
	}
}

func TestDeleteDocument(t *testing.T) {
	store := newStoreForTest(t)

	if err := store.SaveDocument(storedDocument("doc_1")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.DeleteDocument("doc_1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.LoadDocument("doc_1"); !apperrors.IsNotFoundError(err) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if err := store.DeleteDocument("doc_1"); !apperrors.IsNotFoundError(err) {
		t.Errorf("deleting a missing document should be not found, got %v", err)
	}
}
