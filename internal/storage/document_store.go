// internal/storage/document_store.go
package storage

import (
	"fmt"
	"strings"

	apperrors "github.com/aulanotes/AulaNotes/internal/errors"
	"github.com/aulanotes/AulaNotes/internal/models"
)

const documentsDir = "documents"

// DocumentStore is the document persistence boundary: a key-value store of
// documents keyed by doc_id, backed by JSON files. Concurrent writes to the
// same doc_id resolve last-writer-wins at this boundary.
type DocumentStore struct {
	files *FileStorage
}

// DocumentSummary is the listing entry for a stored document
type DocumentSummary struct {
	DocID      string `json:"doc_id"`
	Course     string `json:"course"`
	Subject    string `json:"subject"`
	Language   string `json:"language"`
	BlockCount int    `json:"block_count"`
}

// NewDocumentStore creates a document store on top of file storage
func NewDocumentStore(files *FileStorage) *DocumentStore {
	return &DocumentStore{files: files}
}

func documentFilename(docID string) string {
	return docID + ".json"
}

// SaveDocument persists a document under its doc_id, replacing any previous
// version
func (s *DocumentStore) SaveDocument(doc *models.Document) error {
	if doc == nil || doc.DocID == "" {
		return apperrors.NewValidationError("document has no doc_id", nil)
	}
	if strings.ContainsAny(doc.DocID, "/\\") {
		return apperrors.NewValidationError(fmt.Sprintf("doc_id %q contains path separators", doc.DocID), nil)
	}
	return s.files.SaveJSONFile(documentsDir, documentFilename(doc.DocID), doc)
}

// LoadDocument retrieves a document by doc_id, or a typed not-found error
func (s *DocumentStore) LoadDocument(docID string) (*models.Document, error) {
	var doc models.Document
	if err := s.files.LoadJSONFile(documentsDir, documentFilename(docID), &doc); err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("document %q not found", docID), err)
		}
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns a summary for every stored document
func (s *DocumentStore) ListDocuments() ([]DocumentSummary, error) {
	names, err := s.files.ListFiles(documentsDir, ".json")
	if err != nil {
		return nil, err
	}

	summaries := make([]DocumentSummary, 0, len(names))
	for _, name := range names {
		var doc models.Document
		if err := s.files.LoadJSONFile(documentsDir, name, &doc); err != nil {
			// a corrupt entry should not hide the rest of the listing
			continue
		}
		summaries = append(summaries, DocumentSummary{
			DocID:      doc.DocID,
			Course:     doc.Meta.Course,
			Subject:    doc.Meta.Subject,
			Language:   doc.Meta.Language,
			BlockCount: len(doc.Blocks),
		})
	}

	return summaries, nil
}

// DeleteDocument removes a stored document
func (s *DocumentStore) DeleteDocument(docID string) error {
	return s.files.DeleteFile(documentsDir, documentFilename(docID))
}
