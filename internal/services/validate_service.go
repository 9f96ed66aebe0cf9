// internal/services/validate_service.go
package services

import (
	"encoding/json"
	"fmt"

	"github.com/aulanotes/AulaNotes/internal/errors"
	"github.com/aulanotes/AulaNotes/internal/models"
)

// Violation is one structural problem found during validation. Validation
// always reports the complete list, not just the first.
type Violation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	ViolationMissingField = "missing_field"
	ViolationWrongType    = "wrong_type"
	ViolationWrongVersion = "wrong_version"
)

// ValidateService enforces the document's structural invariants. Known
// recoverable problems are normalized in place (duplicate ids, absent
// arrays); everything else is collected as a violation.
type ValidateService struct{}

// NewValidateService creates a validation service
func NewValidateService() *ValidateService {
	return &ValidateService{}
}

// Validate checks an untyped candidate and returns the normalized document,
// or a validation error carrying every violation found.
func (s *ValidateService) Validate(candidate interface{}) (*models.Document, error) {
	var doc models.Document

	switch value := candidate.(type) {
	case *models.Document:
		doc = *value.Clone()
	case models.Document:
		doc = *value.Clone()
	default:
		raw, err := json.Marshal(candidate)
		if err != nil {
			return nil, errors.NewValidationError("candidate is not representable as JSON", err)
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, errors.NewValidationError("candidate does not match the document shape", err)
		}
	}

	violations := s.normalize(&doc)
	if len(violations) > 0 {
		appErr := errors.NewValidationError(
			fmt.Sprintf("document has %d violation(s)", len(violations)), nil)
		appErr.Details = violations
		return nil, appErr
	}

	return &doc, nil
}

// ValidateDocument revalidates a typed document. Validation is idempotent:
// an already-valid document comes back unchanged.
func (s *ValidateService) ValidateDocument(doc *models.Document) (*models.Document, error) {
	return s.Validate(doc)
}

// normalize repairs what can be repaired and collects violations for what
// cannot.
func (s *ValidateService) normalize(doc *models.Document) []Violation {
	var violations []Violation

	if doc.DocID == "" {
		violations = append(violations, Violation{
			Field: "doc_id", Code: ViolationMissingField,
			Message: "doc_id is required",
		})
	}
	if doc.Meta.Language == "" {
		violations = append(violations, Violation{
			Field: "meta.language", Code: ViolationMissingField,
			Message: "meta.language is required",
		})
	}
	if doc.Version != models.SchemaVersion {
		violations = append(violations, Violation{
			Field: "version", Code: ViolationWrongVersion,
			Message: fmt.Sprintf("version %d is not supported, expected %d", doc.Version, models.SchemaVersion),
		})
	}
	if doc.Blocks == nil {
		doc.Blocks = []models.Block{}
	}

	seenIDs := make(map[string]int)
	for i := range doc.Blocks {
		block := &doc.Blocks[i]
		field := fmt.Sprintf("blocks[%d]", i)

		if block.ID == "" {
			block.ID = models.NewBlockID()
		}
		// duplicate ids are disambiguated with a numeric suffix instead of
		// rejected
		if count, seen := seenIDs[block.ID]; seen {
			original := block.ID
			block.ID = fmt.Sprintf("%s_%d", original, count+1)
			seenIDs[original] = count + 1
		}
		seenIDs[block.ID]++

		if block.Kind == "" {
			violations = append(violations, Violation{
				Field: field + ".kind", Code: ViolationMissingField,
				Message: "block kind is required",
			})
			continue
		}

		// downstream iteration assumes array-typed fields
		if block.Tags == nil {
			block.Tags = []string{}
		}

		violations = append(violations, checkPayload(field, block)...)
	}

	return violations
}

// checkPayload enforces the exactly-one-payload rule for the block's kind.
// Unknown kinds are preserved verbatim and skip payload checks.
func checkPayload(field string, block *models.Block) []Violation {
	class := models.PayloadClassOf(block.Kind)
	if class == models.PayloadOpaque {
		return nil
	}

	var violations []Violation

	hasText := block.Text != ""
	hasItems := len(block.Items) > 0
	hasConcept := block.Term != "" || block.Definition != ""

	populated := 0
	for _, present := range []bool{hasText, hasItems, hasConcept} {
		if present {
			populated++
		}
	}
	if populated > 1 {
		violations = append(violations, Violation{
			Field: field, Code: ViolationWrongType,
			Message: fmt.Sprintf("block of kind %q carries more than one payload group", block.Kind),
		})
		return violations
	}

	switch class {
	case models.PayloadText:
		if !hasText {
			violations = append(violations, Violation{
				Field: field + ".text", Code: ViolationMissingField,
				Message: fmt.Sprintf("block of kind %q requires text", block.Kind),
			})
		}
	case models.PayloadList:
		if !hasItems {
			violations = append(violations, Violation{
				Field: field + ".items", Code: ViolationMissingField,
				Message: fmt.Sprintf("block of kind %q requires at least one item", block.Kind),
			})
		}
	case models.PayloadConcept:
		if block.Term == "" {
			violations = append(violations, Violation{
				Field: field + ".term", Code: ViolationMissingField,
				Message: "concept block requires a term",
			})
		}
		if block.Definition == "" {
			violations = append(violations, Violation{
				Field: field + ".definition", Code: ViolationMissingField,
				Message: "concept block requires a definition",
			})
		}
		if block.Examples == nil {
			block.Examples = []string{}
		}
	}

	return violations
}
