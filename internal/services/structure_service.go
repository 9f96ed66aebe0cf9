// internal/services/structure_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aulanotes/AulaNotes/internal/errors"
	"github.com/aulanotes/AulaNotes/internal/models"
	"github.com/aulanotes/AulaNotes/internal/utils"
)

// StructureService turns raw transcript text into a typed document by way
// of a generative model. The model answer is untrusted text: it may wrap
// the JSON in prose or fences, or violate the schema outright, so every
// answer goes through extraction and full validation before it is returned.
type StructureService struct {
	LLMService *LLMService
	Validator  *ValidateService
}

// NewStructureService creates a structuring service
func NewStructureService(llmService *LLMService, validator *ValidateService) *StructureService {
	return &StructureService{
		LLMService: llmService,
		Validator:  validator,
	}
}

// StructureTranscript sends the transcript to the model and coerces the
// answer into a validated document. It performs exactly one model call and
// no retries; retry policy belongs to the caller.
func (s *StructureService) StructureTranscript(ctx context.Context, transcriptText string, meta models.DocumentMeta, docID string) (*models.Document, error) {
	if strings.TrimSpace(transcriptText) == "" {
		return nil, errors.NewValidationError("transcript text is empty", nil)
	}
	if docID == "" {
		docID = models.NewDocID()
	}

	systemPrompt := buildStructuringSystemPrompt(meta)
	answer, err := s.LLMService.CompleteJSON(ctx, transcriptText, systemPrompt)
	if err != nil {
		return nil, err
	}

	return s.CoerceAnswer(answer, meta, docID)
}

// CoerceAnswer extracts a document from a raw model answer. Exposed apart
// from StructureTranscript so replayed answers can be coerced offline.
func (s *StructureService) CoerceAnswer(answer string, meta models.DocumentMeta, docID string) (*models.Document, error) {
	candidate, ok := parseFirstCandidate(answer)
	if !ok {
		utils.GetLogger().Warn("Model answer could not be parsed as JSON", map[string]interface{}{
			"doc_id":     docID,
			"answer_len": len(answer),
		})
		return nil, errors.NewUnparsableError("model answer contains no parsable JSON document", answer)
	}

	// The caller-supplied identity and metadata are authoritative. Fill
	// them in before validation so a model that omits the envelope does
	// not fail for fields it was never responsible for.
	if _, exists := candidate["doc_id"]; !exists {
		candidate["doc_id"] = docID
	}
	if _, exists := candidate["version"]; !exists {
		candidate["version"] = models.SchemaVersion
	}
	if _, exists := candidate["meta"]; !exists {
		candidate["meta"] = map[string]interface{}{
			"course":   meta.Course,
			"subject":  meta.Subject,
			"language": meta.Language,
		}
	}

	doc, err := s.Validator.Validate(candidate)
	if err != nil {
		return nil, errors.WrapError(err, "model answer violated the document schema", errors.ErrorTypeValidation)
	}

	doc.DocID = docID
	doc.Meta = meta
	return doc, nil
}

// parseFirstCandidate applies the extraction policy in order, first parse
// success wins:
//  1. the interior of a ```json fenced block
//  2. the substring from the first { to the last }
//  3. the whole answer
//
// A candidate that fails the strict parse gets one more attempt after noise
// repair (fullwidth punctuation, zero-width characters, trailing prose).
// Repair never changes which candidate wins, only whether it parses.
func parseFirstCandidate(answer string) (map[string]interface{}, bool) {
	for _, candidate := range extractionCandidates(answer) {
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			return parsed, true
		}
		if repaired := CleanLLMJSONResponse(candidate); repaired != candidate {
			if err := json.Unmarshal([]byte(repaired), &parsed); err == nil {
				return parsed, true
			}
		}
	}
	return nil, false
}

func extractionCandidates(answer string) []string {
	var candidates []string

	if fenced, ok := extractFencedJSON(answer); ok {
		candidates = append(candidates, fenced)
	}

	if open := strings.Index(answer, "{"); open >= 0 {
		if close := strings.LastIndex(answer, "}"); close > open {
			candidates = append(candidates, answer[open:close+1])
		}
	}

	candidates = append(candidates, strings.TrimSpace(answer))
	return candidates
}

// extractFencedJSON returns the interior of the first ```json fenced block.
func extractFencedJSON(answer string) (string, bool) {
	lower := strings.ToLower(answer)
	start := strings.Index(lower, "```json")
	if start < 0 {
		return "", false
	}

	interior := answer[start+len("```json"):]
	end := strings.Index(interior, "```")
	if end < 0 {
		return "", false
	}

	return strings.TrimSpace(interior[:end]), true
}

// buildStructuringSystemPrompt declares the exact target JSON shape and a
// one-shot example, and requests a JSON-only answer.
func buildStructuringSystemPrompt(meta models.DocumentMeta) string {
	kinds := make([]string, 0, len(models.KnownKinds()))
	for _, kind := range models.KnownKinds() {
		kinds = append(kinds, string(kind))
	}

	return fmt.Sprintf(`You are a lecture-notes structuring engine. Convert the transcript the user sends into a single JSON document, and answer with JSON only: no prose, no markdown fences, no commentary.

Target shape:
{
  "doc_id": "string",
  "meta": {"course": %q, "subject": %q, "language": %q},
  "version": %d,
  "blocks": [
    {"id": "unique string", "kind": "<one of: %s>", "tags": ["string"], ...payload}
  ]
}

Payload rules by kind:
- heading1, heading2, heading3, paragraph, quote, code, summary, formula, note, example: {"text": "string"}
- bullet_list, numbered_list: {"items": ["string", ...]} with at least one item
- concept: {"term": "string", "definition": "string", "examples": ["string", ...]}
Exactly one payload group per block, chosen by its kind.

Write all block content in %s. Preserve the lecture's own order.

Example answer for the transcript "today we cover matrices, a matrix is a grid of numbers":
{"doc_id":"doc_example","meta":{"course":%q,"subject":%q,"language":%q},"version":%d,"blocks":[{"id":"b1","kind":"heading1","tags":[],"text":"Matrices"},{"id":"b2","kind":"concept","tags":[],"term":"Matrix","definition":"A grid of numbers","examples":[]}]}`,
		meta.Course, meta.Subject, meta.Language,
		models.SchemaVersion,
		strings.Join(kinds, ", "),
		promptLanguage(meta.Language),
		meta.Course, meta.Subject, meta.Language,
		models.SchemaVersion,
	)
}

func promptLanguage(code string) string {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "es", "es-es", "es-mx":
		return "Spanish"
	case "en", "en-us", "en-gb", "":
		return "English"
	case "pt", "pt-br":
		return "Portuguese"
	case "fr":
		return "French"
	case "de":
		return "German"
	default:
		return "the transcript's language (" + code + ")"
	}
}
