// internal/services/mutation_service_test.go
package services

import (
	"reflect"
	"testing"

	apperrors "github.com/aulanotes/AulaNotes/internal/errors"
	"github.com/aulanotes/AulaNotes/internal/models"
)

func mutationTestDocument() *models.Document {
	return &models.Document{
		DocID:   "doc_mut",
		Meta:    models.DocumentMeta{Course: "Algebra", Language: "es"},
		Version: models.SchemaVersion,
		Blocks: []models.Block{
			{ID: "blk_p", Kind: models.KindParagraph, Text: "texto original", Tags: []string{}},
			{ID: "blk_l", Kind: models.KindBulletList, Items: []string{"uno", "dos"}, Tags: []string{}},
		},
	}
}

func newMutationServiceForTest() *MutationService {
	return NewMutationService(NewValidateService())
}

func mustParsePath(t *testing.T, raw string) models.Path {
	t.Helper()
	path, err := models.ParsePath(raw)
	if err != nil {
		t.Fatalf("ParsePath(%q): %v", raw, err)
	}
	return path
}

func TestApplyEditReplaceField(t *testing.T) {
	doc := mutationTestDocument()

	result, err := newMutationServiceForTest().ApplyEdit(doc,
		mustParsePath(t, "blocks[0].text"), "texto corregido")
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}

	if result.Blocks[0].Text != "texto corregido" {
		t.Errorf("text = %q", result.Blocks[0].Text)
	}
	if doc.Blocks[0].Text != "texto original" {
		t.Error("input document was mutated")
	}
}

func TestApplyEditArraySemantics(t *testing.T) {
	service := newMutationServiceForTest()

	t.Run("replace at existing index", func(t *testing.T) {
		result, err := service.ApplyEdit(mutationTestDocument(),
			mustParsePath(t, "blocks[1].items[1]"), "tres")
		if err != nil {
			t.Fatalf("edit failed: %v", err)
		}
		if !reflect.DeepEqual(result.Blocks[1].Items, []string{"uno", "tres"}) {
			t.Errorf("items = %v", result.Blocks[1].Items)
		}
	})

	t.Run("append at length", func(t *testing.T) {
		result, err := service.ApplyEdit(mutationTestDocument(),
			mustParsePath(t, "blocks[1].items[2]"), "tres")
		if err != nil {
			t.Fatalf("edit failed: %v", err)
		}
		if !reflect.DeepEqual(result.Blocks[1].Items, []string{"uno", "dos", "tres"}) {
			t.Errorf("items = %v", result.Blocks[1].Items)
		}
	})

	t.Run("null removes and shifts", func(t *testing.T) {
		result, err := service.ApplyEdit(mutationTestDocument(),
			mustParsePath(t, "blocks[1].items[0]"), nil)
		if err != nil {
			t.Fatalf("edit failed: %v", err)
		}
		if !reflect.DeepEqual(result.Blocks[1].Items, []string{"dos"}) {
			t.Errorf("items = %v", result.Blocks[1].Items)
		}
	})

	t.Run("index past length is invalid", func(t *testing.T) {
		_, err := service.ApplyEdit(mutationTestDocument(),
			mustParsePath(t, "blocks[1].items[5]"), "x")
		if err == nil {
			t.Fatal("out-of-range index must fail")
		}
		if !apperrors.IsInvalidPathError(err) {
			t.Fatalf("expected invalid path error, got %v", err)
		}
	})
}

func TestApplyEditNoAutoCreate(t *testing.T) {
	service := newMutationServiceForTest()

	_, err := service.ApplyEdit(mutationTestDocument(),
		mustParsePath(t, "blocks[0].annotations"), "nota")
	if err == nil {
		t.Fatal("writing through a missing field must fail")
	}
	if !apperrors.IsInvalidPathError(err) {
		t.Fatalf("expected invalid path error, got %v", err)
	}
}

func TestApplyEditFailureLeavesDocumentUntouched(t *testing.T) {
	doc := mutationTestDocument()
	snapshot := doc.Clone()

	_, err := newMutationServiceForTest().ApplyEdit(doc,
		mustParsePath(t, "blocks[0].items[5]"), "x")
	if err == nil {
		t.Fatal("expected failure")
	}

	if !reflect.DeepEqual(doc, snapshot) {
		t.Error("failed edit modified the caller's document")
	}
}

func TestApplyEditPostEditValidation(t *testing.T) {
	doc := mutationTestDocument()

	// blanking the only payload of a paragraph makes the result invalid
	_, err := newMutationServiceForTest().ApplyEdit(doc,
		mustParsePath(t, "blocks[0].text"), "")
	if err == nil {
		t.Fatal("edit producing an invalid document must fail")
	}
	if !apperrors.IsPostEditValidationError(err) {
		t.Fatalf("expected post-edit validation error, got %v", err)
	}

	appErr := err.(*apperrors.AppError)
	if appErr.Details == nil {
		t.Error("post-edit failure should carry the violation list")
	}

	if doc.Blocks[0].Text != "texto original" {
		t.Error("failed edit modified the caller's document")
	}
}

func TestApplyEditTraversalThroughScalar(t *testing.T) {
	_, err := newMutationServiceForTest().ApplyEdit(mutationTestDocument(),
		mustParsePath(t, "doc_id.inner"), "x")
	if err == nil {
		t.Fatal("traversing through a scalar must fail")
	}
	if !apperrors.IsInvalidPathError(err) {
		t.Fatalf("expected invalid path error, got %v", err)
	}
}

func TestApplyBlockEdit(t *testing.T) {
	doc := mutationTestDocument()

	result, err := newMutationServiceForTest().ApplyBlockEdit(doc, "blk_l",
		mustParsePath(t, "items[0]"), "primero")
	if err != nil {
		t.Fatalf("block edit failed: %v", err)
	}
	if result.Blocks[1].Items[0] != "primero" {
		t.Errorf("items[0] = %q", result.Blocks[1].Items[0])
	}
}

func TestApplyBlockEditUnknownBlock(t *testing.T) {
	_, err := newMutationServiceForTest().ApplyBlockEdit(mutationTestDocument(),
		"blk_missing", mustParsePath(t, "text"), "x")
	if err == nil {
		t.Fatal("unknown block must fail")
	}
	if !apperrors.IsNotFoundError(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestApplyEditEmptyPath(t *testing.T) {
	_, err := newMutationServiceForTest().ApplyEdit(mutationTestDocument(), models.Path{}, "x")
	if err == nil {
		t.Fatal("empty path must fail")
	}
	if !apperrors.IsInvalidPathError(err) {
		t.Fatalf("expected invalid path error, got %v", err)
	}
}

func TestApplyEditPreservesOpaqueBlocks(t *testing.T) {
	candidate := map[string]interface{}{
		"doc_id":  "doc_mut",
		"version": models.SchemaVersion,
		"meta":    map[string]interface{}{"language": "es"},
		"blocks": []interface{}{
			map[string]interface{}{"id": "b1", "kind": "paragraph", "text": "hola"},
			map[string]interface{}{"id": "b2", "kind": "diagram", "layout": "force"},
		},
	}

	validator := NewValidateService()
	doc, err := validator.Validate(candidate)
	if err != nil {
		t.Fatalf("setup validation failed: %v", err)
	}

	result, err := NewMutationService(validator).ApplyEdit(doc,
		mustParsePath(t, "blocks[0].text"), "adios")
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}

	if _, ok := result.Blocks[1].Extra["layout"]; !ok {
		t.Error("opaque payload lost through an unrelated edit")
	}
}
