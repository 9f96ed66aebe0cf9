// internal/services/mutation_service.go
package services

import (
	"encoding/json"
	"fmt"

	"github.com/aulanotes/AulaNotes/internal/errors"
	"github.com/aulanotes/AulaNotes/internal/models"
)

// MutationService applies localized, path-addressed edits to a document.
// Edits never run in place: the caller's document is untouched unless the
// fully revalidated result is returned.
type MutationService struct {
	Validator *ValidateService
}

// NewMutationService creates a mutation service
func NewMutationService(validator *ValidateService) *MutationService {
	return &MutationService{Validator: validator}
}

// ApplyEdit writes value at the location addressed by path and returns the
// revalidated result. Paths resolve against existing structure only: a step
// through a missing field or an out-of-range index fails with an invalid
// path error instead of fabricating nodes.
//
// Array edits reduce to the same write: an index equal to the array length
// appends, an existing index replaces, and writing JSON null at an existing
// index removes the element and shifts the rest down.
func (s *MutationService) ApplyEdit(doc *models.Document, path models.Path, value interface{}) (*models.Document, error) {
	if doc == nil {
		return nil, errors.NewValidationError("document is nil", nil)
	}
	if len(path) == 0 {
		return nil, errors.NewInvalidPathError("", "path is empty")
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.NewProcessingError("failed to serialize document", err)
	}
	var tree map[string]interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, errors.NewProcessingError("failed to decode document tree", err)
	}

	edited, err := setAtPath(tree, path, value, path)
	if err != nil {
		return nil, err
	}

	result, err := s.Validator.Validate(edited)
	if err != nil {
		var details interface{}
		if appErr, ok := err.(*errors.AppError); ok {
			details = appErr.Details
		}
		return nil, errors.NewPostEditValidationError(
			fmt.Sprintf("edit at %s produced an invalid document", path.String()), details)
	}

	return result, nil
}

// ApplyBlockEdit applies an edit with a path relative to a single block,
// for callers that pulled one block out for focused editing and do not know
// its position in the parent array.
func (s *MutationService) ApplyBlockEdit(doc *models.Document, blockID string, relative models.Path, value interface{}) (*models.Document, error) {
	if doc == nil {
		return nil, errors.NewValidationError("document is nil", nil)
	}

	index := -1
	for i := range doc.Blocks {
		if doc.Blocks[i].ID == blockID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, errors.NewNotFoundError(fmt.Sprintf("block %q not found", blockID), nil)
	}

	absolute := append(models.Path{
		models.FieldSegment("blocks"),
		models.IndexSegment(index),
	}, relative...)

	return s.ApplyEdit(doc, absolute, value)
}

// setAtPath folds over the path and returns the edited node. Containers are
// copied on the way down, so a failed edit leaves the original tree intact.
func setAtPath(node interface{}, path models.Path, value interface{}, full models.Path) (interface{}, error) {
	seg := path[0]

	switch container := node.(type) {
	case map[string]interface{}:
		if seg.IsIndex {
			return nil, errors.NewInvalidPathError(full.String(),
				fmt.Sprintf("index [%d] applied to an object", seg.Index))
		}
		current, exists := container[seg.Field]
		if !exists {
			return nil, errors.NewInvalidPathError(full.String(),
				fmt.Sprintf("field %q does not exist", seg.Field))
		}

		copied := make(map[string]interface{}, len(container))
		for k, v := range container {
			copied[k] = v
		}

		if len(path) == 1 {
			copied[seg.Field] = value
			return copied, nil
		}

		child, err := setAtPath(current, path[1:], value, full)
		if err != nil {
			return nil, err
		}
		copied[seg.Field] = child
		return copied, nil

	case []interface{}:
		if !seg.IsIndex {
			return nil, errors.NewInvalidPathError(full.String(),
				fmt.Sprintf("field %q applied to an array", seg.Field))
		}
		if seg.Index < 0 {
			return nil, errors.NewInvalidPathError(full.String(),
				fmt.Sprintf("negative index [%d]", seg.Index))
		}

		if len(path) == 1 {
			switch {
			case seg.Index == len(container):
				// append
				copied := append(append([]interface{}{}, container...), value)
				return copied, nil
			case seg.Index < len(container):
				if value == nil {
					// remove, shifting subsequent indices down
					copied := append([]interface{}{}, container[:seg.Index]...)
					return append(copied, container[seg.Index+1:]...), nil
				}
				copied := append([]interface{}{}, container...)
				copied[seg.Index] = value
				return copied, nil
			default:
				return nil, errors.NewInvalidPathError(full.String(),
					fmt.Sprintf("index [%d] out of range for array of length %d", seg.Index, len(container)))
			}
		}

		if seg.Index >= len(container) {
			return nil, errors.NewInvalidPathError(full.String(),
				fmt.Sprintf("index [%d] out of range for array of length %d", seg.Index, len(container)))
		}

		child, err := setAtPath(container[seg.Index], path[1:], value, full)
		if err != nil {
			return nil, err
		}
		copied := append([]interface{}{}, container...)
		copied[seg.Index] = child
		return copied, nil

	default:
		return nil, errors.NewInvalidPathError(full.String(),
			"path traverses through a non-container value")
	}
}
