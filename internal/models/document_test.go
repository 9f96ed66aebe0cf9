// internal/models/document_test.go
package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestBlockUnknownKindRoundTrip(t *testing.T) {
	raw := `{
		"id": "blk_x",
		"kind": "diagram",
		"nodes": [{"from": "a", "to": "b"}],
		"layout": "force"
	}`

	var block Block
	if err := json.Unmarshal([]byte(raw), &block); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if block.Kind != "diagram" {
		t.Fatalf("kind = %q, want diagram", block.Kind)
	}
	if IsKnownKind(block.Kind) {
		t.Fatal("diagram should not be a known kind")
	}
	if _, ok := block.Extra["nodes"]; !ok {
		t.Fatal("unknown payload field nodes not preserved in Extra")
	}
	if _, ok := block.Extra["layout"]; !ok {
		t.Fatal("unknown payload field layout not preserved in Extra")
	}

	out, err := json.Marshal(block)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("re-decode failed: %v", err)
	}
	if decoded["layout"] != "force" {
		t.Errorf("layout not round-tripped, got %v", decoded["layout"])
	}
	if _, ok := decoded["nodes"]; !ok {
		t.Error("nodes not round-tripped")
	}
	if _, ok := decoded["extra"]; ok {
		t.Error("opaque payload should be inlined, not nested under extra")
	}
}

func TestBlockKnownFieldsNotCapturedAsExtra(t *testing.T) {
	raw := `{"id": "blk_y", "kind": "paragraph", "text": "hola", "confidence": 0.9}`

	var block Block
	if err := json.Unmarshal([]byte(raw), &block); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if block.Text != "hola" {
		t.Errorf("text = %q", block.Text)
	}
	if len(block.Extra) != 0 {
		t.Errorf("known fields leaked into Extra: %v", block.Extra)
	}
}

func TestDocumentCloneIsDeep(t *testing.T) {
	speaker := "profesora"
	doc := &Document{
		DocID:   "doc_1",
		Meta:    DocumentMeta{Language: "es"},
		Version: SchemaVersion,
		Blocks: []Block{
			{
				ID:      "blk_1",
				Kind:    KindBulletList,
				Items:   []string{"uno", "dos"},
				Tags:    []string{"listado"},
				Speaker: &speaker,
				Time:    &TimeRange{Start: 1, End: 2},
			},
		},
	}

	clone := doc.Clone()
	clone.Blocks[0].Items[0] = "cambiado"
	clone.Blocks[0].Tags[0] = "otro"
	clone.Blocks[0].Time.End = 99
	*clone.Blocks[0].Speaker = "alumno"

	if doc.Blocks[0].Items[0] != "uno" {
		t.Error("clone shares Items backing array")
	}
	if doc.Blocks[0].Tags[0] != "listado" {
		t.Error("clone shares Tags backing array")
	}
	if doc.Blocks[0].Time.End != 2 {
		t.Error("clone shares Time pointer")
	}
	if *doc.Blocks[0].Speaker != "profesora" {
		t.Error("clone shares Speaker pointer")
	}
}

func TestPayloadClassOf(t *testing.T) {
	tests := []struct {
		kind BlockKind
		want PayloadClass
	}{
		{KindParagraph, PayloadText},
		{KindHeading1, PayloadText},
		{KindBulletList, PayloadList},
		{KindNumberedList, PayloadList},
		{KindConcept, PayloadConcept},
		{BlockKind("diagram"), PayloadOpaque},
	}

	for _, tt := range tests {
		if got := PayloadClassOf(tt.kind); got != tt.want {
			t.Errorf("PayloadClassOf(%s) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestPlainText(t *testing.T) {
	list := Block{Kind: KindBulletList, Items: []string{"uno", "dos"}}
	if got := list.PlainText(); !strings.Contains(got, "uno") || !strings.Contains(got, "dos") {
		t.Errorf("list PlainText = %q", got)
	}

	concept := Block{Kind: KindConcept, Term: "Matriz", Definition: "arreglo rectangular"}
	if got := concept.PlainText(); !strings.Contains(got, "Matriz") || !strings.Contains(got, "arreglo") {
		t.Errorf("concept PlainText = %q", got)
	}
}

func TestNewIDs(t *testing.T) {
	if !strings.HasPrefix(NewDocID(), "doc_") {
		t.Error("doc id prefix")
	}
	if !strings.HasPrefix(NewBlockID(), "blk_") {
		t.Error("block id prefix")
	}
	if NewBlockID() == NewBlockID() {
		t.Error("block ids should be unique")
	}
}
