// internal/models/document.go
package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// SchemaVersion pins the exact document shape validators accept. Documents
// carrying any other version are rejected, never silently accepted.
const SchemaVersion = 1

// BlockKind enumerates the typed content blocks of a structured document.
type BlockKind string

const (
	KindHeading1     BlockKind = "heading1"
	KindHeading2     BlockKind = "heading2"
	KindHeading3     BlockKind = "heading3"
	KindParagraph    BlockKind = "paragraph"
	KindBulletList   BlockKind = "bullet_list"
	KindNumberedList BlockKind = "numbered_list"
	KindQuote        BlockKind = "quote"
	KindCode         BlockKind = "code"
	KindConcept      BlockKind = "concept"
	KindSummary      BlockKind = "summary"
	KindFormula      BlockKind = "formula"
	KindNote         BlockKind = "note"
	KindExample      BlockKind = "example"
)

// PayloadClass says which payload fields a kind carries. Exactly one class
// applies to every known kind; dispatch on it instead of sniffing fields.
type PayloadClass int

const (
	PayloadText    PayloadClass = iota // Text
	PayloadList                        // Items
	PayloadConcept                     // Term + Definition (+ Examples)
	PayloadOpaque                      // unknown kind, payload kept verbatim
)

// kindPayloads is the closed rule table for known kinds.
var kindPayloads = map[BlockKind]PayloadClass{
	KindHeading1:     PayloadText,
	KindHeading2:     PayloadText,
	KindHeading3:     PayloadText,
	KindParagraph:    PayloadText,
	KindBulletList:   PayloadList,
	KindNumberedList: PayloadList,
	KindQuote:        PayloadText,
	KindCode:         PayloadText,
	KindConcept:      PayloadConcept,
	KindSummary:      PayloadText,
	KindFormula:      PayloadText,
	KindNote:         PayloadText,
	KindExample:      PayloadText,
}

// PayloadClassOf returns the payload class for a kind. Unknown kinds map to
// PayloadOpaque: they are preserved, not dropped, for renderer-side
// extensions the core does not know about.
func PayloadClassOf(kind BlockKind) PayloadClass {
	if class, known := kindPayloads[kind]; known {
		return class
	}
	return PayloadOpaque
}

// IsKnownKind reports whether kind belongs to the pinned schema.
func IsKnownKind(kind BlockKind) bool {
	_, known := kindPayloads[kind]
	return known
}

// KnownKinds lists the kind enum in a stable order, for prompts and errors.
func KnownKinds() []BlockKind {
	return []BlockKind{
		KindHeading1, KindHeading2, KindHeading3, KindParagraph,
		KindBulletList, KindNumberedList, KindQuote, KindCode,
		KindConcept, KindSummary, KindFormula, KindNote, KindExample,
	}
}

// TimeRange is the source-audio span a block was derived from, in seconds.
// A zero-width range marks a block with no literal transcript counterpart.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Block is one typed unit of structured content. Exactly one payload group
// is populated according to Kind: Text, Items, or Term+Definition(+Examples).
// Unknown kinds keep their raw payload in Extra.
type Block struct {
	ID         string    `json:"id"`
	Kind       BlockKind `json:"kind"`
	Time       *TimeRange `json:"time,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Speaker    *string   `json:"speaker,omitempty"`
	Tags       []string  `json:"tags"`

	// Text-bearing kinds.
	Text string `json:"text,omitempty"`

	// List kinds.
	Items []string `json:"items,omitempty"`

	// Concept kind.
	Term       string   `json:"term,omitempty"`
	Definition string   `json:"definition,omitempty"`
	Examples   []string `json:"examples,omitempty"`

	// Raw payload of an unknown kind, stored verbatim.
	Extra map[string]json.RawMessage `json:"extra,omitempty"`
}

// DocumentMeta carries the lecture context attached by the caller.
type DocumentMeta struct {
	Course   string `json:"course"`
	Subject  string `json:"subject"`
	Language string `json:"language"`
}

// Document is the full structured output: metadata plus blocks in reading
// order (which is not necessarily time order).
type Document struct {
	DocID   string       `json:"doc_id"`
	Meta    DocumentMeta `json:"meta"`
	Blocks  []Block      `json:"blocks"`
	Version int          `json:"version"`
}

// NewDocID returns a fresh document identifier.
func NewDocID() string {
	return "doc_" + uuid.NewString()
}

// NewBlockID returns a fresh block identifier.
func NewBlockID() string {
	return "blk_" + uuid.NewString()[:8]
}

// Clone returns a deep copy. Edits and alignment work on copies so that a
// caller-held Document is never observed half-changed.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		DocID:   d.DocID,
		Meta:    d.Meta,
		Version: d.Version,
		Blocks:  make([]Block, len(d.Blocks)),
	}
	for i := range d.Blocks {
		out.Blocks[i] = d.Blocks[i].Clone()
	}
	return out
}

// Clone returns a deep copy of the block.
func (b Block) Clone() Block {
	out := b
	if b.Time != nil {
		t := *b.Time
		out.Time = &t
	}
	if b.Speaker != nil {
		s := *b.Speaker
		out.Speaker = &s
	}
	out.Tags = append([]string(nil), b.Tags...)
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if b.Items != nil {
		out.Items = append([]string(nil), b.Items...)
	}
	if b.Examples != nil {
		out.Examples = append([]string(nil), b.Examples...)
	}
	if b.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(b.Extra))
		for k, v := range b.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// blockKnownKeys are the JSON keys the Block struct itself owns. Anything
// else on an incoming block is kept in Extra so unknown kinds round-trip.
var blockKnownKeys = map[string]bool{
	"id": true, "kind": true, "time": true, "confidence": true,
	"speaker": true, "tags": true, "text": true, "items": true,
	"term": true, "definition": true, "examples": true,
}

type blockAlias Block

// UnmarshalJSON decodes the typed fields and stashes unrecognized keys in
// Extra instead of dropping them.
func (b *Block) UnmarshalJSON(data []byte) error {
	var alias blockAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	alias.Extra = nil
	for key, value := range raw {
		if blockKnownKeys[key] || key == "extra" {
			continue
		}
		if alias.Extra == nil {
			alias.Extra = map[string]json.RawMessage{}
		}
		alias.Extra[key] = value
	}
	if extra, ok := raw["extra"]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(extra, &nested); err == nil {
			for key, value := range nested {
				if alias.Extra == nil {
					alias.Extra = map[string]json.RawMessage{}
				}
				alias.Extra[key] = value
			}
		}
	}
	*b = Block(alias)
	return nil
}

// MarshalJSON inlines Extra next to the typed fields, reproducing the shape
// the block arrived in.
func (b Block) MarshalJSON() ([]byte, error) {
	alias := blockAlias(b)
	alias.Extra = nil
	data, err := json.Marshal(alias)
	if err != nil {
		return nil, err
	}
	if len(b.Extra) == 0 {
		return data, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, value := range b.Extra {
		if _, taken := merged[key]; !taken {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

// PlainText returns the block's textual content regardless of kind, used by
// the aligner to score blocks against transcript segments.
func (b Block) PlainText() string {
	switch PayloadClassOf(b.Kind) {
	case PayloadText:
		return b.Text
	case PayloadList:
		text := ""
		for i, item := range b.Items {
			if i > 0 {
				text += " "
			}
			text += item
		}
		return text
	case PayloadConcept:
		text := b.Term + " " + b.Definition
		for _, ex := range b.Examples {
			text += " " + ex
		}
		return text
	default:
		return b.Text
	}
}
