// internal/models/path_test.go
package models

import (
	"testing"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Path
		wantErr bool
	}{
		{
			name:  "single field",
			input: "doc_id",
			want:  Path{FieldSegment("doc_id")},
		},
		{
			name:  "field with index",
			input: "blocks[3]",
			want:  Path{FieldSegment("blocks"), IndexSegment(3)},
		},
		{
			name:  "nested field and indices",
			input: "blocks[3].items[1]",
			want: Path{
				FieldSegment("blocks"), IndexSegment(3),
				FieldSegment("items"), IndexSegment(1),
			},
		},
		{
			name:  "double index",
			input: "grid[0][2]",
			want:  Path{FieldSegment("grid"), IndexSegment(0), IndexSegment(2)},
		},
		{
			name:    "empty path",
			input:   "",
			wantErr: true,
		},
		{
			name:    "empty segment",
			input:   "blocks..items",
			wantErr: true,
		},
		{
			name:    "negative index",
			input:   "blocks[-1]",
			wantErr: true,
		},
		{
			name:    "non-numeric index",
			input:   "blocks[abc]",
			wantErr: true,
		},
		{
			name:    "unclosed bracket",
			input:   "blocks[3",
			wantErr: true,
		},
		{
			name:    "leading index",
			input:   "[0].text",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParsePath(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePath(%q) unexpected error: %v", tt.input, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParsePath(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParsePath(%q)[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPathString(t *testing.T) {
	inputs := []string{
		"doc_id",
		"blocks[3]",
		"blocks[3].items[1]",
		"meta.language",
	}

	for _, input := range inputs {
		path, err := ParsePath(input)
		if err != nil {
			t.Fatalf("ParsePath(%q) unexpected error: %v", input, err)
		}
		if got := path.String(); got != input {
			t.Errorf("round trip of %q = %q", input, got)
		}
	}
}

func TestPathPrefixAndLast(t *testing.T) {
	path, err := ParsePath("blocks[3].items[1]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prefix := path.Prefix()
	if prefix.String() != "blocks[3].items" {
		t.Errorf("Prefix() = %q, want %q", prefix.String(), "blocks[3].items")
	}

	last := path.Last()
	if !last.IsIndex || last.Index != 1 {
		t.Errorf("Last() = %v, want index 1", last)
	}
}
