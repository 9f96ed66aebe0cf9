// internal/models/path.go
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// PathSegment addresses one step into a document: either a named field or a
// numeric array index. Exactly one of the two forms applies.
type PathSegment struct {
	Field   string
	Index   int
	IsIndex bool
}

// FieldSegment builds a field step.
func FieldSegment(name string) PathSegment {
	return PathSegment{Field: name}
}

// IndexSegment builds an array-index step.
func IndexSegment(i int) PathSegment {
	return PathSegment{Index: i, IsIndex: true}
}

// Path is an ordered chain of segments rooted at the document, for example
// blocks[3].items[1] or meta.language.
type Path []PathSegment

// ParsePath parses the dotted/bracketed textual form. Empty paths, empty
// field names, negative indices and malformed brackets are all rejected.
func ParsePath(raw string) (Path, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty path")
	}

	var path Path
	for _, part := range strings.Split(raw, ".") {
		if part == "" {
			return nil, fmt.Errorf("path %q: empty segment", raw)
		}
		field := part
		var brackets string
		if open := strings.Index(part, "["); open >= 0 {
			field = part[:open]
			brackets = part[open:]
		}
		if field != "" {
			if strings.ContainsAny(field, "[]") {
				return nil, fmt.Errorf("path %q: malformed segment %q", raw, part)
			}
			path = append(path, FieldSegment(field))
		} else if len(path) == 0 {
			return nil, fmt.Errorf("path %q: index without field", raw)
		}
		for brackets != "" {
			if brackets[0] != '[' {
				return nil, fmt.Errorf("path %q: malformed segment %q", raw, part)
			}
			close := strings.Index(brackets, "]")
			if close < 0 {
				return nil, fmt.Errorf("path %q: unclosed bracket in %q", raw, part)
			}
			index, err := strconv.Atoi(brackets[1:close])
			if err != nil || index < 0 {
				return nil, fmt.Errorf("path %q: bad index in %q", raw, part)
			}
			path = append(path, IndexSegment(index))
			brackets = brackets[close+1:]
		}
	}
	return path, nil
}

// String renders the path back to its textual form.
func (p Path) String() string {
	var sb strings.Builder
	for i, seg := range p {
		if seg.IsIndex {
			fmt.Fprintf(&sb, "[%d]", seg.Index)
			continue
		}
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(seg.Field)
	}
	return sb.String()
}

// Prefix returns the path up to but excluding the last segment.
func (p Path) Prefix() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Last returns the final segment. Callers must check len(p) > 0 first.
func (p Path) Last() PathSegment {
	return p[len(p)-1]
}
