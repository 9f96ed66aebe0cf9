// internal/models/segment.go
package models

import "fmt"

// Segment is one timestamped fragment of a transcript as produced by the
// external speech-to-text provider. Segments are immutable once produced.
type Segment struct {
	Index      int     `json:"index"`
	Start      float64 `json:"start"` // seconds
	End        float64 `json:"end"`   // seconds, > Start
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"` // 0..1, 0 when unknown
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// CheckSegments verifies the ordering contract the transcription provider
// promises: indices strictly increasing, start < end, non-overlapping,
// non-empty text. Callers that trust their provider may skip it; the API
// boundary does not.
func CheckSegments(segments []Segment) error {
	for i, seg := range segments {
		if seg.Text == "" {
			return fmt.Errorf("segment %d: empty text", i)
		}
		if seg.End <= seg.Start {
			return fmt.Errorf("segment %d: end %.3f <= start %.3f", i, seg.End, seg.Start)
		}
		if seg.Start < 0 {
			return fmt.Errorf("segment %d: negative start %.3f", i, seg.Start)
		}
		if i > 0 {
			prev := segments[i-1]
			if seg.Index <= prev.Index {
				return fmt.Errorf("segment %d: index %d not increasing after %d", i, seg.Index, prev.Index)
			}
			if seg.Start < prev.End {
				return fmt.Errorf("segment %d: start %.3f overlaps previous end %.3f", i, seg.Start, prev.End)
			}
		}
	}
	return nil
}
