// internal/services/align_service.go
package services

import (
	"strings"
	"unicode"

	"github.com/aulanotes/AulaNotes/internal/models"
)

// alignAcceptThreshold is the minimal token-overlap ratio for a segment run
// to be accepted as a block's source span. Tuned against real lecture
// transcripts; runs below it leave the block without consumed segments.
const alignAcceptThreshold = 0.3

// WarningNoSegments marks an alignment that ran without transcript timing
const WarningNoSegments = "no_segments"

// AlignService assigns each block the time range of the transcript segments
// it was derived from. The model reorganizes text freely, so matching is by
// normalized token overlap, never verbatim comparison.
type AlignService struct{}

// NewAlignService creates an alignment service
func NewAlignService() *AlignService {
	return &AlignService{}
}

// Align walks blocks in document order and segments in time order with two
// cursors. Each block greedily consumes the minimal contiguous run of
// not-yet-consumed segments whose concatenated text best covers the block's
// text. The segment cursor never moves backward: a segment consumed by one
// block cannot be reclaimed by a later one.
//
// The input slice is not modified; the result is a fresh list.
func (s *AlignService) Align(blocks []models.Block, segments []models.Segment) ([]models.Block, *PipelineWarning) {
	out := make([]models.Block, len(blocks))
	for i := range blocks {
		out[i] = blocks[i].Clone()
	}

	if len(segments) == 0 {
		for i := range out {
			out[i].Time = &models.TimeRange{Start: 0, End: 0}
		}
		return out, &PipelineWarning{
			Code:    WarningNoSegments,
			Message: "no transcript segments available, all blocks were given zero-width time",
		}
	}

	cursor := 0
	prevEnd := 0.0

	for i := range out {
		blockTokens := tokenSet(out[i].PlainText())

		runLen, ratio := bestRun(blockTokens, segments[cursor:])
		if runLen == 0 || ratio < alignAcceptThreshold {
			// no literal transcript counterpart: zero-width marker at the
			// seam, never nil, so consumers can still sort by time
			out[i].Time = &models.TimeRange{Start: prevEnd, End: prevEnd}
			continue
		}

		run := segments[cursor : cursor+runLen]
		out[i].Time = &models.TimeRange{
			Start: run[0].Start,
			End:   run[len(run)-1].End,
		}
		prevEnd = out[i].Time.End
		cursor += runLen
	}

	// segments left after the last block are ignored; their content is
	// assumed folded into the final block textually
	return out, nil
}

// bestRun grows a segment run from the cursor while the overlap ratio
// strictly improves, and returns the run length with its final ratio.
func bestRun(blockTokens map[string]struct{}, segments []models.Segment) (int, float64) {
	if len(blockTokens) == 0 || len(segments) == 0 {
		return 0, 0
	}

	covered := make(map[string]struct{})
	bestLen := 0
	bestRatio := 0.0

	for i := range segments {
		for _, token := range tokenize(segments[i].Text) {
			if _, wanted := blockTokens[token]; wanted {
				covered[token] = struct{}{}
			}
		}
		ratio := float64(len(covered)) / float64(len(blockTokens))
		if ratio > bestRatio {
			bestRatio = ratio
			bestLen = i + 1
			continue
		}
		// consuming one more segment did not improve coverage, stop
		break
	}

	return bestLen, bestRatio
}

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range tokenize(text) {
		set[token] = struct{}{}
	}
	return set
}
