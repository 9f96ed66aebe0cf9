// internal/services/classifier.go
package services

import (
	"regexp"
	"strings"

	"github.com/aulanotes/AulaNotes/internal/models"
)

// classifyRule maps a line pattern to the block kind it opens. Rules are
// checked in order; the first match wins.
type classifyRule struct {
	pattern *regexp.Regexp
	kind    models.BlockKind
}

var classifyRules = []classifyRule{
	{regexp.MustCompile(`^###\s+`), models.KindHeading3},
	{regexp.MustCompile(`^##\s+`), models.KindHeading2},
	{regexp.MustCompile(`^#\s+`), models.KindHeading1},
	{regexp.MustCompile(`^>\s+`), models.KindQuote},
	{regexp.MustCompile("^```"), models.KindCode},
	{regexp.MustCompile(`^(?:[-*•]\s+)`), models.KindBulletList},
	{regexp.MustCompile(`^\d+[.)]\s+`), models.KindNumberedList},
	{regexp.MustCompile(`^(?i:nota|note)\s*:`), models.KindNote},
	{regexp.MustCompile(`^(?i:ejemplo|example)\s*:`), models.KindExample},
	{regexp.MustCompile(`^(?i:resumen|summary)\s*:`), models.KindSummary},
}

// ClassifyText returns the block kind a text line opens. Lines matching no
// rule are paragraphs.
func ClassifyText(line string) models.BlockKind {
	trimmed := strings.TrimSpace(line)
	for _, rule := range classifyRules {
		if rule.pattern.MatchString(trimmed) {
			return rule.kind
		}
	}
	return models.KindParagraph
}

var markerPrefix = regexp.MustCompile(`^(?:#{1,3}\s+|>\s+|[-*•]\s+|\d+[.)]\s+)`)

func stripMarker(line string) string {
	return strings.TrimSpace(markerPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
}

// StructureLocally builds a document from transcript text without any model
// call, using the classification rule table line by line. It is the offline
// fallback when no provider is configured; the result is coarser than model
// output but always valid.
func StructureLocally(transcriptText string, meta models.DocumentMeta, docID string) *models.Document {
	if docID == "" {
		docID = models.NewDocID()
	}

	doc := &models.Document{
		DocID:   docID,
		Meta:    meta,
		Version: models.SchemaVersion,
		Blocks:  []models.Block{},
	}

	var listItems []string
	var listKind models.BlockKind

	flushList := func() {
		if len(listItems) == 0 {
			return
		}
		doc.Blocks = append(doc.Blocks, models.Block{
			ID:    models.NewBlockID(),
			Kind:  listKind,
			Tags:  []string{},
			Items: listItems,
		})
		listItems = nil
	}

	for _, line := range strings.Split(transcriptText, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flushList()
			continue
		}

		kind := ClassifyText(trimmed)

		if kind == models.KindBulletList || kind == models.KindNumberedList {
			if len(listItems) > 0 && kind != listKind {
				flushList()
			}
			listKind = kind
			listItems = append(listItems, stripMarker(trimmed))
			continue
		}

		flushList()
		doc.Blocks = append(doc.Blocks, models.Block{
			ID:   models.NewBlockID(),
			Kind: kind,
			Tags: []string{},
			Text: stripMarker(trimmed),
		})
	}
	flushList()

	// a transcript with no line breaks still yields one paragraph per
	// document rather than an empty block list
	if len(doc.Blocks) == 0 && strings.TrimSpace(transcriptText) != "" {
		doc.Blocks = append(doc.Blocks, models.Block{
			ID:   models.NewBlockID(),
			Kind: models.KindParagraph,
			Tags: []string{},
			Text: strings.TrimSpace(transcriptText),
		})
	}

	return doc
}
