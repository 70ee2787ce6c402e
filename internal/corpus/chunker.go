// File path: internal/corpus/chunker.go
package corpus

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ChunkerConfig bounds chunk sizes produced by ChunkDocument. Zero values
// fall back to the standard retrieval window.
type ChunkerConfig struct {
	MinSize int `json:"min_size"`
	MaxSize int `json:"max_size"`
	Overlap int `json:"overlap"`
}

// DefaultChunkerConfig returns the standard chunking bounds.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{MinSize: 500, MaxSize: 2000, Overlap: 200}
}

func (c ChunkerConfig) normalized() ChunkerConfig {
	def := DefaultChunkerConfig()
	if c.MinSize <= 0 {
		c.MinSize = def.MinSize
	}
	if c.MaxSize <= c.MinSize {
		c.MaxSize = def.MaxSize
	}
	if c.Overlap <= 0 || c.Overlap >= c.MaxSize {
		c.Overlap = def.Overlap
	}
	return c
}

var numberedHeading = regexp.MustCompile(`^\d+(\.\d+)*[.)]?\s+\S`)

// block is a contiguous span of the document text between paragraph
// boundaries, tagged with the section label active where it starts.
type block struct {
	start int
	end   int
	label string
}

// span is a candidate chunk region prior to materialization.
type span struct {
	start int
	end   int
	label string
}

// ChunkDocument splits a document into bounded, overlapping chunks. The
// result is deterministic for identical input text and configuration.
// Whitespace-only input yields no chunks.
func ChunkDocument(doc Document, cfg ChunkerConfig) []Chunk {
	cfg = cfg.normalized()
	text := doc.RawText
	if strings.TrimSpace(text) == "" {
		return nil
	}
	blocks := splitBlocks(text)
	spans := assembleSpans(text, blocks, cfg)
	spans = mergeSmallSpans(spans, cfg)
	chunks := make([]Chunk, 0, len(spans))
	for idx, sp := range spans {
		chunks = append(chunks, Chunk{
			ID:            fmt.Sprintf("%s:%d", doc.ID, idx),
			DocumentID:    doc.ID,
			Text:          text[sp.start:sp.end],
			StartOffset:   sp.start,
			EndOffset:     sp.end,
			SectionLabel:  sp.label,
			SequenceIndex: idx,
		})
	}
	return chunks
}

// splitBlocks walks the text and produces contiguous paragraph spans. The
// current section label follows detected headings.
func splitBlocks(text string) []block {
	var blocks []block
	label := DefaultSectionLabel
	offset := 0
	for offset < len(text) {
		// Skip blank runs between paragraphs.
		next := offset
		for next < len(text) && isBlankAt(text, next) {
			next++
		}
		if next >= len(text) {
			break
		}
		end := paragraphEnd(text, next)
		segment := text[next:end]
		if heading, ok := headingLabel(firstLine(segment)); ok {
			label = heading
		}
		blocks = append(blocks, block{start: next, end: end, label: label})
		offset = end
	}
	return blocks
}

// paragraphEnd finds the end of the paragraph starting at pos: the position
// of the next blank line, or the end of text.
func paragraphEnd(text string, pos int) int {
	i := pos
	for i < len(text) {
		if text[i] == '\n' {
			j := i + 1
			for j < len(text) && (text[j] == ' ' || text[j] == '\t' || text[j] == '\r') {
				j++
			}
			if j < len(text) && text[j] == '\n' {
				return i
			}
		}
		i++
	}
	return len(text)
}

func isBlankAt(text string, pos int) bool {
	switch text[pos] {
	case ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

func firstLine(segment string) string {
	if idx := strings.IndexByte(segment, '\n'); idx >= 0 {
		return segment[:idx]
	}
	return segment
}

// headingLabel recognizes numbered section headers ("4.2 Storage") and
// short ALL-CAPS lines ("ADVERSE EVENTS") as section labels.
func headingLabel(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 3 || len(trimmed) > 120 {
		return "", false
	}
	if numberedHeading.MatchString(trimmed) {
		return trimmed, true
	}
	hasLetter := false
	for _, r := range trimmed {
		if unicode.IsLower(r) {
			return "", false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	if hasLetter && len(trimmed) <= 80 {
		return trimmed, true
	}
	return "", false
}

// assembleSpans packs consecutive blocks into spans bounded by MaxSize,
// hard-splitting oversized blocks with overlap.
func assembleSpans(text string, blocks []block, cfg ChunkerConfig) []span {
	var spans []span
	var current *span
	flush := func() {
		if current != nil {
			spans = append(spans, *current)
			current = nil
		}
	}
	for _, b := range blocks {
		size := b.end - b.start
		if size > cfg.MaxSize {
			flush()
			spans = append(spans, splitOversized(text, b, cfg)...)
			continue
		}
		if current == nil {
			sp := span{start: b.start, end: b.end, label: b.label}
			current = &sp
			continue
		}
		if b.label != current.label || b.end-current.start > cfg.MaxSize {
			flush()
			sp := span{start: b.start, end: b.end, label: b.label}
			current = &sp
			continue
		}
		current.end = b.end
	}
	flush()
	return spans
}

// splitOversized cuts a block larger than MaxSize into overlapping windows.
// Each cut prefers the nearest whitespace behind the size limit; consecutive
// windows share exactly Overlap characters.
func splitOversized(text string, b block, cfg ChunkerConfig) []span {
	var out []span
	start := b.start
	for {
		end := start + cfg.MaxSize
		if end >= b.end {
			out = append(out, span{start: start, end: b.end, label: b.label})
			return out
		}
		end = backtrackWhitespace(text, start, end, cfg.Overlap)
		out = append(out, span{start: start, end: end, label: b.label})
		next := end - cfg.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
}

// backtrackWhitespace moves a cut point back to the nearest whitespace,
// searching at most limit bytes. Without whitespace the hard boundary stands.
func backtrackWhitespace(text string, start, end, limit int) int {
	floor := end - limit
	if floor < start+1 {
		floor = start + 1
	}
	for i := end; i > floor; i-- {
		switch text[i-1] {
		case ' ', '\t', '\r', '\n':
			return i
		}
	}
	return end
}

// mergeSmallSpans folds spans below MinSize into a neighbor when the merged
// span still fits the size cap.
func mergeSmallSpans(spans []span, cfg ChunkerConfig) []span {
	if len(spans) < 2 {
		return spans
	}
	out := make([]span, 0, len(spans))
	for _, sp := range spans {
		if len(out) > 0 {
			prev := &out[len(out)-1]
			// The merged span covers any separator between the two, so the
			// offsets stay truthful against the source text.
			small := sp.end-sp.start < cfg.MinSize || prev.end-prev.start < cfg.MinSize
			if small && sp.end-prev.start <= cfg.MaxSize {
				prev.end = sp.end
				continue
			}
		}
		out = append(out, sp)
	}
	return out
}
