// File path: internal/extract/extract.go
package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/reglens/reglens/internal/fault"
)

// Kind names a supported upload format.
type Kind string

const (
	KindText     Kind = "text"
	KindMarkdown Kind = "markdown"
)

// Extractor turns an uploaded payload into plain text ready for chunking.
type Extractor interface {
	Extract(kind Kind, payload []byte) (string, error)
}

// TextExtractor handles plain-text and markdown payloads. Markdown passes
// through unmodified; the chunker's section detection works on headings in
// either form.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Extract(kind Kind, payload []byte) (string, error) {
	switch kind {
	case KindText, KindMarkdown, "":
	default:
		return "", fault.Extraction(fmt.Sprintf("unsupported document kind %q", kind), nil)
	}
	if len(payload) == 0 {
		return "", fault.Extraction("empty payload", nil)
	}
	if !utf8.Valid(payload) {
		return "", fault.Extraction("payload is not valid UTF-8", nil)
	}
	text := strings.ReplaceAll(string(payload), "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return "", fault.Extraction("payload contains no text", nil)
	}
	return text, nil
}
