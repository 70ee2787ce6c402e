// File path: internal/corpus/types.go
package corpus

import "time"

// Document is an immutable source record ingested for a tenant. The raw text
// arrives pre-extracted; format parsing happens upstream.
type Document struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	RawText    string    `json:"raw_text"`
	Category   string    `json:"category,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Chunk is a bounded, metadata-tagged slice of a document. Offsets are byte
// positions into the document's raw text, so Text always equals
// RawText[StartOffset:EndOffset].
type Chunk struct {
	ID            string `json:"id"`
	DocumentID    string `json:"document_id"`
	Text          string `json:"text"`
	StartOffset   int    `json:"start_offset"`
	EndOffset     int    `json:"end_offset"`
	SectionLabel  string `json:"section_label"`
	SequenceIndex int    `json:"sequence_index"`
}

// DefaultSectionLabel tags chunks with no detectable heading.
const DefaultSectionLabel = "unlabeled"
