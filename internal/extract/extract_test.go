// File path: internal/extract/extract_test.go
package extract

import (
	"testing"

	"github.com/reglens/reglens/internal/fault"
)

func TestExtractPlainText(t *testing.T) {
	e := NewTextExtractor()
	text, err := e.Extract(KindText, []byte("Line one.\r\nLine two.\n"))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "Line one.\nLine two.\n" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractRejections(t *testing.T) {
	e := NewTextExtractor()
	cases := []struct {
		name    string
		kind    Kind
		payload []byte
	}{
		{"unsupported kind", Kind("pdf"), []byte("content")},
		{"empty payload", KindText, nil},
		{"invalid utf8", KindText, []byte{0xff, 0xfe}},
		{"whitespace only", KindText, []byte("  \n\t ")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.Extract(tc.kind, tc.payload); !fault.Is(err, fault.CodeExtraction) {
				t.Fatalf("expected extraction fault, got %v", err)
			}
		})
	}
}
