// File path: internal/analyzer/prompt.go
package analyzer

import (
	"fmt"
	"strings"

	"github.com/reglens/reglens/internal/llm"
	"github.com/reglens/reglens/internal/ranker"
)

const systemPrompt = `You are a pharmaceutical regulatory compliance reviewer.
You compare a submitted protocol against excerpts from approved reference
documents and report compliance findings.

Respond with a single JSON object and nothing else, using exactly this shape:
{
  "compliance_score": <number 0-100>,
  "findings": [
    {
      "section": "<protocol section or topic>",
      "requirement": "<requirement from the references>",
      "status": "compliant" | "non-compliant" | "partial" | "needs-review",
      "severity": "critical" | "major" | "minor" | "info",
      "description": "<short explanation>",
      "reference": "<reference excerpt id, e.g. R2>"
    }
  ],
  "recommendations": ["<actionable recommendation>"]
}`

const sectionExcerptLimit = 1200

// buildMessages assembles the chat payload: the protocol under review plus
// the top ranked reference excerpts.
func buildMessages(protocolText string, sections []ranker.SimilarSection, topK int) []llm.Message {
	if topK <= 0 || topK > len(sections) {
		topK = len(sections)
	}
	var sb strings.Builder
	sb.WriteString("PROTOCOL UNDER REVIEW:\n")
	sb.WriteString(protocolText)
	sb.WriteString("\n\nREFERENCE EXCERPTS:\n")
	for i := 0; i < topK; i++ {
		section := sections[i]
		excerpt := section.SectionText
		if len(excerpt) > sectionExcerptLimit {
			excerpt = excerpt[:sectionExcerptLimit]
		}
		label := section.SectionLabel
		if label == "" {
			label = "unlabeled"
		}
		fmt.Fprintf(&sb, "[R%d] (section: %s, similarity: %.2f)\n%s\n\n", i+1, label, section.SimilarityScore, excerpt)
	}
	if topK == 0 {
		sb.WriteString("(no reference excerpts matched)\n")
	}
	return []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: sb.String()},
	}
}
