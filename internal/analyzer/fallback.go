// File path: internal/analyzer/fallback.go
package analyzer

import (
	"fmt"

	"github.com/reglens/reglens/internal/ranker"
)

const maxFallbackFindings = 5

// fallbackVerdict derives a compliance verdict purely from the similarity
// distribution of the ranked sections. It needs no network and produces the
// same result shape as the LLM path.
func fallbackVerdict(sections []ranker.SimilarSection, threshold float64) (float64, []Finding, []string) {
	if len(sections) == 0 {
		findings := []Finding{{
			Section:     "protocol",
			Requirement: "coverage by approved reference documents",
			Status:      StatusNeedsReview,
			Severity:    SeverityMajor,
			Description: "no indexed reference section matched the protocol above the similarity threshold",
		}}
		recommendations := []string{
			"Ingest the reference documents governing this protocol before re-running the analysis.",
			"Have a qualified reviewer assess the protocol manually.",
		}
		return 0, findings, recommendations
	}

	var sum float64
	for _, section := range sections {
		sum += clampUnit(section.SimilarityScore)
	}
	score := sum / float64(len(sections)) * 100
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	var findings []Finding
	for _, section := range sections {
		if section.SimilarityScore >= threshold {
			continue
		}
		if len(findings) >= maxFallbackFindings {
			break
		}
		label := section.SectionLabel
		if label == "" {
			label = "unlabeled"
		}
		findings = append(findings, Finding{
			Section:     label,
			Requirement: "alignment with reference documentation",
			Status:      StatusNeedsReview,
			Severity:    SeverityMinor,
			Description: fmt.Sprintf("similarity %.2f is too low for an automatic verdict; manual review recommended", section.SimilarityScore),
			Reference:   section.ChunkID,
		})
	}
	if len(findings) == 0 {
		findings = append(findings, Finding{
			Section:     "protocol",
			Requirement: "alignment with reference documentation",
			Status:      StatusNeedsReview,
			Severity:    SeverityInfo,
			Description: fmt.Sprintf("similarity-based assessment only (mean similarity %.2f); no section-level verdicts available", sum/float64(len(sections))),
		})
	}
	recommendations := []string{
		"Review the flagged sections against the cited reference excerpts.",
		"Re-run the analysis when the language model endpoint is reachable for section-level verdicts.",
	}
	return score, findings, recommendations
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
