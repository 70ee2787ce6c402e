// File path: internal/analyzer/types.go
package analyzer

import (
	"time"

	"github.com/reglens/reglens/internal/ranker"
)

// Status classifies a finding's compliance verdict.
type Status string

const (
	StatusCompliant    Status = "compliant"
	StatusNonCompliant Status = "non-compliant"
	StatusPartial      Status = "partial"
	StatusNeedsReview  Status = "needs-review"
)

func (s Status) Valid() bool {
	switch s {
	case StatusCompliant, StatusNonCompliant, StatusPartial, StatusNeedsReview:
		return true
	}
	return false
}

// Severity grades a finding's impact.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityInfo     Severity = "info"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityMajor, SeverityMinor, SeverityInfo:
		return true
	}
	return false
}

// Finding is one compliance observation tied to a protocol section.
type Finding struct {
	Section     string   `json:"section"`
	Requirement string   `json:"requirement"`
	Status      Status   `json:"status"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Reference   string   `json:"reference,omitempty"`
}

// Provenance values distinguish which path produced a result. The field is
// internal bookkeeping; both paths produce the same result shape.
const (
	ProvenanceLLM      = "llm"
	ProvenanceFallback = "fallback"
)

// Result is a completed compliance analysis. Results are immutable once
// created and are cached by request fingerprint.
type Result struct {
	AnalysisID      string                  `json:"analysis_id"`
	TenantID        string                  `json:"tenant_id"`
	ComplianceScore float64                 `json:"compliance_score"`
	Findings        []Finding               `json:"findings"`
	Recommendations []string                `json:"recommendations"`
	SimilarSections []ranker.SimilarSection `json:"similar_sections"`
	Provenance      string                  `json:"provenance,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
}
