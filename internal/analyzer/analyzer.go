// File path: internal/analyzer/analyzer.go
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/reglens/reglens/internal/common"
	"github.com/reglens/reglens/internal/common/telemetry"
	"github.com/reglens/reglens/internal/fault"
	"github.com/reglens/reglens/internal/llm"
	"github.com/reglens/reglens/internal/ranker"
)

// Config bounds the analyzer's LLM usage and shapes its verdicts.
type Config struct {
	LLMTimeout      time.Duration `json:"-"`
	OverallTimeout  time.Duration `json:"-"`
	MaxParseRetries int           `json:"max_parse_retries"`
	TopK            int           `json:"top_k"`
	ReviewThreshold float64       `json:"review_threshold"`
	BreakerFailures uint32        `json:"breaker_failures"`
	BreakerCooldown time.Duration `json:"-"`
}

// DefaultConfig returns the standard analyzer configuration.
func DefaultConfig() Config {
	return Config{
		LLMTimeout:      30 * time.Second,
		OverallTimeout:  60 * time.Second,
		MaxParseRetries: 1,
		TopK:            8,
		ReviewThreshold: 0.3,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = def.LLMTimeout
	}
	if c.OverallTimeout <= 0 {
		c.OverallTimeout = def.OverallTimeout
	}
	if c.MaxParseRetries < 0 {
		c.MaxParseRetries = def.MaxParseRetries
	}
	if c.TopK <= 0 {
		c.TopK = def.TopK
	}
	if c.ReviewThreshold <= 0 {
		c.ReviewThreshold = def.ReviewThreshold
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = def.BreakerFailures
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = def.BreakerCooldown
	}
	return c
}

// Analyzer produces compliance verdicts from ranked reference sections. Each
// request runs a two-state machine: the LLM path first, then a one-way
// transition to the deterministic fallback on timeout, unavailability, or
// persistently malformed output. A circuit breaker shortcuts the LLM path
// entirely while the endpoint is misbehaving.
type Analyzer struct {
	provider llm.Provider
	cfg      Config
	breaker  *gobreaker.CircuitBreaker
}

func New(provider llm.Provider, cfg Config) *Analyzer {
	cfg = cfg.normalized()
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "llm-chat",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
	})
	return &Analyzer{provider: provider, cfg: cfg, breaker: breaker}
}

// Analyze evaluates a protocol against the ranked sections and always
// returns a well-formed result within the overall timeout budget. LLM
// failures degrade to the fallback path; they are never surfaced alone.
func (a *Analyzer) Analyze(ctx context.Context, tenantID, protocolText string, sections []ranker.SimilarSection) (*Result, error) {
	if strings.TrimSpace(protocolText) == "" {
		return nil, fault.Validation("protocol text required")
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.OverallTimeout)
	defer cancel()
	started := time.Now()
	logger := common.Logger()

	verdict, provenance := a.evaluate(ctx, protocolText, sections)
	result := &Result{
		AnalysisID:      uuid.NewString(),
		TenantID:        tenantID,
		ComplianceScore: verdict.score,
		Findings:        verdict.findings,
		Recommendations: verdict.recommendations,
		SimilarSections: sections,
		Provenance:      provenance,
		CreatedAt:       time.Now().UTC(),
	}
	telemetry.RecordAnalysis(provenance, time.Since(started))
	logger.Info("analyzer: analysis complete",
		"tenant", tenantID,
		"path", provenance,
		"score", result.ComplianceScore,
		"findings", len(result.Findings),
	)
	return result, nil
}

type verdict struct {
	score           float64
	findings        []Finding
	recommendations []string
}

// evaluate attempts the LLM path, then falls back. The transition is
// one-directional: once an infra error occurs the same request never retries
// the LLM; only a fresh request may try it again.
func (a *Analyzer) evaluate(ctx context.Context, protocolText string, sections []ranker.SimilarSection) (verdict, string) {
	logger := common.Logger()
	if a.provider != nil {
		attempts := 1 + a.cfg.MaxParseRetries
		for attempt := 0; attempt < attempts; attempt++ {
			raw, err := a.chatOnce(ctx, protocolText, sections)
			if err != nil {
				logger.Warn("analyzer: llm path unavailable, degrading to fallback",
					"attempt", attempt+1, "code", fault.CodeOf(err), "error", err)
				break
			}
			parsed, parseErr := parseVerdict(raw)
			if parseErr == nil {
				return parsed, ProvenanceLLM
			}
			logger.Warn("analyzer: malformed llm response", "attempt", attempt+1, "error", parseErr)
		}
	}
	score, findings, recommendations := fallbackVerdict(sections, a.cfg.ReviewThreshold)
	return verdict{score: score, findings: findings, recommendations: recommendations}, ProvenanceFallback
}

// chatOnce issues one bounded chat-completion call through the circuit
// breaker. On timeout the in-flight call is abandoned, not awaited.
func (a *Analyzer) chatOnce(ctx context.Context, protocolText string, sections []ranker.SimilarSection) (string, error) {
	messages := buildMessages(protocolText, sections, a.cfg.TopK)
	out, err := a.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.LLMTimeout)
		defer cancel()
		type chatResult struct {
			text string
			err  error
		}
		ch := make(chan chatResult, 1)
		go func() {
			text, chatErr := a.provider.Chat(callCtx, messages)
			ch <- chatResult{text: text, err: chatErr}
		}()
		select {
		case res := <-ch:
			if res.err != nil {
				return "", res.err
			}
			return res.text, nil
		case <-callCtx.Done():
			return "", fault.LLMTimeout(callCtx.Err())
		}
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fault.LLMUnavailable(err)
		}
		if fault.Is(err, fault.CodeLLMTimeout) {
			return "", err
		}
		return "", fault.LLMUnavailable(err)
	}
	text, _ := out.(string)
	return text, nil
}

// llmVerdict is the strict wire shape expected from the model.
type llmVerdict struct {
	ComplianceScore *float64  `json:"compliance_score"`
	Findings        []Finding `json:"findings"`
	Recommendations []string  `json:"recommendations"`
}

// parseVerdict extracts and validates the JSON verdict from a model
// response. Malformed payloads are rejected, never passed through.
func parseVerdict(raw string) (verdict, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return verdict{}, fault.Validation("llm response contains no JSON object")
	}
	var parsed llmVerdict
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return verdict{}, fault.Validation(fmt.Sprintf("llm response is not valid JSON: %v", err))
	}
	if parsed.ComplianceScore == nil {
		return verdict{}, fault.Validation("llm response missing compliance_score")
	}
	score := *parsed.ComplianceScore
	if score < 0 || score > 100 {
		return verdict{}, fault.Validation(fmt.Sprintf("compliance_score %f outside [0, 100]", score))
	}
	for i := range parsed.Findings {
		parsed.Findings[i].Status = Status(strings.ToLower(string(parsed.Findings[i].Status)))
		parsed.Findings[i].Severity = Severity(strings.ToLower(string(parsed.Findings[i].Severity)))
		if !parsed.Findings[i].Status.Valid() {
			return verdict{}, fault.Validation(fmt.Sprintf("finding %d has unknown status %q", i, parsed.Findings[i].Status))
		}
		if !parsed.Findings[i].Severity.Valid() {
			return verdict{}, fault.Validation(fmt.Sprintf("finding %d has unknown severity %q", i, parsed.Findings[i].Severity))
		}
	}
	return verdict{
		score:           score,
		findings:        parsed.Findings,
		recommendations: parsed.Recommendations,
	}, nil
}

func extractJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
