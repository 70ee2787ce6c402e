// File path: internal/engine/engine_test.go
package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/reglens/reglens/internal/analyzer"
	"github.com/reglens/reglens/internal/cache"
	"github.com/reglens/reglens/internal/catalog"
	"github.com/reglens/reglens/internal/corpus"
	"github.com/reglens/reglens/internal/embed"
	"github.com/reglens/reglens/internal/extract"
	"github.com/reglens/reglens/internal/fault"
	"github.com/reglens/reglens/internal/llm"
	"github.com/reglens/reglens/internal/llm/providers"
	"github.com/reglens/reglens/internal/session"
)

const validVerdict = `{
  "compliance_score": 88,
  "findings": [
    {"section": "Monitoring", "requirement": "Adverse events reported within 24 hours",
     "status": "compliant", "severity": "info", "description": "Reporting window matches the reference."}
  ],
  "recommendations": ["Document the escalation contact for serious adverse events."]
}`

// countingProvider answers chat with a fixed verdict while delegating
// embeddings to the deterministic local provider.
type countingProvider struct {
	inner llm.Provider

	mu        sync.Mutex
	chatCalls int
}

func newCountingProvider(dim int) *countingProvider {
	return &countingProvider{inner: providers.NewLocalProvider(dim)}
}

func (p *countingProvider) Chat(ctx context.Context, messages []providers.Message) (string, error) {
	p.mu.Lock()
	p.chatCalls++
	p.mu.Unlock()
	return validVerdict, nil
}

func (p *countingProvider) Embed(ctx context.Context, input []string) ([][]float32, error) {
	return p.inner.Embed(ctx, input)
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chatCalls
}

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	embedCfg := embed.DefaultConfig()
	embedCfg.Dimension = 64
	return Config{
		DataDir:  dir,
		Chunker:  corpus.DefaultChunkerConfig(),
		Embed:    embedCfg,
		Analyzer: analyzer.DefaultConfig(),
		Cache:    cache.DefaultConfig(),
		Session:  session.Config{Dimension: 64},
		Catalog:  catalog.Config{Path: filepath.Join(dir, "catalog.db")},
	}
}

func newTestEngine(t *testing.T, provider llm.Provider) *Engine {
	t.Helper()
	eng, err := New(context.Background(), testConfig(t), provider)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		eng.Close(ctx)
	})
	return eng
}

const referenceDoc = `ADVERSE EVENT REPORTING

All serious adverse events must be reported to the sponsor within 24 hours
of the site becoming aware of the event. The investigator documents causality
and severity for every report.`

func TestIngestAndSearch(t *testing.T) {
	eng := newTestEngine(t, newCountingProvider(64))
	ctx := context.Background()

	result, err := eng.IngestDocument(ctx, IngestRequest{
		TenantID: "acme",
		Category: "sop",
		Kind:     extract.KindText,
		Payload:  []byte(referenceDoc),
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.DocumentID == "" || result.ChunkCount == 0 || result.IndexVersion != 1 {
		t.Fatalf("unexpected ingest result: %+v", result)
	}

	// Querying with the reference text itself guarantees a near-perfect
	// similarity for the deterministic local embeddings.
	sections, err := eng.Search(ctx, "acme", referenceDoc, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(sections) == 0 {
		t.Fatal("expected at least one section")
	}
	if sections[0].SectionText == "" {
		t.Fatal("section text missing from search result")
	}
	if sections[0].SourceMetadata["document_id"] != result.DocumentID {
		t.Fatalf("section not attributed to ingested document: %+v", sections[0].SourceMetadata)
	}
}

func TestIngestValidation(t *testing.T) {
	eng := newTestEngine(t, newCountingProvider(64))
	ctx := context.Background()

	if _, err := eng.IngestDocument(ctx, IngestRequest{Payload: []byte("text")}); !fault.Is(err, fault.CodeValidation) {
		t.Fatalf("expected validation fault for missing tenant, got %v", err)
	}
	if _, err := eng.IngestDocument(ctx, IngestRequest{TenantID: "acme"}); !fault.Is(err, fault.CodeExtraction) {
		t.Fatalf("expected extraction fault for empty payload, got %v", err)
	}
	if _, err := eng.Search(ctx, "acme", "  ", 5); !fault.Is(err, fault.CodeValidation) {
		t.Fatalf("expected validation fault for blank query, got %v", err)
	}
	if _, err := eng.AnalyzeProtocol(ctx, "acme", "", nil); !fault.Is(err, fault.CodeValidation) {
		t.Fatalf("expected validation fault for blank protocol, got %v", err)
	}
}

func TestAnalyzeCachesUntilIngestInvalidates(t *testing.T) {
	provider := newCountingProvider(64)
	eng := newTestEngine(t, provider)
	ctx := context.Background()

	if _, err := eng.IngestDocument(ctx, IngestRequest{
		TenantID: "acme", Kind: extract.KindText, Payload: []byte(referenceDoc),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	protocol := "Serious adverse events are reported within 24 hours."
	first, err := eng.AnalyzeProtocol(ctx, "acme", protocol, nil)
	if err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	second, err := eng.AnalyzeProtocol(ctx, "acme", protocol, nil)
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}
	if provider.calls() != 1 {
		t.Fatalf("expected single LLM call for identical requests, got %d", provider.calls())
	}
	if first.AnalysisID != second.AnalysisID {
		t.Fatal("expected identical requests to share the cached result")
	}
	if first.Provenance != analyzer.ProvenanceLLM {
		t.Fatalf("expected llm provenance, got %q", first.Provenance)
	}

	// Ingesting anything for the tenant changes the index version, so the
	// same protocol computes fresh.
	if _, err := eng.IngestDocument(ctx, IngestRequest{
		TenantID: "acme", Kind: extract.KindText,
		Payload: []byte("INFORMED CONSENT\n\nConsent must be obtained before any screening procedure."),
	}); err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	third, err := eng.AnalyzeProtocol(ctx, "acme", protocol, nil)
	if err != nil {
		t.Fatalf("third analyze: %v", err)
	}
	if provider.calls() != 2 {
		t.Fatalf("expected recompute after ingest, got %d LLM calls", provider.calls())
	}
	if third.AnalysisID == first.AnalysisID {
		t.Fatal("expected a fresh analysis after index change")
	}
}

func TestAnalyzeOptionsKeyTheCache(t *testing.T) {
	provider := newCountingProvider(64)
	eng := newTestEngine(t, provider)
	ctx := context.Background()

	protocol := "Visit windows are plus or minus two days."
	if _, err := eng.AnalyzeProtocol(ctx, "acme", protocol, map[string]string{"depth": "full"}); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if _, err := eng.AnalyzeProtocol(ctx, "acme", protocol, map[string]string{"depth": "quick"}); err != nil {
		t.Fatalf("analyze with different options: %v", err)
	}
	if provider.calls() != 2 {
		t.Fatalf("expected distinct options to compute independently, got %d calls", provider.calls())
	}
}

// brokenEmbedProvider fails every embedding call.
type brokenEmbedProvider struct{}

func (brokenEmbedProvider) Chat(ctx context.Context, messages []providers.Message) (string, error) {
	return validVerdict, nil
}

func (brokenEmbedProvider) Embed(ctx context.Context, input []string) ([][]float32, error) {
	return nil, context.DeadlineExceeded
}

func (brokenEmbedProvider) Name() string { return "broken-embed" }

func TestFailedEmbeddingLeavesNoState(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embed.RetryBase = time.Millisecond
	eng, err := New(context.Background(), cfg, brokenEmbedProvider{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		eng.Close(ctx)
	})
	ctx := context.Background()

	_, err = eng.IngestDocument(ctx, IngestRequest{
		TenantID: "acme", Kind: extract.KindText, Payload: []byte(referenceDoc),
	})
	if !fault.Is(err, fault.CodeEmbedding) {
		t.Fatalf("expected embedding fault, got %v", err)
	}

	stats, err := eng.Stats(ctx, "acme")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.DocumentCount != 0 || stats.ChunkCount != 0 || stats.IndexVersion != 0 {
		t.Fatalf("failed ingest left state behind: %+v", stats)
	}
}

func TestTenantIsolation(t *testing.T) {
	eng := newTestEngine(t, newCountingProvider(64))
	ctx := context.Background()

	if _, err := eng.IngestDocument(ctx, IngestRequest{
		TenantID: "acme", Kind: extract.KindText, Payload: []byte(referenceDoc),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	sections, err := eng.Search(ctx, "globex", referenceDoc, 5)
	if err != nil {
		t.Fatalf("search other tenant: %v", err)
	}
	if len(sections) != 0 {
		t.Fatalf("tenant globex observed acme's documents: %d sections", len(sections))
	}

	stats, err := eng.Stats(ctx, "globex")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.DocumentCount != 0 || stats.ChunkCount != 0 {
		t.Fatalf("expected empty stats for globex, got %+v", stats)
	}

	acme, err := eng.Stats(ctx, "acme")
	if err != nil {
		t.Fatalf("stats acme: %v", err)
	}
	if acme.DocumentCount != 1 || acme.ChunkCount == 0 {
		t.Fatalf("unexpected acme stats: %+v", acme)
	}
}
