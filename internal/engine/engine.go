// File path: internal/engine/engine.go
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reglens/reglens/internal/analyzer"
	"github.com/reglens/reglens/internal/cache"
	"github.com/reglens/reglens/internal/catalog"
	"github.com/reglens/reglens/internal/common"
	"github.com/reglens/reglens/internal/common/telemetry"
	"github.com/reglens/reglens/internal/corpus"
	"github.com/reglens/reglens/internal/docstore"
	"github.com/reglens/reglens/internal/embed"
	"github.com/reglens/reglens/internal/extract"
	"github.com/reglens/reglens/internal/fault"
	"github.com/reglens/reglens/internal/llm"
	"github.com/reglens/reglens/internal/ranker"
	"github.com/reglens/reglens/internal/session"
	"github.com/reglens/reglens/internal/vector"
)

// metadata keys stored alongside each vector entry.
const (
	metaDocumentID = "document_id"
	metaSection    = "section"
	metaSequence   = "sequence"
	metaText       = "text"
)

// IngestRequest is one document upload.
type IngestRequest struct {
	TenantID string
	Category string
	Kind     extract.Kind
	Payload  []byte
}

// IngestResult reports what a successful ingest produced.
type IngestResult struct {
	DocumentID   string `json:"document_id"`
	ChunkCount   int    `json:"chunk_count"`
	IndexVersion uint64 `json:"index_version"`
}

// Engine wires extraction, chunking, embedding, retrieval, ranking, analysis,
// and caching behind the four public operations.
type Engine struct {
	cfg       Config
	extractor extract.Extractor
	embedder  *embed.Service
	sessions  *session.Store
	docs      *docstore.Store
	catalog   *catalog.Store
	ranker    *ranker.Ranker
	analyzer  *analyzer.Analyzer
	cache     *cache.AnalysisCache
}

// New builds a fully wired engine. The provider drives both embeddings and
// compliance chat; pass llm.NewProvider() in production.
func New(ctx context.Context, cfg Config, provider llm.Provider) (*Engine, error) {
	cat, err := catalog.Open(ctx, cfg.Catalog)
	if err != nil {
		return nil, err
	}
	docs, err := docstore.NewStore(filepath.Join(cfg.DataDir, "documents"))
	if err != nil {
		cat.Close()
		return nil, err
	}
	sessions := session.NewStore(cfg.Session, cat)
	sessions.Start()
	eng := &Engine{
		cfg:       cfg,
		extractor: extract.NewTextExtractor(),
		embedder:  embed.NewService(provider, cfg.Embed),
		sessions:  sessions,
		docs:      docs,
		catalog:   cat,
		ranker:    ranker.New(cfg.Ranker),
		analyzer:  analyzer.New(provider, cfg.Analyzer),
		cache:     cache.New(cfg.Cache),
	}
	common.Logger().Info("engine: ready", "provider", provider.Name(), "data_dir", cfg.DataDir)
	return eng, nil
}

// Close flushes session snapshots and releases the catalog.
func (e *Engine) Close(ctx context.Context) error {
	err := e.sessions.Close(ctx)
	if cerr := e.catalog.Close(); err == nil {
		err = cerr
	}
	return err
}

// IngestDocument extracts, chunks, and embeds an upload, then lands it in the
// tenant's index, document archive, and catalog. Embedding completes before
// any store is touched, so a failure up to and including the index insert
// leaves no state behind; the index mutation itself lands first, then the
// archive and catalog records.
func (e *Engine) IngestDocument(ctx context.Context, req IngestRequest) (IngestResult, error) {
	ctx, finish := telemetry.StartSpan(ctx, "engine.ingest")
	defer finish()
	if strings.TrimSpace(req.TenantID) == "" {
		return IngestResult{}, fault.Validation("tenant id required")
	}
	text, err := e.extractor.Extract(req.Kind, req.Payload)
	if err != nil {
		return IngestResult{}, err
	}
	doc := corpus.Document{
		ID:         uuid.NewString(),
		TenantID:   req.TenantID,
		RawText:    text,
		Category:   req.Category,
		UploadedAt: time.Now().UTC(),
	}
	chunks := corpus.ChunkDocument(doc, e.cfg.Chunker)
	if len(chunks) == 0 {
		return IngestResult{}, fault.Validation("document produced no chunks")
	}
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := e.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return IngestResult{}, err
	}
	entries := make([]vector.Entry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = vector.Entry{
			ChunkID: chunk.ID,
			Vector:  vectors[i],
			Metadata: map[string]string{
				metaDocumentID: doc.ID,
				metaSection:    chunk.SectionLabel,
				metaSequence:   strconv.Itoa(chunk.SequenceIndex),
				metaText:       chunk.Text,
			},
		}
	}
	version, err := e.sessions.AddChunks(ctx, req.TenantID, doc.ID, entries)
	if err != nil {
		return IngestResult{}, err
	}
	if err := e.docs.AppendDocuments(ctx, req.TenantID, []corpus.Document{doc}); err != nil {
		return IngestResult{}, fmt.Errorf("archive document: %w", err)
	}
	if err := e.catalog.RecordDocument(ctx, doc, len(chunks)); err != nil {
		return IngestResult{}, err
	}
	e.cache.InvalidateTenant(req.TenantID)
	telemetry.RecordIngestBatch(len(chunks))
	common.Logger().Info("engine: ingested document",
		"tenant", req.TenantID, "document", doc.ID, "chunks", len(chunks), "version", version,
		"dur", telemetry.SpanDuration(ctx))
	return IngestResult{DocumentID: doc.ID, ChunkCount: len(chunks), IndexVersion: version}, nil
}

// Search embeds the query and returns the reranked similar sections.
func (e *Engine) Search(ctx context.Context, tenantID, query string, limit int) ([]ranker.SimilarSection, error) {
	ctx, finish := telemetry.StartSpan(ctx, "engine.search")
	defer finish()
	if strings.TrimSpace(tenantID) == "" {
		return nil, fault.Validation("tenant id required")
	}
	if strings.TrimSpace(query) == "" {
		return nil, fault.Validation("query required")
	}
	if limit <= 0 {
		limit = e.cfg.Analyzer.TopK
	}
	sections, _, err := e.retrieve(ctx, tenantID, query, limit)
	return sections, err
}

// AnalyzeProtocol runs the full retrieval and compliance pipeline through the
// analysis cache. Identical requests against an unchanged index share one
// computation; any ingest for the tenant invalidates its entries.
func (e *Engine) AnalyzeProtocol(ctx context.Context, tenantID, protocolText string, options map[string]string) (*analyzer.Result, error) {
	ctx, finish := telemetry.StartSpan(ctx, "engine.analyze")
	defer finish()
	if strings.TrimSpace(tenantID) == "" {
		return nil, fault.Validation("tenant id required")
	}
	if strings.TrimSpace(protocolText) == "" {
		return nil, fault.Validation("protocol text required")
	}
	version, err := e.sessions.Version(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	fingerprint := corpus.AnalysisFingerprint(tenantID, protocolText, options, version)
	return e.cache.GetOrCompute(ctx, tenantID, fingerprint, func(ctx context.Context) (*analyzer.Result, error) {
		sections, _, err := e.retrieve(ctx, tenantID, protocolText, e.cfg.Analyzer.TopK)
		if err != nil {
			return nil, err
		}
		return e.analyzer.Analyze(ctx, tenantID, protocolText, sections)
	})
}

// Stats reports the tenant's live index counters.
func (e *Engine) Stats(ctx context.Context, tenantID string) (session.Stats, error) {
	ctx, finish := telemetry.StartSpan(ctx, "engine.stats")
	defer finish()
	if strings.TrimSpace(tenantID) == "" {
		return session.Stats{}, fault.Validation("tenant id required")
	}
	return e.sessions.TenantStats(ctx, tenantID)
}

func (e *Engine) retrieve(ctx context.Context, tenantID, query string, k int) ([]ranker.SimilarSection, uint64, error) {
	queryVec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	hits, version, err := e.sessions.Search(ctx, tenantID, queryVec, k)
	if err != nil {
		return nil, 0, err
	}
	raw := make([]ranker.RawHit, len(hits))
	for i, hit := range hits {
		raw[i] = rawHit(hit)
	}
	return e.ranker.Rerank(raw, query), version, nil
}

func rawHit(hit vector.Hit) ranker.RawHit {
	raw := ranker.RawHit{ChunkID: hit.ChunkID, Score: hit.Score}
	if hit.Metadata == nil {
		return raw
	}
	raw.Text = hit.Metadata[metaText]
	raw.SectionLabel = hit.Metadata[metaSection]
	if seq, err := strconv.Atoi(hit.Metadata[metaSequence]); err == nil {
		raw.SequenceIndex = seq
	}
	meta := make(map[string]string, 2)
	if docID := hit.Metadata[metaDocumentID]; docID != "" {
		meta[metaDocumentID] = docID
	}
	if label := hit.Metadata[metaSection]; label != "" {
		meta[metaSection] = label
	}
	raw.Metadata = meta
	return raw
}
