// File path: internal/api/types.go
package api

import (
	"github.com/reglens/reglens/internal/analyzer"
	"github.com/reglens/reglens/internal/ranker"
)

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

type ingestRequest struct {
	TenantID string `json:"tenant_id"`
	Category string `json:"category,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Content  string `json:"content"`
}

type ingestResponse struct {
	DocumentID   string `json:"document_id"`
	ChunkCount   int    `json:"chunk_count"`
	IndexVersion uint64 `json:"index_version"`
}

type analyzeRequest struct {
	TenantID     string            `json:"tenant_id"`
	ProtocolText string            `json:"protocol_text"`
	Options      map[string]string `json:"options,omitempty"`
}

type searchResponse struct {
	Query   string                  `json:"query"`
	Results []ranker.SimilarSection `json:"results"`
}

type analyzeResponse struct {
	Result *analyzer.Result `json:"result"`
}
