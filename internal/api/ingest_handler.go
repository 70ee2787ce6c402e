// File path: internal/api/ingest_handler.go
package api

import (
	"encoding/json"
	"net/http"

	"github.com/reglens/reglens/internal/common"
	"github.com/reglens/reglens/internal/engine"
	"github.com/reglens/reglens/internal/extract"
	"github.com/reglens/reglens/internal/fault"
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFault(w, fault.Validation("invalid JSON body"))
		return
	}
	logger.Info("api: ingest request", "tenant", req.TenantID, "category", req.Category, "bytes", len(req.Content))
	result, err := s.engine.IngestDocument(r.Context(), engine.IngestRequest{
		TenantID: req.TenantID,
		Category: req.Category,
		Kind:     extract.Kind(req.Kind),
		Payload:  []byte(req.Content),
	})
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ingestResponse{
		DocumentID:   result.DocumentID,
		ChunkCount:   result.ChunkCount,
		IndexVersion: result.IndexVersion,
	})
}
