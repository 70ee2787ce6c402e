// File path: internal/api/analyze_handler.go
package api

import (
	"encoding/json"
	"net/http"

	"github.com/reglens/reglens/internal/common"
	"github.com/reglens/reglens/internal/fault"
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFault(w, fault.Validation("invalid JSON body"))
		return
	}
	logger.Info("api: analyze request", "tenant", req.TenantID, "protocol_bytes", len(req.ProtocolText))
	result, err := s.engine.AnalyzeProtocol(r.Context(), req.TenantID, req.ProtocolText, req.Options)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{Result: result})
}
