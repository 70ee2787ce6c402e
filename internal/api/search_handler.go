// File path: internal/api/search_handler.go
package api

import (
	"net/http"
	"strconv"

	"github.com/reglens/reglens/internal/common"
	"github.com/reglens/reglens/internal/fault"
	"github.com/reglens/reglens/internal/ranker"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	tenant := r.URL.Query().Get("tenant")
	query := r.URL.Query().Get("q")
	if query == "" {
		writeFault(w, fault.Validation("missing q parameter"))
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	logger.Info("api: search request", "tenant", tenant, "query", query, "limit", limit)
	results, err := s.engine.Search(r.Context(), tenant, query, limit)
	if err != nil {
		writeFault(w, err)
		return
	}
	if results == nil {
		results = []ranker.SimilarSection{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: query, Results: results})
}
