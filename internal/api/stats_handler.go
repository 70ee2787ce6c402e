// File path: internal/api/stats_handler.go
package api

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	stats, err := s.engine.Stats(r.Context(), tenant)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
