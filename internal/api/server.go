// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/reglens/reglens/internal/common"
	"github.com/reglens/reglens/internal/engine"
	"github.com/reglens/reglens/internal/fault"
)

type Server struct {
	router chi.Router
	engine *engine.Engine
}

func NewServer(eng *engine.Engine) *Server {
	srv := &Server{
		router: chi.NewRouter(),
		engine: eng,
	}
	srv.routes()
	common.Logger().Info("api: server ready")
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(middleware.Recoverer)
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Post("/v1/documents", s.handleIngest)
	s.router.Post("/v1/analyze", s.handleAnalyze)
	s.router.Get("/v1/search", s.handleSearch)
	s.router.Get("/v1/tenants/{tenant}/stats", s.handleStats)
	s.router.Get("/v1/logs", s.handleLogs)
	s.router.Handle("/debug/vars", expvar.Handler())
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeFault maps the error taxonomy onto HTTP statuses and emits the stable
// error code alongside the message.
func writeFault(w http.ResponseWriter, err error) {
	logger := common.Logger()
	code := fault.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "code", code, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "code", code, "error", err)
	}
	writeJSON(w, status, errorResponse{Code: string(code), Error: err.Error()})
}

func statusFor(code fault.Code) int {
	switch code {
	case fault.CodeValidation, fault.CodeExtraction:
		return http.StatusBadRequest
	case fault.CodeIndex:
		return http.StatusConflict
	case fault.CodeEmbedding, fault.CodeLLMUnavailable:
		return http.StatusServiceUnavailable
	case fault.CodeLLMTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
