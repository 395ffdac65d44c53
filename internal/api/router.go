package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/patients", func(r chi.Router) {
			r.Get("/", s.handleListPatients)
			r.Post("/", s.handleRegisterPatient)
		})

		// Raw SQL console, opt-in only
		if s.rawEnabled() {
			r.Post("/query", s.handleRawQuery)
			r.Get("/audit", s.handleListAuditLogs)
		}
	})

	return r
}

// healthResponse is the body of GET /api/v1/health.
type healthResponse struct {
	Status      string          `json:"status"`
	Version     string          `json:"version"`
	EngineState string          `json:"engine_state"`
	Migrations  migrationCounts `json:"migrations"`
	Error       string          `json:"error,omitempty"`
}

type migrationCounts struct {
	Applied int `json:"applied"`
	Pending int `json:"pending"`
}

// handleHealth returns the server and engine health.
// It never starts the engine.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h, err := s.manager.Health(r.Context())

	resp := healthResponse{
		Status:      "ok",
		Version:     s.version,
		EngineState: string(h.State),
		Migrations: migrationCounts{
			Applied: h.AppliedMigrations,
			Pending: h.PendingMigrations,
		},
	}

	status := http.StatusOK
	if err != nil {
		s.logger.Warn("engine health check failed", "error", err)
		resp.Status = "degraded"
		resp.Error = "engine health check failed"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}
