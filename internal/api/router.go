package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter creates the HTTP router with all routes and middleware.
//
// The first path segment selects a handler group: "auth" for sessions,
// "api" for graphs. Anything else is served from the static directory.
// Every route accepts every method. Routing sees the cleaned path, so empty
// segments and a trailing slash do not change the match.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath)
	r.Use(middleware.StripSlashes)
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/healthz", s.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.HandleFunc("/login", s.handleLogin)
		r.HandleFunc("/register", s.handleRegister)
		r.HandleFunc("/validate", s.handleValidate)
		r.HandleFunc("/logout", s.handleLogout)
		r.NotFound(s.handleInvalidRoute)
	})

	r.Route("/api", func(r chi.Router) {
		r.HandleFunc("/graphs", s.handleListGraphs)
		r.HandleFunc("/req", s.handleGetGraph)
		r.HandleFunc("/create", s.handleCreateGraph)
		r.HandleFunc("/update", s.handleUpdateGraph)
		r.HandleFunc("/delete", s.handleDeleteGraph)
		r.NotFound(s.handleInvalidRoute)
	})

	r.NotFound(s.files.ServeHTTP)
	r.MethodNotAllowed(s.files.ServeHTTP)

	return r
}

// handleInvalidRoute answers an unknown second segment inside a group.
func (s *Server) handleInvalidRoute(w http.ResponseWriter, r *http.Request) {
	rc := s.parse(r)
	s.logger.Debug("invalid route", "verb", rc.Verb, "segments", rc.Segments)
	writeNotFound(w, fmt.Sprintf("Invalid route '%s'", rc.Segment(1)))
}

// Health check results.
const (
	healthOK          = "ok"
	healthDegraded    = "degraded"
	healthUnavailable = "unavailable"
)

// healthResponse is the body of /healthz.
type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// handleHealth returns the server health status. A failing database answers
// 503; a failing subsystem only marks the body degraded. Error detail goes
// to the log, not the response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := healthResponse{Status: healthOK, Version: s.version, Checks: map[string]string{}}
	status := http.StatusOK

	check := func(name string, hc HealthChecker) bool {
		if err := hc.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("health check failed", "check", name, "error", err)
			body.Checks[name] = healthUnavailable
			body.Status = healthDegraded
			return false
		}
		body.Checks[name] = healthOK
		return true
	}

	if s.database != nil && !check("database", s.database) {
		status = http.StatusServiceUnavailable
	}
	for name, hc := range s.subsystems {
		check(name, hc)
	}
	writeJSON(w, status, body)
}
