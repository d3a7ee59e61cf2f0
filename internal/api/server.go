// Package api provides the HTTP server for Grapher Core.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/grapher3d/grapher-core/internal/auth"
	"github.com/grapher3d/grapher-core/internal/graph"
	"github.com/grapher3d/grapher-core/internal/infrastructure/config"
	"github.com/grapher3d/grapher-core/internal/infrastructure/logging"
	"github.com/grapher3d/grapher-core/internal/static"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker reports whether a backing service answers.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// RequestRecorder receives one sample per served request.
type RequestRecorder interface {
	RecordRequest(method, route string, status int, duration time.Duration)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Session  config.SessionConfig
	Static   config.StaticConfig
	Logger   *logging.Logger
	Accounts *auth.Accounts
	Graphs   *graph.Service
	Database HealthChecker   // optional: reported by /healthz
	Metrics  RequestRecorder // optional: per-request samples
	Version  string

	// Subsystems are optional services reported by /healthz by name. A
	// failing subsystem marks the server degraded but does not fail the
	// check; only the database does.
	Subsystems map[string]HealthChecker
}

// Server is the HTTP API server for Grapher Core.
type Server struct {
	cfg        config.APIConfig
	cookieName string
	files      http.Handler
	logger     *logging.Logger
	accounts   *auth.Accounts
	graphs     *graph.Service
	database   HealthChecker
	subsystems map[string]HealthChecker
	metrics    RequestRecorder
	version    string
	server     *http.Server
	done       chan error
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Accounts == nil {
		return nil, fmt.Errorf("account service is required")
	}
	if deps.Graphs == nil {
		return nil, fmt.Errorf("graph service is required")
	}

	cookie := deps.Session.CookieName
	if cookie == "" {
		cookie = "token"
	}

	return &Server{
		cfg:        deps.Config,
		cookieName: cookie,
		files:      static.New(deps.Static.Dir, deps.Static.Index, deps.Static.AllowedExtensions),
		logger:     deps.Logger.With("component", "api"),
		accounts:   deps.Accounts,
		graphs:     deps.Graphs,
		database:   deps.Database,
		subsystems: deps.Subsystems,
		metrics:    deps.Metrics,
		version:    deps.Version,
	}, nil
}

// Handler returns the fully wired router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in a background goroutine. A bind
// failure (port in use) is returned synchronously; later serve errors are
// reported by Wait.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}

	s.done = make(chan error, 1)
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
			s.done <- err
		}
		close(s.done)
	}()

	return nil
}

// Wait blocks until the listener stops. It returns the serve error, or nil
// after a clean Close.
func (s *Server) Wait() error {
	if s.done == nil {
		return nil
	}
	return <-s.done
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
