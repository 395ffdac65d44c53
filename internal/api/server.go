package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/agentpppp/medRec/internal/audit"
	"github.com/agentpppp/medRec/internal/infrastructure/config"
	"github.com/agentpppp/medRec/internal/infrastructure/logging"
	"github.com/agentpppp/medRec/internal/patient"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ConnectionReporter reports whether an outbound connection is up.
// Satisfied by *mqtt.Client.
type ConnectionReporter interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Query    config.QueryConfig
	Logger   *logging.Logger
	Manager  *patient.Manager
	Patients *patient.Service
	Console  *patient.Console // Required when Query.AllowRaw is set
	Audit    audit.Repository // Optional; serves GET /audit
	MQTT     ConnectionReporter
	Version  string
}

// Server is the HTTP API server for the patient registry.
//
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	queryCfg  config.QueryConfig
	logger    *logging.Logger
	manager   *patient.Manager
	patients  *patient.Service
	console   *patient.Console
	auditRepo audit.Repository
	mqtt      ConnectionReporter
	version   string
	startTime time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, manager, patient service)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("connection manager is required")
	}
	if deps.Patients == nil {
		return nil, fmt.Errorf("patient service is required")
	}
	if deps.Query.AllowRaw && deps.Console == nil {
		return nil, fmt.Errorf("query console is required when raw queries are allowed")
	}

	return &Server{
		cfg:       deps.Config,
		queryCfg:  deps.Query,
		logger:    deps.Logger,
		manager:   deps.Manager,
		patients:  deps.Patients,
		console:   deps.Console,
		auditRepo: deps.Audit,
		mqtt:      deps.MQTT,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// rawEnabled reports whether the console routes are mounted.
func (s *Server) rawEnabled() bool {
	return s.queryCfg.AllowRaw && s.console != nil
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns, so a port conflict is reported
// here. Requests are then served in a background goroutine until Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	if s.rawEnabled() {
		s.logger.Warn("raw SQL console enabled; every record is readable and writable through /api/v1/query")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("listening on %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the address the server is listening on, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
