package patient

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/agentpppp/medRec/internal/engine"
	"github.com/agentpppp/medRec/internal/infrastructure/database"
)

// State is the lifecycle state of the engine connection.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
)

// initKey is the single-flight key shared by all first callers.
const initKey = "engine"

// Opener starts a fresh engine worker.
type Opener func() (*engine.Worker, error)

// EngineOpener returns an Opener that starts a worker from cfg.
func EngineOpener(cfg engine.Config, logger engine.Logger) Opener {
	return func() (*engine.Worker, error) {
		return engine.Start(cfg, logger)
	}
}

// Provisioner brings the database schema up to date on a new worker.
// Implementations must be idempotent and must never drop existing data.
type Provisioner interface {
	EnsureSchema(ctx context.Context, w *engine.Worker) error
}

// MigrationProvisioner provisions the schema by applying migrations.
type MigrationProvisioner struct {
	Source database.MigrationSource
}

// EnsureSchema applies any pending migrations on the worker.
func (p MigrationProvisioner) EnsureSchema(ctx context.Context, w *engine.Worker) error {
	return w.Do(ctx, func(ctx context.Context, db *database.DB) error {
		return db.Migrate(ctx, p.Source)
	})
}

// MigrationStatus counts applied and pending migrations on the worker.
func (p MigrationProvisioner) MigrationStatus(ctx context.Context, w *engine.Worker) (applied, pending int, err error) {
	var (
		a    []database.MigrationRecord
		pend []database.Migration
	)
	err = w.Do(ctx, func(ctx context.Context, db *database.DB) error {
		var err error
		a, pend, err = db.GetMigrationStatus(ctx, p.Source)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return len(a), len(pend), nil
}

// migrationStatuser is implemented by provisioners that can report progress.
type migrationStatuser interface {
	MigrationStatus(ctx context.Context, w *engine.Worker) (applied, pending int, err error)
}

// Logger defines the logging interface for the registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager lazily starts the engine worker and provisions its schema.
//
// The first Conn call opens the engine and runs the Provisioner. Concurrent
// first callers share that one initialisation. Once ready, Conn returns the
// cached worker without I/O. A failed initialisation caches nothing, so a
// later call starts over.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Manager struct {
	open        Opener
	provisioner Provisioner
	logger      Logger

	group singleflight.Group

	mu     sync.RWMutex
	state  State
	worker *engine.Worker
	closed bool
}

// NewManager creates a Manager. Nothing is opened until the first Conn call.
//
// Parameters:
//   - open: Starts a new engine worker
//   - provisioner: Ensures the schema on each new worker
//   - logger: Optional logger (nil discards)
func NewManager(open Opener, provisioner Provisioner, logger Logger) *Manager {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Manager{
		open:        open,
		provisioner: provisioner,
		logger:      logger,
		state:       StateUninitialized,
	}
}

// Conn returns the ready engine worker, initialising it on first use.
//
// A caller whose ctx ends stops waiting, but the shared initialisation
// keeps running for the others.
//
// Returns:
//   - *engine.Worker: The single worker owning the database
//   - error: Wraps ErrInitFailure if the engine could not be made ready
func (m *Manager) Conn(ctx context.Context) (*engine.Worker, error) {
	m.mu.RLock()
	w, closed := m.worker, m.closed
	m.mu.RUnlock()

	if w != nil {
		return w, nil
	}
	if closed {
		return nil, fmt.Errorf("%w: %w", ErrInitFailure, ErrManagerClosed)
	}

	ch := m.group.DoChan(initKey, func() (any, error) {
		return m.initialize(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*engine.Worker), nil //nolint:forcetypeassert // initialize only returns *engine.Worker
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrInitFailure, ctx.Err())
	}
}

// initialize performs one open-and-provision attempt.
func (m *Manager) initialize(ctx context.Context) (*engine.Worker, error) {
	m.mu.Lock()
	if m.worker != nil {
		w := m.worker
		m.mu.Unlock()
		return w, nil
	}
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrInitFailure, ErrManagerClosed)
	}
	m.state = StateInitializing
	m.mu.Unlock()

	m.logger.Debug("starting database engine")

	w, err := m.open()
	if err != nil {
		m.setState(StateUninitialized)
		m.logger.Error("database engine failed to start", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrInitFailure, err)
	}

	if err := m.provisioner.EnsureSchema(ctx, w); err != nil {
		w.Close() //nolint:errcheck // Best effort cleanup on error path
		m.setState(StateUninitialized)
		m.logger.Error("schema provisioning failed", "error", err)
		return nil, fmt.Errorf("%w: provisioning schema: %w", ErrInitFailure, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		w.Close() //nolint:errcheck // Manager closed while initialising
		return nil, fmt.Errorf("%w: %w", ErrInitFailure, ErrManagerClosed)
	}
	m.worker = w
	m.state = StateReady
	m.mu.Unlock()

	m.logger.Info("database engine ready", "path", w.Path())
	return w, nil
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Served returns how many requests the current engine has run, or zero
// when no engine is running.
func (m *Manager) Served() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.worker == nil {
		return 0
	}
	return m.worker.Served()
}

// Health describes the engine for health endpoints.
type Health struct {
	State             State `json:"engine_state"`
	AppliedMigrations int   `json:"applied_migrations"`
	PendingMigrations int   `json:"pending_migrations"`
}

// Health reports engine state without triggering initialisation.
// Migration counts are only filled in once the engine is ready.
func (m *Manager) Health(ctx context.Context) (Health, error) {
	m.mu.RLock()
	h := Health{State: m.state}
	w := m.worker
	m.mu.RUnlock()

	if w == nil {
		return h, nil
	}

	if err := w.Do(ctx, func(ctx context.Context, db *database.DB) error {
		return db.HealthCheck(ctx)
	}); err != nil {
		return h, err
	}

	if s, ok := m.provisioner.(migrationStatuser); ok {
		applied, pending, err := s.MigrationStatus(ctx, w)
		if err != nil {
			return h, err
		}
		h.AppliedMigrations, h.PendingMigrations = applied, pending
	}
	return h, nil
}

// Close shuts down the worker if one is running. Later Conn calls fail
// with ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	w := m.worker
	m.worker = nil
	m.closed = true
	m.state = StateUninitialized
	m.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.Close()
}
