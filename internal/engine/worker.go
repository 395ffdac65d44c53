package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/agentpppp/medRec/internal/infrastructure/database"
)

// defaultQueueSize is used when Config.QueueSize is not positive.
const defaultQueueSize = 64

// Func is a unit of work executed on the worker goroutine.
// The database handle must not be retained after Func returns.
type Func func(ctx context.Context, db *database.DB) error

// Config holds worker settings.
type Config struct {
	// Database is passed to database.Open by Start.
	Database database.Config

	// QueueSize is how many requests may wait before Do blocks.
	QueueSize int
}

// Logger defines the logging interface for the worker.
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

// request is one queued unit of work and its reply channel.
type request struct {
	ctx  context.Context //nolint:containedctx // Carried across the queue to the worker
	fn   Func
	done chan error
}

// Worker owns a database handle and serves requests on one goroutine.
//
// Thread Safety:
//   - Do and Close may be called from any goroutine.
//   - Requests run strictly one at a time in FIFO order.
type Worker struct {
	db     *database.DB
	logger Logger

	requests chan request
	quit     chan struct{}
	stopped  chan struct{}

	closeOnce sync.Once
	closeErr  error
	served    atomic.Uint64
}

// Start opens the database described by cfg and starts a worker for it.
//
// Parameters:
//   - cfg: Database location and queue size
//   - logger: Optional logger (nil discards)
//
// Returns:
//   - *Worker: Running worker owning the opened database
//   - error: If the database cannot be opened
func Start(cfg Config, logger Logger) (*Worker, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("starting engine: %w", err)
	}
	return New(db, cfg.QueueSize, logger), nil
}

// New starts a worker around an already opened database.
// The worker takes ownership of db and closes it on Close.
func New(db *database.DB, queueSize int, logger Logger) *Worker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = noopLogger{}
	}

	w := &Worker{
		db:       db,
		logger:   logger,
		requests: make(chan request, queueSize),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	go w.run()

	logger.Debug("engine worker started", "path", db.Path(), "queue_size", queueSize)
	return w
}

// Do queues fn and waits for the worker to run it.
//
// If ctx ends before fn has been picked up, fn never runs. If ctx ends while
// fn is running, Do returns ctx.Err() immediately and fn observes the same
// cancelled context.
//
// Parameters:
//   - ctx: Context for cancellation, passed through to fn
//   - fn: Work to execute against the database
//
// Returns:
//   - error: fn's error, ctx.Err(), ErrClosed, or ErrPanic
func (w *Worker) Do(ctx context.Context, fn Func) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := request{ctx: ctx, fn: fn, done: make(chan error, 1)}

	select {
	case <-w.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case w.requests <- req:
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stopped:
		// The worker may have answered just before stopping.
		select {
		case err := <-req.done:
			return err
		default:
			return ErrClosed
		}
	}
}

// Close stops accepting requests, fails anything still queued with
// ErrClosed, waits for the running request to finish and closes the database.
// It is safe to call more than once.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() {
		close(w.quit)
		<-w.stopped
		w.closeErr = w.db.Close()
		w.logger.Debug("engine worker stopped", "served", w.served.Load())
	})
	return w.closeErr
}

// Served returns how many requests the worker has executed.
func (w *Worker) Served() uint64 {
	return w.served.Load()
}

// Path returns the location of the database file.
func (w *Worker) Path() string {
	return w.db.Path()
}

// run is the worker loop.
func (w *Worker) run() {
	defer close(w.stopped)

	for {
		select {
		case req := <-w.requests:
			w.serve(req)
		case <-w.quit:
			w.drain()
			return
		}
	}
}

// drain fails every request still sitting in the queue.
func (w *Worker) drain() {
	for {
		select {
		case req := <-w.requests:
			req.done <- ErrClosed
		default:
			return
		}
	}
}

// serve runs one request, converting a panic into ErrPanic.
func (w *Worker) serve(req request) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("engine request panicked", "panic", r)
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		w.served.Add(1)
		req.done <- err
	}()

	if cerr := req.ctx.Err(); cerr != nil {
		err = cerr
		return
	}
	err = req.fn(req.ctx, w.db)
}

// Connector hands out the worker that owns the database, starting it on
// first use where the implementation is lazy.
type Connector interface {
	Conn(ctx context.Context) (*Worker, error)
}
