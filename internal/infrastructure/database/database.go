package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver (cgo), registered as "sqlite3"
	_ "modernc.org/sqlite"          // SQLite driver (pure Go), registered as "sqlite"
)

// Database configuration constants.
const (
	// DriverCGO is the database/sql name of github.com/mattn/go-sqlite3.
	DriverCGO = "sqlite3"

	// DriverPureGo is the database/sql name of modernc.org/sqlite.
	DriverPureGo = "sqlite"

	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	// Patient records never leave the owning user.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// connMaxIdleTime is how long idle connections are kept open.
	connMaxIdleTime = 30 * time.Minute
)

// DB wraps an sqlx.DB connection to the embedded SQLite engine.
// It provides migration support, health checks, and proper lifecycle management.
type DB struct {
	*sqlx.DB
	path string
}

// Config contains database configuration options.
// These map to the database section of config.yaml.
type Config struct {
	// Driver selects the SQLite implementation: DriverCGO or DriverPureGo.
	// Empty means DriverCGO.
	Driver string

	// Path is the filesystem path to the SQLite database file.
	// The directory will be created if it doesn't exist.
	Path string

	// WALMode enables Write-Ahead Logging for better concurrent access.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int
}

// Open creates a new database connection with the specified configuration.
//
// It performs the following setup:
//  1. Creates the database directory if it doesn't exist
//  2. Opens the database file (creates if not present)
//  3. Configures WAL mode and busy timeout for the selected driver
//  4. Sets appropriate file permissions (0600)
//  5. Verifies the connection with a ping
//
// Parameters:
//   - cfg: Database configuration
//
// Returns:
//   - *DB: Connected database wrapper
//   - error: If connection or configuration fails
func Open(cfg Config) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverCGO
	}

	connStr, err := dataSourceName(driver, cfg)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := Wrap(sqlDB, driver, cfg.Path)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// Ignore error - the file may be created lazily on first write
	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // Intentional: first run creates file later

	return db, nil
}

// Wrap adopts an already open *sql.DB, applying the single-connection pool
// settings used for SQLite. Tests use it with go-sqlmock.
//
// Parameters:
//   - sqlDB: Open database handle
//   - driver: database/sql driver name, used by sqlx to pick the bind style
//   - path: Reported by Path; may be empty
//
// Returns:
//   - *DB: Database wrapper owning sqlDB
func Wrap(sqlDB *sql.DB, driver, path string) *DB {
	// SQLite supports a single writer; one connection also keeps
	// statements in the order they were issued.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return &DB{
		DB:   sqlx.NewDb(sqlDB, driver),
		path: path,
	}
}

// dataSourceName builds the connection string for the chosen driver.
// See: https://github.com/mattn/go-sqlite3#connection-string
// and https://pkg.go.dev/modernc.org/sqlite#Driver.Open
func dataSourceName(driver string, cfg Config) (string, error) {
	busyMS := cfg.BusyTimeout * msPerSecond

	switch driver {
	case DriverCGO:
		connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on", cfg.Path, busyMS)
		if cfg.WALMode {
			connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
		}
		return connStr, nil
	case DriverPureGo:
		connStr := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", cfg.Path, busyMS)
		if cfg.WALMode {
			connStr += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
		}
		return connStr, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Close closes the database connection gracefully.
// It should be called when the application shuts down.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the database file.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck verifies the database is accessible and functioning.
// It performs a simple query to ensure the connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	if err := db.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Stats returns database connection pool statistics.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// BeginTxx starts a new transaction with the given options.
//
// Example:
//
//	tx, err := db.BeginTxx(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback() // No-op if committed
//
//	// ... execute queries on tx ...
//
//	return tx.Commit()
func (db *DB) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	tx, err := db.DB.BeginTxx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}
