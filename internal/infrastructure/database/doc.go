// Package database provides embedded SQLite connectivity for the patient registry.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Choosing between the cgo driver (mattn/go-sqlite3) and the pure Go
//     driver (modernc.org/sqlite)
//   - Versioned schema migrations read from an fs.FS
//   - Connection lifecycle and health checks
//
// The returned DB embeds *sqlx.DB, so callers get struct scanning
// (GetContext, SelectContext) and named parameters alongside database/sql.
//
// Security Considerations:
//   - Database file permissions are set to 0600 (owner read/write only)
//   - Fixed statements use bound parameters
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.Source()); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration Strategy:
//
// Migrations are additive. Up scripts use CREATE ... IF NOT EXISTS so that a
// database created before version tracking still converges. Each file pair is
// named YYYYMMDD_HHMMSS_description.up.sql / .down.sql.
package database
