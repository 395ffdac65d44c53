package database

import (
	"context"
	"embed"
	"testing"
	"testing/fstest"
	"time"
)

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

// testSource points at the fixture migrations in testdata/.
var testSource = MigrationSource{FS: testMigrationsFS, Dir: "testdata"}

// TestMigrate verifies migration application.
func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx, testSource); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var tableName string
	if err := db.GetContext(ctx, &tableName,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='test_visits'",
	); err != nil {
		t.Fatalf("table test_visits not created: %v", err)
	}

	applied, pending, err := db.GetMigrationStatus(ctx, testSource)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("expected 1 applied migration, got %d", len(applied))
	}
	if len(pending) != 0 {
		t.Errorf("expected 0 pending migrations, got %d", len(pending))
	}
	if len(applied) == 1 && applied[0].AppliedAt.IsZero() {
		t.Error("applied migration has zero AppliedAt")
	}

	// Running again should be idempotent
	if err := db.Migrate(ctx, testSource); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	applied, _, err = db.GetMigrationStatus(ctx, testSource)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("expected 1 applied migration after rerun, got %d", len(applied))
	}
}

// TestMigrate_FailureRollsBack verifies a broken migration leaves no record.
func TestMigrate_FailureRollsBack(t *testing.T) {
	src := MigrationSource{
		FS: fstest.MapFS{
			"20261019_090000_good.up.sql":   {Data: []byte("CREATE TABLE good (id INTEGER PRIMARY KEY);")},
			"20261019_090100_broken.up.sql": {Data: []byte("CREATE TABLE broken (id INTEGER PRIMARY KEY")},
		},
		Dir: ".",
	}

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()

	if err := db.Migrate(ctx, src); err == nil {
		t.Fatal("Migrate() expected error for broken migration")
	}

	applied, pending, err := db.GetMigrationStatus(ctx, src)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || applied[0].Version != "20261019_090000" {
		t.Errorf("applied = %+v, want only 20261019_090000", applied)
	}
	if len(pending) != 1 || pending[0].Name != "broken" {
		t.Errorf("pending = %+v, want only broken", pending)
	}
}

// TestMigrateDown verifies migration rollback.
func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx, testSource); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if err := db.MigrateDown(ctx, testSource); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	var count int
	if err := db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='test_visits'",
	); err != nil {
		t.Fatalf("query error: %v", err)
	}
	if count != 0 {
		t.Error("table test_visits should have been dropped")
	}

	applied, _, err := db.GetMigrationStatus(ctx, testSource)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected 0 applied migrations after rollback, got %d", len(applied))
	}
}

// TestMigrateNoMigrations verifies behaviour with no migrations.
func TestMigrateNoMigrations(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()

	if err := db.Migrate(ctx, MigrationSource{}); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
	if err := db.Migrate(ctx, MigrationSource{FS: fstest.MapFS{}, Dir: "missing"}); err != nil {
		t.Fatalf("Migrate() with missing dir error = %v", err)
	}
}

// TestGetMigrationStatus verifies status reporting before anything has run.
func TestGetMigrationStatus(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()

	applied, pending, err := db.GetMigrationStatus(ctx, testSource)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected 0 applied, got %d", len(applied))
	}
	if len(pending) != 1 {
		t.Errorf("expected 1 pending, got %d", len(pending))
	}

	exists, err := db.migrationsTableExists(ctx)
	if err != nil {
		t.Fatalf("migrationsTableExists() error = %v", err)
	}
	if exists {
		t.Error("GetMigrationStatus() should not create schema_migrations")
	}
}

// TestParseMigrationFilename verifies filename parsing.
func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantIsUp    bool
		wantOk      bool
	}{
		{
			name:        "valid up migration",
			filename:    "20261019_120000_create_patients.up.sql",
			wantVersion: "20261019_120000",
			wantIsUp:    true,
			wantOk:      true,
		},
		{
			name:        "valid down migration",
			filename:    "20261019_120000_create_patients.down.sql",
			wantVersion: "20261019_120000",
			wantIsUp:    false,
			wantOk:      true,
		},
		{
			name:     "not sql file",
			filename: "readme.txt",
			wantOk:   false,
		},
		{
			name:     "missing direction",
			filename: "20261019_120000_create_patients.sql",
			wantOk:   false,
		},
		{
			name:     "invalid format",
			filename: "invalid.up.sql",
			wantOk:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Errorf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok {
				if version != tt.wantVersion {
					t.Errorf("version = %v, want %v", version, tt.wantVersion)
				}
				if isUp != tt.wantIsUp {
					t.Errorf("isUp = %v, want %v", isUp, tt.wantIsUp)
				}
			}
		})
	}
}

// TestExtractMigrationName verifies name extraction.
func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20261019_120000_create_patients.up.sql", "create_patients"},
		{"20261019_120000_initial_schema.down.sql", "initial_schema"},
		{"20261019_130000_create_audit_logs.up.sql", "create_audit_logs"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got := extractMigrationName(tt.filename)
			if got != tt.want {
				t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
