// Package migrations embeds the registry's SQL migration files into the binary.
package migrations

import (
	"embed"

	"github.com/agentpppp/medRec/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

// Source returns the embedded migrations. Files sit at the root of the FS.
func Source() database.MigrationSource {
	return database.MigrationSource{FS: migrationsFS, Dir: "."}
}
