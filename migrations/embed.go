// Package migrations embeds SQL migration files into the binary.
//
// Importing this package for its side effect registers the embedded schema
// with the database package, so the server can migrate without the SQL
// files present on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/communities-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
