// Package migrations embeds the SQL migrations every graystore database
// file receives when it is opened.
//
// Importing this package registers the files with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/graystore/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
