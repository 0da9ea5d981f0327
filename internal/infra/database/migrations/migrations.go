package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the schema history; files register themselves in init.
var Migrations = migrate.NewMigrations()
