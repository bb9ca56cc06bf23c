// Package ingestdb holds all the migrations for the ingest database
package ingestdb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the ingest database
var Migrations = migrate.NewMigrations()
