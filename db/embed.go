// Package db embeds the PostgreSQL migrations of the promo engine.
package db

import (
	"embed"
	"io/fs"
	"sort"
)

// Migrations holds the idempotent DDL files, applied in name order.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationNames lists the embedded migration files in apply order.
func MigrationNames() ([]string, error) {
	names, err := fs.Glob(Migrations, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
