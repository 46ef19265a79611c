// Package db embeds the goose SQL migrations for the price store.
package db

import "embed"

// Migrations holds migrations/*.sql; pass it to goose.SetBaseFS with Dir.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Dir is the path of the migration files inside Migrations.
const Dir = "migrations"
