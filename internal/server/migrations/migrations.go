// Package migrations embeds the goose migrations of the snapshot service
// PostgreSQL schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
