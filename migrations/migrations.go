// Package migrations embeds the SQL schema migrations for the trainer database.
package migrations

import "embed"

// FS contains the migration SQL files.
//
//go:embed *.sql
var FS embed.FS
