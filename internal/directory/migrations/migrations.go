// Package migrations embeds the Directory's goose SQL migrations so the
// binary carries its own schema and needs no separate deploy step.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
