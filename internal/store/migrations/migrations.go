// Package migrations embeds the goose SQL migrations for scorebook stores.
package migrations

import "embed"

// FS holds the embedded migration files, applied with goose at store open.
//
//go:embed *.sql
var FS embed.FS
