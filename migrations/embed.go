// Package migrations holds the goose SQL migrations for the export tables.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
