package migrations

import "embed"

// FS contains the embedded SQLite migrations for the ledger tables.
//
//go:embed *.sql
var FS embed.FS
