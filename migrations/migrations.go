package migrations

import "embed"

// FS holds the PostgreSQL schema migrations applied by golang-migrate.
//
//go:embed *.sql
var FS embed.FS
