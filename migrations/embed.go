// Package migrations embeds the postgres schema so the server binary and the
// migrate CLI can run migrations without a migrations directory on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
