// Package migrations embeds the SQL migration files so they are
// compiled into the binary and applied via golang-migrate's iofs
// source.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
