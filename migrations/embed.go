// Package migrations embeds the SQL schema for the check-in state and
// reply-link tables.
package migrations

import "embed"

// FS holds the *.up.sql / *.down.sql pairs applied by golang-migrate at startup.
//
//go:embed *.sql
var FS embed.FS
