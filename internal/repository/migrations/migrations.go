// Package migrations embeds the vault schema for every supported database.
package migrations

import "embed"

// FS holds one goose migration directory per dialect.
//
//go:embed sqlite/*.sql mysql/*.sql
var FS embed.FS
