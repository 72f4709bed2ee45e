package migrations

import "github.com/toolsascode/gfm/internal/backends"

// MigrationScript is a public alias for backends.MigrationScript
// This allows migration files outside the gfm module to use this type
type MigrationScript = backends.MigrationScript
