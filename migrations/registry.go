package migrations

import "github.com/toolsascode/gfm/internal/registry"

// GlobalRegistry provides public access to the global migration registry.
// GlobalRegistry allows migration files outside the gfm module to register
// migrations by accessing this exported variable.
var GlobalRegistry = registry.GlobalRegistry
