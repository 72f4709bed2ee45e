// Package migrations provides the public API for registering and managing graph migrations.
// It exports types and registry accessors that generated migration files use to register
// themselves with the global migration registry.
//
// The migrations package is designed to allow migration files outside the gfm module
// to register migrations by importing this package and using the exported types and registry.
//
// Example usage in a generated migration file:
//
//	package identity
//
//	import (
//		"github.com/toolsascode/gfm/migrations"
//		_ "embed"
//	)
//
//	//go:embed 20260101120000_add_person.up.groovy
//	var upScript string
//
//	//go:embed 20260101120000_add_person.down.groovy
//	var downScript string
//
//	func init() {
//		migration := &migrations.MigrationScript{
//			Version:    "20260101120000",
//			Name:       "add_person",
//			Graph:      "identity",
//			UpScript:   upScript,
//			DownScript: downScript,
//		}
//		migrations.GlobalRegistry.Register(migration)
//	}
package migrations
