package gremlin

import _ "embed"

//go:embed runtime.groovy
var runtimeScript string

// Runtime returns the embedded helper library defining the db API.
// Backends submit it ahead of every migration script so the generated
// fragments resolve.
func Runtime() string {
	return runtimeScript
}
