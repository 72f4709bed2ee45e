package migrations

const GoFileTemplate = `//go:build ignore
package {{.PackageName}}

import (
	"github.com/toolsascode/gfm/migrations"
	_ "embed"
)

//go:embed {{.UpFileName}}
var upScript string

//go:embed {{.DownFileName}}
var downScript string

func init() {
	migration := &migrations.MigrationScript{
		Version:      "{{.Version}}",
		Name:         "{{.Name}}",
		Graph:        "{{.Graph}}",
		App:          "{{.App}}",
		UpScript:     upScript,
		DownScript:   downScript,
		Console:      []string{ {{.Console}} },
		Irreversible: {{.Irreversible}},
		Dependencies: []string{ {{.Dependencies}} },
		Source:       "{{.Source}}",
	}
	migrations.GlobalRegistry.Register(migration)
}
`
