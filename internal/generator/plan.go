// Package generator turns a resolved action list into migration
// artifacts on disk: the forward and backward Groovy scripts, the Go
// registration file embedding them, and the refreshed schema lock.
package generator

import (
	"time"

	"github.com/toolsascode/gfm/internal/actions"
	"github.com/toolsascode/gfm/internal/gremlin"
)

// Plan is one migration about to be written: the actions that produced
// it, the console summary, and both assembled scripts.
type Plan struct {
	Version      string
	Name         string
	Graph        string
	App          string
	Actions      []actions.Action
	Console      []string
	UpScript     string
	DownScript   string
	Irreversible bool
}

// NewPlan assembles the scripts for an action list. The caller picks
// version and name; the dialect is always Gremlin.
func NewPlan(graph, app, version, name string, acts []actions.Action) *Plan {
	dialect := gremlin.Dialect{}
	forwards, backwards := actions.Collect(dialect, acts)
	return &Plan{
		Version:      version,
		Name:         name,
		Graph:        graph,
		App:          app,
		Actions:      acts,
		Console:      actions.ConsoleLines(acts),
		UpScript:     gremlin.Assemble(version, name, "up", forwards),
		DownScript:   gremlin.Assemble(version, name, "down", backwards),
		Irreversible: actions.AnyIrreversible(acts),
	}
}

// Empty reports whether the plan carries no actions. Empty plans are
// printed as "no changes" and never written.
func (p *Plan) Empty() bool {
	return len(p.Actions) == 0
}

// NewVersion formats a migration version from a timestamp: 14 UTC
// digits, YYYYMMDDHHMMSS.
func NewVersion(now time.Time) string {
	return now.UTC().Format("20060102150405")
}
