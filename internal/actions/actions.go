// Package actions models individual schema changes. Each action carries
// a console line and contributes one fragment to the forward script and
// one to the backward script, appended or prepended depending on the
// action kind.
package actions

import (
	"github.com/toolsascode/gfm/internal/schema"
)

// Dialect renders structural changes as script fragments. The gremlin
// package provides the implementation used in production; tests use a
// stub.
type Dialect interface {
	CreateModel(m *schema.Model) string
	DeleteModel(m *schema.Model) string
	AddProperty(m *schema.Model, p *schema.Property, keepDefault bool) string
	DeleteProperty(m *schema.Model, column string) string
	AlterProperty(m *schema.Model, p *schema.Property) string
	RenameProperty(m *schema.Model, oldColumn, newColumn string) string
	CreateUnique(m *schema.Model, columns []string) string
	DeleteUnique(m *schema.Model, columns []string) string
	CreateIndex(m *schema.Model, idx *schema.Index) string
	DeleteIndex(m *schema.Model, idx *schema.Index) string
	UpdateIndex(m *schema.Model, idx *schema.Index) string
	Irreversible(m *schema.Model, p *schema.Property) string
}

// Action is one detected schema change
type Action interface {
	// ConsoleLine returns the line printed while planning,
	// e.g. " + Added field email on core.Person"
	ConsoleLine() string
	ForwardsCode(d Dialect) string
	BackwardsCode(d Dialect) string
	PrependForwards() bool
	PrependBackwards() bool
}

// hints carries the splice positions; the zero value appends both ways
type hints struct {
	prependForwards  bool
	prependBackwards bool
}

func (h hints) PrependForwards() bool  { return h.prependForwards }
func (h hints) PrependBackwards() bool { return h.prependBackwards }

// Collect serializes actions into the forward and backward fragment
// lists. Constraint and index drops prepend so they run before the
// structural changes they guard; their creations prepend on the way
// back for the same reason.
func Collect(d Dialect, acts []Action) (forwards, backwards []string) {
	for _, a := range acts {
		if a.PrependForwards() {
			forwards = append([]string{a.ForwardsCode(d)}, forwards...)
		} else {
			forwards = append(forwards, a.ForwardsCode(d))
		}
		if a.PrependBackwards() {
			backwards = append([]string{a.BackwardsCode(d)}, backwards...)
		} else {
			backwards = append(backwards, a.BackwardsCode(d))
		}
	}
	return forwards, backwards
}

// ConsoleLines returns the console line of every action in order
func ConsoleLines(acts []Action) []string {
	lines := make([]string, 0, len(acts))
	for _, a := range acts {
		lines = append(lines, a.ConsoleLine())
	}
	return lines
}

type irreversibler interface {
	IsIrreversible() bool
}

// AnyIrreversible reports whether any action disabled its backward
// migration during conflict resolution
func AnyIrreversible(acts []Action) bool {
	for _, a := range acts {
		if irr, ok := a.(irreversibler); ok && irr.IsIrreversible() {
			return true
		}
	}
	return false
}
