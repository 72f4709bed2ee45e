// Package gremlin renders schema actions as Groovy fragments targeting
// the embedded db runtime, and assembles fragments into migration
// scripts. The runtime (runtime.groovy) is submitted to the Gremlin
// server ahead of every script, so fragments stay declarative one-line
// calls instead of raw management-API plumbing.
package gremlin

import (
	"fmt"
	"strings"

	"github.com/toolsascode/gfm/internal/schema"
)

// Dialect renders fragments for Gremlin-compatible graph databases
type Dialect struct{}

// kindWord returns "vertex" or "edge" for fragment headers
func kindWord(m *schema.Model) string {
	if m.IsVertex() {
		return "vertex"
	}
	return "edge"
}

// callWord returns the capitalized kind used in runtime call names
func callWord(m *schema.Model) string {
	if m.IsVertex() {
		return "Vertex"
	}
	return "Edge"
}

// CreateModel renders the creation of a vertex or edge label with all
// of its property definitions
func (Dialect) CreateModel(m *schema.Model) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// Adding %s '%s'\n", kindWord(m), m.ClassName)
	if len(m.Properties) == 0 {
		fmt.Fprintf(&b, "db.create%s(%s, [])", callWord(m), quote(m.Label))
		return b.String()
	}
	fmt.Fprintf(&b, "db.create%s(%s, [\n", callWord(m), quote(m.Label))
	for _, p := range m.Properties {
		fmt.Fprintf(&b, "    [%s, %s],\n", quote(p.Column), PropertyDef(p))
	}
	b.WriteString("])")
	return b.String()
}

// DeleteModel renders the removal of a vertex or edge label
func (Dialect) DeleteModel(m *schema.Model) string {
	return fmt.Sprintf("// Deleting %s '%s'\ndb.delete%s(%s)",
		kindWord(m), m.ClassName, callWord(m), quote(m.Label))
}

// AddProperty renders a property addition. A def carrying a default
// backfills existing elements; keepDefault controls whether the default
// stays in the stored schema afterwards (one-off values do not).
func (Dialect) AddProperty(m *schema.Model, p *schema.Property, keepDefault bool) string {
	return fmt.Sprintf("// Adding field '%s.%s'\ndb.addProperty(%s, %s,\n    %s,\n    %v)",
		m.ClassName, p.Name, quote(m.Label), quote(p.Column), PropertyDef(p), keepDefault)
}

// DeleteProperty renders a property removal
func (Dialect) DeleteProperty(m *schema.Model, column string) string {
	return fmt.Sprintf("// Deleting field '%s.%s'\ndb.deleteProperty(%s, %s)",
		m.ClassName, column, quote(m.Label), quote(column))
}

// AlterProperty renders a definition change on an existing property
func (Dialect) AlterProperty(m *schema.Model, p *schema.Property) string {
	return fmt.Sprintf("// Changing field '%s.%s'\ndb.alterProperty(%s, %s, %s)",
		m.ClassName, p.Name, quote(m.Label), quote(p.Column), PropertyDef(p))
}

// RenameProperty renders a storage-key rename
func (Dialect) RenameProperty(m *schema.Model, oldColumn, newColumn string) string {
	return fmt.Sprintf("// Renaming property for '%s.%s' to match the new field definition\ndb.renameProperty(%s, %s, %s)",
		m.ClassName, newColumn, quote(m.Label), quote(oldColumn), quote(newColumn))
}

// CreateUnique renders a uniqueness constraint over one or more columns
func (Dialect) CreateUnique(m *schema.Model, columns []string) string {
	return fmt.Sprintf("// Adding unique constraint on '%s', fields %v\ndb.createUnique(%s, %s)",
		m.ClassName, columns, quote(m.Label), quoteList(columns))
}

// DeleteUnique renders a uniqueness constraint removal
func (Dialect) DeleteUnique(m *schema.Model, columns []string) string {
	return fmt.Sprintf("// Removing unique constraint on '%s', fields %v\ndb.deleteUnique(%s, %s)",
		m.ClassName, columns, quote(m.Label), quoteList(columns))
}

// CreateIndex renders an index creation
func (d Dialect) CreateIndex(m *schema.Model, idx *schema.Index) string {
	return fmt.Sprintf("// Adding index on '%s', fields %v\ndb.createIndex(%s, %s, %s, %v)",
		m.ClassName, idx.Fields, quote(m.Label), quote(idx.Name), quoteList(indexColumns(m, idx)), idx.Mixed)
}

// DeleteIndex renders an index removal
func (d Dialect) DeleteIndex(m *schema.Model, idx *schema.Index) string {
	return fmt.Sprintf("// Removing index on '%s', fields %v\ndb.deleteIndex(%s, %s)",
		m.ClassName, idx.Fields, quote(m.Label), quote(idx.Name))
}

// UpdateIndex renders an index rebuild over a new column set
func (d Dialect) UpdateIndex(m *schema.Model, idx *schema.Index) string {
	return fmt.Sprintf("// Updating index on '%s', fields %v\ndb.updateIndex(%s, %s, %s)",
		m.ClassName, idx.Fields, quote(m.Label), quote(idx.Name), quoteList(indexColumns(m, idx)))
}

// Irreversible renders the guard spliced ahead of a backward fragment
// whose values cannot be restored. The script stops at the throw; the
// code after it is a starting point for a hand-written fix.
func (Dialect) Irreversible(m *schema.Model, p *schema.Property) string {
	message := fmt.Sprintf("Cannot reverse this migration. '%s.%s' and its values cannot be restored.", m.ClassName, p.Name)
	return fmt.Sprintf("// %s\nthrow new IllegalStateException(%q)\n// The statements below are provided to aid in writing a correct migration",
		message, message)
}

// indexColumns maps index fields to storage columns. Set validation
// guarantees the fields exist; an unknown field only occurs for
// hand-built models and falls back to the field name itself.
func indexColumns(m *schema.Model, idx *schema.Index) []string {
	columns := make([]string, 0, len(idx.Fields))
	for _, field := range idx.Fields {
		if p := m.Property(field); p != nil && p.Column != "" {
			columns = append(columns, p.Column)
		} else {
			columns = append(columns, field)
		}
	}
	return columns
}
