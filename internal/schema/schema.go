package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Kind distinguishes vertex models from edge models
type Kind string

const (
	KindVertex Kind = "vertex"
	KindEdge   Kind = "edge"
)

// Property value types understood by the dialect
const (
	TypeString   = "string"
	TypeText     = "text"
	TypeInteger  = "integer"
	TypeLong     = "long"
	TypeFloat    = "float"
	TypeDouble   = "double"
	TypeBoolean  = "boolean"
	TypeDatetime = "datetime"
	TypeUUID     = "uuid"
)

// Property cardinalities
const (
	CardinalitySingle = "single"
	CardinalityList   = "list"
	CardinalitySet    = "set"
)

var validTypes = map[string]bool{
	TypeString:   true,
	TypeText:     true,
	TypeInteger:  true,
	TypeLong:     true,
	TypeFloat:    true,
	TypeDouble:   true,
	TypeBoolean:  true,
	TypeDatetime: true,
	TypeUUID:     true,
}

var validCardinalities = map[string]bool{
	CardinalitySingle: true,
	CardinalityList:   true,
	CardinalitySet:    true,
}

// IsStringKind reports whether a property type holds text
func IsStringKind(propertyType string) bool {
	return propertyType == TypeString || propertyType == TypeText
}

// Property is a single field on a vertex or edge model
type Property struct {
	Name        string   `yaml:"name"`
	Column      string   `yaml:"column,omitempty"`
	Type        string   `yaml:"type"`
	Required    bool     `yaml:"required,omitempty"`
	Blank       bool     `yaml:"blank,omitempty"`
	Default     *Literal `yaml:"default,omitempty"`
	Cardinality string   `yaml:"cardinality,omitempty"`
}

// HasDefault reports whether a default value is declared
func (p *Property) HasDefault() bool {
	return p.Default != nil
}

// Clone returns a copy safe to mutate (one-off defaults are attached to
// copies so the loaded definition stays pristine)
func (p *Property) Clone() *Property {
	cp := *p
	if p.Default != nil {
		d := *p.Default
		cp.Default = &d
	}
	return &cp
}

// Index describes a graph index over one or more properties
type Index struct {
	Name   string   `yaml:"name,omitempty"`
	Fields []string `yaml:"fields"`
	Unique bool     `yaml:"unique,omitempty"`
	Mixed  bool     `yaml:"mixed,omitempty"`
}

// Model is one vertex or edge definition
type Model struct {
	App        string      `yaml:"app"`
	ClassName  string      `yaml:"class"`
	Kind       Kind        `yaml:"kind"`
	Label      string      `yaml:"label,omitempty"`
	Properties []*Property `yaml:"properties,omitempty"`
	Uniques    [][]string  `yaml:"uniques,omitempty"`
	Indexes    []*Index    `yaml:"indexes,omitempty"`
}

// QualifiedName returns "app.ClassName", the identity used for diffing
func (m *Model) QualifiedName() string {
	return m.App + "." + m.ClassName
}

// IsVertex reports whether the model is a vertex
func (m *Model) IsVertex() bool {
	return m.Kind == KindVertex
}

// Property returns the named property, or nil
func (m *Model) Property(name string) *Property {
	for _, p := range m.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Columns maps property names to their storage columns
func (m *Model) Columns(names []string) ([]string, error) {
	columns := make([]string, 0, len(names))
	for _, name := range names {
		p := m.Property(name)
		if p == nil {
			return nil, fmt.Errorf("model %s has no property %q", m.QualifiedName(), name)
		}
		columns = append(columns, p.Column)
	}
	return columns, nil
}

// normalize fills derivable fields and validates the model in isolation
func (m *Model) normalize() error {
	if m.App == "" {
		return fmt.Errorf("model %q: app is required", m.ClassName)
	}
	if m.ClassName == "" {
		return fmt.Errorf("model in app %q: class is required", m.App)
	}
	if m.Kind != KindVertex && m.Kind != KindEdge {
		return fmt.Errorf("model %s: kind must be %q or %q, got %q", m.QualifiedName(), KindVertex, KindEdge, m.Kind)
	}
	if m.Label == "" {
		m.Label = ToSnake(m.ClassName)
	}

	seen := make(map[string]bool, len(m.Properties))
	columns := make(map[string]bool, len(m.Properties))
	for _, p := range m.Properties {
		if p.Name == "" {
			return fmt.Errorf("model %s: property without a name", m.QualifiedName())
		}
		if seen[p.Name] {
			return fmt.Errorf("model %s: duplicate property %q", m.QualifiedName(), p.Name)
		}
		seen[p.Name] = true
		if p.Column == "" {
			p.Column = p.Name
		}
		if columns[p.Column] {
			return fmt.Errorf("model %s: duplicate column %q", m.QualifiedName(), p.Column)
		}
		columns[p.Column] = true
		if !validTypes[p.Type] {
			return fmt.Errorf("model %s: property %q has unknown type %q", m.QualifiedName(), p.Name, p.Type)
		}
		if p.Cardinality == "" {
			p.Cardinality = CardinalitySingle
		}
		if !validCardinalities[p.Cardinality] {
			return fmt.Errorf("model %s: property %q has unknown cardinality %q", m.QualifiedName(), p.Name, p.Cardinality)
		}
		if p.Blank && !IsStringKind(p.Type) {
			return fmt.Errorf("model %s: property %q: blank applies to string kinds only", m.QualifiedName(), p.Name)
		}
	}

	for _, unique := range m.Uniques {
		if len(unique) == 0 {
			return fmt.Errorf("model %s: unique constraint with no fields", m.QualifiedName())
		}
		for _, field := range unique {
			if !seen[field] {
				return fmt.Errorf("model %s: unique constraint references unknown property %q", m.QualifiedName(), field)
			}
		}
	}

	indexNames := make(map[string]bool, len(m.Indexes))
	for _, idx := range m.Indexes {
		if len(idx.Fields) == 0 {
			return fmt.Errorf("model %s: index with no fields", m.QualifiedName())
		}
		for _, field := range idx.Fields {
			if !seen[field] {
				return fmt.Errorf("model %s: index references unknown property %q", m.QualifiedName(), field)
			}
		}
		if idx.Name == "" {
			idx.Name = fmt.Sprintf("%s_%s_idx", m.Label, strings.Join(idx.Fields, "_"))
		}
		if indexNames[idx.Name] {
			return fmt.Errorf("model %s: duplicate index name %q", m.QualifiedName(), idx.Name)
		}
		indexNames[idx.Name] = true
	}

	return nil
}

// Set is a validated collection of models keyed by qualified name
type Set struct {
	Models []*Model
	byName map[string]*Model
}

// NewSet normalizes and validates the given models as one schema
func NewSet(models ...*Model) (*Set, error) {
	s := &Set{byName: make(map[string]*Model, len(models))}
	labels := make(map[string]string, len(models))
	for _, m := range models {
		if err := m.normalize(); err != nil {
			return nil, err
		}
		qn := m.QualifiedName()
		if _, dup := s.byName[qn]; dup {
			return nil, fmt.Errorf("duplicate model %s", qn)
		}
		if owner, dup := labels[labelKey(m)]; dup {
			return nil, fmt.Errorf("model %s: label %q already used by %s", qn, m.Label, owner)
		}
		labels[labelKey(m)] = qn
		s.byName[qn] = m
		s.Models = append(s.Models, m)
	}
	sort.Slice(s.Models, func(i, j int) bool {
		return s.Models[i].QualifiedName() < s.Models[j].QualifiedName()
	})
	return s, nil
}

// labels only collide within a kind: a vertex and an edge may share one
func labelKey(m *Model) string {
	return string(m.Kind) + ":" + m.Label
}

// Get returns the model with the given qualified name
func (s *Set) Get(qualified string) (*Model, bool) {
	m, ok := s.byName[qualified]
	return m, ok
}

// Names returns all qualified names in sorted order
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.Models))
	for _, m := range s.Models {
		names = append(names, m.QualifiedName())
	}
	return names
}

// Apps returns the distinct app names in sorted order
func (s *Set) Apps() []string {
	seen := make(map[string]bool)
	var apps []string
	for _, m := range s.Models {
		if !seen[m.App] {
			seen[m.App] = true
			apps = append(apps, m.App)
		}
	}
	sort.Strings(apps)
	return apps
}

// FilterApp returns a set containing only the models of one app
func (s *Set) FilterApp(app string) *Set {
	filtered := &Set{byName: make(map[string]*Model)}
	for _, m := range s.Models {
		if m.App == app {
			filtered.byName[m.QualifiedName()] = m
			filtered.Models = append(filtered.Models, m)
		}
	}
	return filtered
}

// ToSnake converts CamelCase class names to snake_case labels
func ToSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				prev := rune(name[i-1])
				next := i+1 < len(name) && name[i+1] >= 'a' && name[i+1] <= 'z'
				if (prev < 'A' || prev > 'Z') || next {
					b.WriteByte('_')
				}
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
