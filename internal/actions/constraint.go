package actions

import (
	"fmt"

	"github.com/toolsascode/gfm/internal/schema"
)

// AddUnique is the addition of a uniqueness constraint over one or more
// properties. Its backward fragment prepends: the constraint must go
// away before the fields it spans are touched on the way back.
type AddUnique struct {
	hints
	Model   *schema.Model
	Fields  []string
	columns []string
}

// NewAddUnique records a unique constraint addition; fields are
// property names
func NewAddUnique(m *schema.Model, fields []string) (*AddUnique, error) {
	columns, err := m.Columns(fields)
	if err != nil {
		return nil, err
	}
	return &AddUnique{
		hints:   hints{prependBackwards: true},
		Model:   m,
		Fields:  fields,
		columns: columns,
	}, nil
}

func (a *AddUnique) ConsoleLine() string {
	return fmt.Sprintf(" + Added unique constraint for %v on %s.%s", a.Fields, a.Model.App, a.Model.ClassName)
}

func (a *AddUnique) ForwardsCode(d Dialect) string {
	return d.CreateUnique(a.Model, a.columns)
}

func (a *AddUnique) BackwardsCode(d Dialect) string {
	return d.DeleteUnique(a.Model, a.columns)
}

// DeleteUnique is the removal of a uniqueness constraint. Its forward
// fragment prepends for the mirrored reason.
type DeleteUnique struct {
	hints
	Model   *schema.Model
	Fields  []string
	columns []string
}

// NewDeleteUnique records a unique constraint removal
func NewDeleteUnique(m *schema.Model, fields []string) (*DeleteUnique, error) {
	columns, err := m.Columns(fields)
	if err != nil {
		return nil, err
	}
	return &DeleteUnique{
		hints:   hints{prependForwards: true},
		Model:   m,
		Fields:  fields,
		columns: columns,
	}, nil
}

func (a *DeleteUnique) ConsoleLine() string {
	return fmt.Sprintf(" - Deleted unique constraint for %v on %s.%s", a.Fields, a.Model.App, a.Model.ClassName)
}

func (a *DeleteUnique) ForwardsCode(d Dialect) string {
	return d.DeleteUnique(a.Model, a.columns)
}

func (a *DeleteUnique) BackwardsCode(d Dialect) string {
	return d.CreateUnique(a.Model, a.columns)
}

// AddIndex is the addition of a graph index
type AddIndex struct {
	hints
	Model *schema.Model
	Index *schema.Index
}

// NewAddIndex records an index addition
func NewAddIndex(m *schema.Model, idx *schema.Index) *AddIndex {
	return &AddIndex{
		hints: hints{prependBackwards: true},
		Model: m,
		Index: idx,
	}
}

func (a *AddIndex) ConsoleLine() string {
	return fmt.Sprintf(" + Added index for %v on %s.%s", a.Index.Fields, a.Model.App, a.Model.ClassName)
}

func (a *AddIndex) ForwardsCode(d Dialect) string {
	return d.CreateIndex(a.Model, a.Index)
}

func (a *AddIndex) BackwardsCode(d Dialect) string {
	return d.DeleteIndex(a.Model, a.Index)
}

// DeleteIndex is the removal of a graph index
type DeleteIndex struct {
	hints
	Model *schema.Model
	Index *schema.Index
}

// NewDeleteIndex records an index removal
func NewDeleteIndex(m *schema.Model, idx *schema.Index) *DeleteIndex {
	return &DeleteIndex{
		hints: hints{prependForwards: true},
		Model: m,
		Index: idx,
	}
}

func (a *DeleteIndex) ConsoleLine() string {
	return fmt.Sprintf(" - Deleted index for %v on %s.%s", a.Index.Fields, a.Model.App, a.Model.ClassName)
}

func (a *DeleteIndex) ForwardsCode(d Dialect) string {
	return d.DeleteIndex(a.Model, a.Index)
}

func (a *DeleteIndex) BackwardsCode(d Dialect) string {
	return d.CreateIndex(a.Model, a.Index)
}

// UpdateIndex is a change to the field set of an existing index; the
// backward fragment restores the old field set
type UpdateIndex struct {
	hints
	Model *schema.Model
	Old   *schema.Index
	New   *schema.Index
}

// NewUpdateIndex records an index field-set change
func NewUpdateIndex(m *schema.Model, old, new *schema.Index) *UpdateIndex {
	return &UpdateIndex{Model: m, Old: old, New: new}
}

func (a *UpdateIndex) ConsoleLine() string {
	return fmt.Sprintf(" ~ Updated index for %v on %s.%s", a.New.Fields, a.Model.App, a.Model.ClassName)
}

func (a *UpdateIndex) ForwardsCode(d Dialect) string {
	return d.UpdateIndex(a.Model, a.New)
}

func (a *UpdateIndex) BackwardsCode(d Dialect) string {
	return d.UpdateIndex(a.Model, a.Old)
}
