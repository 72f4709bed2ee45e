package actions

import (
	"fmt"

	"github.com/toolsascode/gfm/internal/schema"
)

// AddField is the addition of a property to an existing model. A
// required field without a default raises a null conflict at
// construction: existing elements need a value.
type AddField struct {
	hints
	Model *schema.Model
	Field *schema.Property
}

// NewAddField records a field addition, resolving any null conflict
func NewAddField(m *schema.Model, field *schema.Property, r Resolver) (*AddField, error) {
	if field.Required && !field.HasDefault() {
		resolved, _, err := resolveConflict(m, field, ReasonAddingField, false, r)
		if err != nil {
			return nil, err
		}
		field = resolved
	}
	return &AddField{Model: m, Field: field}, nil
}

func (a *AddField) ConsoleLine() string {
	return fmt.Sprintf(" + Added field %s on %s.%s", a.Field.Name, a.Model.App, a.Model.ClassName)
}

func (a *AddField) ForwardsCode(d Dialect) string {
	return d.AddProperty(a.Model, a.Field, false)
}

func (a *AddField) BackwardsCode(d Dialect) string {
	return d.DeleteProperty(a.Model, a.Field.Column)
}

// DeleteField is the removal of a property. The null conflict here is a
// backward one: rolling back must restore the field, and a required
// field without a default has nothing to restore existing elements
// with. The user may disable the backward migration instead.
type DeleteField struct {
	hints
	Model        *schema.Model
	Field        *schema.Property
	irreversible bool
}

// NewDeleteField records a field removal, resolving any null conflict
func NewDeleteField(m *schema.Model, field *schema.Property, r Resolver) (*DeleteField, error) {
	irreversible := false
	if field.Required && !field.HasDefault() {
		resolved, irr, err := resolveConflict(m, field, ReasonRemovingField, true, r)
		if err != nil {
			return nil, err
		}
		field = resolved
		irreversible = irr
	}
	return &DeleteField{Model: m, Field: field, irreversible: irreversible}, nil
}

func (a *DeleteField) ConsoleLine() string {
	return fmt.Sprintf(" - Deleted field %s on %s.%s", a.Field.Name, a.Model.App, a.Model.ClassName)
}

func (a *DeleteField) ForwardsCode(d Dialect) string {
	return d.DeleteProperty(a.Model, a.Field.Column)
}

func (a *DeleteField) BackwardsCode(d Dialect) string {
	code := d.AddProperty(a.Model, a.Field, false)
	if a.irreversible {
		return d.Irreversible(a.Model, a.Field) + "\n" + code
	}
	return code
}

// IsIrreversible reports whether the backward migration was disabled
func (a *DeleteField) IsIrreversible() bool {
	return a.irreversible
}

// ChangeField is a change to a property's definition, covering renames
// (column changed) and alterations (type, requiredness, cardinality,
// default). Making a field non-nullable raises a forward null conflict;
// making it nullable raises a backward one.
type ChangeField struct {
	hints
	Model        *schema.Model
	Old          *schema.Property
	New          *schema.Property
	irreversible bool
}

// NewChangeField records a field change, resolving any null conflicts
func NewChangeField(m *schema.Model, old, new *schema.Property, r Resolver) (*ChangeField, error) {
	irreversible := false
	if !old.Required && new.Required && !new.HasDefault() {
		resolved, _, err := resolveConflict(m, new, ReasonNonNullable, false, r)
		if err != nil {
			return nil, err
		}
		new = resolved
	}
	if old.Required && !new.Required && !old.HasDefault() {
		resolved, irr, err := resolveConflict(m, old, ReasonNullable, true, r)
		if err != nil {
			return nil, err
		}
		old = resolved
		irreversible = irr
	}
	return &ChangeField{Model: m, Old: old, New: new, irreversible: irreversible}, nil
}

func (a *ChangeField) ConsoleLine() string {
	return fmt.Sprintf(" ~ Changed field %s on %s.%s", a.New.Name, a.Model.App, a.Model.ClassName)
}

// code renders the rename (when the column moved) followed by the alter
// toward the given target definition
func (a *ChangeField) code(d Dialect, from, to *schema.Property) string {
	output := ""
	if from.Column != to.Column {
		output += d.RenameProperty(a.Model, from.Column, to.Column) + "\n"
	}
	return output + d.AlterProperty(a.Model, to)
}

func (a *ChangeField) ForwardsCode(d Dialect) string {
	return a.code(d, a.Old, a.New)
}

func (a *ChangeField) BackwardsCode(d Dialect) string {
	code := a.code(d, a.New, a.Old)
	if a.irreversible {
		return d.Irreversible(a.Model, a.Old) + "\n" + code
	}
	return code
}

// IsIrreversible reports whether the backward migration was disabled
func (a *ChangeField) IsIrreversible() bool {
	return a.irreversible
}
