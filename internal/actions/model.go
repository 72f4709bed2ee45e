package actions

import (
	"fmt"

	"github.com/toolsascode/gfm/internal/schema"
)

// AddModel is the addition of a vertex or edge model
type AddModel struct {
	hints
	Model *schema.Model
}

// NewAddModel records the addition of a model
func NewAddModel(m *schema.Model) *AddModel {
	return &AddModel{Model: m}
}

func (a *AddModel) ConsoleLine() string {
	return fmt.Sprintf(" + Added model %s.%s", a.Model.App, a.Model.ClassName)
}

func (a *AddModel) ForwardsCode(d Dialect) string {
	return d.CreateModel(a.Model)
}

func (a *AddModel) BackwardsCode(d Dialect) string {
	return d.DeleteModel(a.Model)
}

// DeleteModel is the removal of a vertex or edge model
type DeleteModel struct {
	hints
	Model *schema.Model
}

// NewDeleteModel records the removal of a model
func NewDeleteModel(m *schema.Model) *DeleteModel {
	return &DeleteModel{Model: m}
}

func (a *DeleteModel) ConsoleLine() string {
	return fmt.Sprintf(" - Deleted model %s.%s", a.Model.App, a.Model.ClassName)
}

func (a *DeleteModel) ForwardsCode(d Dialect) string {
	return d.DeleteModel(a.Model)
}

func (a *DeleteModel) BackwardsCode(d Dialect) string {
	return d.CreateModel(a.Model)
}
