// Package diff compares two schema sets and produces the ordered action
// list that migrates one into the other. Constraint and index drops
// come first so they release the fields they span, structural changes
// follow, and constraint and index additions close the list.
package diff

import (
	"sort"
	"strings"

	"github.com/toolsascode/gfm/internal/actions"
	"github.com/toolsascode/gfm/internal/schema"
)

// Options shape a single diff run
type Options struct {
	// App restricts the comparison to one app; empty compares all.
	App string
	// Resolver is consulted on null conflicts. Nil refuses them the
	// way a non-interactive run does.
	Resolver actions.Resolver
}

// buckets collects actions by phase; Ordered flattens them
type buckets struct {
	deletedUniques []actions.Action
	deletedIndexes []actions.Action
	deletedFields  []actions.Action
	deletedModels  []actions.Action
	addedModels    []actions.Action
	addedFields    []actions.Action
	changedFields  []actions.Action
	addedUniques   []actions.Action
	addedIndexes   []actions.Action
	updatedIndexes []actions.Action
}

func (b *buckets) ordered() []actions.Action {
	var out []actions.Action
	out = append(out, b.deletedUniques...)
	out = append(out, b.deletedIndexes...)
	out = append(out, b.deletedFields...)
	out = append(out, b.deletedModels...)
	out = append(out, b.addedModels...)
	out = append(out, b.addedFields...)
	out = append(out, b.changedFields...)
	out = append(out, b.addedUniques...)
	out = append(out, b.addedIndexes...)
	out = append(out, b.updatedIndexes...)
	return out
}

// Diff computes the actions turning the from set into the to set.
// Models pair by qualified name and fields by name; both sets iterate
// in sorted model order so repeated runs produce identical plans. A
// null conflict the resolver aborts on surfaces as actions.ErrAborted.
func Diff(from, to *schema.Set, opts Options) ([]actions.Action, error) {
	if opts.App != "" {
		from = from.FilterApp(opts.App)
		to = to.FilterApp(opts.App)
	}

	var b buckets
	for _, oldModel := range from.Models {
		newModel, survives := to.Get(oldModel.QualifiedName())
		if survives && sameIdentity(oldModel, newModel) {
			if err := compareModels(&b, oldModel, newModel, opts.Resolver); err != nil {
				return nil, err
			}
			continue
		}
		// Gone, or reshaped so fundamentally (kind or label changed)
		// that only a drop and recreate expresses it.
		b.deletedModels = append(b.deletedModels, actions.NewDeleteModel(oldModel))
	}

	for _, newModel := range to.Models {
		oldModel, existed := from.Get(newModel.QualifiedName())
		if existed && sameIdentity(oldModel, newModel) {
			continue
		}
		b.addedModels = append(b.addedModels, actions.NewAddModel(newModel))
		if err := addConstraints(&b, newModel); err != nil {
			return nil, err
		}
	}

	return b.ordered(), nil
}

// sameIdentity reports whether two models describe the same element
// type in the graph
func sameIdentity(a, b *schema.Model) bool {
	return a.Kind == b.Kind && a.Label == b.Label
}

// addConstraints emits the unique and index additions of a brand-new
// model; CreateModel only establishes the label and its properties
func addConstraints(b *buckets, m *schema.Model) error {
	for _, fields := range m.Uniques {
		action, err := actions.NewAddUnique(m, fields)
		if err != nil {
			return err
		}
		b.addedUniques = append(b.addedUniques, action)
	}
	for _, idx := range m.Indexes {
		b.addedIndexes = append(b.addedIndexes, actions.NewAddIndex(m, idx))
	}
	return nil
}

func compareModels(b *buckets, oldModel, newModel *schema.Model, r actions.Resolver) error {
	if err := compareFields(b, oldModel, newModel, r); err != nil {
		return err
	}
	if err := compareUniques(b, oldModel, newModel); err != nil {
		return err
	}
	compareIndexes(b, oldModel, newModel)
	return nil
}

func compareFields(b *buckets, oldModel, newModel *schema.Model, r actions.Resolver) error {
	for _, oldField := range oldModel.Properties {
		newField := newModel.Property(oldField.Name)
		if newField == nil {
			action, err := actions.NewDeleteField(oldModel, oldField, r)
			if err != nil {
				return err
			}
			b.deletedFields = append(b.deletedFields, action)
			continue
		}
		if oldField.Column == newField.Column && sameDefinition(oldField, newField) {
			continue
		}
		action, err := actions.NewChangeField(newModel, oldField, newField, r)
		if err != nil {
			return err
		}
		b.changedFields = append(b.changedFields, action)
	}
	for _, newField := range newModel.Properties {
		if oldModel.Property(newField.Name) != nil {
			continue
		}
		action, err := actions.NewAddField(newModel, newField, r)
		if err != nil {
			return err
		}
		b.addedFields = append(b.addedFields, action)
	}
	return nil
}

// sameDefinition compares everything the dialect renders into a def map
func sameDefinition(a, b *schema.Property) bool {
	if a.Type != b.Type || a.Required != b.Required || a.Blank != b.Blank || a.Cardinality != b.Cardinality {
		return false
	}
	switch {
	case a.Default == nil && b.Default == nil:
		return true
	case a.Default == nil || b.Default == nil:
		return false
	default:
		return a.Default.Equal(*b.Default)
	}
}

// compareUniques matches constraints as sorted column sets, so listing
// the same fields in a different order is not a change. Declaration
// order drives emission order to keep plans reproducible.
func compareUniques(b *buckets, oldModel, newModel *schema.Model) error {
	oldKeys, err := uniqueKeys(oldModel)
	if err != nil {
		return err
	}
	newKeys, err := uniqueKeys(newModel)
	if err != nil {
		return err
	}
	oldSet, newSet := keySet(oldKeys), keySet(newKeys)
	for i, fields := range oldModel.Uniques {
		if newSet[oldKeys[i]] {
			continue
		}
		action, err := actions.NewDeleteUnique(oldModel, fields)
		if err != nil {
			return err
		}
		b.deletedUniques = append(b.deletedUniques, action)
	}
	for i, fields := range newModel.Uniques {
		if oldSet[newKeys[i]] {
			continue
		}
		action, err := actions.NewAddUnique(newModel, fields)
		if err != nil {
			return err
		}
		b.addedUniques = append(b.addedUniques, action)
	}
	return nil
}

func keySet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

func uniqueKeys(m *schema.Model) ([]string, error) {
	keys := make([]string, 0, len(m.Uniques))
	for _, fields := range m.Uniques {
		columns, err := m.Columns(fields)
		if err != nil {
			return nil, err
		}
		sorted := append([]string(nil), columns...)
		sort.Strings(sorted)
		keys = append(keys, strings.Join(sorted, "\x1f"))
	}
	return keys, nil
}

// compareIndexes matches indexes by name. A surviving name with a
// different field list is an in-place update; a flag change (unique,
// mixed) rebuilds the index as a drop and add because the runtime
// cannot convert one index kind into another.
func compareIndexes(b *buckets, oldModel, newModel *schema.Model) {
	newByName := make(map[string]*schema.Index, len(newModel.Indexes))
	for _, idx := range newModel.Indexes {
		newByName[idx.Name] = idx
	}
	for _, oldIdx := range oldModel.Indexes {
		newIdx, kept := newByName[oldIdx.Name]
		if !kept {
			b.deletedIndexes = append(b.deletedIndexes, actions.NewDeleteIndex(oldModel, oldIdx))
			continue
		}
		if oldIdx.Unique != newIdx.Unique || oldIdx.Mixed != newIdx.Mixed {
			b.deletedIndexes = append(b.deletedIndexes, actions.NewDeleteIndex(oldModel, oldIdx))
			b.addedIndexes = append(b.addedIndexes, actions.NewAddIndex(newModel, newIdx))
			continue
		}
		if !sameFields(oldIdx.Fields, newIdx.Fields) {
			b.updatedIndexes = append(b.updatedIndexes, actions.NewUpdateIndex(newModel, oldIdx, newIdx))
		}
	}
	for _, newIdx := range newModel.Indexes {
		if indexByName(oldModel, newIdx.Name) == nil {
			b.addedIndexes = append(b.addedIndexes, actions.NewAddIndex(newModel, newIdx))
		}
	}
}

func indexByName(m *schema.Model, name string) *schema.Index {
	for _, idx := range m.Indexes {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}

// sameFields compares index field lists in order: composite index
// ordering is significant
func sameFields(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
