package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vertexModel(app, class string, props ...*Property) *Model {
	return &Model{App: app, ClassName: class, Kind: KindVertex, Properties: props}
}

func TestNewSetNormalizes(t *testing.T) {
	m := vertexModel("core", "UserProfile",
		&Property{Name: "email", Type: TypeString},
		&Property{Name: "age", Type: TypeInteger, Column: "age_years"},
	)
	m.Indexes = []*Index{{Fields: []string{"email"}}}

	set, err := NewSet(m)
	require.NoError(t, err)

	got, ok := set.Get("core.UserProfile")
	require.True(t, ok)
	assert.Equal(t, "user_profile", got.Label)
	assert.Equal(t, "email", got.Property("email").Column)
	assert.Equal(t, "age_years", got.Property("age").Column)
	assert.Equal(t, CardinalitySingle, got.Property("email").Cardinality)
	assert.Equal(t, "user_profile_email_idx", got.Indexes[0].Name)
}

func TestNewSetValidation(t *testing.T) {
	tests := []struct {
		name    string
		models  []*Model
		wantErr string
	}{
		{
			name:    "missing app",
			models:  []*Model{{ClassName: "Person", Kind: KindVertex}},
			wantErr: "app is required",
		},
		{
			name:    "missing class",
			models:  []*Model{{App: "core", Kind: KindVertex}},
			wantErr: "class is required",
		},
		{
			name:    "bad kind",
			models:  []*Model{{App: "core", ClassName: "Person", Kind: "table"}},
			wantErr: "kind must be",
		},
		{
			name: "duplicate property",
			models: []*Model{vertexModel("core", "Person",
				&Property{Name: "email", Type: TypeString},
				&Property{Name: "email", Type: TypeText},
			)},
			wantErr: `duplicate property "email"`,
		},
		{
			name: "unknown type",
			models: []*Model{vertexModel("core", "Person",
				&Property{Name: "email", Type: "varchar"},
			)},
			wantErr: `unknown type "varchar"`,
		},
		{
			name: "blank on non-string",
			models: []*Model{vertexModel("core", "Person",
				&Property{Name: "age", Type: TypeInteger, Blank: true},
			)},
			wantErr: "blank applies to string kinds only",
		},
		{
			name: "unique references unknown property",
			models: []*Model{func() *Model {
				m := vertexModel("core", "Person", &Property{Name: "email", Type: TypeString})
				m.Uniques = [][]string{{"phone"}}
				return m
			}()},
			wantErr: `unique constraint references unknown property "phone"`,
		},
		{
			name: "index references unknown property",
			models: []*Model{func() *Model {
				m := vertexModel("core", "Person", &Property{Name: "email", Type: TypeString})
				m.Indexes = []*Index{{Fields: []string{"phone"}}}
				return m
			}()},
			wantErr: `index references unknown property "phone"`,
		},
		{
			name: "duplicate model",
			models: []*Model{
				vertexModel("core", "Person"),
				vertexModel("core", "Person"),
			},
			wantErr: "duplicate model core.Person",
		},
		{
			name: "label collision within kind",
			models: []*Model{
				{App: "core", ClassName: "Person", Kind: KindVertex, Label: "person"},
				{App: "crm", ClassName: "Contact", Kind: KindVertex, Label: "person"},
			},
			wantErr: `label "person" already used`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSet(tt.models...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLabelMayRepeatAcrossKinds(t *testing.T) {
	_, err := NewSet(
		&Model{App: "core", ClassName: "Owns", Kind: KindEdge, Label: "owns"},
		&Model{App: "core", ClassName: "OwnsRecord", Kind: KindVertex, Label: "owns"},
	)
	assert.NoError(t, err)
}

func TestSetAppsAndFilter(t *testing.T) {
	set, err := NewSet(
		vertexModel("crm", "Contact"),
		vertexModel("core", "Person"),
		&Model{App: "core", ClassName: "Follows", Kind: KindEdge},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"core", "crm"}, set.Apps())
	assert.Equal(t, []string{"core.Follows", "core.Person", "crm.Contact"}, set.Names())

	core := set.FilterApp("core")
	assert.Equal(t, []string{"core.Follows", "core.Person"}, core.Names())
	_, ok := core.Get("crm.Contact")
	assert.False(t, ok)
}

func TestModelColumns(t *testing.T) {
	m := vertexModel("core", "Person",
		&Property{Name: "email", Type: TypeString, Column: "email_addr"},
		&Property{Name: "name", Type: TypeString},
	)
	_, err := NewSet(m)
	require.NoError(t, err)

	cols, err := m.Columns([]string{"email", "name"})
	require.NoError(t, err)
	assert.Equal(t, []string{"email_addr", "name"}, cols)

	_, err = m.Columns([]string{"phone"})
	assert.Error(t, err)
}

func TestToSnake(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Person", "person"},
		{"UserProfile", "user_profile"},
		{"HTTPServer", "http_server"},
		{"APIKey", "api_key"},
		{"already_snake", "already_snake"},
		{"X", "x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToSnake(tt.in), "ToSnake(%q)", tt.in)
	}
}
