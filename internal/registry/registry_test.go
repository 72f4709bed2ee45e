package registry

import (
	"errors"
	"testing"

	"github.com/toolsascode/gfm/internal/backends"
)

func TestNewInMemoryRegistry(t *testing.T) {
	reg := NewInMemoryRegistry()
	if reg == nil {
		t.Fatal("NewInMemoryRegistry() returned nil")
	}
}

func TestInMemoryRegistry_Register(t *testing.T) {
	reg := NewInMemoryRegistry()

	migration := &backends.MigrationScript{
		Version:    "20260101120000",
		Name:       "add_person",
		Graph:      "identity",
		UpScript:   "db.createVertex('Person', [])\n",
		DownScript: "db.deleteVertex('Person')\n",
	}

	err := reg.Register(migration)
	if err != nil {
		t.Errorf("Register() error = %v", err)
	}

	all := reg.GetAll()
	if len(all) != 1 {
		t.Errorf("Expected 1 migration, got %v", len(all))
	}
}

func TestInMemoryRegistry_Register_RejectsDuplicate(t *testing.T) {
	reg := NewInMemoryRegistry()

	migration := &backends.MigrationScript{
		Version: "20260101120000",
		Name:    "add_person",
		Graph:   "identity",
	}
	if err := reg.Register(migration); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	err := reg.Register(migration)
	if err == nil {
		t.Fatal("Expected duplicate registration to fail")
	}
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}

	if len(reg.GetAll()) != 1 {
		t.Errorf("Expected 1 migration after duplicate, got %v", len(reg.GetAll()))
	}
}

func TestInMemoryRegistry_Register_RejectsIncomplete(t *testing.T) {
	reg := NewInMemoryRegistry()

	tests := []struct {
		name      string
		migration *backends.MigrationScript
	}{
		{"missing version", &backends.MigrationScript{Name: "m", Graph: "g"}},
		{"missing name", &backends.MigrationScript{Version: "20260101120000", Graph: "g"}},
		{"missing graph", &backends.MigrationScript{Version: "20260101120000", Name: "m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := reg.Register(tt.migration); err == nil {
				t.Error("Expected Register() to fail")
			}
		})
	}
}

func TestInMemoryRegistry_FindByTarget(t *testing.T) {
	reg := NewInMemoryRegistry()

	migration1 := &backends.MigrationScript{
		Version: "20260101120000",
		Name:    "migration1",
		Graph:   "identity",
		App:     "accounts",
	}
	_ = reg.Register(migration1)

	migration2 := &backends.MigrationScript{
		Version: "20260101120001",
		Name:    "migration2",
		Graph:   "identity",
		App:     "billing",
	}
	_ = reg.Register(migration2)

	migration3 := &backends.MigrationScript{
		Version: "20260101120000",
		Name:    "migration3",
		Graph:   "catalog",
	}
	_ = reg.Register(migration3)

	tests := []struct {
		name    string
		target  *MigrationTarget
		wantLen int
	}{
		{
			name:    "filter by graph",
			target:  &MigrationTarget{Graph: "identity"},
			wantLen: 2,
		},
		{
			name:    "filter by app",
			target:  &MigrationTarget{App: "billing"},
			wantLen: 1,
		},
		{
			name:    "filter by graph and app",
			target:  &MigrationTarget{Graph: "identity", App: "accounts"},
			wantLen: 1,
		},
		{
			name:    "filter by version",
			target:  &MigrationTarget{Version: "20260101120000"},
			wantLen: 2,
		},
		{
			name:    "filter by graph and version",
			target:  &MigrationTarget{Graph: "catalog", Version: "20260101120000"},
			wantLen: 1,
		},
		{
			name:    "empty target matches all",
			target:  &MigrationTarget{},
			wantLen: 3,
		},
		{
			name:    "no match",
			target:  &MigrationTarget{Graph: "nonexistent"},
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := reg.FindByTarget(tt.target)
			if err != nil {
				t.Errorf("FindByTarget() error = %v", err)
			}
			if len(results) != tt.wantLen {
				t.Errorf("Expected %d results, got %d", tt.wantLen, len(results))
			}
		})
	}
}

func TestInMemoryRegistry_FindByTarget_NilTarget(t *testing.T) {
	reg := NewInMemoryRegistry()
	if _, err := reg.FindByTarget(nil); err == nil {
		t.Error("Expected FindByTarget(nil) to fail")
	}
}

func TestInMemoryRegistry_GetAll(t *testing.T) {
	reg := NewInMemoryRegistry()

	if len(reg.GetAll()) != 0 {
		t.Error("Expected empty registry initially")
	}

	migration := &backends.MigrationScript{
		Version: "20260101120000",
		Name:    "add_person",
		Graph:   "identity",
	}
	_ = reg.Register(migration)

	all := reg.GetAll()
	if len(all) != 1 {
		t.Errorf("Expected 1 migration, got %v", len(all))
	}
}

func TestInMemoryRegistry_GetAll_SortedByID(t *testing.T) {
	reg := NewInMemoryRegistry()

	// Register out of order; results must come back sorted.
	_ = reg.Register(&backends.MigrationScript{Version: "20260101120002", Name: "c", Graph: "g"})
	_ = reg.Register(&backends.MigrationScript{Version: "20260101120000", Name: "a", Graph: "g"})
	_ = reg.Register(&backends.MigrationScript{Version: "20260101120001", Name: "b", Graph: "g"})

	all := reg.GetAll()
	if len(all) != 3 {
		t.Fatalf("Expected 3 migrations, got %v", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID() >= all[i].ID() {
			t.Errorf("Expected sorted order, got %v before %v", all[i-1].ID(), all[i].ID())
		}
	}
}

func TestInMemoryRegistry_GetByGraph(t *testing.T) {
	reg := NewInMemoryRegistry()

	migration1 := &backends.MigrationScript{
		Version: "20260101120000",
		Name:    "migration1",
		Graph:   "identity",
	}
	_ = reg.Register(migration1)

	migration2 := &backends.MigrationScript{
		Version: "20260101120001",
		Name:    "migration2",
		Graph:   "catalog",
	}
	_ = reg.Register(migration2)

	results := reg.GetByGraph("identity")
	if len(results) != 1 {
		t.Errorf("Expected 1 migration for graph 'identity', got %v", len(results))
	}
	if results[0].Name != "migration1" {
		t.Errorf("Expected migration1, got %v", results[0].Name)
	}

	results = reg.GetByGraph("nonexistent")
	if len(results) != 0 {
		t.Errorf("Expected 0 migrations for nonexistent graph, got %v", len(results))
	}
}

func TestInMemoryRegistry_GetByVersion(t *testing.T) {
	reg := NewInMemoryRegistry()

	_ = reg.Register(&backends.MigrationScript{Version: "20260101120000", Name: "m1", Graph: "identity"})
	_ = reg.Register(&backends.MigrationScript{Version: "20260101120000", Name: "m2", Graph: "catalog"})
	_ = reg.Register(&backends.MigrationScript{Version: "20260101120001", Name: "m3", Graph: "identity"})

	results := reg.GetByVersion("20260101120000")
	if len(results) != 2 {
		t.Errorf("Expected 2 migrations, got %v", len(results))
	}

	results = reg.GetByGraphAndVersion("identity", "20260101120000")
	if len(results) != 1 {
		t.Errorf("Expected 1 migration, got %v", len(results))
	}
	if results[0].Name != "m1" {
		t.Errorf("Expected m1, got %v", results[0].Name)
	}
}

func TestInMemoryRegistry_GetByID(t *testing.T) {
	reg := NewInMemoryRegistry()

	migration := &backends.MigrationScript{
		Version: "20260101120000",
		Name:    "add_person",
		Graph:   "identity",
	}
	_ = reg.Register(migration)

	got, ok := reg.GetByID("20260101120000_add_person_identity")
	if !ok {
		t.Fatal("Expected migration to be found by ID")
	}
	if got.Name != "add_person" {
		t.Errorf("Expected add_person, got %v", got.Name)
	}

	if _, ok := reg.GetByID("20260101120000_missing_identity"); ok {
		t.Error("Expected lookup of unknown ID to miss")
	}
}
