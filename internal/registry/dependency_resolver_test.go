package registry

import (
	"testing"

	"github.com/toolsascode/gfm/internal/backends"
)

func graphMigration(version, name string) *backends.MigrationScript {
	return &backends.MigrationScript{Version: version, Name: name, Graph: "identity"}
}

func TestDependencyGraph_AddNode(t *testing.T) {
	graph := NewDependencyGraph()
	migration := graphMigration("20260101120000", "add_person")

	graph.AddNode(migration)
	if len(graph.nodes) != 1 {
		t.Errorf("Expected 1 node, got %d", len(graph.nodes))
	}
	if graph.nodes[migration.ID()] == nil {
		t.Error("Node not added correctly")
	}
}

func TestDependencyGraph_AddEdge(t *testing.T) {
	graph := NewDependencyGraph()
	m1 := graphMigration("20260101120000", "m1")
	m2 := graphMigration("20260101120001", "m2")

	graph.AddNode(m1)
	graph.AddNode(m2)
	graph.AddEdge(m1.ID(), m2.ID()) // m1 depends on m2

	if len(graph.edges[m1.ID()]) != 1 {
		t.Errorf("Expected 1 edge, got %d", len(graph.edges[m1.ID()]))
	}
	if graph.edges[m1.ID()][0] != m2.ID() {
		t.Errorf("Expected edge to %s, got %s", m2.ID(), graph.edges[m1.ID()][0])
	}
}

func TestDependencyGraph_AddEdge_IgnoresUnknownNodes(t *testing.T) {
	graph := NewDependencyGraph()
	m1 := graphMigration("20260101120000", "m1")
	graph.AddNode(m1)

	graph.AddEdge(m1.ID(), "20990101000000_ghost_identity")
	if len(graph.edges[m1.ID()]) != 0 {
		t.Errorf("Expected edge to unknown node to be dropped, got %v", graph.edges[m1.ID()])
	}
}

func TestDependencyGraph_DetectCycles(t *testing.T) {
	m1 := graphMigration("20260101120000", "m1")
	m2 := graphMigration("20260101120001", "m2")
	m3 := graphMigration("20260101120002", "m3")

	tests := []struct {
		name      string
		setup     func() *DependencyGraph
		wantCycle bool
	}{
		{
			name: "no cycle",
			setup: func() *DependencyGraph {
				graph := NewDependencyGraph()
				graph.AddNode(m1)
				graph.AddNode(m2)
				graph.AddEdge(m1.ID(), m2.ID()) // m1 depends on m2
				return graph
			},
			wantCycle: false,
		},
		{
			name: "simple cycle",
			setup: func() *DependencyGraph {
				graph := NewDependencyGraph()
				graph.AddNode(m1)
				graph.AddNode(m2)
				graph.AddEdge(m1.ID(), m2.ID())
				graph.AddEdge(m2.ID(), m1.ID()) // cycle!
				return graph
			},
			wantCycle: true,
		},
		{
			name: "three node cycle",
			setup: func() *DependencyGraph {
				graph := NewDependencyGraph()
				graph.AddNode(m1)
				graph.AddNode(m2)
				graph.AddNode(m3)
				graph.AddEdge(m1.ID(), m2.ID())
				graph.AddEdge(m2.ID(), m3.ID())
				graph.AddEdge(m3.ID(), m1.ID()) // cycle!
				return graph
			},
			wantCycle: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graph := tt.setup()
			cyclePath, err := graph.DetectCycles()
			hasCycle := err != nil || len(cyclePath) > 0
			if hasCycle != tt.wantCycle {
				t.Errorf("DetectCycles() cycle = %v, want %v (error: %v, path: %v)", hasCycle, tt.wantCycle, err, cyclePath)
			}
		})
	}
}

func TestDependencyGraph_TopologicalSort(t *testing.T) {
	m1 := graphMigration("20260101120000", "m1")
	m2 := graphMigration("20260101120001", "m2")
	m3 := graphMigration("20260101120002", "m3")

	tests := []struct {
		name    string
		setup   func() *DependencyGraph
		wantErr bool
		wantLen int
	}{
		{
			name: "simple linear dependencies",
			setup: func() *DependencyGraph {
				graph := NewDependencyGraph()
				graph.AddNode(m1)
				graph.AddNode(m2)
				graph.AddNode(m3)
				graph.AddEdge(m2.ID(), m1.ID()) // m2 depends on m1
				graph.AddEdge(m3.ID(), m2.ID()) // m3 depends on m2
				return graph
			},
			wantErr: false,
			wantLen: 3,
		},
		{
			name: "no dependencies",
			setup: func() *DependencyGraph {
				graph := NewDependencyGraph()
				graph.AddNode(m1)
				graph.AddNode(m2)
				return graph
			},
			wantErr: false,
			wantLen: 2,
		},
		{
			name: "circular dependency",
			setup: func() *DependencyGraph {
				graph := NewDependencyGraph()
				graph.AddNode(m1)
				graph.AddNode(m2)
				graph.AddEdge(m1.ID(), m2.ID())
				graph.AddEdge(m2.ID(), m1.ID()) // cycle!
				return graph
			},
			wantErr: true,
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graph := tt.setup()
			sorted, err := graph.TopologicalSort()
			if (err != nil) != tt.wantErr {
				t.Errorf("TopologicalSort() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && len(sorted) != tt.wantLen {
				t.Errorf("TopologicalSort() len = %v, want %v", len(sorted), tt.wantLen)
			}
			if tt.name == "simple linear dependencies" && len(sorted) == 3 {
				// Dependencies come before dependents.
				if sorted[0].Name != "m1" || sorted[1].Name != "m2" || sorted[2].Name != "m3" {
					t.Errorf("Incorrect order: %s, %s, %s", sorted[0].Name, sorted[1].Name, sorted[2].Name)
				}
			}
		})
	}
}

func TestDependencyGraph_TopologicalSort_VersionOrder(t *testing.T) {
	// Independent migrations must drain in version order even when
	// registered out of order.
	late := graphMigration("20260101120002", "late")
	early := graphMigration("20260101120000", "early")
	middle := graphMigration("20260101120001", "middle")

	graph := NewDependencyGraph()
	graph.AddNode(late)
	graph.AddNode(early)
	graph.AddNode(middle)

	sorted, err := graph.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort() error = %v", err)
	}
	want := []string{"early", "middle", "late"}
	for i, name := range want {
		if sorted[i].Name != name {
			t.Errorf("Expected %s at position %d, got %s", name, i, sorted[i].Name)
		}
	}
}

func TestDependencyResolver_FindDependencyTarget(t *testing.T) {
	reg := NewInMemoryRegistry()
	resolver := NewDependencyResolver(reg)

	m1 := &backends.MigrationScript{
		Version: "20260101120000",
		Name:    "bootstrap",
		Graph:   "identity",
	}
	_ = reg.Register(m1)

	m2 := &backends.MigrationScript{
		Version: "20260101120001",
		Name:    "bootstrap",
		Graph:   "catalog",
	}
	_ = reg.Register(m2)

	tests := []struct {
		name    string
		dep     string
		wantLen int
		wantErr bool
	}{
		{
			name:    "find by full ID",
			dep:     "20260101120000_bootstrap_identity",
			wantLen: 1,
			wantErr: false,
		},
		{
			name:    "find by version",
			dep:     "20260101120001",
			wantLen: 1,
			wantErr: false,
		},
		{
			name:    "find by name",
			dep:     "bootstrap",
			wantLen: 2, // both graphs carry a bootstrap migration
			wantErr: false,
		},
		{
			name:    "not found",
			dep:     "nonexistent",
			wantLen: 0,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			targets, err := resolver.findDependencyTarget(tt.dep)
			if (err != nil) != tt.wantErr {
				t.Errorf("findDependencyTarget() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if len(targets) != tt.wantLen {
				t.Errorf("findDependencyTarget() len = %v, want %v", len(targets), tt.wantLen)
			}
		})
	}
}

func TestDependencyResolver_ResolveDependencies(t *testing.T) {
	reg := NewInMemoryRegistry()
	resolver := NewDependencyResolver(reg)

	m1 := &backends.MigrationScript{
		Version: "20260101120000",
		Name:    "base",
		Graph:   "identity",
	}
	_ = reg.Register(m1)

	m2 := &backends.MigrationScript{
		Version:      "20260101120001",
		Name:         "dependent",
		Graph:        "identity",
		Dependencies: []string{"base"},
	}
	_ = reg.Register(m2)

	t.Run("resolve simple dependencies", func(t *testing.T) {
		migrations := []*backends.MigrationScript{m2, m1}
		sorted, err := resolver.ResolveDependencies(migrations)
		if err != nil {
			t.Fatalf("ResolveDependencies() error = %v", err)
		}
		if len(sorted) != 2 {
			t.Fatalf("ResolveDependencies() len = %v, want 2", len(sorted))
		}
		if sorted[0].Name != "base" {
			t.Errorf("Expected base first, got %s", sorted[0].Name)
		}
		if sorted[1].Name != "dependent" {
			t.Errorf("Expected dependent second, got %s", sorted[1].Name)
		}
	})

	t.Run("resolve by full ID", func(t *testing.T) {
		m3 := &backends.MigrationScript{
			Version:      "20260101120002",
			Name:         "id_dep",
			Graph:        "identity",
			Dependencies: []string{"20260101120000_base_identity"},
		}
		_ = reg.Register(m3)

		migrations := []*backends.MigrationScript{m3, m1}
		sorted, err := resolver.ResolveDependencies(migrations)
		if err != nil {
			t.Fatalf("ResolveDependencies() error = %v", err)
		}
		if len(sorted) != 2 {
			t.Fatalf("ResolveDependencies() len = %v, want 2", len(sorted))
		}
		if sorted[0].Name != "base" {
			t.Errorf("Expected base first, got %s", sorted[0].Name)
		}
	})

	t.Run("missing dependency", func(t *testing.T) {
		m4 := &backends.MigrationScript{
			Version:      "20260101120003",
			Name:         "missing_dep",
			Graph:        "identity",
			Dependencies: []string{"nonexistent"},
		}
		migrations := []*backends.MigrationScript{m4}
		_, err := resolver.ResolveDependencies(migrations)
		if err == nil {
			t.Error("Expected error for missing dependency")
		}
	})

	t.Run("empty input", func(t *testing.T) {
		sorted, err := resolver.ResolveDependencies(nil)
		if err != nil {
			t.Errorf("ResolveDependencies() error = %v", err)
		}
		if len(sorted) != 0 {
			t.Errorf("Expected empty result, got %v", len(sorted))
		}
	})
}
