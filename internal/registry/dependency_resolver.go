package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/toolsascode/gfm/internal/backends"
)

// MigrationNode represents a node in the dependency graph
type MigrationNode struct {
	Migration *backends.MigrationScript
	ID        string
	InDegree  int
	Visited   bool
}

// DependencyGraph represents a graph of migration dependencies
type DependencyGraph struct {
	nodes map[string]*MigrationNode
	edges map[string][]string // from -> to (dependencies)
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]*MigrationNode),
		edges: make(map[string][]string),
	}
}

// AddNode adds a migration node to the graph
func (g *DependencyGraph) AddNode(migration *backends.MigrationScript) {
	id := migration.ID()
	if _, exists := g.nodes[id]; !exists {
		g.nodes[id] = &MigrationNode{Migration: migration, ID: id}
		g.edges[id] = []string{}
	}
}

// AddEdge adds a dependency edge: from depends on to, so 'to' must
// execute before 'from'. Edges to unknown nodes are ignored.
func (g *DependencyGraph) AddEdge(from, to string) {
	if _, exists := g.nodes[from]; !exists {
		return
	}
	if _, exists := g.nodes[to]; !exists {
		return
	}
	g.edges[from] = append(g.edges[from], to)
}

// DetectCycles detects cycles in the dependency graph using DFS and
// returns the cycle path when one exists
func (g *DependencyGraph) DetectCycles() ([]string, error) {
	for _, node := range g.nodes {
		node.Visited = false
	}

	path := make(map[string]bool)
	cyclePath := []string{}

	var dfs func(nodeID string) bool
	dfs = func(nodeID string) bool {
		node := g.nodes[nodeID]
		if node.Visited {
			return false
		}
		if path[nodeID] {
			cyclePath = append(cyclePath, nodeID)
			return true
		}
		path[nodeID] = true
		for _, depID := range g.edges[nodeID] {
			if dfs(depID) {
				cyclePath = append(cyclePath, nodeID)
				return true
			}
		}
		delete(path, nodeID)
		node.Visited = true
		return false
	}

	// Iterate in sorted order so repeated runs report the same cycle.
	for _, nodeID := range g.sortedNodeIDs() {
		if !g.nodes[nodeID].Visited {
			if dfs(nodeID) {
				// The DFS appends the path inside out; reverse it.
				for i, j := 0, len(cyclePath)-1; i < j; i, j = i+1, j-1 {
					cyclePath[i], cyclePath[j] = cyclePath[j], cyclePath[i]
				}
				return cyclePath, fmt.Errorf("circular dependency detected: %s", strings.Join(cyclePath, " -> "))
			}
		}
	}

	return nil, nil
}

// TopologicalSort orders migrations with Kahn's algorithm. Nodes free
// of dependencies drain in version order, so independent migrations
// keep their chronological ordering.
func (g *DependencyGraph) TopologicalSort() ([]*backends.MigrationScript, error) {
	cyclePath, err := g.DetectCycles()
	if err != nil {
		return nil, err
	}
	if len(cyclePath) > 0 {
		return nil, fmt.Errorf("circular dependency: %s", strings.Join(cyclePath, " -> "))
	}

	// edges[from] lists what 'from' depends on, so a node's in-degree
	// is the number of edges leaving it; the reverse index finds the
	// dependents to unblock when a node executes.
	reverseEdges := make(map[string][]string)
	for from, toList := range g.edges {
		for _, to := range toList {
			reverseEdges[to] = append(reverseEdges[to], from)
		}
	}

	for nodeID := range g.nodes {
		g.nodes[nodeID].InDegree = len(g.edges[nodeID])
	}

	queue := []string{}
	for nodeID, node := range g.nodes {
		if node.InDegree == 0 {
			queue = append(queue, nodeID)
		}
	}
	g.sortQueue(queue)

	sorted := []*backends.MigrationScript{}
	processed := make(map[string]bool)

	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]

		if processed[currentID] {
			continue
		}
		processed[currentID] = true
		sorted = append(sorted, g.nodes[currentID].Migration)

		for _, dependentID := range reverseEdges[currentID] {
			if g.nodes[dependentID] != nil {
				g.nodes[dependentID].InDegree--
				if g.nodes[dependentID].InDegree == 0 && !processed[dependentID] {
					queue = append(queue, dependentID)
				}
			}
		}
		g.sortQueue(queue)
	}

	if len(sorted) < len(g.nodes) {
		var unprocessed []string
		for nodeID := range g.nodes {
			if !processed[nodeID] {
				unprocessed = append(unprocessed, nodeID)
			}
		}
		sort.Strings(unprocessed)
		return nil, fmt.Errorf("not all migrations could be sorted (possible cycle): %s", strings.Join(unprocessed, ", "))
	}

	return sorted, nil
}

func (g *DependencyGraph) sortQueue(queue []string) {
	sort.Slice(queue, func(i, j int) bool {
		a, b := g.nodes[queue[i]].Migration, g.nodes[queue[j]].Migration
		if a.Version != b.Version {
			return a.Version < b.Version
		}
		return queue[i] < queue[j]
	})
}

func (g *DependencyGraph) sortedNodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DependencyResolver turns a migration set into an execution order
type DependencyResolver struct {
	registry Registry
}

// NewDependencyResolver creates a new dependency resolver
func NewDependencyResolver(reg Registry) *DependencyResolver {
	return &DependencyResolver{registry: reg}
}

// findDependencyTarget resolves a dependency reference. Generated
// artifacts reference full migration IDs; hand-written ones may use a
// bare version or name.
func (r *DependencyResolver) findDependencyTarget(dep string) ([]*backends.MigrationScript, error) {
	if m, ok := r.registry.GetByID(dep); ok {
		return []*backends.MigrationScript{m}, nil
	}
	if candidates := r.registry.GetByVersion(dep); len(candidates) > 0 {
		return candidates, nil
	}
	if candidates := r.registry.GetByName(dep); len(candidates) > 0 {
		return candidates, nil
	}
	return nil, fmt.Errorf("dependency target not found: %s", dep)
}

// buildDependencyGraph builds the graph for the given migration set;
// edges point only at targets inside the set
func (r *DependencyResolver) buildDependencyGraph(migrations []*backends.MigrationScript) (*DependencyGraph, []string) {
	graph := NewDependencyGraph()
	var missingDeps []string

	for _, migration := range migrations {
		graph.AddNode(migration)
	}

	for _, migration := range migrations {
		for _, dep := range migration.Dependencies {
			targets, err := r.findDependencyTarget(dep)
			if err != nil {
				missingDeps = append(missingDeps, fmt.Sprintf("%s depends on %s (not found)", migration.ID(), dep))
				continue
			}
			for _, target := range targets {
				graph.AddEdge(migration.ID(), target.ID())
			}
		}
	}

	return graph, missingDeps
}

// validateDependencyTargets ensures every referenced dependency exists
// somewhere in the registry
func (r *DependencyResolver) validateDependencyTargets(migrations []*backends.MigrationScript) []string {
	var errors []string
	for _, migration := range migrations {
		for _, dep := range migration.Dependencies {
			if _, err := r.findDependencyTarget(dep); err != nil {
				errors = append(errors, fmt.Sprintf("migration %s: dependency '%s' not found", migration.ID(), dep))
			}
		}
	}
	return errors
}

// ResolveDependencies validates and orders the given migrations
func (r *DependencyResolver) ResolveDependencies(migrations []*backends.MigrationScript) ([]*backends.MigrationScript, error) {
	if len(migrations) == 0 {
		return migrations, nil
	}

	validationErrors := r.validateDependencyTargets(migrations)
	if len(validationErrors) > 0 {
		return nil, fmt.Errorf("dependency validation failed: %s", strings.Join(validationErrors, "; "))
	}

	graph, missingDeps := r.buildDependencyGraph(migrations)
	if len(missingDeps) > 0 {
		return nil, fmt.Errorf("missing dependencies: %s", strings.Join(missingDeps, "; "))
	}

	return graph.TopologicalSort()
}
