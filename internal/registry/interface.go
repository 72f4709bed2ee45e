package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/toolsascode/gfm/internal/backends"
)

// ErrDuplicate is returned when a migration with the same version, name
// and graph is registered twice
var ErrDuplicate = errors.New("migration already registered")

// MigrationTarget specifies which migrations to select (moved here to
// avoid import cycle)
type MigrationTarget struct {
	Graph   string // connection name filter
	App     string // app filter (optional)
	Version string // version filter (optional, empty = all)
}

// Registry manages migration script registration and lookup
type Registry interface {
	// Register registers a migration script; duplicates are rejected
	Register(migration *backends.MigrationScript) error

	// FindByTarget finds migrations matching a target specification
	FindByTarget(target *MigrationTarget) ([]*backends.MigrationScript, error)

	// GetAll returns all registered migrations
	GetAll() []*backends.MigrationScript

	// GetByGraph returns the migrations of one graph connection
	GetByGraph(graph string) []*backends.MigrationScript

	// GetByName finds migrations by name across all graphs
	GetByName(name string) []*backends.MigrationScript

	// GetByVersion finds migrations by version across all graphs
	GetByVersion(version string) []*backends.MigrationScript

	// GetByGraphAndVersion finds migrations by graph and version
	GetByGraphAndVersion(graph, version string) []*backends.MigrationScript

	// GetByID returns the migration with the exact id, if registered
	GetByID(id string) (*backends.MigrationScript, bool)
}

// GlobalRegistry is the global migration registry instance; generated
// .go artifacts register here from their init functions
var GlobalRegistry Registry = NewInMemoryRegistry()

// NewInMemoryRegistry creates a new in-memory registry
func NewInMemoryRegistry() Registry {
	return &inMemoryRegistry{
		migrations: make(map[string]*backends.MigrationScript),
	}
}

type inMemoryRegistry struct {
	mu         sync.RWMutex
	migrations map[string]*backends.MigrationScript
}

func (r *inMemoryRegistry) Register(migration *backends.MigrationScript) error {
	if migration.Version == "" || migration.Name == "" || migration.Graph == "" {
		return fmt.Errorf("migration must carry version, name and graph; got %q", migration.ID())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := migration.ID()
	if _, exists := r.migrations[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, id)
	}
	r.migrations[id] = migration
	return nil
}

func (r *inMemoryRegistry) FindByTarget(target *MigrationTarget) ([]*backends.MigrationScript, error) {
	if target == nil {
		return nil, fmt.Errorf("target must not be nil")
	}
	return r.collect(func(m *backends.MigrationScript) bool {
		if target.Graph != "" && m.Graph != target.Graph {
			return false
		}
		if target.App != "" && m.App != target.App {
			return false
		}
		if target.Version != "" && m.Version != target.Version {
			return false
		}
		return true
	}), nil
}

func (r *inMemoryRegistry) GetAll() []*backends.MigrationScript {
	return r.collect(func(*backends.MigrationScript) bool { return true })
}

func (r *inMemoryRegistry) GetByGraph(graph string) []*backends.MigrationScript {
	return r.collect(func(m *backends.MigrationScript) bool { return m.Graph == graph })
}

func (r *inMemoryRegistry) GetByName(name string) []*backends.MigrationScript {
	return r.collect(func(m *backends.MigrationScript) bool { return m.Name == name })
}

func (r *inMemoryRegistry) GetByVersion(version string) []*backends.MigrationScript {
	return r.collect(func(m *backends.MigrationScript) bool { return m.Version == version })
}

func (r *inMemoryRegistry) GetByGraphAndVersion(graph, version string) []*backends.MigrationScript {
	return r.collect(func(m *backends.MigrationScript) bool {
		return m.Graph == graph && m.Version == version
	})
}

func (r *inMemoryRegistry) GetByID(id string) (*backends.MigrationScript, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.migrations[id]
	return m, ok
}

// collect filters under the read lock and returns results in stable ID
// order
func (r *inMemoryRegistry) collect(keep func(*backends.MigrationScript) bool) []*backends.MigrationScript {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var results []*backends.MigrationScript
	for _, migration := range r.migrations {
		if keep(migration) {
			results = append(results, migration)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].ID() < results[j].ID()
	})
	return results
}
