package backends

import (
	"context"
)

// MigrationScript is one generated migration as registered by its .go
// artifact (kept here to avoid an import cycle with the registry)
type MigrationScript struct {
	Version      string // 14-digit UTC timestamp
	Name         string
	Graph        string // connection the migration targets
	App          string
	UpScript     string
	DownScript   string
	Console      []string // the plan lines shown when it was generated
	Irreversible bool     // rolling back would lose data; Down refuses
	Dependencies []string // migration IDs that must be applied first
	Source       string   // file the registration came from, for drift checks
}

// ID returns the identity used by the state store and the registry
func (m *MigrationScript) ID() string {
	return m.Version + "_" + m.Name + "_" + m.Graph
}

// Backend is a graph database that can execute migration scripts
type Backend interface {
	// Name returns the backend kind, e.g. "gremlin"
	Name() string

	// Connect establishes the connection described by the config
	Connect(config *ConnectionConfig) error

	// Close tears the connection down
	Close() error

	// Execute submits one script, with the runtime loaded ahead of it
	Execute(ctx context.Context, script string) error

	// Ping verifies the backend answers traversals
	Ping(ctx context.Context) error
}

// ConnectionConfig holds the settings of one named graph connection
type ConnectionConfig struct {
	Backend  string // backend kind; "gremlin" is the only built-in
	Host     string
	Port     string
	Username string
	Password string
	// TraversalSource names the graph binding on the server.
	TraversalSource string
	// TLS enables a wss:// connection.
	TLS bool
	// Extra carries backend-specific settings.
	Extra map[string]string
}

// Endpoint renders the websocket URL gremlin-go connects to
func (c *ConnectionConfig) Endpoint() string {
	scheme := "ws"
	if c.TLS {
		scheme = "wss"
	}
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == "" {
		port = "8182"
	}
	return scheme + "://" + host + ":" + port + "/gremlin"
}
