package gremlin

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"

	gremlingo "github.com/apache/tinkerpop/gremlin-go/v3/driver"

	"github.com/toolsascode/gfm/internal/backends"
	runtime "github.com/toolsascode/gfm/internal/gremlin"
)

// Backend implements the Backend interface for Gremlin-compatible
// graph databases
type Backend struct {
	client *gremlingo.Client
	config *backends.ConnectionConfig
}

// NewBackend creates a new Gremlin backend
func NewBackend() *Backend {
	return &Backend{}
}

// Name returns the backend name
func (b *Backend) Name() string {
	return "gremlin"
}

// Connect establishes a websocket connection to the Gremlin server
func (b *Backend) Connect(config *backends.ConnectionConfig) error {
	b.config = config

	client, err := gremlingo.NewClient(config.Endpoint(),
		func(settings *gremlingo.ClientSettings) {
			if config.TraversalSource != "" {
				settings.TraversalSource = config.TraversalSource
			}
			if config.Username != "" {
				settings.AuthInfo = gremlingo.BasicAuthInfo(config.Username, config.Password)
			}
			if config.TLS {
				settings.TlsConfig = &tls.Config{
					InsecureSkipVerify: config.Extra["tls_insecure"] == "true",
				}
			}
			settings.MaximumConcurrentConnections = maxConcurrent(config)
		})
	if err != nil {
		return fmt.Errorf("failed to connect to gremlin server at %s: %w", config.Endpoint(), err)
	}
	b.client = client

	if err := b.Ping(context.Background()); err != nil {
		b.client.Close()
		b.client = nil
		return fmt.Errorf("failed to ping gremlin server: %w", err)
	}
	return nil
}

// Close closes the Gremlin connection
func (b *Backend) Close() error {
	if b.client != nil {
		b.client.Close()
		b.client = nil
	}
	return nil
}

// Execute submits the runtime library and one migration script as a
// single submission, so the script's db calls resolve and the whole
// change shares a script context
func (b *Backend) Execute(ctx context.Context, script string) error {
	if b.client == nil {
		return fmt.Errorf("gremlin connection not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	combined := runtime.Runtime() + "\n" + script

	resultSet, err := b.client.Submit(combined)
	if err != nil {
		return fmt.Errorf("failed to submit migration script: %w", err)
	}
	// Drain results so server-side errors surface.
	if _, err := resultSet.All(); err != nil {
		return fmt.Errorf("migration script failed (%d lines, runtime offset %d): %w",
			countLines(script), countLines(runtime.Runtime())+1, err)
	}
	return nil
}

// Ping verifies the server answers traversals
func (b *Backend) Ping(ctx context.Context) error {
	if b.client == nil {
		return fmt.Errorf("gremlin connection not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	resultSet, err := b.client.Submit("g.inject(1)")
	if err != nil {
		return fmt.Errorf("failed to ping gremlin server: %w", err)
	}
	if _, err := resultSet.All(); err != nil {
		return fmt.Errorf("failed to ping gremlin server: %w", err)
	}
	return nil
}

// countLines supports error messages that locate failures inside the
// combined submission: server stack traces count from the runtime
func countLines(s string) int {
	return strings.Count(s, "\n") + 1
}

// maxConcurrent reads the connection concurrency from the Extra map
// (default: 4)
func maxConcurrent(config *backends.ConnectionConfig) int {
	if value := config.Extra["max_concurrent"]; value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return 4
}
