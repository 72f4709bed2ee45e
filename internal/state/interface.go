// Package state tracks which migrations have been applied to which
// graph, in a small SQL database separate from the graph itself.
// Gremlin servers have no transactional place to keep this, so the
// store rides on sqlite by default and postgres or mysql when shared.
package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/toolsascode/gfm/internal/backends"
)

// ErrNotFound is returned when a migration has no state row
var ErrNotFound = errors.New("migration not recorded")

// Status is the current standing of a migration on a graph
type Status string

const (
	StatusApplied    Status = "applied"
	StatusRolledBack Status = "rolled_back"
	StatusFailed     Status = "failed"
)

// Action is what a run attempted
type Action string

const (
	ActionApply    Action = "apply"
	ActionRollback Action = "rollback"
)

// Run statuses recorded in the history table.
const (
	RunStarted   = "started"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Record is the current state of one migration
type Record struct {
	ID           string // {version}_{name}_{graph}
	Version      string
	Name         string
	Graph        string
	App          string
	Status       Status
	Irreversible bool
	Console      string // console lines joined with newlines
	Checksum     string // checksum of the up script at apply time
	RunID        string // run that produced this state
	AppliedAt    time.Time
	RolledBackAt *time.Time
}

// HistoryEntry is one append-only row per attempted run
type HistoryEntry struct {
	ID          string // ulid, sorts chronologically
	MigrationID string
	Action      Action
	Status      string // started, succeeded, failed
	Error       string
	RunID       string
	CreatedAt   time.Time
}

// Tracker manages migration state tracking
type Tracker interface {
	// EnsureSchema sets up the state tracking tables
	EnsureSchema(ctx context.Context) error

	// IsApplied checks if a migration is currently applied
	IsApplied(ctx context.Context, migrationID string) (bool, error)

	// MarkStarted opens a history row for an attempt and returns its id
	MarkStarted(ctx context.Context, m *backends.MigrationScript, action Action, runID string) (string, error)

	// MarkApplied closes the history row and upserts the applied state
	MarkApplied(ctx context.Context, m *backends.MigrationScript, historyID, runID string) error

	// MarkRolledBack closes the history row and flips the state
	MarkRolledBack(ctx context.Context, m *backends.MigrationScript, historyID, runID string) error

	// MarkFailed closes the history row with the error and records the failure
	MarkFailed(ctx context.Context, m *backends.MigrationScript, historyID, runID string, cause error) error

	// Get returns the state row for one migration, or ErrNotFound
	Get(ctx context.Context, migrationID string) (*Record, error)

	// AppliedMigrations lists currently applied migrations of a graph,
	// oldest version first
	AppliedMigrations(ctx context.Context, graph string) ([]*Record, error)

	// History lists the attempts of one migration, newest first
	History(ctx context.Context, migrationID string) ([]*HistoryEntry, error)

	// PendingOf filters the given migrations down to the unapplied ones,
	// preserving order
	PendingOf(ctx context.Context, all []*backends.MigrationScript) ([]*backends.MigrationScript, error)

	// Close releases the underlying database handle
	Close() error
}

// Checksum fingerprints a script so drift between the artifact on disk
// and what was applied is detectable
func Checksum(script string) string {
	sum := sha256.Sum256([]byte(script))
	return hex.EncodeToString(sum[:])
}
