package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/toolsascode/gfm/internal/backends"
	"github.com/toolsascode/gfm/internal/lock"
	"github.com/toolsascode/gfm/internal/logger"
	"github.com/toolsascode/gfm/internal/queue"
	"github.com/toolsascode/gfm/internal/registry"
	"github.com/toolsascode/gfm/internal/state"
)

// ErrIrreversible is returned when a rollback would cross a migration
// that cannot restore its data
var ErrIrreversible = errors.New("migration is irreversible")

// ErrUnknownGraph is returned for operations naming a graph absent
// from the configuration
var ErrUnknownGraph = errors.New("graph not configured")

// ErrLockBusy is returned when the graph lock could not be acquired
// before the context expired
var ErrLockBusy = errors.New("another run holds the graph lock")

// Context keys for execution metadata
type contextKey string

const (
	runIDKey   contextKey = "run_id"
	actorKey   contextKey = "actor"
	triggerKey contextKey = "trigger"
)

// WithRunMetadata stamps the context with a fresh run id, the actor
// (user or token name) and the trigger source (cli, api, worker)
func WithRunMetadata(ctx context.Context, actor, trigger string) context.Context {
	ctx = context.WithValue(ctx, runIDKey, ulid.Make().String())
	ctx = context.WithValue(ctx, actorKey, actor)
	ctx = context.WithValue(ctx, triggerKey, trigger)
	return ctx
}

// RunMetadata extracts execution metadata from the context
func RunMetadata(ctx context.Context) (runID, actor, trigger string) {
	actor = "system"
	trigger = "api"

	if val := ctx.Value(runIDKey); val != nil {
		if s, ok := val.(string); ok {
			runID = s
		}
	}
	if val := ctx.Value(actorKey); val != nil {
		if s, ok := val.(string); ok {
			actor = s
		}
	}
	if val := ctx.Value(triggerKey); val != nil {
		if s, ok := val.(string); ok {
			trigger = s
		}
	}
	return runID, actor, trigger
}

// Result reports one apply or rollback run
type Result struct {
	Graph   string
	Action  state.Action
	Applied []string
	Skipped []string
	Errors  []string
	Success bool
	Queued  bool   // whether the job was queued instead of executed
	JobID   string // job id if queued
}

func newResult(graph string, action state.Action) *Result {
	return &Result{
		Graph:   graph,
		Action:  action,
		Applied: []string{},
		Skipped: []string{},
		Errors:  []string{},
	}
}

// MigrationStatus pairs a registered migration with its recorded state
type MigrationStatus struct {
	Migration *backends.MigrationScript
	Applied   bool
	Record    *state.Record // nil when the migration never ran
}

// Executor runs migrations against graph backends
type Executor struct {
	registry registry.Registry
	tracker  state.Tracker
	locker   lock.Locker
	backends map[string]backends.Backend
	graphs   map[string]*backends.ConnectionConfig
	queue    queue.Queue // optional queue for async execution
	mu       sync.Mutex
}

// NewExecutor creates a new migration executor
func NewExecutor(reg registry.Registry, tracker state.Tracker, locker lock.Locker) *Executor {
	return &Executor{
		registry: reg,
		tracker:  tracker,
		locker:   locker,
		backends: make(map[string]backends.Backend),
		graphs:   make(map[string]*backends.ConnectionConfig),
	}
}

// SetGraphs sets the graph connection configurations
func (e *Executor) SetGraphs(graphs map[string]*backends.ConnectionConfig) error {
	if graphs == nil {
		return fmt.Errorf("graphs map cannot be nil")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.graphs = graphs
	return nil
}

// SetQueue sets the queue for async execution
func (e *Executor) SetQueue(q queue.Queue) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = q
}

// RegisterBackend registers a backend kind for use in migrations
func (e *Executor) RegisterBackend(name string, backend backends.Backend) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.backends[name] = backend
}

// GetRegistry returns the migration registry
func (e *Executor) GetRegistry() registry.Registry {
	return e.registry
}

// GetTracker returns the state tracker
func (e *Executor) GetTracker() state.Tracker {
	return e.tracker
}

// GraphNames lists the configured graph connections
func (e *Executor) GraphNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.graphs))
	for name := range e.graphs {
		names = append(names, name)
	}
	return names
}

// Up applies pending migrations of a graph up to toVersion (empty means
// all). When a queue is configured the job is published instead.
func (e *Executor) Up(ctx context.Context, graph, toVersion string, dryRun bool) (*Result, error) {
	if q := e.getQueue(); q != nil && !dryRun {
		return e.queueJob(ctx, q, &queue.Job{
			Graph:     graph,
			Action:    queue.ActionApply,
			ToVersion: toVersion,
		})
	}
	return e.UpSync(ctx, graph, toVersion, dryRun)
}

// UpSync applies pending migrations synchronously (bypasses the queue,
// used by the worker)
func (e *Executor) UpSync(ctx context.Context, graph, toVersion string, dryRun bool) (*Result, error) {
	result := newResult(graph, state.ActionApply)

	migrations := e.registry.GetByGraph(graph)
	if len(migrations) == 0 {
		result.Success = true
		return result, nil
	}

	resolver := registry.NewDependencyResolver(e.registry)
	ordered, err := resolver.ResolveDependencies(migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve execution order: %w", err)
	}

	if toVersion != "" {
		var kept []*backends.MigrationScript
		for _, m := range ordered {
			if m.Version <= toVersion {
				kept = append(kept, m)
			}
		}
		ordered = kept
	}

	release, err := e.locker.Acquire(ctx, graph)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to acquire lock for graph %s: %w", ErrLockBusy, graph, err)
	}
	defer release()

	pending, err := e.tracker.PendingOf(ctx, ordered)
	if err != nil {
		return nil, fmt.Errorf("failed to check migration state: %w", err)
	}

	pendingIDs := make(map[string]bool, len(pending))
	for _, m := range pending {
		pendingIDs[m.ID()] = true
	}
	for _, m := range ordered {
		if !pendingIDs[m.ID()] {
			result.Skipped = append(result.Skipped, m.ID())
		}
	}

	if dryRun {
		for _, m := range pending {
			result.Applied = append(result.Applied, fmt.Sprintf("%s (dry-run)", m.ID()))
		}
		result.Success = true
		return result, nil
	}

	if len(pending) == 0 {
		result.Success = true
		return result, nil
	}

	backend, err := e.connect(graph)
	if err != nil {
		return nil, err
	}
	defer func() { _ = backend.Close() }()

	runID, _, _ := RunMetadata(ctx)
	if runID == "" {
		runID = ulid.Make().String()
	}

	for _, m := range pending {
		if err := e.runOne(ctx, backend, m, state.ActionApply, runID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", m.ID(), err))
			// Later migrations build on this one; stop the chain.
			break
		}
		result.Applied = append(result.Applied, m.ID())
		logger.Infof("Applied migration %s (run %s)", m.ID(), runID)
	}

	result.Success = len(result.Errors) == 0
	return result, nil
}

// Down rolls back applied migrations of a graph: everything newer than
// toVersion, or the given number of steps (default one). When a queue
// is configured the job is published instead.
func (e *Executor) Down(ctx context.Context, graph, toVersion string, steps int, dryRun bool) (*Result, error) {
	if q := e.getQueue(); q != nil && !dryRun {
		return e.queueJob(ctx, q, &queue.Job{
			Graph:     graph,
			Action:    queue.ActionRollback,
			ToVersion: toVersion,
			Steps:     steps,
		})
	}
	return e.DownSync(ctx, graph, toVersion, steps, dryRun)
}

// DownSync rolls back synchronously (bypasses the queue, used by the worker)
func (e *Executor) DownSync(ctx context.Context, graph, toVersion string, steps int, dryRun bool) (*Result, error) {
	result := newResult(graph, state.ActionRollback)

	records, err := e.tracker.AppliedMigrations(ctx, graph)
	if err != nil {
		return nil, fmt.Errorf("failed to list applied migrations: %w", err)
	}

	// Newest first; rollbacks unwind the chain from the top.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	var targets []*state.Record
	switch {
	case toVersion != "":
		for _, r := range records {
			if r.Version > toVersion {
				targets = append(targets, r)
			}
		}
	case steps > 0:
		if steps > len(records) {
			steps = len(records)
		}
		targets = records[:steps]
	default:
		if len(records) > 0 {
			targets = records[:1]
		}
	}

	if len(targets) == 0 {
		result.Success = true
		return result, nil
	}

	// Resolve scripts and refuse irreversible chains before touching
	// the backend or the state store.
	var migrations []*backends.MigrationScript
	for _, r := range targets {
		m, ok := e.registry.GetByID(r.ID)
		if !ok {
			return nil, fmt.Errorf("migration %s is applied but not registered; artifact missing?", r.ID)
		}
		if m.Irreversible {
			return nil, fmt.Errorf("%w: %s", ErrIrreversible, m.ID())
		}
		if strings.TrimSpace(m.DownScript) == "" {
			return nil, fmt.Errorf("migration %s has no down script", m.ID())
		}
		migrations = append(migrations, m)
	}

	if dryRun {
		for _, m := range migrations {
			result.Applied = append(result.Applied, fmt.Sprintf("%s (dry-run)", m.ID()))
		}
		result.Success = true
		return result, nil
	}

	release, err := e.locker.Acquire(ctx, graph)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to acquire lock for graph %s: %w", ErrLockBusy, graph, err)
	}
	defer release()

	backend, err := e.connect(graph)
	if err != nil {
		return nil, err
	}
	defer func() { _ = backend.Close() }()

	runID, _, _ := RunMetadata(ctx)
	if runID == "" {
		runID = ulid.Make().String()
	}

	for _, m := range migrations {
		if err := e.runOne(ctx, backend, m, state.ActionRollback, runID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", m.ID(), err))
			break
		}
		result.Applied = append(result.Applied, m.ID())
		logger.Infof("Rolled back migration %s (run %s)", m.ID(), runID)
	}

	result.Success = len(result.Errors) == 0
	return result, nil
}

// Status lists every registered migration of a graph with its state
func (e *Executor) Status(ctx context.Context, graph string) ([]*MigrationStatus, error) {
	migrations := e.registry.GetByGraph(graph)
	if len(migrations) == 0 {
		return nil, nil
	}

	resolver := registry.NewDependencyResolver(e.registry)
	ordered, err := resolver.ResolveDependencies(migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve execution order: %w", err)
	}

	statuses := make([]*MigrationStatus, 0, len(ordered))
	for _, m := range ordered {
		record, err := e.tracker.Get(ctx, m.ID())
		if err != nil && !errors.Is(err, state.ErrNotFound) {
			return nil, fmt.Errorf("failed to read state of %s: %w", m.ID(), err)
		}
		statuses = append(statuses, &MigrationStatus{
			Migration: m,
			Applied:   record != nil && record.Status == state.StatusApplied,
			Record:    record,
		})
	}
	return statuses, nil
}

// HealthCheck verifies the executor's state store answers
func (e *Executor) HealthCheck(ctx context.Context) error {
	if err := e.tracker.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("state tracker health check failed: %w", err)
	}
	return nil
}

// PingGraph opens the graph's connection and verifies it answers
// traversals
func (e *Executor) PingGraph(ctx context.Context, graph string) error {
	backend, err := e.connect(graph)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()
	return backend.Ping(ctx)
}

// runOne executes a single migration with full state bookkeeping
func (e *Executor) runOne(ctx context.Context, backend backends.Backend, m *backends.MigrationScript, action state.Action, runID string) error {
	historyID, err := e.tracker.MarkStarted(ctx, m, action, runID)
	if err != nil {
		return fmt.Errorf("failed to record start: %w", err)
	}

	script := m.UpScript
	if action == state.ActionRollback {
		script = m.DownScript
	}

	if err := backend.Execute(ctx, script); err != nil {
		if stateErr := e.tracker.MarkFailed(ctx, m, historyID, runID, err); stateErr != nil {
			logger.Warnf("Failed to record failure of %s: %v", m.ID(), stateErr)
		}
		return err
	}

	if action == state.ActionRollback {
		err = e.tracker.MarkRolledBack(ctx, m, historyID, runID)
	} else {
		err = e.tracker.MarkApplied(ctx, m, historyID, runID)
	}
	if err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}
	return nil
}

// queueJob publishes a migration job for async execution
func (e *Executor) queueJob(ctx context.Context, q queue.Queue, job *queue.Job) (*Result, error) {
	job.ID = fmt.Sprintf("job_%d", time.Now().UnixNano())
	_, actor, _ := RunMetadata(ctx)
	job.RequestedBy = actor
	job.EnqueuedAt = time.Now().UTC()

	if err := q.PublishJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to queue migration job: %w", err)
	}

	action := state.ActionApply
	if job.Action == queue.ActionRollback {
		action = state.ActionRollback
	}
	result := newResult(job.Graph, action)
	result.Success = true
	result.Queued = true
	result.JobID = job.ID
	return result, nil
}

func (e *Executor) getQueue() queue.Queue {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue
}

// connect looks up the graph's backend and opens the connection
func (e *Executor) connect(graph string) (backends.Backend, error) {
	config, err := e.GetGraphConfig(graph)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	backend, ok := e.backends[config.Backend]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("backend %s not registered", config.Backend)
	}

	if err := backend.Connect(config); err != nil {
		return nil, fmt.Errorf("failed to connect to graph %s: %w", graph, err)
	}
	return backend, nil
}

// GetGraphConfig returns a graph connection config by name
func (e *Executor) GetGraphConfig(graph string) (*backends.ConnectionConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	config, ok := e.graphs[graph]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGraph, graph)
	}
	return config, nil
}
