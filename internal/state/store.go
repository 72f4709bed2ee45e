package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/toolsascode/gfm/internal/backends"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements Tracker over database/sql. Supported drivers:
// sqlite3 (default), postgres, mysql. The SQL sticks to the portable
// subset; placeholders are rebound for postgres.
type Store struct {
	db     *sql.DB
	driver string
}

// NewStore opens the state database and ensures the tables exist
func NewStore(driver, dsn string) (*Store, error) {
	switch driver {
	case "sqlite3", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("unsupported state driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// Each pooled sqlite connection would get its own :memory: database,
	// and file stores hit SQLITE_BUSY with concurrent writers.
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, driver: driver}
	if err := store.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize state store: %w", err)
	}
	return store, nil
}

// EnsureSchema creates the state tables
func (s *Store) EnsureSchema(ctx context.Context) error {
	createMigrations := `
		CREATE TABLE IF NOT EXISTS gfm_migrations (
			id VARCHAR(255) PRIMARY KEY,
			version VARCHAR(50) NOT NULL,
			name VARCHAR(255) NOT NULL,
			graph VARCHAR(255) NOT NULL,
			app VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL,
			irreversible BOOLEAN NOT NULL DEFAULT FALSE,
			console TEXT,
			checksum VARCHAR(64),
			run_id VARCHAR(26),
			applied_at TIMESTAMP NULL,
			rolled_back_at TIMESTAMP NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, createMigrations); err != nil {
		return fmt.Errorf("failed to create gfm_migrations table: %w", err)
	}

	createHistory := `
		CREATE TABLE IF NOT EXISTS gfm_migrations_history (
			id VARCHAR(26) PRIMARY KEY,
			migration_id VARCHAR(255) NOT NULL,
			action VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL,
			error_message TEXT,
			run_id VARCHAR(26),
			created_at TIMESTAMP NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, createHistory); err != nil {
		return fmt.Errorf("failed to create gfm_migrations_history table: %w", err)
	}

	// Index creation is best effort; mysql has no IF NOT EXISTS here.
	_, _ = s.db.ExecContext(ctx, "CREATE INDEX idx_gfm_migrations_graph ON gfm_migrations (graph, status)")
	_, _ = s.db.ExecContext(ctx, "CREATE INDEX idx_gfm_history_migration ON gfm_migrations_history (migration_id)")

	return nil
}

// IsApplied checks if a migration is currently applied
func (s *Store) IsApplied(ctx context.Context, migrationID string) (bool, error) {
	var status string
	query := s.rebind("SELECT status FROM gfm_migrations WHERE id = ?")
	err := s.db.QueryRowContext(ctx, query, migrationID).Scan(&status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query migration state: %w", err)
	}
	return Status(status) == StatusApplied, nil
}

// MarkStarted opens a history row and returns its id
func (s *Store) MarkStarted(ctx context.Context, m *backends.MigrationScript, action Action, runID string) (string, error) {
	historyID := ulid.Make().String()
	query := s.rebind(`
		INSERT INTO gfm_migrations_history (id, migration_id, action, status, error_message, run_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query, historyID, m.ID(), string(action), RunStarted, "", runID, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert history row: %w", err)
	}
	return historyID, nil
}

// MarkApplied closes the history row and upserts the applied state
func (s *Store) MarkApplied(ctx context.Context, m *backends.MigrationScript, historyID, runID string) error {
	if err := s.closeHistory(ctx, historyID, RunSucceeded, ""); err != nil {
		return err
	}

	now := time.Now().UTC()
	query := s.rebind(s.upsertSQL())
	_, err := s.db.ExecContext(ctx, query,
		m.ID(), m.Version, m.Name, m.Graph, m.App, string(StatusApplied),
		m.Irreversible, strings.Join(m.Console, "\n"), Checksum(m.UpScript), runID, now, nil)
	if err != nil {
		return fmt.Errorf("failed to upsert migration state: %w", err)
	}
	return nil
}

// MarkRolledBack closes the history row and flips the state. The
// applied_at of the rolled back run is preserved.
func (s *Store) MarkRolledBack(ctx context.Context, m *backends.MigrationScript, historyID, runID string) error {
	if err := s.closeHistory(ctx, historyID, RunSucceeded, ""); err != nil {
		return err
	}
	return s.updateOrInsertStatus(ctx, m, StatusRolledBack, runID)
}

// MarkFailed closes the history row with the error and records the failure
func (s *Store) MarkFailed(ctx context.Context, m *backends.MigrationScript, historyID, runID string, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	if err := s.closeHistory(ctx, historyID, RunFailed, message); err != nil {
		return err
	}
	return s.updateOrInsertStatus(ctx, m, StatusFailed, runID)
}

// Get returns the state row for one migration
func (s *Store) Get(ctx context.Context, migrationID string) (*Record, error) {
	query := s.rebind(`
		SELECT id, version, name, graph, app, status, irreversible, console, checksum, run_id, applied_at, rolled_back_at
		FROM gfm_migrations WHERE id = ?
	`)
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, migrationID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, migrationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query migration state: %w", err)
	}
	return record, nil
}

// AppliedMigrations lists currently applied migrations of a graph
func (s *Store) AppliedMigrations(ctx context.Context, graph string) ([]*Record, error) {
	query := s.rebind(`
		SELECT id, version, name, graph, app, status, irreversible, console, checksum, run_id, applied_at, rolled_back_at
		FROM gfm_migrations WHERE graph = ? AND status = ? ORDER BY version, id
	`)
	rows, err := s.db.QueryContext(ctx, query, graph, string(StatusApplied))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan migration state: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// History lists the attempts of one migration, newest first
func (s *Store) History(ctx context.Context, migrationID string) ([]*HistoryEntry, error) {
	query := s.rebind(`
		SELECT id, migration_id, action, status, error_message, run_id, created_at
		FROM gfm_migrations_history WHERE migration_id = ? ORDER BY id DESC
	`)
	rows, err := s.db.QueryContext(ctx, query, migrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query migration history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		var action string
		if err := rows.Scan(&entry.ID, &entry.MigrationID, &action, &entry.Status, &entry.Error, &entry.RunID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entry.Action = Action(action)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// PendingOf filters the given migrations down to the unapplied ones
func (s *Store) PendingOf(ctx context.Context, all []*backends.MigrationScript) ([]*backends.MigrationScript, error) {
	applied := make(map[string]bool)
	query := "SELECT id FROM gfm_migrations WHERE status = " + s.placeholder(1)
	rows, err := s.db.QueryContext(ctx, query, string(StatusApplied))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan migration id: %w", err)
		}
		applied[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var pending []*backends.MigrationScript
	for _, m := range all {
		if !applied[m.ID()] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Close releases the underlying database handle
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) closeHistory(ctx context.Context, historyID, status, message string) error {
	query := s.rebind("UPDATE gfm_migrations_history SET status = ?, error_message = ? WHERE id = ?")
	if _, err := s.db.ExecContext(ctx, query, status, message, historyID); err != nil {
		return fmt.Errorf("failed to update history row: %w", err)
	}
	return nil
}

// updateOrInsertStatus changes the status without touching applied_at,
// inserting a bare row when the migration was never recorded
func (s *Store) updateOrInsertStatus(ctx context.Context, m *backends.MigrationScript, status Status, runID string) error {
	now := time.Now().UTC()

	var rolledBackAt interface{}
	if status == StatusRolledBack {
		rolledBackAt = now
	}

	update := s.rebind("UPDATE gfm_migrations SET status = ?, run_id = ?, rolled_back_at = ? WHERE id = ?")
	result, err := s.db.ExecContext(ctx, update, string(status), runID, rolledBackAt, m.ID())
	if err != nil {
		return fmt.Errorf("failed to update migration state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	insert := s.rebind(`
		INSERT INTO gfm_migrations (id, version, name, graph, app, status, irreversible, console, checksum, run_id, applied_at, rolled_back_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = s.db.ExecContext(ctx, insert,
		m.ID(), m.Version, m.Name, m.Graph, m.App, string(status),
		m.Irreversible, strings.Join(m.Console, "\n"), Checksum(m.UpScript), runID, nil, rolledBackAt)
	if err != nil {
		return fmt.Errorf("failed to insert migration state: %w", err)
	}
	return nil
}

func (s *Store) upsertSQL() string {
	base := `
		INSERT INTO gfm_migrations (id, version, name, graph, app, status, irreversible, console, checksum, run_id, applied_at, rolled_back_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if s.driver == "mysql" {
		return base + `
		ON DUPLICATE KEY UPDATE
			status = VALUES(status), irreversible = VALUES(irreversible), console = VALUES(console),
			checksum = VALUES(checksum), run_id = VALUES(run_id), applied_at = VALUES(applied_at),
			rolled_back_at = VALUES(rolled_back_at)
		`
	}
	return base + `
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status, irreversible = excluded.irreversible, console = excluded.console,
			checksum = excluded.checksum, run_id = excluded.run_id, applied_at = excluded.applied_at,
			rolled_back_at = excluded.rolled_back_at
	`
}

// rebind converts ? placeholders to $n for postgres
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) placeholder(n int) string {
	if s.driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var status string
	var console, checksum, runID sql.NullString
	var appliedAt, rolledBackAt sql.NullTime

	err := row.Scan(&record.ID, &record.Version, &record.Name, &record.Graph, &record.App,
		&status, &record.Irreversible, &console, &checksum, &runID, &appliedAt, &rolledBackAt)
	if err != nil {
		return nil, err
	}

	record.Status = Status(status)
	record.Console = console.String
	record.Checksum = checksum.String
	record.RunID = runID.String
	if appliedAt.Valid {
		record.AppliedAt = appliedAt.Time
	}
	if rolledBackAt.Valid {
		t := rolledBackAt.Time
		record.RolledBackAt = &t
	}
	return &record, nil
}
