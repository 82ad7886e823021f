package sources

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Custom errors for status operations
var (
	ErrSourceNotFound = errors.New("source not found")
	ErrMissingName    = errors.New("source name is required")
)

// StatusStore records the outcome of each source's most recent run using
// SQLite. It is written by the orchestrator and read by the API and CLI;
// crawls never read it back.
type StatusStore struct {
	db *sql.DB
}

// Status is the last known run state of one source.
type Status struct {
	StatusID        uuid.UUID  `json:"status_id"`
	Name            string     `json:"name"`
	Label           string     `json:"label"`
	LastRunID       *uuid.UUID `json:"last_run_id,omitempty"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	LastSuccessAt   *time.Time `json:"last_success_at,omitempty"`
	Attempts        int        `json:"attempts"`
	DigestCount     int        `json:"digest_count"`
	FetchErrorCount int        `json:"fetch_error_count"` // consecutive failed runs
	LastError       *string    `json:"last_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Healthy reports whether the last run succeeded.
func (s *Status) Healthy() bool {
	return s.FetchErrorCount == 0 && s.LastRunAt != nil
}

// RunOutcome is what the orchestrator reports after running one source.
// A nil Err means the run succeeded.
type RunOutcome struct {
	Name       string
	Label      string
	RunID      uuid.UUID
	Attempts   int
	Digests    int
	Err        error
	FinishedAt time.Time
}

// NewStatusStore creates a new status store with the given database path.
func NewStatusStore(dbPath string) (*StatusStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Sources finish concurrently; serialize writers instead of retrying
	// on SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &StatusStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the source_status table if it doesn't exist.
func (s *StatusStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS source_status (
		status_id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL,
		last_run_id TEXT,
		last_run_at TEXT,
		last_success_at TEXT,
		attempts INTEGER DEFAULT 0,
		digest_count INTEGER DEFAULT 0,
		fetch_error_count INTEGER DEFAULT 0,
		last_error TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *StatusStore) Close() error {
	return s.db.Close()
}

// Record stores a run outcome. A success resets the consecutive failure
// count; a failure increments it and keeps the last success time.
func (s *StatusStore) Record(outcome RunOutcome) error {
	if outcome.Name == "" {
		return ErrMissingName
	}

	finished := outcome.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	now := time.Now()

	var query string
	var args []any

	if outcome.Err == nil {
		query = `
			INSERT INTO source_status (
				status_id, name, label, last_run_id, last_run_at, last_success_at,
				attempts, digest_count, fetch_error_count, last_error,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				label = excluded.label,
				last_run_id = excluded.last_run_id,
				last_run_at = excluded.last_run_at,
				last_success_at = excluded.last_success_at,
				attempts = excluded.attempts,
				digest_count = excluded.digest_count,
				fetch_error_count = 0,
				last_error = NULL,
				updated_at = excluded.updated_at
		`
		args = []any{
			uuid.New().String(), outcome.Name, outcome.Label, outcome.RunID.String(),
			formatTime(&finished), formatTime(&finished),
			outcome.Attempts, outcome.Digests,
			formatTime(&now), formatTime(&now),
		}
	} else {
		query = `
			INSERT INTO source_status (
				status_id, name, label, last_run_id, last_run_at, last_success_at,
				attempts, digest_count, fetch_error_count, last_error,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, NULL, ?, 0, 1, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				label = excluded.label,
				last_run_id = excluded.last_run_id,
				last_run_at = excluded.last_run_at,
				attempts = excluded.attempts,
				digest_count = 0,
				fetch_error_count = source_status.fetch_error_count + 1,
				last_error = excluded.last_error,
				updated_at = excluded.updated_at
		`
		args = []any{
			uuid.New().String(), outcome.Name, outcome.Label, outcome.RunID.String(),
			formatTime(&finished),
			outcome.Attempts, outcome.Err.Error(),
			formatTime(&now), formatTime(&now),
		}
	}

	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to record status: %w", err)
	}
	return nil
}

const statusColumns = `
	status_id, name, label, last_run_id, last_run_at, last_success_at,
	attempts, digest_count, fetch_error_count, last_error,
	created_at, updated_at
`

// GetStatus retrieves a source's status by name.
func (s *StatusStore) GetStatus(name string) (*Status, error) {
	row := s.db.QueryRow("SELECT "+statusColumns+" FROM source_status WHERE name = ?", name)

	status, err := scanStatus(row)
	if err == sql.ErrNoRows {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query status: %w", err)
	}

	return status, nil
}

// ListStatuses lists every recorded status ordered by name.
func (s *StatusStore) ListStatuses() ([]Status, error) {
	rows, err := s.db.Query("SELECT " + statusColumns + " FROM source_status ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query statuses: %w", err)
	}
	defer rows.Close()

	var statuses []Status
	for rows.Next() {
		status, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		statuses = append(statuses, *status)
	}

	return statuses, rows.Err()
}

// DeleteStatus removes a source's status, for adapters dropped from the
// registry.
func (s *StatusStore) DeleteStatus(name string) error {
	result, err := s.db.Exec("DELETE FROM source_status WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSourceNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanStatus parses one row into a Status. Shared by GetStatus and
// ListStatuses.
func scanStatus(row scanner) (*Status, error) {
	var statusIDStr, name, label, createdAtStr, updatedAtStr string
	var lastRunIDStr, lastRunAtStr, lastSuccessAtStr, lastError sql.NullString
	var attempts, digestCount, fetchErrorCount int

	err := row.Scan(
		&statusIDStr, &name, &label, &lastRunIDStr, &lastRunAtStr, &lastSuccessAtStr,
		&attempts, &digestCount, &fetchErrorCount, &lastError,
		&createdAtStr, &updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	statusID, err := uuid.Parse(statusIDStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse status ID: %w", err)
	}

	status := &Status{
		StatusID:        statusID,
		Name:            name,
		Label:           label,
		Attempts:        attempts,
		DigestCount:     digestCount,
		FetchErrorCount: fetchErrorCount,
		CreatedAt:       parseTime(createdAtStr),
		UpdatedAt:       parseTime(updatedAtStr),
	}

	if lastRunIDStr.Valid {
		if id, err := uuid.Parse(lastRunIDStr.String); err == nil {
			status.LastRunID = &id
		}
	}
	if lastRunAtStr.Valid {
		t := parseTime(lastRunAtStr.String)
		status.LastRunAt = &t
	}
	if lastSuccessAtStr.Valid {
		t := parseTime(lastSuccessAtStr.String)
		status.LastSuccessAt = &t
	}
	if lastError.Valid {
		status.LastError = &lastError.String
	}

	return status, nil
}

// Helper functions for time formatting
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	// Strip monotonic clock for consistent storage and comparisons
	return t.Truncate(0).Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}
