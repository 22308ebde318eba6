package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/umputun/jobtrack/app/web/enums"
)

const opTimeout = 5 * time.Second

// Event is a single journal record
type Event struct {
	ID        int64           `db:"id" json:"id"`
	JobID     string          `db:"job_id" json:"job_id"`
	Type      enums.EventType `db:"type" json:"type"`
	Company   string          `db:"company" json:"company"`
	Position  string          `db:"position" json:"position"`
	Status    string          `db:"status" json:"status"`
	Changes   string          `db:"changes" json:"changes,omitempty"` // "field: old -> new" lines for updates
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// ChangesList splits changes into separate lines
func (e Event) ChangesList() []string {
	if e.Changes == "" {
		return nil
	}
	return strings.Split(e.Changes, "\n")
}

// SQLiteStore implements journal storage using SQLite
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens or creates the database and makes sure schema exists
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to set WAL mode: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	res := &SQLiteStore{db: db}
	if err := res.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return res, nil
}

func (s *SQLiteStore) initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id TEXT NOT NULL,
			type TEXT NOT NULL,
			company TEXT NOT NULL DEFAULT '',
			position TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			changes TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_job_id ON events(job_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// RecordEvent appends event to the journal. Zero CreatedAt set to the current time.
func (s *SQLiteStore) RecordEvent(ev Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	ev.CreatedAt = ev.CreatedAt.UTC()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO events (job_id, type, company, position, status, changes, created_at)
		VALUES (:job_id, :type, :company, :position, :status, :changes, :created_at)`, ev)
	if err != nil {
		return fmt.Errorf("failed to record event for job %s: %w", ev.JobID, err)
	}
	return nil
}

// GetEvents retrieves journal of a single job, newest first
func (s *SQLiteStore) GetEvents(jobID string, limit int) ([]Event, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	events := []Event{}
	err := s.db.SelectContext(ctx, &events, `
		SELECT id, job_id, type, company, position, status, changes, created_at
		FROM events WHERE job_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return events, nil
}

// RecentEvents retrieves latest events of all jobs, newest first
func (s *SQLiteStore) RecentEvents(limit int) ([]Event, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	events := []Event{}
	err := s.db.SelectContext(ctx, &events, `
		SELECT id, job_id, type, company, position, status, changes, created_at
		FROM events ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	return events, nil
}

// CleanupOldEvents keeps only the newest keep events of the job
func (s *SQLiteStore) CleanupOldEvents(jobID string, keep int) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM events WHERE job_id = ? AND id NOT IN (
			SELECT id FROM events WHERE job_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
		)`, jobID, jobID, keep)
	if err != nil {
		return fmt.Errorf("failed to cleanup events for job %s: %w", jobID, err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
