// Package store persists run metadata and logged metrics to SQLite so
// past runs can be listed and queried without replaying event files.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Run is one recorded training run.
type Run struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Scalar is one recorded scalar sample.
type Scalar struct {
	Tag      string
	Step     int64
	Value    float64
	WallTime float64
}

// Text is one recorded text sample.
type Text struct {
	Tag      string
	Step     int64
	Value    string
	WallTime float64
}

// Store is a SQLite-backed metrics history. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// Open creates or opens the history database at path, initializing the
// schema on first use.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scalars (
		run_id TEXT NOT NULL REFERENCES runs(id),
		tag TEXT NOT NULL,
		step INTEGER NOT NULL,
		value REAL NOT NULL,
		wall_time REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scalars_run_tag ON scalars(run_id, tag);

	CREATE TABLE IF NOT EXISTS texts (
		run_id TEXT NOT NULL REFERENCES runs(id),
		tag TEXT NOT NULL,
		step INTEGER NOT NULL,
		value TEXT NOT NULL,
		wall_time REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_texts_run_tag ON texts(run_id, tag);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateRun registers a new run and returns it with a fresh ID.
func (s *Store) CreateRun(name string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := Run{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	_, err := s.db.Exec(
		`INSERT INTO runs (id, name, created_at) VALUES (?, ?, ?)`,
		run.ID, run.Name, run.CreatedAt,
	)
	if err != nil {
		return Run{}, fmt.Errorf("store: create run: %w", err)
	}
	return run, nil
}

// AppendScalar records one scalar sample for a run.
func (s *Store) AppendScalar(runID, tag string, step int64, value, wallTime float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO scalars (run_id, tag, step, value, wall_time) VALUES (?, ?, ?, ?, ?)`,
		runID, tag, step, value, wallTime,
	)
	if err != nil {
		return fmt.Errorf("store: append scalar: %w", err)
	}
	return nil
}

// AppendText records one text sample for a run.
func (s *Store) AppendText(runID, tag string, step int64, value string, wallTime float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO texts (run_id, tag, step, value, wall_time) VALUES (?, ?, ?, ?, ?)`,
		runID, tag, step, value, wallTime,
	)
	if err != nil {
		return fmt.Errorf("store: append text: %w", err)
	}
	return nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns() ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, name, created_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Name, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Scalars returns every scalar a run logged under tag, in step order.
func (s *Store) Scalars(runID, tag string) ([]Scalar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT tag, step, value, wall_time FROM scalars WHERE run_id = ? AND tag = ? ORDER BY step`,
		runID, tag,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query scalars: %w", err)
	}
	defer rows.Close()

	var out []Scalar
	for rows.Next() {
		var sc Scalar
		if err := rows.Scan(&sc.Tag, &sc.Step, &sc.Value, &sc.WallTime); err != nil {
			return nil, fmt.Errorf("store: scan scalar: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Texts returns every text value a run logged under tag, in step order.
func (s *Store) Texts(runID, tag string) ([]Text, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT tag, step, value, wall_time FROM texts WHERE run_id = ? AND tag = ? ORDER BY step`,
		runID, tag,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query texts: %w", err)
	}
	defer rows.Close()

	var out []Text
	for rows.Next() {
		var tx Text
		if err := rows.Scan(&tx.Tag, &tx.Step, &tx.Value, &tx.WallTime); err != nil {
			return nil, fmt.Errorf("store: scan text: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
