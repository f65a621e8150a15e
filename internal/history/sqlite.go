package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the ledger at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "could not create history directory").
				WithContext("path", dbPath).Build()
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "could not open history database").
			WithContext("path", dbPath).Build()
	}
	// Workers record concurrently; one connection keeps :memory: databases
	// shared and serializes sqlite writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "failed to initialize history schema").Build()
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		root TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		counts TEXT
	);
	CREATE TABLE IF NOT EXISTS file_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		path TEXT NOT NULL,
		outcome TEXT NOT NULL,
		detail TEXT,
		duration_us INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_file_events_run ON file_events(run_id);
	CREATE TABLE IF NOT EXISTS fingerprints (
		output TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// BeginRun inserts a run with a fresh UUID.
func (s *SQLiteStore) BeginRun(ctx context.Context, command, root string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := Run{ID: uuid.NewString(), Command: command, Root: root, StartedAt: s.now().UTC()}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, command, root, started_at) VALUES (?, ?, ?, ?)",
		run.ID, run.Command, run.Root, run.StartedAt.UnixNano(),
	)
	if err != nil {
		return Run{}, ferrors.WrapError(err, ferrors.CategoryHistory, "failed to insert run").Build()
	}
	return run, nil
}

// RecordFile appends one file outcome to a run.
func (s *SQLiteStore) RecordFile(ctx context.Context, runID string, ev FileEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO file_events (run_id, path, outcome, detail, duration_us) VALUES (?, ?, ?, ?, ?)",
		runID, ev.Path, ev.Outcome, ev.Detail, ev.Duration.Microseconds(),
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryHistory, "failed to insert file event").
			WithContext("run_id", runID).Build()
	}
	return nil
}

// FinishRun stamps the finish time and the outcome counts.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, counts map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryHistory, "failed to marshal run counts").Build()
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, counts = ? WHERE id = ?",
		s.now().UTC().UnixNano(), string(countsJSON), runID,
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryHistory, "failed to update run").Build()
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound.WithContext("run_id", runID)
	}
	return nil
}

// LastRun returns the most recently started finished run.
func (s *SQLiteStore) LastRun(ctx context.Context) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		run               Run
		started, finished int64
		counts            sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, command, root, started_at, finished_at, counts FROM runs WHERE finished_at IS NOT NULL ORDER BY started_at DESC LIMIT 1",
	).Scan(&run.ID, &run.Command, &run.Root, &started, &finished, &counts)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	if err != nil {
		return Run{}, ferrors.WrapError(err, ferrors.CategoryHistory, "failed to query runs").Build()
	}
	run.StartedAt = time.Unix(0, started).UTC()
	run.FinishedAt = time.Unix(0, finished).UTC()
	if counts.Valid && counts.String != "" {
		if err := json.Unmarshal([]byte(counts.String), &run.Counts); err != nil {
			return Run{}, ferrors.WrapError(err, ferrors.CategoryHistory, "failed to decode run counts").Build()
		}
	}
	return run, nil
}

// Files returns the file events of a run in insertion order.
func (s *SQLiteStore) Files(ctx context.Context, runID string) ([]FileEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT path, outcome, detail, duration_us FROM file_events WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "failed to query file events").Build()
	}
	defer rows.Close()

	var events []FileEvent
	for rows.Next() {
		var (
			ev     FileEvent
			detail sql.NullString
			us     int64
		)
		if err := rows.Scan(&ev.Path, &ev.Outcome, &detail, &us); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "failed to scan file event").Build()
		}
		ev.Detail = detail.String
		ev.Duration = time.Duration(us) * time.Microsecond
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "failed to iterate file events").Build()
	}
	return events, nil
}

// Fingerprint returns the stored fingerprint for a generated page.
func (s *SQLiteStore) Fingerprint(ctx context.Context, output string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fp string
	err := s.db.QueryRowContext(ctx, "SELECT fingerprint FROM fingerprints WHERE output = ?", output).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, ferrors.WrapError(err, ferrors.CategoryHistory, "failed to query fingerprint").Build()
	}
	return fp, true, nil
}

// SetFingerprint stores the fingerprint of a generated page.
func (s *SQLiteStore) SetFingerprint(ctx context.Context, output, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fingerprints (output, fingerprint, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(output) DO UPDATE SET fingerprint = excluded.fingerprint, updated_at = excluded.updated_at`,
		output, fingerprint, s.now().UTC().UnixNano(),
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryHistory, "failed to store fingerprint").Build()
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
