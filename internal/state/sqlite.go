package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // cgo-free sqlite driver
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// --- Run operations ---

// CreateRun creates a new pipeline run in the running state.
func (s *SQLiteStore) CreateRun(pipeline, profile string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:        generateID(),
		Pipeline:  pipeline,
		Profile:   profile,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	s.logger.Debug("creating run",
		slog.String("id", run.ID), slog.String("pipeline", pipeline))

	_, err := s.db.Exec(
		`INSERT INTO runs (id, pipeline, profile, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Pipeline, run.Profile, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(
		`SELECT id, pipeline, profile, status, started_at, completed_at, error FROM runs WHERE id = ?`,
		id,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(id string, status RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		status, now, nullString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetLatestRun retrieves the most recent run for a pipeline, or nil when
// the pipeline has never run.
func (s *SQLiteStore) GetLatestRun(pipeline string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(
		`SELECT id, pipeline, profile, status, started_at, completed_at, error
		 FROM runs WHERE pipeline = ? ORDER BY started_at DESC LIMIT 1`,
		pipeline,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs up to the given limit.
func (s *SQLiteStore) ListRuns(limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, pipeline, profile, status, started_at, completed_at, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := row.Scan(&run.ID, &run.Pipeline, &run.Profile, &run.Status,
		&run.StartedAt, &completedAt, &errMsg)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.Error = errMsg.String
	return run, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// --- Step operations ---

// RecordStep persists one operation's result within a run. A missing ID
// or start time is filled in.
func (s *SQLiteStore) RecordStep(step *StepRun) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if step.ID == "" {
		step.ID = generateID()
	}
	if step.StartedAt.IsZero() {
		step.StartedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO step_runs (id, run_id, operation_id, type, status, rows_affected, duration_ms, error, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.ID, step.RunID, step.OperationID, step.Type, step.Status,
		step.RowsAffected, step.DurationMS, nullString(step.Error), step.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record step: %w", err)
	}
	return nil
}

// ListSteps retrieves a run's step results in execution order.
func (s *SQLiteStore) ListSteps(runID string) ([]*StepRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, operation_id, type, status, rows_affected, duration_ms, error, started_at
		 FROM step_runs WHERE run_id = ? ORDER BY started_at, id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var steps []*StepRun
	for rows.Next() {
		step := &StepRun{}
		var errMsg sql.NullString
		if err := rows.Scan(&step.ID, &step.RunID, &step.OperationID, &step.Type,
			&step.Status, &step.RowsAffected, &step.DurationMS, &errMsg, &step.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		step.Error = errMsg.String
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}

	return steps, nil
}

// --- Watermark operations ---

// GetWatermark returns the stored cursor value for a table/column pair.
func (s *SQLiteStore) GetWatermark(ctx context.Context, table, column string) (string, bool, error) {
	if s.db == nil {
		return "", false, fmt.Errorf("database not opened")
	}

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM watermarks WHERE table_name = ? AND column_name = ?`,
		table, column,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get watermark: %w", err)
	}
	return value, true, nil
}

// SetWatermark stores a new cursor value, replacing any prior one.
func (s *SQLiteStore) SetWatermark(ctx context.Context, table, column, value string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO watermarks (table_name, column_name, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (table_name, column_name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		table, column, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set watermark: %w", err)
	}
	return nil
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
