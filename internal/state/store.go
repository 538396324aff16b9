// Package state provides run state management for SQLFlow using SQLite.
// It tracks pipeline runs, per-operation results, and incremental load
// watermarks.
package state

import (
	"context"
	"time"
)

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one execution of a pipeline.
type Run struct {
	ID          string
	Pipeline    string
	Profile     string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// StepStatus is the outcome of one planned operation within a run.
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// StepRun records one operation's execution within a run.
type StepRun struct {
	ID           string
	RunID        string
	OperationID  string
	Type         string
	Status       StepStatus
	RowsAffected int64
	DurationMS   int64
	Error        string
	StartedAt    time.Time
}

// Store is the persistence interface for run history and watermarks.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	CreateRun(pipeline, profile string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetLatestRun(pipeline string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	RecordStep(step *StepRun) error
	ListSteps(runID string) ([]*StepRun, error)

	// Watermark operations satisfy incremental.WatermarkManager.
	GetWatermark(ctx context.Context, table, column string) (string, bool, error)
	SetWatermark(ctx context.Context, table, column, value string) error
}
