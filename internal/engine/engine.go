// Package engine provides the pipeline execution engine.
// It compiles .sf pipeline files into execution plans and runs them
// against a storage engine, in dependency order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/giaosudau/sqlflow/internal/adapter"
	"github.com/giaosudau/sqlflow/internal/incremental"
	"github.com/giaosudau/sqlflow/internal/planner"
	"github.com/giaosudau/sqlflow/internal/state"
)

// Engine orchestrates pipeline compilation and execution.
type Engine struct {
	// Storage engine (lazy connected)
	db          adapter.Engine
	dbConfig    adapter.Config
	dbConnected bool
	dbMu        sync.Mutex

	logger *slog.Logger

	store     state.Store
	planner   *planner.Planner
	loads     *incremental.Manager
	udfs      *UDFRegistry
	variables map[string]string
	profile   string
}

// Config holds engine configuration.
type Config struct {
	// AdapterConfig is the storage engine connection configuration.
	AdapterConfig adapter.Config

	// StatePath is the path to the SQLite state database. Empty disables
	// run history and makes watermarks in-memory only.
	StatePath string

	// Profile is the active configuration profile name, recorded on runs.
	Profile string

	// Variables are the merged pipeline variables (CLI > profile > env).
	Variables map[string]string

	// CompilerVersion is stamped into plan metadata.
	CompilerVersion string

	// Logger is the structured logger (uses discard if nil).
	Logger *slog.Logger
}

// New creates a new engine with a lazy storage connection. The storage
// engine is only connected when Run is called.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine",
		"target", cfg.AdapterConfig.Type, "profile", cfg.Profile)

	db, err := adapter.NewEngine(cfg.AdapterConfig)
	if err != nil {
		return nil, err
	}

	var store state.Store
	var watermarks incremental.WatermarkManager
	if cfg.StatePath != "" {
		sqliteStore := state.NewSQLiteStore(logger)
		if err := sqliteStore.Open(cfg.StatePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		if err := sqliteStore.Migrate(); err != nil {
			_ = sqliteStore.Close()
			return nil, fmt.Errorf("failed to migrate state store: %w", err)
		}
		store = sqliteStore
		watermarks = sqliteStore
	} else {
		watermarks = incremental.NewMemoryWatermarkManager()
	}

	version := cfg.CompilerVersion
	if version == "" {
		version = "dev"
	}

	variables := cfg.Variables
	if variables == nil {
		variables = map[string]string{}
	}

	return &Engine{
		db:        db,
		dbConfig:  cfg.AdapterConfig,
		logger:    logger,
		store:     store,
		planner:   planner.NewPlanner(version),
		loads:     incremental.NewManager(db, watermarks, logger),
		udfs:      NewUDFRegistry(),
		variables: variables,
		profile:   cfg.Profile,
	}, nil
}

// UDFs exposes the engine's UDF registry for registration before Run.
func (e *Engine) UDFs() *UDFRegistry {
	return e.udfs
}

// Store returns the run history store, or nil when state is disabled.
func (e *Engine) Store() state.Store {
	return e.store
}

// connect establishes the storage connection once.
func (e *Engine) connect(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()
	if e.dbConnected {
		return nil
	}
	if err := e.db.Connect(ctx, e.dbConfig); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", e.dbConfig.Type, err)
	}
	e.dbConnected = true
	return nil
}

// Close releases the storage connection and the state store.
func (e *Engine) Close() error {
	var errs []error
	e.dbMu.Lock()
	if e.dbConnected {
		errs = append(errs, e.db.Close())
		e.dbConnected = false
	}
	e.dbMu.Unlock()

	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	return errors.Join(errs...)
}
