package incremental

import (
	"context"
	"log/slog"
	"time"

	"github.com/giaosudau/sqlflow/internal/adapter"
)

// Strategy is one incremental load approach. CanHandle is a pure
// predicate over the load pattern; Execute runs the strategy's SQL
// against the storage engine and never panics or returns an error
// directly, reporting failures through LoadResult.ValidationErrors.
type Strategy interface {
	Name() LoadStrategy
	CanHandle(pattern LoadPattern) bool
	Execute(ctx context.Context, source DataSource, targetTable string) *LoadResult
	EstimatePerformance(pattern LoadPattern) PerformanceEstimate
}

// strategyWeights order candidate strategies when several can handle a
// pattern. Higher wins.
var strategyWeights = map[LoadStrategy]float64{
	StrategyAppend:   1.0,
	StrategyCDC:      0.9,
	StrategyUpsert:   0.7,
	StrategySnapshot: 0.5,
}

// Manager drives one load call through analyze, select, and execute,
// with rollback as the failure path.
type Manager struct {
	engine     adapter.Engine
	watermarks WatermarkManager
	logger     *slog.Logger
	strategies []Strategy
}

// NewManager creates a manager with all four strategies registered.
func NewManager(engine adapter.Engine, watermarks WatermarkManager, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if watermarks == nil {
		watermarks = NewMemoryWatermarkManager()
	}
	return &Manager{
		engine:     engine,
		watermarks: watermarks,
		logger:     logger,
		strategies: []Strategy{
			NewAppendStrategy(engine, watermarks),
			NewUpsertStrategy(engine, SourceWins),
			NewSnapshotStrategy(engine),
			NewCDCStrategy(engine),
		},
	}
}

// Strategies returns the registered strategies.
func (m *Manager) Strategies() []Strategy {
	return m.strategies
}

// AnalyzeLoadPattern profiles the target table and the source's declared
// columns. The rates are fixed heuristic constants keyed off column
// presence; this is deliberately a cheap heuristic, not a sampler.
func (m *Manager) AnalyzeLoadPattern(ctx context.Context, source DataSource, targetTable string) (LoadPattern, error) {
	pattern := NewLoadPattern()
	pattern.HasPrimaryKey = len(source.KeyColumns) > 0
	pattern.HasUpdateTimestamp = source.TimeColumn != ""
	pattern.HasDeleteFlag = source.DeleteColumn != ""
	pattern.ChangeRate = defaultChangeRate

	switch {
	case pattern.HasDeleteFlag && pattern.HasPrimaryKey:
		pattern.InsertRate = cdcInsertRate
		pattern.UpdateRate = cdcUpdateRate
		pattern.DeleteRate = cdcDeleteRate
	case pattern.HasPrimaryKey:
		pattern.InsertRate = keyedInsertRate
		pattern.UpdateRate = keyedUpdateRate
		pattern.DeleteRate = keyedDeleteRate
	default:
		pattern.InsertRate = insertOnlyInsertRate
		pattern.UpdateRate = insertOnlyUpdateRate
		pattern.DeleteRate = insertOnlyDeleteRate
	}

	exists, err := m.engine.TableExists(ctx, targetTable)
	if err != nil {
		return pattern, err
	}
	if exists {
		schema, err := m.engine.GetTableSchema(ctx, targetTable)
		if err != nil {
			return pattern, err
		}
		pattern.RowCountEstimate = schema.RowCount
	}

	return pattern, nil
}

// GetTableInfo fetches a fresh existence/shape snapshot for a table.
func (m *Manager) GetTableInfo(ctx context.Context, table string) (TableInfo, error) {
	exists, err := m.engine.TableExists(ctx, table)
	if err != nil {
		return TableInfo{}, err
	}
	info := TableInfo{Exists: exists}
	if !exists {
		return info, nil
	}
	schema, err := m.engine.GetTableSchema(ctx, table)
	if err != nil {
		return info, err
	}
	info.Schema = make(map[string]string, len(schema.Columns))
	for _, col := range schema.Columns {
		info.Schema[col.Name] = col.Type
	}
	return info, nil
}

// SelectStrategy picks the highest-weighted strategy whose CanHandle
// accepts the pattern, falling back to append when none qualifies.
func (m *Manager) SelectStrategy(_ TableInfo, pattern LoadPattern) LoadStrategy {
	best := StrategyAppend
	bestWeight := -1.0
	for _, s := range m.strategies {
		if !s.CanHandle(pattern) {
			continue
		}
		if w := strategyWeights[s.Name()]; w > bestWeight {
			best = s.Name()
			bestWeight = w
		}
	}
	return best
}

func (m *Manager) strategyByName(name LoadStrategy) Strategy {
	for _, s := range m.strategies {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// ExecuteIncrementalLoad runs the full analyze, select, execute sequence
// for one load call.
func (m *Manager) ExecuteIncrementalLoad(ctx context.Context, source DataSource, targetTable string) *LoadResult {
	start := time.Now()

	pattern, err := m.AnalyzeLoadPattern(ctx, source, targetTable)
	if err != nil {
		result := NewLoadResult(StrategyAppend)
		result.ExecutionTimeMS = time.Since(start).Milliseconds()
		return result.fail("Load pattern analysis failed: " + err.Error())
	}

	info, err := m.GetTableInfo(ctx, targetTable)
	if err != nil {
		result := NewLoadResult(StrategyAppend)
		result.ExecutionTimeMS = time.Since(start).Milliseconds()
		return result.fail("Table inspection failed: " + err.Error())
	}

	name := m.SelectStrategy(info, pattern)
	m.logger.Info("selected load strategy",
		"table", targetTable,
		"strategy", string(name),
		"row_count_estimate", pattern.RowCountEstimate)

	result := m.strategyByName(name).Execute(ctx, source, targetTable)
	result.ExecutionTimeMS = time.Since(start).Milliseconds()

	if !result.Success() {
		m.logger.Warn("incremental load failed",
			"table", targetTable,
			"strategy", string(name),
			"errors", result.ValidationErrors)
	}
	return result
}

// RollbackIncrementalLoad restores a table from a load's rollback point.
// It returns false without touching the engine when the result carries
// no rollback point, and false (leaving state as-is) when any rollback
// step fails. It never returns an error so a secondary failure cannot
// mask the original one.
func (m *Manager) RollbackIncrementalLoad(ctx context.Context, result *LoadResult, targetTable string) bool {
	if result == nil || result.RollbackPoint == "" {
		return false
	}
	backup := result.RollbackPoint

	if _, err := m.engine.ExecuteQuery(ctx, "DELETE FROM "+targetTable); err != nil {
		m.logger.Error("rollback failed clearing table", "table", targetTable, "error", err)
		return false
	}
	if _, err := m.engine.ExecuteQuery(ctx, "INSERT INTO "+targetTable+" SELECT * FROM "+backup); err != nil {
		m.logger.Error("rollback failed restoring backup", "table", targetTable, "backup", backup, "error", err)
		return false
	}
	if _, err := m.engine.ExecuteQuery(ctx, "DROP TABLE "+backup); err != nil {
		m.logger.Error("rollback failed dropping backup", "backup", backup, "error", err)
		return false
	}

	m.logger.Info("rolled back incremental load", "table", targetTable, "backup", backup)
	return true
}
