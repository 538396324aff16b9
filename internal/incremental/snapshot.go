package incremental

import (
	"context"
	"fmt"
	"time"

	"github.com/giaosudau/sqlflow/internal/adapter"
)

// SnapshotStrategy fully replaces the target table's contents. A backup
// table taken before the replace serves as the rollback point.
type SnapshotStrategy struct {
	engine adapter.Engine

	// now is swappable for deterministic backup names in tests.
	now func() time.Time
}

// NewSnapshotStrategy creates a snapshot strategy.
func NewSnapshotStrategy(engine adapter.Engine) *SnapshotStrategy {
	return &SnapshotStrategy{engine: engine, now: time.Now}
}

// Name implements Strategy.
func (s *SnapshotStrategy) Name() LoadStrategy { return StrategySnapshot }

// CanHandle accepts high-churn tables small enough to replace outright,
// unless exact history must be preserved.
func (s *SnapshotStrategy) CanHandle(p LoadPattern) bool {
	return p.RowCountEstimate <= snapshotMaxRows &&
		p.ChangeRate >= snapshotMinChangeRate &&
		!p.RequiresExactHistory
}

// Execute backs up the existing table, then replaces it with the source
// query's result. The backup table is recorded as the rollback point.
func (s *SnapshotStrategy) Execute(ctx context.Context, source DataSource, targetTable string) *LoadResult {
	result := NewLoadResult(StrategySnapshot)

	exists, err := s.engine.TableExists(ctx, targetTable)
	if err != nil {
		return result.fail("Snapshot strategy failed: " + err.Error())
	}

	if exists {
		backup := fmt.Sprintf("%s_rollback_%d", targetTable, s.now().UnixMilli())
		backupSQL := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s", backup, targetTable)
		if _, err := s.engine.ExecuteQuery(ctx, backupSQL); err != nil {
			return result.fail("Snapshot strategy failed: " + err.Error())
		}
		result.RollbackPoint = backup
		result.RollbackMetadata["backup_table"] = backup
	}

	replaceSQL := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS %s", targetTable, source.SourceQuery)
	if _, err := s.engine.ExecuteQuery(ctx, replaceSQL); err != nil {
		return result.fail("Snapshot strategy failed: " + err.Error())
	}

	countRes, err := s.engine.ExecuteQuery(ctx, "SELECT COUNT(*) FROM "+targetTable)
	if err != nil {
		return result.fail("Snapshot strategy failed: " + err.Error())
	}
	result.RowsInserted = countRes.ScalarInt()

	return result
}

// EstimatePerformance implements Strategy. The create-or-replace cost
// model is heavier per row than append.
func (s *SnapshotStrategy) EstimatePerformance(p LoadPattern) PerformanceEstimate {
	return estimate(StrategySnapshot, p.RowCountEstimate, snapshotMSPerRow, "medium", "bulk_replace")
}

var _ Strategy = (*SnapshotStrategy)(nil)
