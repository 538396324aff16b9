package incremental

import (
	"context"
	"fmt"
	"time"

	"github.com/giaosudau/sqlflow/internal/adapter"
)

// CDCStrategy applies explicit insert, update, and delete markers from
// the source in one coordinated pass. The heaviest strategy, used only
// when the source flags deletions.
type CDCStrategy struct {
	engine adapter.Engine
	now    func() time.Time
}

// NewCDCStrategy creates a CDC strategy.
func NewCDCStrategy(engine adapter.Engine) *CDCStrategy {
	return &CDCStrategy{engine: engine, now: time.Now}
}

// Name implements Strategy.
func (s *CDCStrategy) Name() LoadStrategy { return StrategyCDC }

// CanHandle requires an explicit delete flag, a primary key, and
// observed deletions.
func (s *CDCStrategy) CanHandle(p LoadPattern) bool {
	return p.HasDeleteFlag && p.HasPrimaryKey && p.DeleteRate > 0
}

// Execute applies deletes, updates, and inserts from the change feed.
// Rows whose delete column is set are removed; the rest upsert. A backup
// table taken before mutating serves as the rollback point.
func (s *CDCStrategy) Execute(ctx context.Context, source DataSource, targetTable string) *LoadResult {
	result := NewLoadResult(StrategyCDC)

	if source.DeleteColumn == "" {
		return result.fail("CDC strategy requires a delete column")
	}
	if len(source.KeyColumns) == 0 {
		return result.fail("CDC strategy requires key columns")
	}

	exists, err := s.engine.TableExists(ctx, targetTable)
	if err != nil {
		return result.fail("CDC strategy failed: " + err.Error())
	}
	if exists {
		backup := fmt.Sprintf("%s_rollback_%d", targetTable, s.now().UnixMilli())
		backupSQL := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s", backup, targetTable)
		if _, err := s.engine.ExecuteQuery(ctx, backupSQL); err != nil {
			return result.fail("CDC strategy failed: " + err.Error())
		}
		result.RollbackPoint = backup
		result.RollbackMetadata["backup_table"] = backup
	}

	keyMatch := keyJoinCondition(targetTable, "src", source.KeyColumns)
	deleteFlag := quoteIdent(source.DeleteColumn)

	deleteSQL := fmt.Sprintf(
		"DELETE FROM %s WHERE EXISTS (SELECT 1 FROM (%s) AS src WHERE %s AND src.%s = true)",
		targetTable, source.SourceQuery, keyMatch, deleteFlag)
	res, err := s.engine.ExecuteQuery(ctx, deleteSQL)
	if err != nil {
		return result.fail("CDC strategy failed: " + err.Error())
	}
	result.RowsDeleted = res.RowsAffected

	schema, err := s.engine.GetTableSchema(ctx, targetTable)
	if err != nil {
		return result.fail("CDC strategy failed: " + err.Error())
	}
	if updateSQL := s.buildUpdate(schema, source, targetTable, keyMatch, deleteFlag); updateSQL != "" {
		res, err = s.engine.ExecuteQuery(ctx, updateSQL)
		if err != nil {
			return result.fail("CDC strategy failed: " + err.Error())
		}
		result.RowsUpdated = res.RowsAffected
	}

	insertSQL := fmt.Sprintf(
		"INSERT INTO %s SELECT * EXCLUDE (%s) FROM (%s) AS src WHERE src.%s != true AND NOT EXISTS (SELECT 1 FROM %s WHERE %s)",
		targetTable, deleteFlag, source.SourceQuery, deleteFlag, targetTable, keyMatch)
	res, err = s.engine.ExecuteQuery(ctx, insertSQL)
	if err != nil {
		return result.fail("CDC strategy failed: " + err.Error())
	}
	result.RowsInserted = res.RowsAffected

	return result
}

func (s *CDCStrategy) buildUpdate(schema *adapter.TableSchema, source DataSource, targetTable, keyMatch, deleteFlag string) string {
	keys := make(map[string]bool, len(source.KeyColumns))
	for _, k := range source.KeyColumns {
		keys[k] = true
	}

	var assignments string
	for _, col := range schema.Columns {
		if keys[col.Name] || col.Name == source.DeleteColumn {
			continue
		}
		if assignments != "" {
			assignments += ", "
		}
		assignments += fmt.Sprintf("%s = src.%s", quoteIdent(col.Name), quoteIdent(col.Name))
	}
	if assignments == "" {
		return ""
	}

	return fmt.Sprintf("UPDATE %s SET %s FROM (%s) AS src WHERE %s AND src.%s != true",
		targetTable, assignments, source.SourceQuery, keyMatch, deleteFlag)
}

// EstimatePerformance implements Strategy. Mixed insert, update, and
// delete traffic is the heaviest I/O pattern.
func (s *CDCStrategy) EstimatePerformance(p LoadPattern) PerformanceEstimate {
	return estimate(StrategyCDC, p.RowCountEstimate, cdcMSPerRow, "high", "mixed_operations")
}

var _ Strategy = (*CDCStrategy)(nil)
