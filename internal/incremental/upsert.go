package incremental

import (
	"context"
	"fmt"
	"strings"

	"github.com/giaosudau/sqlflow/internal/adapter"
)

// UpsertStrategy inserts new rows and updates existing ones, matched on
// declared key columns. The conflict resolution policy is explicit per
// strategy instance, never implicit.
type UpsertStrategy struct {
	engine     adapter.Engine
	resolution ConflictResolution
}

// NewUpsertStrategy creates an upsert strategy with the given conflict
// resolution policy.
func NewUpsertStrategy(engine adapter.Engine, resolution ConflictResolution) *UpsertStrategy {
	return &UpsertStrategy{engine: engine, resolution: resolution}
}

// Name implements Strategy.
func (s *UpsertStrategy) Name() LoadStrategy { return StrategyUpsert }

// CanHandle requires a primary key and a meaningful update rate.
func (s *UpsertStrategy) CanHandle(p LoadPattern) bool {
	return p.HasPrimaryKey &&
		p.UpdateRate >= upsertMinUpdateRate &&
		p.InsertRate > 0
}

// Execute updates matching target rows per the conflict resolution
// policy, then inserts source rows with no key match. Key columns are
// validated before any SQL runs.
func (s *UpsertStrategy) Execute(ctx context.Context, source DataSource, targetTable string) *LoadResult {
	result := NewLoadResult(StrategyUpsert)

	if len(source.KeyColumns) == 0 {
		return result.fail("Upsert strategy requires key columns")
	}
	if s.resolution == LatestWins && source.TimeColumn == "" {
		return result.fail("Upsert strategy with latest-wins requires a time column")
	}

	schema, err := s.engine.GetTableSchema(ctx, targetTable)
	if err != nil {
		return result.fail("Upsert strategy failed: " + err.Error())
	}
	if errs := adapter.ValidateUpsertKeys(schema, source.KeyColumns); len(errs) > 0 {
		result.ValidationErrors = append(result.ValidationErrors, errs...)
		return result
	}

	keyMatch := keyJoinCondition(targetTable, "src", source.KeyColumns)

	updateSQL := s.buildUpdate(schema, source, targetTable, keyMatch)
	if updateSQL != "" {
		res, err := s.engine.ExecuteQuery(ctx, updateSQL)
		if err != nil {
			return result.fail("Upsert strategy failed: " + err.Error())
		}
		result.RowsUpdated = res.RowsAffected
	}

	insertSQL := fmt.Sprintf(
		"INSERT INTO %s SELECT * FROM (%s) AS src WHERE NOT EXISTS (SELECT 1 FROM %s WHERE %s)",
		targetTable, source.SourceQuery, targetTable, keyMatch)
	res, err := s.engine.ExecuteQuery(ctx, insertSQL)
	if err != nil {
		return result.fail("Upsert strategy failed: " + err.Error())
	}
	result.RowsInserted = res.RowsAffected

	return result
}

// buildUpdate generates the UPDATE ... FROM statement overwriting
// non-key columns. Returns empty when the target has no non-key columns
// to update.
func (s *UpsertStrategy) buildUpdate(schema *adapter.TableSchema, source DataSource, targetTable, keyMatch string) string {
	keys := make(map[string]bool, len(source.KeyColumns))
	for _, k := range source.KeyColumns {
		keys[k] = true
	}

	var assignments []string
	for _, col := range schema.Columns {
		if keys[col.Name] {
			continue
		}
		assignments = append(assignments,
			fmt.Sprintf("%s = src.%s", quoteIdent(col.Name), quoteIdent(col.Name)))
	}
	if len(assignments) == 0 {
		return ""
	}

	stmt := fmt.Sprintf("UPDATE %s SET %s FROM (%s) AS src WHERE %s",
		targetTable, strings.Join(assignments, ", "), source.SourceQuery, keyMatch)
	if s.resolution == LatestWins {
		stmt += fmt.Sprintf(" AND src.%s >= %s.%s",
			quoteIdent(source.TimeColumn), targetTable, quoteIdent(source.TimeColumn))
	}
	return stmt
}

// keyJoinCondition renders the key-column equality join between the
// target table and a source alias.
func keyJoinCondition(target, alias string, keys []string) string {
	conditions := make([]string, len(keys))
	for i, key := range keys {
		conditions[i] = fmt.Sprintf("%s.%s = %s.%s", target, quoteIdent(key), alias, quoteIdent(key))
	}
	return strings.Join(conditions, " AND ")
}

// EstimatePerformance implements Strategy. Key matching makes access
// random rather than sequential.
func (s *UpsertStrategy) EstimatePerformance(p LoadPattern) PerformanceEstimate {
	return estimate(StrategyUpsert, p.RowCountEstimate, upsertMSPerRow, "medium", "random_access")
}

var _ Strategy = (*UpsertStrategy)(nil)
