package incremental

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/giaosudau/sqlflow/internal/adapter"
)

// AppendStrategy inserts new rows only, bounded by a time-column
// watermark when one is declared. Suited to mostly-insert workloads.
type AppendStrategy struct {
	engine     adapter.Engine
	watermarks WatermarkManager
}

// NewAppendStrategy creates an append strategy backed by the given
// engine and watermark store.
func NewAppendStrategy(engine adapter.Engine, watermarks WatermarkManager) *AppendStrategy {
	return &AppendStrategy{engine: engine, watermarks: watermarks}
}

// Name implements Strategy.
func (s *AppendStrategy) Name() LoadStrategy { return StrategyAppend }

// CanHandle accepts mostly-insert patterns.
func (s *AppendStrategy) CanHandle(p LoadPattern) bool {
	return p.InsertRate >= appendMinInsertRate &&
		p.UpdateRate <= appendMaxUpdateRate &&
		p.DeleteRate <= appendMaxDeleteRate
}

// Execute inserts rows from the source query, filtered past the stored
// watermark when a time column exists, then advances the watermark to
// the max observed value. Partial-commit protection is the engine's
// transaction semantics, not reimplemented here.
func (s *AppendStrategy) Execute(ctx context.Context, source DataSource, targetTable string) *LoadResult {
	result := NewLoadResult(StrategyAppend)

	query := source.SourceQuery
	if source.TimeColumn != "" {
		watermark, ok, err := s.watermarks.GetWatermark(ctx, targetTable, source.TimeColumn)
		if err != nil {
			return result.fail("Append strategy failed: " + err.Error())
		}
		if ok {
			query = applyIncrementalFilter(query, source.TimeColumn, watermark)
		}
	}

	insertSQL := fmt.Sprintf("INSERT INTO %s %s", targetTable, query)
	res, err := s.engine.ExecuteQuery(ctx, insertSQL)
	if err != nil {
		return result.fail("Append strategy failed: " + err.Error())
	}
	result.RowsInserted = res.RowsAffected

	if source.TimeColumn != "" {
		maxSQL := fmt.Sprintf("SELECT MAX(%s) FROM %s", quoteIdent(source.TimeColumn), targetTable)
		maxRes, err := s.engine.ExecuteQuery(ctx, maxSQL)
		if err != nil {
			return result.fail("Append strategy failed: " + err.Error())
		}
		if value := scalarString(maxRes); value != "" {
			if err := s.watermarks.SetWatermark(ctx, targetTable, source.TimeColumn, value); err != nil {
				return result.fail("Append strategy failed: " + err.Error())
			}
			result.WatermarkUpdated = value
		}
	}

	return result
}

// applyIncrementalFilter bounds a query past the watermark, joining with
// AND when the query already has a WHERE clause.
func applyIncrementalFilter(query, timeColumn, watermark string) string {
	condition := fmt.Sprintf("%s > '%s'", quoteIdent(timeColumn), watermark)
	if containsWordFold(query, "WHERE") {
		return query + " AND " + condition
	}
	return query + " WHERE " + condition
}

// containsWordFold reports whether the SQL text contains the keyword as
// a standalone word, case-insensitively.
func containsWordFold(text, word string) bool {
	upper := strings.ToUpper(text)
	word = strings.ToUpper(word)
	for i := 0; i+len(word) <= len(upper); i++ {
		if upper[i:i+len(word)] != word {
			continue
		}
		beforeOK := i == 0 || !isWordByte(upper[i-1])
		afterOK := i+len(word) == len(upper) || !isWordByte(upper[i+len(word)])
		if beforeOK && afterOK {
			return true
		}
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// scalarString renders the first cell of a result as a watermark value.
func scalarString(r *adapter.QueryResult) string {
	if len(r.Rows) == 0 || len(r.Rows[0]) == 0 || r.Rows[0][0] == nil {
		return ""
	}
	switch v := r.Rows[0][0].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// EstimatePerformance implements Strategy. Sequential inserts are the
// cheapest path.
func (s *AppendStrategy) EstimatePerformance(p LoadPattern) PerformanceEstimate {
	return estimate(StrategyAppend, p.RowCountEstimate, appendMSPerRow, "low", "sequential_write")
}

var _ Strategy = (*AppendStrategy)(nil)
