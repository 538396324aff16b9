package incremental

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giaosudau/sqlflow/internal/adapter"
)

func TestApplyIncrementalFilter(t *testing.T) {
	t.Run("no existing where", func(t *testing.T) {
		got := applyIncrementalFilter("SELECT * FROM staging", "updated_at", "2024-01-01T00:00:00Z")
		assert.Equal(t, `SELECT * FROM staging WHERE "updated_at" > '2024-01-01T00:00:00Z'`, got)
	})

	t.Run("existing where gets AND", func(t *testing.T) {
		got := applyIncrementalFilter("SELECT * FROM staging WHERE active = true", "updated_at", "2024-01-01T00:00:00Z")
		assert.Equal(t, `SELECT * FROM staging WHERE active = true AND "updated_at" > '2024-01-01T00:00:00Z'`, got)
	})

	t.Run("where inside identifier does not count", func(t *testing.T) {
		got := applyIncrementalFilter("SELECT * FROM wherehouse", "ts", "w1")
		assert.Contains(t, got, " WHERE ")
		assert.NotContains(t, got, " AND ")
	})
}

func TestAppendExecute_NoWatermark(t *testing.T) {
	engine := newFakeEngine()
	engine.results["INSERT INTO events"] = &adapter.QueryResult{RowsAffected: 12}
	engine.results["SELECT MAX"] = &adapter.QueryResult{
		Columns: []string{"max"},
		Rows:    [][]any{{"2024-06-01T12:00:00Z"}},
	}
	wm := NewMemoryWatermarkManager()
	s := NewAppendStrategy(engine, wm)

	source := DataSource{SourceQuery: "SELECT * FROM staging_events", TimeColumn: "created_at"}
	result := s.Execute(context.Background(), source, "events")

	require.True(t, result.Success(), "errors: %v", result.ValidationErrors)
	assert.Equal(t, int64(12), result.RowsInserted)
	assert.Equal(t, "2024-06-01T12:00:00Z", result.WatermarkUpdated)

	// First call had no stored watermark, so no filter.
	assert.NotContains(t, engine.executed[0], "WHERE")

	stored, ok, err := wm.GetWatermark(context.Background(), "events", "created_at")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-06-01T12:00:00Z", stored)
}

func TestAppendExecute_FiltersPastWatermark(t *testing.T) {
	engine := newFakeEngine()
	engine.results["SELECT MAX"] = &adapter.QueryResult{Rows: [][]any{{"2024-06-02T00:00:00Z"}}}
	wm := NewMemoryWatermarkManager()
	require.NoError(t, wm.SetWatermark(context.Background(), "events", "created_at", "2024-06-01T00:00:00Z"))
	s := NewAppendStrategy(engine, wm)

	source := DataSource{SourceQuery: "SELECT * FROM staging_events", TimeColumn: "created_at"}
	result := s.Execute(context.Background(), source, "events")

	require.True(t, result.Success())
	assert.Contains(t, engine.executed[0], `"created_at" > '2024-06-01T00:00:00Z'`)
	assert.Equal(t, "2024-06-02T00:00:00Z", result.WatermarkUpdated)
}

func TestAppendExecute_EngineErrorBecomesValidationError(t *testing.T) {
	engine := newFakeEngine()
	engine.errors["INSERT INTO"] = fmt.Errorf("constraint violation")
	s := NewAppendStrategy(engine, NewMemoryWatermarkManager())

	result := s.Execute(context.Background(), DataSource{SourceQuery: "SELECT 1"}, "events")

	assert.False(t, result.Success())
	require.Len(t, result.ValidationErrors, 1)
	assert.Contains(t, result.ValidationErrors[0], "Append strategy failed")
	assert.Contains(t, result.ValidationErrors[0], "constraint violation")
}

func TestAppendCanHandle(t *testing.T) {
	s := NewAppendStrategy(newFakeEngine(), nil)

	assert.True(t, s.CanHandle(LoadPattern{InsertRate: 0.8, UpdateRate: 0.1, DeleteRate: 0.1}))
	assert.True(t, s.CanHandle(LoadPattern{InsertRate: 1.0}))
	assert.False(t, s.CanHandle(LoadPattern{InsertRate: 0.79, UpdateRate: 0.05}))
	assert.False(t, s.CanHandle(LoadPattern{InsertRate: 0.9, UpdateRate: 0.2}))
	assert.False(t, s.CanHandle(LoadPattern{InsertRate: 0.9, DeleteRate: 0.2}))
}

func TestScalarString(t *testing.T) {
	assert.Equal(t, "", scalarString(&adapter.QueryResult{}))
	assert.Equal(t, "", scalarString(&adapter.QueryResult{Rows: [][]any{{nil}}}))
	assert.Equal(t, "abc", scalarString(&adapter.QueryResult{Rows: [][]any{{"abc"}}}))
	assert.Equal(t, "42", scalarString(&adapter.QueryResult{Rows: [][]any{{int64(42)}}}))
}
