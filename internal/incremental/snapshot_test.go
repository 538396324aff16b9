package incremental

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giaosudau/sqlflow/internal/adapter"
)

func fixedClock() time.Time {
	return time.UnixMilli(1700000000000)
}

func TestSnapshotExecute_BacksUpExistingTable(t *testing.T) {
	engine := newFakeEngine()
	engine.exists = true
	engine.results["SELECT COUNT"] = &adapter.QueryResult{Rows: [][]any{{int64(250)}}}
	s := NewSnapshotStrategy(engine)
	s.now = fixedClock

	result := s.Execute(context.Background(),
		DataSource{SourceQuery: "SELECT * FROM staging_dims"}, "dims")

	require.True(t, result.Success(), "errors: %v", result.ValidationErrors)
	assert.Equal(t, "dims_rollback_1700000000000", result.RollbackPoint)
	assert.Equal(t, "dims_rollback_1700000000000", result.RollbackMetadata["backup_table"])
	assert.Equal(t, int64(250), result.RowsInserted)

	require.Len(t, engine.executed, 3)
	assert.Contains(t, engine.executed[0], "CREATE TABLE dims_rollback_1700000000000 AS SELECT * FROM dims")
	assert.Contains(t, engine.executed[1], "CREATE OR REPLACE TABLE dims AS SELECT * FROM staging_dims")
}

func TestSnapshotExecute_NewTableHasNoRollbackPoint(t *testing.T) {
	engine := newFakeEngine()
	engine.exists = false
	s := NewSnapshotStrategy(engine)

	result := s.Execute(context.Background(),
		DataSource{SourceQuery: "SELECT 1"}, "dims")

	require.True(t, result.Success())
	assert.Empty(t, result.RollbackPoint)
	for _, sql := range engine.executed {
		assert.NotContains(t, sql, "rollback", "no backup for a table that does not exist yet")
	}
}

func TestSnapshotExecute_ReplaceFailureReported(t *testing.T) {
	engine := newFakeEngine()
	engine.errors["CREATE OR REPLACE"] = fmt.Errorf("out of space")
	s := NewSnapshotStrategy(engine)

	result := s.Execute(context.Background(), DataSource{SourceQuery: "SELECT 1"}, "dims")

	assert.False(t, result.Success())
	assert.Contains(t, result.ValidationErrors[0], "Snapshot strategy failed")
}

func TestSnapshotCanHandle(t *testing.T) {
	s := NewSnapshotStrategy(newFakeEngine())

	assert.True(t, s.CanHandle(LoadPattern{RowCountEstimate: 1000, ChangeRate: 0.5}))
	assert.True(t, s.CanHandle(LoadPattern{RowCountEstimate: snapshotMaxRows, ChangeRate: 0.9}))
	assert.False(t, s.CanHandle(LoadPattern{RowCountEstimate: snapshotMaxRows + 1, ChangeRate: 0.9}), "too large")
	assert.False(t, s.CanHandle(LoadPattern{RowCountEstimate: 1000, ChangeRate: 0.4}), "too little churn")
	assert.False(t, s.CanHandle(LoadPattern{RowCountEstimate: 1000, ChangeRate: 0.9, RequiresExactHistory: true}))
}
