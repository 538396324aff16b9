package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giaosudau/sqlflow/internal/adapter"
	"github.com/giaosudau/sqlflow/internal/parser"
	"github.com/giaosudau/sqlflow/internal/state"
	"github.com/giaosudau/sqlflow/internal/testutil"
)

// recordingEngine is a scripted storage engine for executor tests. SQL
// statements are matched by substring; everything unmatched succeeds with
// an empty result.
type recordingEngine struct {
	executed   []string
	registered []string
	exported   []string
	failOn     string
	exists     map[string]bool
	schemas    map[string]*adapter.TableSchema
}

func newRecordingEngine() *recordingEngine {
	return &recordingEngine{
		exists:  map[string]bool{},
		schemas: map[string]*adapter.TableSchema{},
	}
}

func (f *recordingEngine) Connect(context.Context, adapter.Config) error { return nil }
func (f *recordingEngine) Close() error                                  { return nil }

func (f *recordingEngine) ExecuteQuery(_ context.Context, sql string) (*adapter.QueryResult, error) {
	f.executed = append(f.executed, sql)
	if f.failOn != "" && strings.Contains(sql, f.failOn) {
		return nil, fmt.Errorf("scripted failure")
	}
	if strings.Contains(sql, "MAX(") || strings.Contains(sql, "COUNT(") {
		return &adapter.QueryResult{Columns: []string{"v"}, Rows: [][]any{{int64(1)}}}, nil
	}
	return &adapter.QueryResult{RowsAffected: 1}, nil
}

func (f *recordingEngine) Query(context.Context, string) (*adapter.Rows, error) {
	return nil, fmt.Errorf("not supported")
}

func (f *recordingEngine) TableExists(_ context.Context, table string) (bool, error) {
	return f.exists[table], nil
}

func (f *recordingEngine) GetTableSchema(_ context.Context, table string) (*adapter.TableSchema, error) {
	if schema, ok := f.schemas[table]; ok {
		return schema, nil
	}
	return nil, fmt.Errorf("table not found: %s", table)
}

func (f *recordingEngine) RegisterTable(_ context.Context, tableName, filePath, format string) error {
	f.registered = append(f.registered, tableName+":"+format)
	return nil
}

func (f *recordingEngine) DialectName() string { return "recording" }

func (f *recordingEngine) ExportQuery(_ context.Context, query, destPath, format string, _ map[string]any) error {
	f.exported = append(f.exported, destPath+":"+format)
	return nil
}

func init() {
	adapter.Register("recording", func() adapter.Engine { return newRecordingEngine() })
}

func newTestEngine(t *testing.T, variables map[string]string) (*Engine, *recordingEngine) {
	t.Helper()
	eng, err := New(Config{
		AdapterConfig: adapter.Config{Type: "recording"},
		Variables:     variables,
		Logger:        testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng, eng.db.(*recordingEngine)
}

func writePipeline(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

const basicPipeline = `
SOURCE users_csv TYPE CSV PARAMS {
  "path": "data/users.csv"
};

LOAD users FROM users_csv;

CREATE TABLE active_users AS
SELECT * FROM users WHERE active = true;

EXPORT
SELECT * FROM active_users
TO "out/active.csv"
TYPE CSV;
`

func TestCompileFile(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	path := writePipeline(t, t.TempDir(), "basic.sf", basicPipeline)

	plan, err := eng.CompileFile(path)
	require.NoError(t, err)

	assert.Equal(t, "basic", plan.PipelineMetadata.Name)
	require.Len(t, plan.Operations, 4)
	assert.Equal(t, "source_users_csv", plan.Operations[0].ID)
	assert.Equal(t, []string{"source_users_csv"}, plan.ExecutionGraph["load_users"])
}

func TestCompileResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir, "common.sf", `
SOURCE events_csv TYPE CSV PARAMS {
  "path": "data/events.csv"
};

LOAD events FROM events_csv;
`)
	main := writePipeline(t, dir, "main.sf", `
INCLUDE "common.sf" AS shared;

CREATE TABLE daily AS
SELECT * FROM shared_events;
`)

	eng, _ := newTestEngine(t, nil)
	plan, err := eng.CompileFile(main)
	require.NoError(t, err)

	ids := make([]string, len(plan.Operations))
	for i, op := range plan.Operations {
		ids[i] = op.ID
	}
	assert.Equal(t, []string{"source_shared_events_csv", "load_shared_events", "table_daily"}, ids)
	assert.Contains(t, plan.ExecutionGraph["table_daily"], "load_shared_events")
}

func TestCompileDetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir, "a.sf", `INCLUDE "b.sf" AS b;`)
	path := writePipeline(t, dir, "b.sf", `INCLUDE "a.sf" AS a;`)

	eng, _ := newTestEngine(t, nil)
	_, err := eng.CompileFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include cycle")
}

func TestCompileRejectsInvalidPipeline(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	pipeline := &parser.Pipeline{
		Name:  "bad",
		Steps: []parser.Step{&parser.LoadStep{TableName: "users"}},
	}

	_, err := eng.compile("bad", pipeline)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, err.Error(), "Step 1")
}

func TestRunPlanExecutesInOrder(t *testing.T) {
	eng, db := newTestEngine(t, nil)
	path := writePipeline(t, t.TempDir(), "basic.sf", basicPipeline)

	result, err := eng.RunFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, state.RunStatusCompleted, result.Status)
	require.Len(t, result.Steps, 4)
	for _, step := range result.Steps {
		assert.Equal(t, state.StepStatusSuccess, step.Status, step.OperationID)
	}
	assert.Equal(t, []string{"users_csv:csv"}, db.registered)
	assert.Equal(t, []string{"out/active.csv:csv"}, db.exported)

	var sawCreate bool
	for _, sql := range db.executed {
		if strings.HasPrefix(sql, "CREATE OR REPLACE TABLE active_users AS") {
			sawCreate = true
		}
	}
	assert.True(t, sawCreate)
}

func TestRunPlanSkipsDependentsAfterFailure(t *testing.T) {
	eng, db := newTestEngine(t, nil)
	db.failOn = "INSERT INTO users"
	path := writePipeline(t, t.TempDir(), "basic.sf", basicPipeline)

	result, err := eng.RunFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, state.RunStatusFailed, result.Status)
	byID := map[string]StepResult{}
	for _, step := range result.Steps {
		byID[step.OperationID] = step
	}
	assert.Equal(t, state.StepStatusSuccess, byID["source_users_csv"].Status)
	assert.Equal(t, state.StepStatusFailed, byID["load_users"].Status)
	assert.Equal(t, state.StepStatusSkipped, byID["table_active_users"].Status)
	assert.Equal(t, state.StepStatusSkipped, byID["export_out_active_csv"].Status)
	assert.Empty(t, db.exported)
}

func TestRunPlanSubstitutesVariables(t *testing.T) {
	eng, db := newTestEngine(t, map[string]string{"env": "prod"})
	path := writePipeline(t, t.TempDir(), "vars.sf", `
SOURCE users_csv TYPE CSV PARAMS {
  "path": "data/${env}/users.csv"
};

CREATE TABLE report AS
SELECT '${env|dev}' AS env, '${region|us-east-1}' AS region;
`)

	result, err := eng.RunFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, state.RunStatusCompleted, result.Status)

	var sawSubstituted bool
	for _, sql := range db.executed {
		if strings.Contains(sql, "'prod' AS env") && strings.Contains(sql, "'us-east-1' AS region") {
			sawSubstituted = true
		}
	}
	assert.True(t, sawSubstituted)
}

func TestRunPlanRejectsUnresolvedVariables(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	path := writePipeline(t, t.TempDir(), "vars.sf", `
CREATE TABLE report AS
SELECT '${mandatory}' AS v;
`)

	plan, err := eng.CompileFile(path)
	require.NoError(t, err)

	_, err = eng.RunPlan(context.Background(), plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved variable ${mandatory}")
}

func TestRunPlanSetExtendsVariables(t *testing.T) {
	eng, db := newTestEngine(t, nil)
	path := writePipeline(t, t.TempDir(), "set.sf", `
SET schema_name = "analytics_${env|dev}";

CREATE TABLE report AS
SELECT '${schema_name}' AS target_schema;
`)

	result, err := eng.RunFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, state.RunStatusCompleted, result.Status)

	var sawValue bool
	for _, sql := range db.executed {
		if strings.Contains(sql, "'analytics_dev' AS target_schema") {
			sawValue = true
		}
	}
	assert.True(t, sawValue)
}

func TestUDFRegistry(t *testing.T) {
	registry := NewUDFRegistry()
	require.NoError(t, registry.Register("analytics.double", func(args ...any) (any, error) {
		return args[0].(int) * 2, nil
	}))

	value, err := registry.Call("analytics.double", 21)
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	_, err = registry.Call("analytics.missing")
	assert.ErrorContains(t, err, `unknown udf "analytics.missing"`)
	assert.Equal(t, []string{"analytics.double"}, registry.Names())
}
