package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/giaosudau/sqlflow/internal/adapter"
	"github.com/giaosudau/sqlflow/internal/dag"
	"github.com/giaosudau/sqlflow/internal/incremental"
	"github.com/giaosudau/sqlflow/internal/planner"
	"github.com/giaosudau/sqlflow/internal/state"
)

// StepResult reports the execution outcome of one plan operation.
type StepResult struct {
	OperationID  string
	Type         string
	Status       state.StepStatus
	RowsAffected int64
	Duration     time.Duration
	Error        string
}

// RunResult reports the execution outcome of a whole pipeline run.
type RunResult struct {
	RunID    string
	Pipeline string
	Status   state.RunStatus
	Steps    []StepResult
	Duration time.Duration
}

// Failed returns the results of steps that did not succeed.
func (r *RunResult) Failed() []StepResult {
	var failed []StepResult
	for _, step := range r.Steps {
		if step.Status == state.StepStatusFailed {
			failed = append(failed, step)
		}
	}
	return failed
}

// exporter is satisfied by engines that can write query results to files.
type exporter interface {
	ExportQuery(ctx context.Context, query, destPath, format string, options map[string]any) error
}

// RunFile compiles a pipeline file and executes the resulting plan.
func (e *Engine) RunFile(ctx context.Context, path string) (*RunResult, error) {
	plan, err := e.CompileFile(path)
	if err != nil {
		return nil, err
	}
	return e.RunPlan(ctx, plan)
}

// RunPlan executes a compiled plan in two phases: every operation is
// validated first, then executed in dependency order. A failing operation
// marks its transitive dependents skipped; independent branches keep
// running.
func (e *Engine) RunPlan(ctx context.Context, plan *planner.Plan) (*RunResult, error) {
	order, err := executionOrder(plan)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*planner.Operation, len(plan.Operations))
	for _, op := range plan.Operations {
		byID[op.ID] = op
	}

	// Phase one: structural validation of every operation before any
	// engine work happens.
	if errs := e.validatePlan(plan, byID); len(errs) > 0 {
		return nil, fmt.Errorf("plan validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	if err := e.connect(ctx); err != nil {
		return nil, err
	}

	result := &RunResult{Pipeline: plan.PipelineMetadata.Name}
	if e.store != nil {
		run, err := e.store.CreateRun(plan.PipelineMetadata.Name, e.profile)
		if err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
		result.RunID = run.ID
	}

	started := time.Now()
	rc := &runContext{
		variables: cloneVariables(e.variables),
		sources:   make(map[string]*planner.Operation),
	}
	failed := make(map[string]bool)

	for _, id := range order {
		op, ok := byID[id]
		if !ok {
			// Graph node without an operation body, nothing to execute.
			continue
		}

		if dep := failedDependency(op, failed); dep != "" {
			e.logger.Warn("skipping operation",
				"operation", op.ID, "failed_dependency", dep)
			failed[op.ID] = true
			result.Steps = append(result.Steps, e.recordStep(result.RunID, StepResult{
				OperationID: op.ID,
				Type:        op.Type,
				Status:      state.StepStatusSkipped,
				Error:       fmt.Sprintf("dependency %s failed", dep),
			}))
			continue
		}

		stepStart := time.Now()
		rows, execErr := e.executeOperation(ctx, op, rc)
		step := StepResult{
			OperationID:  op.ID,
			Type:         op.Type,
			Status:       state.StepStatusSuccess,
			RowsAffected: rows,
			Duration:     time.Since(stepStart),
		}
		if execErr != nil {
			failed[op.ID] = true
			step.Status = state.StepStatusFailed
			step.Error = execErr.Error()
			e.logger.Error("operation failed",
				"operation", op.ID, "type", op.Type, "error", execErr)
		} else {
			e.logger.Info("operation completed",
				"operation", op.ID, "type", op.Type,
				"rows", rows, "duration", step.Duration)
		}
		result.Steps = append(result.Steps, e.recordStep(result.RunID, step))
	}

	result.Duration = time.Since(started)
	result.Status = state.RunStatusCompleted
	var runErr string
	if len(failed) > 0 {
		result.Status = state.RunStatusFailed
		runErr = fmt.Sprintf("%d of %d operations failed or were skipped",
			len(failed), len(order))
	}

	if e.store != nil {
		if err := e.store.CompleteRun(result.RunID, result.Status, runErr); err != nil {
			e.logger.Error("failed to record run completion",
				"run", result.RunID, "error", err)
		}
	}

	e.logger.Info("run finished",
		"pipeline", result.Pipeline, "status", result.Status,
		"steps", len(result.Steps), "duration", result.Duration)
	return result, nil
}

// runContext carries mutable per-run state through operation dispatch.
type runContext struct {
	variables map[string]string
	sources   map[string]*planner.Operation
}

// executionOrder turns the plan's execution graph into a topological
// order, preserving plan order for independent operations.
func executionOrder(plan *planner.Plan) ([]string, error) {
	resolver := dag.NewResolver()
	for _, op := range plan.Operations {
		resolver.AddNode(op.ID)
	}
	for _, op := range plan.Operations {
		for _, dep := range plan.ExecutionGraph[op.ID] {
			resolver.AddDependency(op.ID, dep)
		}
	}
	return resolver.ResolveAll()
}

func (e *Engine) validatePlan(plan *planner.Plan, byID map[string]*planner.Operation) []string {
	var errs []string
	// SET operations bind variables in plan order, so later operations
	// validate against the environment they will actually see.
	env := cloneVariables(e.variables)
	for _, op := range plan.Operations {
		if op.Type == planner.OpSet {
			env[op.Variable] = planner.UnquoteValue(planner.Substitute(op.Value, env))
		}
		for _, dep := range op.DependsOn {
			if _, ok := byID[dep]; !ok {
				errs = append(errs, fmt.Sprintf("%s: depends on unknown operation %q", op.ID, dep))
			}
		}
		for _, name := range planner.UnresolvedVariables(op.Query, env) {
			errs = append(errs, fmt.Sprintf("%s: unresolved variable ${%s}", op.ID, name))
		}
		switch op.Type {
		case planner.OpSourceDefinition:
			if len(op.Params) == 0 {
				errs = append(errs, fmt.Sprintf("%s: source %q has no params", op.ID, op.Name))
			}
		case planner.OpLoad:
			if op.SourceName == "" {
				errs = append(errs, fmt.Sprintf("%s: load has no source", op.ID))
			}
		case planner.OpExport:
			if op.DestinationURI == "" {
				errs = append(errs, fmt.Sprintf("%s: export has no destination", op.ID))
			}
		}
	}
	return errs
}

func (e *Engine) executeOperation(ctx context.Context, op *planner.Operation, rc *runContext) (int64, error) {
	switch op.Type {
	case planner.OpSourceDefinition:
		return 0, e.executeSource(ctx, op, rc)
	case planner.OpLoad:
		return e.executeLoad(ctx, op, rc)
	case planner.OpSQLBlock:
		return e.executeSQLBlock(ctx, op, rc)
	case planner.OpExport:
		return 0, e.executeExport(ctx, op, rc)
	case planner.OpSet:
		rc.variables[op.Variable] = planner.UnquoteValue(planner.Substitute(op.Value, rc.variables))
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported operation type %q", op.Type)
	}
}

// executeSource registers file-backed sources with the storage engine and
// remembers every source definition for downstream loads.
func (e *Engine) executeSource(ctx context.Context, op *planner.Operation, rc *runContext) error {
	rc.sources[op.Name] = op

	format := strings.ToLower(op.SourceConnectorType)
	switch format {
	case "csv", "parquet", "json":
		path := paramString(op.Params, "path", rc.variables)
		if path == "" {
			return fmt.Errorf("source %q: %s params require a path", op.Name, format)
		}
		return e.db.RegisterTable(ctx, op.Name, path, format)
	default:
		// Database-backed sources are queried in place by their LOAD.
		return nil
	}
}

func (e *Engine) executeLoad(ctx context.Context, op *planner.Operation, rc *runContext) (int64, error) {
	src, ok := rc.sources[op.SourceName]
	if !ok {
		return 0, fmt.Errorf("load %q: unknown source %q", op.TableName, op.SourceName)
	}

	query := paramString(src.Params, "query", rc.variables)
	if query == "" {
		query = fmt.Sprintf("SELECT * FROM %s", op.SourceName)
	}

	source := incremental.DataSource{
		SourceQuery:  query,
		TableName:    op.SourceName,
		KeyColumns:   paramStrings(src.Params, "key_columns"),
		TimeColumn:   paramString(src.Params, "time_column", rc.variables),
		DeleteColumn: paramString(src.Params, "delete_column", rc.variables),
		Parameters:   src.Params,
	}

	result := e.loads.ExecuteIncrementalLoad(ctx, source, op.TableName)
	if !result.Success() {
		return 0, fmt.Errorf("load %q failed: %s",
			op.TableName, strings.Join(result.ValidationErrors, "; "))
	}
	return result.TotalRowsAffected(), nil
}

func (e *Engine) executeSQLBlock(ctx context.Context, op *planner.Operation, rc *runContext) (int64, error) {
	query := planner.Substitute(op.Query, rc.variables)
	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS %s", op.TableName, query)
	res, err := e.db.ExecuteQuery(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("table %q: %w", op.TableName, err)
	}
	return res.RowsAffected, nil
}

func (e *Engine) executeExport(ctx context.Context, op *planner.Operation, rc *runContext) error {
	exp, ok := e.db.(exporter)
	if !ok {
		return fmt.Errorf("target engine %s does not support EXPORT", e.db.DialectName())
	}

	query := planner.Substitute(op.Query, rc.variables)
	dest := planner.Substitute(op.DestinationURI, rc.variables)
	format := paramString(op.Options, "type", rc.variables)
	if format == "" {
		format = formatFromPath(dest)
	}
	return exp.ExportQuery(ctx, query, dest, format, op.Options)
}

func (e *Engine) recordStep(runID string, step StepResult) StepResult {
	if e.store == nil || runID == "" {
		return step
	}
	err := e.store.RecordStep(&state.StepRun{
		RunID:        runID,
		OperationID:  step.OperationID,
		Type:         step.Type,
		Status:       step.Status,
		RowsAffected: step.RowsAffected,
		DurationMS:   step.Duration.Milliseconds(),
		Error:        step.Error,
	})
	if err != nil {
		e.logger.Error("failed to record step",
			"run", runID, "operation", step.OperationID, "error", err)
	}
	return step
}

func failedDependency(op *planner.Operation, failed map[string]bool) string {
	for _, dep := range op.DependsOn {
		if failed[dep] {
			return dep
		}
	}
	return ""
}

func cloneVariables(vars map[string]string) map[string]string {
	clone := make(map[string]string, len(vars))
	for k, v := range vars {
		clone[k] = v
	}
	return clone
}

func paramString(params map[string]any, key string, vars map[string]string) string {
	if params == nil {
		return ""
	}
	value, ok := params[key].(string)
	if !ok {
		return ""
	}
	return planner.Substitute(value, vars)
}

func paramStrings(params map[string]any, key string) []string {
	if params == nil {
		return nil
	}
	var out []string
	switch v := params[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = v
	case string:
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func formatFromPath(path string) string {
	switch {
	case strings.HasSuffix(path, ".parquet"):
		return "parquet"
	case strings.HasSuffix(path, ".json"), strings.HasSuffix(path, ".ndjson"):
		return "json"
	default:
		return "csv"
	}
}

var _ exporter = (*adapter.DuckDBEngine)(nil)
