// Package planner converts a parsed pipeline AST into a flat,
// JSON-serializable execution plan with dependency edges.
package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/giaosudau/sqlflow/internal/parser"
)

// Operation type tags.
const (
	OpSourceDefinition = "source_definition"
	OpLoad             = "load"
	OpSQLBlock         = "sql_block"
	OpExport           = "export"
	OpSet              = "set"
	OpInclude          = "include"
)

// Operation is one planned unit of work. IDs are unique within a plan and
// every depends_on entry resolves to another operation's id.
type Operation struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	DependsOn []string `json:"depends_on"`

	// Type-specific fields
	Name                string         `json:"name,omitempty"`
	SourceConnectorType string         `json:"source_connector_type,omitempty"`
	Params              map[string]any `json:"params,omitempty"`
	TableName           string         `json:"table_name,omitempty"`
	SourceName          string         `json:"source_name,omitempty"`
	Query               string         `json:"query,omitempty"`
	DestinationURI      string         `json:"destination_uri,omitempty"`
	Options             map[string]any `json:"options,omitempty"`
	Variable            string         `json:"variable,omitempty"`
	Value               string         `json:"value,omitempty"`
	FilePath            string         `json:"file_path,omitempty"`
	Alias               string         `json:"alias,omitempty"`
	LineNumber          int            `json:"line_number,omitempty"`
}

// Metadata describes the compiled plan document.
type Metadata struct {
	Name            string    `json:"name"`
	CompiledAt      time.Time `json:"compiled_at"`
	CompilerVersion string    `json:"compiler_version"`
}

// Plan is the external plan document consumed by the executor and written
// by `sqlflow pipeline compile`.
type Plan struct {
	PipelineMetadata Metadata            `json:"pipeline_metadata"`
	Operations       []*Operation        `json:"operations"`
	ExecutionGraph   map[string][]string `json:"execution_graph"`
}

// Planner builds execution plans from pipeline ASTs.
type Planner struct {
	version string
}

// NewPlanner creates a Planner stamping plans with the given compiler
// version.
func NewPlanner(version string) *Planner {
	return &Planner{version: version}
}

// CreatePlan walks AST steps in file order, emitting one operation per
// step, then infers dependency edges in a second pass. Conditional blocks
// are evaluated against the supplied variables and the first truthy
// branch's steps are spliced in. Variable placeholders elsewhere are left
// unresolved for a later substitution pass.
func (p *Planner) CreatePlan(pipeline *parser.Pipeline, variables map[string]string) ([]*Operation, error) {
	flat, err := flattenSteps(pipeline.Steps, variables)
	if err != nil {
		return nil, err
	}

	ops := make([]*Operation, 0, len(flat))
	used := make(map[string]bool)
	for _, step := range flat {
		op := operationFor(step)
		op.ID = uniqueID(op.ID, used)
		ops = append(ops, op)
	}

	inferDependencies(ops)
	return ops, nil
}

// CreatePlanDocument builds the full plan document for a named pipeline.
func (p *Planner) CreatePlanDocument(name string, pipeline *parser.Pipeline, variables map[string]string) (*Plan, error) {
	ops, err := p.CreatePlan(pipeline, variables)
	if err != nil {
		return nil, err
	}

	graph := make(map[string][]string, len(ops))
	for _, op := range ops {
		deps := op.DependsOn
		if deps == nil {
			deps = []string{}
		}
		graph[op.ID] = deps
	}

	return &Plan{
		PipelineMetadata: Metadata{
			Name:            name,
			CompiledAt:      time.Now().UTC(),
			CompilerVersion: p.version,
		},
		Operations:     ops,
		ExecutionGraph: graph,
	}, nil
}

// flattenSteps resolves conditional blocks into their selected branch and
// returns the linear step list. SET steps inside chosen branches extend
// the environment for later conditions.
func flattenSteps(steps []parser.Step, variables map[string]string) ([]parser.Step, error) {
	env := make(map[string]string, len(variables))
	for k, v := range variables {
		env[k] = v
	}

	var flat []parser.Step
	var walk func(steps []parser.Step) error
	walk = func(steps []parser.Step) error {
		for _, step := range steps {
			switch s := step.(type) {
			case *parser.ConditionalBlockStep:
				branch, err := selectBranch(s, env)
				if err != nil {
					return err
				}
				if err := walk(branch); err != nil {
					return err
				}
			case *parser.SetStep:
				env[s.VariableName] = UnquoteValue(Substitute(s.VariableValue, env))
				flat = append(flat, step)
			default:
				flat = append(flat, step)
			}
		}
		return nil
	}

	if err := walk(steps); err != nil {
		return nil, err
	}
	return flat, nil
}

// selectBranch evaluates branch conditions in order and returns the first
// truthy branch's steps, or the else steps when none match.
func selectBranch(block *parser.ConditionalBlockStep, env map[string]string) ([]parser.Step, error) {
	for _, branch := range block.Branches {
		truthy, err := EvalCondition(Substitute(branch.Condition, env))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid condition %q: %w", branch.LineNumber, branch.Condition, err)
		}
		if truthy {
			return branch.Steps, nil
		}
	}
	return block.ElseSteps, nil
}

// operationFor maps one AST step to its operation. The type switch is
// exhaustive over the step variants; a new step kind fails loudly here.
func operationFor(step parser.Step) *Operation {
	switch s := step.(type) {
	case *parser.SourceStep:
		return &Operation{
			ID:                  "source_" + s.Name,
			Type:                OpSourceDefinition,
			Name:                s.Name,
			SourceConnectorType: s.ConnectorType,
			Params:              s.Params,
			LineNumber:          s.LineNumber,
		}
	case *parser.LoadStep:
		return &Operation{
			ID:         "load_" + s.TableName,
			Type:       OpLoad,
			TableName:  s.TableName,
			SourceName: s.SourceName,
			LineNumber: s.LineNumber,
		}
	case *parser.SQLBlockStep:
		return &Operation{
			ID:         "table_" + s.TableName,
			Type:       OpSQLBlock,
			TableName:  s.TableName,
			Query:      s.SQLQuery,
			LineNumber: s.LineNumber,
		}
	case *parser.ExportStep:
		return &Operation{
			ID:                  "export_" + sanitizeID(s.DestinationURI),
			Type:                OpExport,
			Query:               s.SQLQuery,
			DestinationURI:      s.DestinationURI,
			SourceConnectorType: s.ConnectorType,
			Options:             s.Options,
			LineNumber:          s.LineNumber,
		}
	case *parser.SetStep:
		return &Operation{
			ID:         "set_" + s.VariableName,
			Type:       OpSet,
			Variable:   s.VariableName,
			Value:      s.VariableValue,
			LineNumber: s.LineNumber,
		}
	case *parser.IncludeStep:
		return &Operation{
			ID:         "include_" + s.Alias,
			Type:       OpInclude,
			FilePath:   s.FilePath,
			Alias:      s.Alias,
			LineNumber: s.LineNumber,
		}
	default:
		panic(fmt.Sprintf("planner: unhandled step type %T", step))
	}
}

// inferDependencies applies the two-pass edge rules: a load depends on the
// source it names; a sql_block or export depends on every load/sql_block
// whose table name appears in its SQL text.
//
// The table match is a plain substring test, not a SQL parse. It can
// over-match on colliding names (table "user" inside "users") and cannot
// see through aliases or CTEs; a tokenizing matcher is a known, deliberate
// non-goal.
func inferDependencies(ops []*Operation) {
	sourceIDs := make(map[string]string)
	for _, op := range ops {
		if op.Type == OpSourceDefinition {
			sourceIDs[op.Name] = op.ID
		}
	}

	type producer struct {
		table string
		id    string
	}
	var producers []producer
	for _, op := range ops {
		if op.Type == OpLoad || op.Type == OpSQLBlock {
			producers = append(producers, producer{table: op.TableName, id: op.ID})
		}
	}

	for _, op := range ops {
		switch op.Type {
		case OpLoad:
			if id, ok := sourceIDs[op.SourceName]; ok {
				op.DependsOn = appendUnique(op.DependsOn, id)
			}
		case OpSQLBlock, OpExport:
			for _, prod := range producers {
				if prod.id == op.ID {
					continue
				}
				if strings.Contains(op.Query, prod.table) {
					op.DependsOn = appendUnique(op.DependsOn, prod.id)
				}
			}
		}
	}
}

func appendUnique(list []string, id string) []string {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}

func uniqueID(id string, used map[string]bool) string {
	if !used[id] {
		used[id] = true
		return id
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", id, i)
		if !used[candidate] {
			used[candidate] = true
			return candidate
		}
	}
}

// sanitizeID turns arbitrary strings (URIs) into plan-id-safe text.
func sanitizeID(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
