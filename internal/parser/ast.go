package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Step is a single pipeline statement. Implementations form a closed set;
// consumers dispatch with a type switch over the concrete step types.
type Step interface {
	// Validate returns human-readable errors for the step's own fields.
	// It is pure: no I/O and no cross-step knowledge.
	Validate() []string

	// StepLine returns the 1-based source line the step starts on.
	StepLine() int

	step() // sealed
}

// Pipeline is an ordered sequence of parsed steps.
type Pipeline struct {
	Name  string
	Steps []Step
}

// Validate aggregates all step errors, each prefixed with its 1-based
// step index.
func (p *Pipeline) Validate() []string {
	var errs []string
	for i, s := range p.Steps {
		for _, e := range s.Validate() {
			errs = append(errs, fmt.Sprintf("Step %d: %s", i+1, e))
		}
	}
	return errs
}

// SourceStep declares a named, typed, parameterized data source.
//
//	SOURCE name TYPE type PARAMS {json};
type SourceStep struct {
	Name          string
	ConnectorType string
	Params        map[string]any
	LineNumber    int
}

func (s *SourceStep) step()         {}
func (s *SourceStep) StepLine() int { return s.LineNumber }

// Validate implements Step.
func (s *SourceStep) Validate() []string {
	var errs []string
	if s.Name == "" {
		errs = append(errs, "SOURCE requires a name")
	}
	if s.ConnectorType == "" {
		errs = append(errs, "SOURCE requires a TYPE")
	}
	if s.Params == nil {
		errs = append(errs, "SOURCE requires PARAMS")
	}
	return errs
}

// LoadStep materializes a declared source into a table.
//
//	LOAD table FROM source;
type LoadStep struct {
	TableName  string
	SourceName string
	LineNumber int
}

func (s *LoadStep) step()         {}
func (s *LoadStep) StepLine() int { return s.LineNumber }

// Validate implements Step.
func (s *LoadStep) Validate() []string {
	var errs []string
	if s.TableName == "" {
		errs = append(errs, "LOAD requires a table name")
	}
	if s.SourceName == "" {
		errs = append(errs, "LOAD requires a source name")
	}
	return errs
}

// ExportStep writes a query's result to an external sink.
//
//	EXPORT SELECT ... TO "uri" TYPE type OPTIONS {json};
type ExportStep struct {
	SQLQuery       string
	DestinationURI string
	ConnectorType  string
	Options        map[string]any
	LineNumber     int
}

func (s *ExportStep) step()         {}
func (s *ExportStep) StepLine() int { return s.LineNumber }

// Validate implements Step.
func (s *ExportStep) Validate() []string {
	var errs []string
	if s.SQLQuery == "" {
		errs = append(errs, "EXPORT requires a query")
	}
	if s.DestinationURI == "" {
		errs = append(errs, "EXPORT requires a destination URI")
	}
	if s.ConnectorType == "" {
		errs = append(errs, "EXPORT requires a TYPE")
	}
	return errs
}

// IncludeStep imports another pipeline file under a namespace.
//
//	INCLUDE "path.sf" AS alias;
type IncludeStep struct {
	FilePath   string
	Alias      string
	LineNumber int
}

func (s *IncludeStep) step()         {}
func (s *IncludeStep) StepLine() int { return s.LineNumber }

// Validate implements Step.
func (s *IncludeStep) Validate() []string {
	var errs []string
	if s.FilePath == "" {
		errs = append(errs, "INCLUDE requires a file path")
	} else if ext := filepath.Ext(s.FilePath); ext != ".sf" {
		errs = append(errs, fmt.Sprintf("INCLUDE path must end in .sf, got %q", s.FilePath))
	}
	if s.Alias == "" {
		errs = append(errs, "INCLUDE requires an AS alias")
	}
	return errs
}

// SetStep declares a pipeline-scoped variable.
//
//	SET name = value;
type SetStep struct {
	VariableName  string
	VariableValue string
	LineNumber    int
}

func (s *SetStep) step()         {}
func (s *SetStep) StepLine() int { return s.LineNumber }

// Validate implements Step.
func (s *SetStep) Validate() []string {
	var errs []string
	if s.VariableName == "" {
		errs = append(errs, "SET requires a variable name")
	}
	if s.VariableValue == "" {
		errs = append(errs, "SET requires a value")
	}
	return errs
}

// SQLBlockStep is a CREATE TABLE ... AS SELECT materialization. The query
// text is opaque: the embedded SQL is reproduced verbatim, token-joined.
type SQLBlockStep struct {
	TableName  string
	SQLQuery   string
	LineNumber int
}

func (s *SQLBlockStep) step()         {}
func (s *SQLBlockStep) StepLine() int { return s.LineNumber }

// Validate implements Step.
func (s *SQLBlockStep) Validate() []string {
	var errs []string
	if s.TableName == "" {
		errs = append(errs, "CREATE TABLE requires a table name")
	}
	if s.SQLQuery == "" {
		errs = append(errs, "CREATE TABLE requires a SELECT query")
	}
	return errs
}

// ConditionalBranch is one IF/ELSEIF arm of a conditional block.
type ConditionalBranch struct {
	Condition  string
	Steps      []Step
	LineNumber int
}

// Validate returns errors for the branch and its nested steps.
func (b *ConditionalBranch) Validate() []string {
	var errs []string
	if strings.TrimSpace(b.Condition) == "" {
		errs = append(errs, "conditional branch requires a condition expression")
	}
	for _, s := range b.Steps {
		errs = append(errs, s.Validate()...)
	}
	return errs
}

// ConditionalBlockStep is an IF/ELSEIF/ELSE block. Branch conditions are
// opaque expression strings evaluated downstream against the variable
// environment, never at this layer.
type ConditionalBlockStep struct {
	Branches   []*ConditionalBranch
	ElseSteps  []Step
	LineNumber int
}

func (s *ConditionalBlockStep) step()         {}
func (s *ConditionalBlockStep) StepLine() int { return s.LineNumber }

// Validate implements Step.
func (s *ConditionalBlockStep) Validate() []string {
	var errs []string
	if len(s.Branches) == 0 {
		errs = append(errs, "conditional block requires at least one branch")
	}
	for _, b := range s.Branches {
		errs = append(errs, b.Validate()...)
	}
	for _, e := range s.ElseSteps {
		errs = append(errs, e.Validate()...)
	}
	return errs
}
