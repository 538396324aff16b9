package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/giaosudau/sqlflow/internal/parser"
	"github.com/giaosudau/sqlflow/internal/planner"
)

// CompileFile parses a .sf pipeline file, resolves its includes, and
// produces the execution plan document.
func (e *Engine) CompileFile(path string) (*planner.Plan, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	pipeline, err := e.loadPipeline(path, map[string]bool{})
	if err != nil {
		return nil, err
	}
	return e.compile(name, pipeline)
}

// Compile parses pipeline text directly. Includes are resolved relative
// to baseDir.
func (e *Engine) Compile(name, text, baseDir string) (*planner.Plan, error) {
	pipeline, err := parser.Parse(text)
	if err != nil {
		return nil, err
	}
	pipeline.Name = name

	steps, err := e.expandIncludes(pipeline.Steps, baseDir, map[string]bool{})
	if err != nil {
		return nil, err
	}
	pipeline.Steps = steps

	return e.compile(name, pipeline)
}

func (e *Engine) compile(name string, pipeline *parser.Pipeline) (*planner.Plan, error) {
	if errs := pipeline.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("pipeline validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	plan, err := e.planner.CreatePlanDocument(name, pipeline, e.variables)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("compiled pipeline",
		"name", name, "operations", len(plan.Operations))
	return plan, nil
}

// loadPipeline reads and parses one file, then splices in its includes.
// The visiting set carries absolute paths on the current include chain
// for cycle detection.
func (e *Engine) loadPipeline(path string, visiting map[string]bool) (*parser.Pipeline, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if visiting[abs] {
		return nil, fmt.Errorf("include cycle detected at %s", path)
	}
	visiting[abs] = true
	defer delete(visiting, abs)

	text, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline %s: %w", path, err)
	}

	pipeline, err := parser.Parse(string(text))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	pipeline.Name = strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))

	steps, err := e.expandIncludes(pipeline.Steps, filepath.Dir(abs), visiting)
	if err != nil {
		return nil, err
	}
	pipeline.Steps = steps

	return pipeline, nil
}

// expandIncludes replaces include steps with the included file's steps,
// namespaced under the include alias. Conditional branches are expanded
// recursively.
func (e *Engine) expandIncludes(steps []parser.Step, baseDir string, visiting map[string]bool) ([]parser.Step, error) {
	var out []parser.Step
	for _, step := range steps {
		switch s := step.(type) {
		case *parser.IncludeStep:
			includePath := s.FilePath
			if !filepath.IsAbs(includePath) {
				includePath = filepath.Join(baseDir, includePath)
			}
			included, err := e.loadPipeline(includePath, visiting)
			if err != nil {
				return nil, err
			}
			applyAlias(included.Steps, s.Alias)
			out = append(out, included.Steps...)
		case *parser.ConditionalBlockStep:
			for _, branch := range s.Branches {
				expanded, err := e.expandIncludes(branch.Steps, baseDir, visiting)
				if err != nil {
					return nil, err
				}
				branch.Steps = expanded
			}
			expanded, err := e.expandIncludes(s.ElseSteps, baseDir, visiting)
			if err != nil {
				return nil, err
			}
			s.ElseSteps = expanded
			out = append(out, s)
		default:
			out = append(out, step)
		}
	}
	return out, nil
}

// applyAlias namespaces every name an included pipeline declares with
// "alias_", and rewrites references to those names inside embedded SQL.
func applyAlias(steps []parser.Step, alias string) {
	if alias == "" {
		return
	}
	prefix := alias + "_"

	declared := collectDeclaredNames(steps)
	rename := make(map[string]string, len(declared))
	for _, name := range declared {
		rename[name] = prefix + name
	}

	var walk func(steps []parser.Step)
	walk = func(steps []parser.Step) {
		for _, step := range steps {
			switch s := step.(type) {
			case *parser.SourceStep:
				s.Name = renameTo(rename, s.Name)
			case *parser.LoadStep:
				s.TableName = renameTo(rename, s.TableName)
				s.SourceName = renameTo(rename, s.SourceName)
			case *parser.SQLBlockStep:
				s.TableName = renameTo(rename, s.TableName)
				s.SQLQuery = rewriteNames(s.SQLQuery, rename)
			case *parser.ExportStep:
				s.SQLQuery = rewriteNames(s.SQLQuery, rename)
			case *parser.SetStep:
				// Variables stay pipeline-scoped, not namespaced.
			case *parser.ConditionalBlockStep:
				for _, branch := range s.Branches {
					walk(branch.Steps)
				}
				walk(s.ElseSteps)
			}
		}
	}
	walk(steps)
}

func collectDeclaredNames(steps []parser.Step) []string {
	var names []string
	var walk func(steps []parser.Step)
	walk = func(steps []parser.Step) {
		for _, step := range steps {
			switch s := step.(type) {
			case *parser.SourceStep:
				names = append(names, s.Name)
			case *parser.LoadStep:
				names = append(names, s.TableName)
			case *parser.SQLBlockStep:
				names = append(names, s.TableName)
			case *parser.ConditionalBlockStep:
				for _, branch := range s.Branches {
					walk(branch.Steps)
				}
				walk(s.ElseSteps)
			}
		}
	}
	walk(steps)
	return names
}

func renameTo(rename map[string]string, name string) string {
	if renamed, ok := rename[name]; ok {
		return renamed
	}
	return name
}

// rewriteNames replaces whole-identifier occurrences of declared names
// in SQL text.
func rewriteNames(sql string, rename map[string]string) string {
	for old, renamed := range rename {
		pattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(old) + `\b`)
		sql = pattern.ReplaceAllString(sql, renamed)
	}
	return sql
}
