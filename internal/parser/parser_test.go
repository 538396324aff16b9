package parser

import (
	"strings"
	"testing"
)

func TestParse_EndToEndPipeline(t *testing.T) {
	input := `SOURCE s TYPE CSV PARAMS {"path":"a.csv"};
LOAD t FROM s;
CREATE TABLE r AS SELECT * FROM t;`

	pipeline, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if len(pipeline.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(pipeline.Steps))
	}

	src, ok := pipeline.Steps[0].(*SourceStep)
	if !ok {
		t.Fatalf("step 0 is %T, want *SourceStep", pipeline.Steps[0])
	}
	if src.Name != "s" || src.ConnectorType != "CSV" {
		t.Errorf("source = %q type %q", src.Name, src.ConnectorType)
	}
	if src.Params["path"] != "a.csv" {
		t.Errorf("params path = %v", src.Params["path"])
	}
	if src.LineNumber != 1 {
		t.Errorf("source line = %d, want 1", src.LineNumber)
	}

	load, ok := pipeline.Steps[1].(*LoadStep)
	if !ok {
		t.Fatalf("step 1 is %T, want *LoadStep", pipeline.Steps[1])
	}
	if load.TableName != "t" || load.SourceName != "s" {
		t.Errorf("load = %q from %q", load.TableName, load.SourceName)
	}

	block, ok := pipeline.Steps[2].(*SQLBlockStep)
	if !ok {
		t.Fatalf("step 2 is %T, want *SQLBlockStep", pipeline.Steps[2])
	}
	if block.TableName != "r" {
		t.Errorf("block table = %q", block.TableName)
	}
	if block.SQLQuery != "SELECT * FROM t" {
		t.Errorf("block query = %q", block.SQLQuery)
	}
}

func TestParse_MalformedJSONInParams(t *testing.T) {
	input := `SOURCE s TYPE CSV PARAMS {invalid};`

	_, err := Parse(input)
	if err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
	perr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("error is %T, want *ParseError", err)
	}
	if !strings.Contains(perr.Message, "Invalid JSON in PARAMS") {
		t.Errorf("message = %q, want it to mention Invalid JSON in PARAMS", perr.Message)
	}
	// Position points at the PARAMS value token.
	if perr.Line != 1 || perr.Column != 26 {
		t.Errorf("error position = line %d col %d, want line 1 col 26", perr.Line, perr.Column)
	}
}

func TestParse_DotFormatting(t *testing.T) {
	input := `CREATE TABLE r AS SELECT t.id FROM t;`

	pipeline, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	block := pipeline.Steps[0].(*SQLBlockStep)
	if !strings.Contains(block.SQLQuery, "t.id") {
		t.Errorf("query %q must contain t.id", block.SQLQuery)
	}
	if strings.Contains(block.SQLQuery, "t . id") {
		t.Errorf("query %q must not contain t . id", block.SQLQuery)
	}
}

func TestParse_FunctionCallFormatting(t *testing.T) {
	input := `CREATE TABLE r AS SELECT count(x), a || b FROM t;`

	pipeline, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	block := pipeline.Steps[0].(*SQLBlockStep)
	if !strings.Contains(block.SQLQuery, "count(x)") {
		t.Errorf("query %q must keep count( unspaced", block.SQLQuery)
	}
	if !strings.Contains(block.SQLQuery, "a || b") {
		t.Errorf("query %q must keep single-space padding around ||", block.SQLQuery)
	}
}

func TestParse_ExportStatement(t *testing.T) {
	input := `EXPORT SELECT id FROM t TO "s3://bucket/out.csv" TYPE S3 OPTIONS {"format":"csv"};`

	pipeline, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	exp := pipeline.Steps[0].(*ExportStep)
	if exp.SQLQuery != "SELECT id FROM t" {
		t.Errorf("export query = %q", exp.SQLQuery)
	}
	if exp.DestinationURI != "s3://bucket/out.csv" {
		t.Errorf("destination = %q", exp.DestinationURI)
	}
	if exp.ConnectorType != "S3" {
		t.Errorf("connector = %q", exp.ConnectorType)
	}
	if exp.Options["format"] != "csv" {
		t.Errorf("options = %v", exp.Options)
	}
}

func TestParse_IncludeAndSet(t *testing.T) {
	input := `INCLUDE "shared/common.sf" AS common;
SET env = prod;
SET threshold = 42;`

	pipeline, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	inc := pipeline.Steps[0].(*IncludeStep)
	if inc.FilePath != "shared/common.sf" || inc.Alias != "common" {
		t.Errorf("include = %q as %q", inc.FilePath, inc.Alias)
	}

	set := pipeline.Steps[1].(*SetStep)
	if set.VariableName != "env" || set.VariableValue != "prod" {
		t.Errorf("set = %q = %q", set.VariableName, set.VariableValue)
	}

	set2 := pipeline.Steps[2].(*SetStep)
	if set2.VariableValue != "42" {
		t.Errorf("set threshold = %q", set2.VariableValue)
	}
}

func TestParse_ConditionalBlock(t *testing.T) {
	input := `IF ${env} == prod THEN
  LOAD t FROM s;
ELSE IF ${env} == staging THEN
  LOAD t_stage FROM s;
ELSE
  LOAD t_dev FROM s;
END IF;`

	pipeline, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if len(pipeline.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(pipeline.Steps))
	}
	block := pipeline.Steps[0].(*ConditionalBlockStep)
	if len(block.Branches) != 2 {
		t.Fatalf("expected 2 branches, got %d", len(block.Branches))
	}
	if block.Branches[0].Condition != "${env} == prod" {
		t.Errorf("branch 0 condition = %q", block.Branches[0].Condition)
	}
	if block.Branches[1].Condition != "${env} == staging" {
		t.Errorf("branch 1 condition = %q", block.Branches[1].Condition)
	}
	if len(block.Branches[0].Steps) != 1 || len(block.ElseSteps) != 1 {
		t.Errorf("branch steps = %d, else steps = %d", len(block.Branches[0].Steps), len(block.ElseSteps))
	}
	if ls, ok := block.ElseSteps[0].(*LoadStep); !ok || ls.TableName != "t_dev" {
		t.Errorf("else step = %#v", block.ElseSteps[0])
	}
}

func TestParse_NestedConditional(t *testing.T) {
	input := `IF ${a} == 1 THEN
  IF ${b} == 2 THEN
    LOAD inner FROM s;
  ENDIF
END IF;`

	pipeline, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	outer := pipeline.Steps[0].(*ConditionalBlockStep)
	inner, ok := outer.Branches[0].Steps[0].(*ConditionalBlockStep)
	if !ok {
		t.Fatalf("nested step is %T, want *ConditionalBlockStep", outer.Branches[0].Steps[0])
	}
	if len(inner.Branches) != 1 {
		t.Errorf("inner branches = %d", len(inner.Branches))
	}
}

func TestParseCollect_MultipleErrors(t *testing.T) {
	input := `LOAD FROM s;
SOURCE ok TYPE csv PARAMS {"path":"p.csv"};
LOAD t2 FROM;`

	pipeline, errs := ParseCollect(input)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
	if len(pipeline.Steps) != 1 {
		t.Fatalf("expected 1 surviving step, got %d", len(pipeline.Steps))
	}
	if _, ok := pipeline.Steps[0].(*SourceStep); !ok {
		t.Errorf("surviving step is %T, want *SourceStep", pipeline.Steps[0])
	}
	if errs[0].Line != 1 || errs[1].Line != 3 {
		t.Errorf("error lines = %d, %d", errs[0].Line, errs[1].Line)
	}
}

func TestParse_MissingSemicolon(t *testing.T) {
	_, err := Parse(`LOAD t FROM s`)
	if err == nil {
		t.Fatal("expected error for missing semicolon")
	}
	if !strings.Contains(err.Error(), ";") {
		t.Errorf("error = %v, want mention of ;", err)
	}
}

func TestParse_Determinism(t *testing.T) {
	input := `SOURCE s TYPE CSV PARAMS {"path":"a.csv"};
LOAD t FROM s;
CREATE TABLE r AS SELECT * FROM t;`

	p1, err1 := Parse(input)
	p2, err2 := Parse(input)
	if err1 != nil || err2 != nil {
		t.Fatalf("parse errors: %v %v", err1, err2)
	}
	if len(p1.Steps) != len(p2.Steps) {
		t.Fatalf("step counts differ: %d vs %d", len(p1.Steps), len(p2.Steps))
	}
	q1 := p1.Steps[2].(*SQLBlockStep).SQLQuery
	q2 := p2.Steps[2].(*SQLBlockStep).SQLQuery
	if q1 != q2 {
		t.Errorf("queries differ: %q vs %q", q1, q2)
	}
}
