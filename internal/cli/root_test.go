package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giaosudau/sqlflow/internal/planner"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeProject(t *testing.T, pipeline string) (dir, sfPath string) {
	t.Helper()
	dir = t.TempDir()
	config := "target:\n  type: duckdb\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sqlflow.yaml"), []byte(config), 0o644))
	sfPath = filepath.Join(dir, "daily.sf")
	require.NoError(t, os.WriteFile(sfPath, []byte(pipeline), 0o644))
	return dir, sfPath
}

const testPipeline = `SOURCE users_csv TYPE CSV PARAMS {"path": "users.csv"};
LOAD users FROM users_csv;
CREATE TABLE report AS SELECT * FROM users;
`

func TestCompileCommandWritesPlan(t *testing.T) {
	dir, sfPath := writeProject(t, testPipeline)
	planPath := filepath.Join(dir, "daily.plan.json")

	out, err := execute(t, "pipeline", "compile", sfPath, "--config", dir, "-o", planPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Compiled 3 operations")

	blob, err := os.ReadFile(planPath)
	require.NoError(t, err)
	var plan planner.Plan
	require.NoError(t, json.Unmarshal(blob, &plan))
	assert.Equal(t, "daily", plan.PipelineMetadata.Name)
	assert.Len(t, plan.Operations, 3)
}

func TestCompileCommandYAMLToStdout(t *testing.T) {
	dir, sfPath := writeProject(t, testPipeline)

	out, err := execute(t, "pipeline", "compile", sfPath, "--config", dir, "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "pipelinemetadata")
	assert.Contains(t, out, "load_users")
}

func TestDagCommandTable(t *testing.T) {
	dir, sfPath := writeProject(t, testPipeline)

	out, err := execute(t, "pipeline", "dag", sfPath, "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "source_users_csv")
	assert.Contains(t, out, "table_report")
}

func TestValidateCommandReportsFailure(t *testing.T) {
	dir, sfPath := writeProject(t, testPipeline)
	badPath := filepath.Join(dir, "bad.sf")
	require.NoError(t, os.WriteFile(badPath, []byte("SOURCE oops TYPE;"), 0o644))

	out, err := execute(t, "pipeline", "validate", sfPath, badPath, "--config", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 pipelines failed")
	assert.Contains(t, out, "ok")
}

func TestUnknownProfileRejected(t *testing.T) {
	dir, sfPath := writeProject(t, testPipeline)

	_, err := execute(t, "pipeline", "compile", sfPath, "--config", dir, "-p", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown profile "nope"`)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "SQLFlow v")
}
