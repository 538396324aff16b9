package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `pipelines_dir: flows
target:
  type: duckdb
  database: warehouse.db
variables:
  env: dev
  region: us-east-1
profiles:
  prod:
    variables:
      env: prod
    target:
      type: postgres
      host: db.internal
      database: warehouse
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	return dir
}

func TestLoadFromDir(t *testing.T) {
	dir := writeConfig(t, "sqlflow.yaml", sampleConfig)

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "flows", cfg.PipelinesDir)
	assert.Equal(t, DefaultStatePath, cfg.StatePath, "defaults fill omitted fields")
	require.NotNil(t, cfg.Target)
	assert.Equal(t, "duckdb", cfg.Target.Type)
	assert.Equal(t, "warehouse.db", cfg.Target.Database)
	assert.Equal(t, "main", cfg.Target.Schema, "duckdb schema default")

	prod, ok := cfg.Profiles["prod"]
	require.True(t, ok)
	assert.Equal(t, "prod", prod.Variables["env"])
	require.NotNil(t, prod.Target)
	assert.Equal(t, 5432, prod.Target.Port, "postgres port default applied to profile target")
	assert.Equal(t, "public", prod.Target.Schema)
}

func TestLoadFromDir_YmlFallback(t *testing.T) {
	dir := writeConfig(t, "sqlflow.yml", "pipelines_dir: p\n")

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "p", cfg.PipelinesDir)
}

func TestLoadFromDir_Missing(t *testing.T) {
	cfg, err := LoadFromDir(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cfg, "missing config is not an error")
}

func TestLoadFromDir_EnvOverride(t *testing.T) {
	dir := writeConfig(t, "sqlflow.yaml", sampleConfig)
	t.Setenv("SQLFLOW_TARGET_TYPE", "postgres")
	t.Setenv("SQLFLOW_VAR_env", "ignored_by_config")

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Target.Type)
	assert.Equal(t, "dev", cfg.Variables["env"], "SQLFLOW_VAR_ entries are not config keys")
}

func TestProfileVariables(t *testing.T) {
	dir := writeConfig(t, "sqlflow.yaml", sampleConfig)
	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)

	vars, err := cfg.ProfileVariables("")
	require.NoError(t, err)
	assert.Equal(t, "dev", vars["env"])

	vars, err = cfg.ProfileVariables("prod")
	require.NoError(t, err)
	assert.Equal(t, "prod", vars["env"], "profile overrides project variable")
	assert.Equal(t, "us-east-1", vars["region"], "project variable survives")

	_, err = cfg.ProfileVariables("staging")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown profile "staging"`)
}

func TestProfileTarget(t *testing.T) {
	dir := writeConfig(t, "sqlflow.yaml", sampleConfig)
	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)

	assert.Equal(t, "duckdb", cfg.ProfileTarget("").Type)
	assert.Equal(t, "postgres", cfg.ProfileTarget("prod").Type)
	assert.Equal(t, "duckdb", cfg.ProfileTarget("unknown").Type, "unknown profile falls back")
}

func TestLoadFlagOverrides(t *testing.T) {
	dir := writeConfig(t, "sqlflow.yaml", sampleConfig)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("target", "", "")
	flags.String("state", "", "")
	flags.String("profile", "", "")
	require.NoError(t, flags.Parse([]string{"--target=postgres", "--state=custom.db", "--profile=prod"}))

	cfg, err := Load(dir, flags)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Target.Type, "changed flag overrides file")
	assert.Equal(t, "custom.db", cfg.StatePath, "--state maps to state_path")
	assert.Equal(t, "warehouse.db", cfg.Target.Database, "unchanged flags leave file values")
}

func TestLoadWithoutConfigFile(t *testing.T) {
	cfg, err := Load(t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPipelinesDir, cfg.PipelinesDir)
	assert.Equal(t, DefaultTargetType, cfg.Target.Type)
}

func TestFindProjectRoot(t *testing.T) {
	root := writeConfig(t, "sqlflow.yaml", "pipelines_dir: p\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	assert.Equal(t, root, FindProjectRoot(nested))
	assert.Equal(t, "", FindProjectRoot(t.TempDir()))
}

func TestTargetValidate(t *testing.T) {
	assert.Error(t, (&TargetConfig{}).Validate())
	assert.Error(t, (&TargetConfig{Type: "oracle"}).Validate())
	assert.NoError(t, (&TargetConfig{Type: "duckdb"}).Validate())
	assert.NoError(t, (&TargetConfig{Type: "Postgres"}).Validate())
}
