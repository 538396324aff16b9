package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "sqlflow.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "sqlflow.yml"

// envPrefix namespaces config overrides in the process environment:
// SQLFLOW_TARGET_TYPE=postgres sets target.type. Pipeline variables use
// the separate SQLFLOW_VAR_ prefix and are not config keys.
const envPrefix = "SQLFLOW_"

// LoadFromDir loads a ProjectConfig from the given directory. It looks
// for sqlflow.yaml or sqlflow.yml, then overlays SQLFLOW_* environment
// overrides. Returns nil, nil if no config file is found.
func LoadFromDir(dir string) (*ProjectConfig, error) {
	if findConfigFile(dir) == "" {
		return nil, nil
	}
	return Load(dir, nil)
}

// Load builds the effective project config for dir, overlaying the config
// file (when present), SQLFLOW_* environment variables, and explicitly
// set CLI flags in ascending priority. A missing config file yields a
// defaulted config so flag-only invocations still work.
func Load(dir string, flags *pflag.FlagSet) (*ProjectConfig, error) {
	k := koanf.New(".")

	if configPath := findConfigFile(dir); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, err
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, err
		}
	}

	var cfg ProjectConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// flagKey maps CLI flag names onto config keys. Flags that are not
// config overrides map to the empty key and are skipped.
func flagKey(name string) string {
	switch name {
	case "state":
		return "state_path"
	case "target":
		return "target.type"
	case "database":
		return "target.database"
	case "pipelines-dir":
		return "pipelines_dir"
	default:
		return ""
	}
}

// envTransform maps SQLFLOW_TARGET_TYPE to target.type. SQLFLOW_VAR_*
// entries are pipeline variables, not config, and are dropped here.
func envTransform(key string) string {
	trimmed := strings.TrimPrefix(key, envPrefix)
	if strings.HasPrefix(trimmed, "VAR_") {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(trimmed), "_", ".")
}

// findConfigFile finds the config file in the given directory.
// Returns empty string if not found.
func findConfigFile(dir string) string {
	yamlPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}

	ymlPath := filepath.Join(dir, ConfigFileNameAlt)
	if _, err := os.Stat(ymlPath); err == nil {
		return ymlPath
	}

	return ""
}

// FindProjectRoot walks up from the given directory to find a directory
// containing sqlflow.yaml or sqlflow.yml.
// Returns empty string if not found.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for {
		if findConfigFile(dir) != "" {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
