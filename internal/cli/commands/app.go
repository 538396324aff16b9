// Package commands implements the sqlflow subcommands.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/giaosudau/sqlflow/internal/config"
	"github.com/giaosudau/sqlflow/internal/engine"
	"github.com/giaosudau/sqlflow/internal/planner"
)

// App carries the global flag values shared by every subcommand.
type App struct {
	ConfigDir string
	Profile   string
	Vars      map[string]string
	Verbose   bool
	Flags     *pflag.FlagSet

	version string
}

// NewApp creates an App stamped with the CLI version.
func NewApp(version string) *App {
	return &App{version: version}
}

// Logger builds the CLI logger. Verbose enables debug records; both
// levels log to stderr so command output stays clean on stdout.
func (a *App) Logger() *slog.Logger {
	level := slog.LevelInfo
	if a.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// LoadConfig resolves the project configuration for this invocation.
// The project root is --config when given, otherwise the nearest parent
// directory holding sqlflow.yaml, otherwise the working directory.
func (a *App) LoadConfig() (*config.ProjectConfig, error) {
	dir := a.ConfigDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if root := config.FindProjectRoot(cwd); root != "" {
			dir = root
		} else {
			dir = cwd
		}
	}

	cfg, err := config.Load(dir, a.Flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if a.Profile != "" {
		if _, ok := cfg.Profiles[a.Profile]; !ok {
			return nil, fmt.Errorf("unknown profile %q", a.Profile)
		}
	}
	if cfg.StatePath != "" && !filepath.IsAbs(cfg.StatePath) {
		cfg.StatePath = filepath.Join(dir, cfg.StatePath)
	}
	return cfg, nil
}

// NewEngine builds an execution engine from the resolved configuration,
// with variables merged CLI > profile > environment.
func (a *App) NewEngine(cfg *config.ProjectConfig) (*engine.Engine, error) {
	target := cfg.ProfileTarget(a.Profile)
	if err := target.Validate(); err != nil {
		return nil, err
	}

	profileVars, err := cfg.ProfileVariables(a.Profile)
	if err != nil {
		return nil, err
	}

	return engine.New(engine.Config{
		AdapterConfig:   target.AdapterConfig(),
		StatePath:       cfg.StatePath,
		Profile:         a.Profile,
		Variables:       planner.ProcessVariables(a.Vars, profileVars),
		CompilerVersion: a.version,
		Logger:          a.Logger(),
	})
}
