// Package cli provides the command-line interface for SQLFlow.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/giaosudau/sqlflow/internal/cli/commands"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	app := commands.NewApp(Version)

	rootCmd := &cobra.Command{
		Use:   "sqlflow",
		Short: "SQLFlow - SQL-first data pipelines",
		Long: `SQLFlow is a SQL-first data pipeline tool built with Go and DuckDB.

Pipelines are .sf files combining SOURCE, LOAD, CREATE TABLE, EXPORT, SET,
IF, and INCLUDE directives. SQLFlow compiles them into a dependency-ordered
execution plan and runs it with incremental load strategies and run-state
tracking.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Built with Go and DuckDB
`)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&app.ConfigDir, "config", "", "project directory containing sqlflow.yaml (default: nearest parent)")
	flags.StringVarP(&app.Profile, "profile", "p", "", "configuration profile to use (e.g. dev, prod)")
	flags.StringToStringVar(&app.Vars, "var", nil, "pipeline variable override (key=value, repeatable)")
	flags.BoolVarP(&app.Verbose, "verbose", "v", false, "verbose output")
	flags.String("target", "", "target engine type override (duckdb, postgres)")
	flags.String("database", "", "target database path or name")
	flags.String("state", "", "path to the run-state database")

	_ = rootCmd.RegisterFlagCompletionFunc("target", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"duckdb", "postgres"}, cobra.ShellCompDirectiveNoFileComp
	})

	app.Flags = flags

	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit))
	rootCmd.AddCommand(commands.NewPipelineCommand(app))
	rootCmd.AddCommand(commands.NewRunsCommand(app))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
