package commands

import (
	"github.com/spf13/cobra"
)

// NewPipelineCommand groups the pipeline lifecycle subcommands.
func NewPipelineCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Compile, validate, and run .sf pipelines",
	}

	cmd.AddCommand(NewCompileCommand(app))
	cmd.AddCommand(NewValidateCommand(app))
	cmd.AddCommand(NewRunCommand(app))
	cmd.AddCommand(NewDagCommand(app))

	return cmd
}
