package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version, gitCommit string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "SQLFlow v%s (%s)\n", version, gitCommit)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "SQL-first data pipelines built with Go and DuckDB")
		},
	}
}
