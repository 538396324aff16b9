package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/giaosudau/sqlflow/internal/parser"
)

// NewValidateCommand creates the pipeline validate command.
func NewValidateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Parse and validate pipeline files without executing them",
		Example: `  sqlflow pipeline validate pipelines/daily.sf
  sqlflow pipeline validate pipelines/*.sf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args)
		},
	}
}

func runValidate(cmd *cobra.Command, paths []string) error {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Pipeline", "Status", "Detail"})

	failed := 0
	for _, path := range paths {
		status, detail := validateFile(path)
		if status != "ok" {
			failed++
		}
		t.AppendRow(table.Row{path, status, detail})
	}
	t.Render()

	if failed > 0 {
		return fmt.Errorf("%d of %d pipelines failed validation", failed, len(paths))
	}
	return nil
}

func validateFile(path string) (status, detail string) {
	text, err := os.ReadFile(path)
	if err != nil {
		return "error", err.Error()
	}

	pipeline, err := parser.Parse(string(text))
	if err != nil {
		return "parse error", err.Error()
	}

	if errs := pipeline.Validate(); len(errs) > 0 {
		return "invalid", errs[0] + moreSuffix(len(errs)-1)
	}
	return "ok", fmt.Sprintf("%d steps", len(pipeline.Steps))
}

func moreSuffix(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf(" (+%d more)", n)
}
