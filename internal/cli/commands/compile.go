package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/giaosudau/sqlflow/internal/planner"
)

// CompileOptions holds options for the compile command.
type CompileOptions struct {
	Output string
	Format string
}

// NewCompileCommand creates the pipeline compile command.
func NewCompileCommand(app *App) *cobra.Command {
	opts := &CompileOptions{}

	cmd := &cobra.Command{
		Use:   "compile FILE",
		Short: "Compile a pipeline into an execution plan",
		Long: `Parse a .sf pipeline file, resolve includes and conditionals, and emit
the execution plan document other tooling (and "run --from-compiled")
consumes.`,
		Example: `  # Print the plan to stdout
  sqlflow pipeline compile pipelines/daily.sf

  # Write the plan for later execution
  sqlflow pipeline compile pipelines/daily.sf -o daily.plan.json

  # Inspect the plan as YAML
  sqlflow pipeline compile pipelines/daily.sf --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, app, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the plan to a file instead of stdout")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "json", "plan output format (json|yaml)")

	return cmd
}

func runCompile(cmd *cobra.Command, app *App, path string, opts *CompileOptions) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	eng, err := app.NewEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	plan, err := eng.CompileFile(path)
	if err != nil {
		return err
	}

	blob, err := marshalPlan(plan, opts.Format)
	if err != nil {
		return err
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, blob, 0o644); err != nil {
			return fmt.Errorf("failed to write plan: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Compiled %d operations to %s\n",
			len(plan.Operations), opts.Output)
		return nil
	}

	_, err = cmd.OutOrStdout().Write(blob)
	return err
}

func marshalPlan(plan *planner.Plan, format string) ([]byte, error) {
	switch format {
	case "yaml", "yml":
		return yaml.Marshal(plan)
	case "json", "":
		blob, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(blob, '\n'), nil
	default:
		return nil, fmt.Errorf("unknown format %q (expected json or yaml)", format)
	}
}
