package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/giaosudau/sqlflow/internal/engine"
	"github.com/giaosudau/sqlflow/internal/planner"
	"github.com/giaosudau/sqlflow/internal/state"
)

// RunCmdOptions holds options for the run command.
type RunCmdOptions struct {
	FromCompiled string
	JSONOutput   bool
}

// NewRunCommand creates the pipeline run command.
func NewRunCommand(app *App) *cobra.Command {
	opts := &RunCmdOptions{}

	cmd := &cobra.Command{
		Use:   "run [FILE]",
		Short: "Execute a pipeline in dependency order",
		Long: `Compile and execute a .sf pipeline, or execute a previously compiled
plan. Operations run in dependency order; a failing operation skips its
dependents while independent branches keep running.`,
		Example: `  # Compile and run in one step
  sqlflow pipeline run pipelines/daily.sf

  # Run with a profile and variable overrides
  sqlflow pipeline run pipelines/daily.sf -p prod --var region=eu-west-1

  # Execute a plan compiled earlier
  sqlflow pipeline run --from-compiled daily.plan.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, app, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.FromCompiled, "from-compiled", "", "execute a compiled plan file instead of a .sf source")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "emit the run result as JSON")

	return cmd
}

func runRun(cmd *cobra.Command, app *App, args []string, opts *RunCmdOptions) error {
	if opts.FromCompiled == "" && len(args) == 0 {
		return fmt.Errorf("either a pipeline file or --from-compiled is required")
	}
	if opts.FromCompiled != "" && len(args) > 0 {
		return fmt.Errorf("a pipeline file and --from-compiled are mutually exclusive")
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	eng, err := app.NewEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := context.Background()
	start := time.Now()

	var result *engine.RunResult
	if opts.FromCompiled != "" {
		plan, err := readPlan(opts.FromCompiled)
		if err != nil {
			return err
		}
		result, err = eng.RunPlan(ctx, plan)
		if err != nil {
			return err
		}
	} else {
		result, err = eng.RunFile(ctx, args[0])
		if err != nil {
			return err
		}
	}

	if opts.JSONOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
	}

	renderRunResult(cmd, result, time.Since(start))
	if result.Status == state.RunStatusFailed {
		return fmt.Errorf("run %s failed", result.RunID)
	}
	return nil
}

func readPlan(path string) (*planner.Plan, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	var plan planner.Plan
	if err := json.Unmarshal(blob, &plan); err != nil {
		return nil, fmt.Errorf("invalid plan file %s: %w", path, err)
	}
	return &plan, nil
}

func renderRunResult(cmd *cobra.Command, result *engine.RunResult, elapsed time.Duration) {
	out := cmd.OutOrStdout()

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Operation", "Type", "Status", "Rows", "Duration"})
	for _, step := range result.Steps {
		t.AppendRow(table.Row{
			step.OperationID,
			step.Type,
			string(step.Status),
			step.RowsAffected,
			step.Duration.Round(time.Millisecond),
		})
	}
	t.Render()

	if result.RunID != "" {
		fmt.Fprintf(out, "Run %s: %s\n", result.RunID, result.Status)
	} else {
		fmt.Fprintf(out, "Run: %s\n", result.Status)
	}
	for _, step := range result.Failed() {
		fmt.Fprintf(out, "  %s: %s\n", step.OperationID, step.Error)
	}
	fmt.Fprintf(out, "Completed in %s\n", elapsed.Round(time.Millisecond))
}
