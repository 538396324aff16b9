package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/giaosudau/sqlflow/internal/state"
)

// RunsOptions holds options for the runs command.
type RunsOptions struct {
	Limit int
	Steps string
}

// NewRunsCommand creates the runs history command.
func NewRunsCommand(app *App) *cobra.Command {
	opts := &RunsOptions{}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show pipeline run history",
		Example: `  # Recent runs
  sqlflow runs

  # Step-level detail for one run
  sqlflow runs --steps 1f2e3d4c`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, app, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of runs to show")
	cmd.Flags().StringVar(&opts.Steps, "steps", "", "show step results for the given run id")

	return cmd
}

func runRuns(cmd *cobra.Command, app *App, opts *RunsOptions) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.StatePath == "" {
		return fmt.Errorf("run history requires a state database (set state_path or --state)")
	}

	store := state.NewSQLiteStore(app.Logger())
	if err := store.Open(cfg.StatePath); err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate state store: %w", err)
	}

	if opts.Steps != "" {
		return renderSteps(cmd, store, opts.Steps)
	}
	return renderRuns(cmd, store, opts.Limit)
}

func renderRuns(cmd *cobra.Command, store state.Store, limit int) error {
	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Pipeline", "Profile", "Status", "Started", "Duration"})
	for _, run := range runs {
		duration := "-"
		if run.CompletedAt != nil {
			duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		t.AppendRow(table.Row{
			run.ID,
			run.Pipeline,
			run.Profile,
			string(run.Status),
			run.StartedAt.Format(time.RFC3339),
			duration,
		})
	}
	t.Render()
	return nil
}

func renderSteps(cmd *cobra.Command, store state.Store, runID string) error {
	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	steps, err := store.ListSteps(runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s): %s\n", run.ID, run.Pipeline, run.Status)
	if run.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", run.Error)
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Operation", "Type", "Status", "Rows", "Duration", "Error"})
	for _, step := range steps {
		t.AppendRow(table.Row{
			step.OperationID,
			step.Type,
			string(step.Status),
			step.RowsAffected,
			(time.Duration(step.DurationMS) * time.Millisecond).String(),
			step.Error,
		})
	}
	t.Render()
	return nil
}
