package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/giaosudau/sqlflow/internal/dag"
	"github.com/giaosudau/sqlflow/internal/planner"
)

// DagOptions holds options for the dag command.
type DagOptions struct {
	Format string
}

// dagNode is one row of the dag command's structured output.
type dagNode struct {
	Order     int      `json:"order" yaml:"order"`
	ID        string   `json:"id" yaml:"id"`
	Type      string   `json:"type" yaml:"type"`
	DependsOn []string `json:"depends_on" yaml:"depends_on"`
}

// NewDagCommand creates the pipeline dag command.
func NewDagCommand(app *App) *cobra.Command {
	opts := &DagOptions{}

	cmd := &cobra.Command{
		Use:   "dag FILE",
		Short: "Show a pipeline's execution order and dependencies",
		Example: `  sqlflow pipeline dag pipelines/daily.sf
  sqlflow pipeline dag pipelines/daily.sf --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDag(cmd, app, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "output format (table|json|yaml)")

	return cmd
}

func runDag(cmd *cobra.Command, app *App, path string, opts *DagOptions) error {
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

	nodes, err := dagNodes(plan)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch opts.Format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	case "yaml", "yml":
		blob, err := yaml.Marshal(nodes)
		if err != nil {
			return err
		}
		_, err = out.Write(blob)
		return err
	case "table", "":
		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"#", "Operation", "Type", "Depends On"})
		for _, node := range nodes {
			t.AppendRow(table.Row{node.Order, node.ID, node.Type, strings.Join(node.DependsOn, ", ")})
		}
		t.Render()
		return nil
	default:
		return fmt.Errorf("unknown format %q (expected table, json, or yaml)", opts.Format)
	}
}

// dagNodes flattens a plan into execution order with per-node edges.
func dagNodes(plan *planner.Plan) ([]dagNode, error) {
	resolver := dag.NewResolver()
	for _, op := range plan.Operations {
		resolver.AddNode(op.ID)
	}
	for _, op := range plan.Operations {
		for _, dep := range plan.ExecutionGraph[op.ID] {
			resolver.AddDependency(op.ID, dep)
		}
	}
	order, err := resolver.ResolveAll()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*planner.Operation, len(plan.Operations))
	for _, op := range plan.Operations {
		byID[op.ID] = op
	}

	nodes := make([]dagNode, 0, len(order))
	for i, id := range order {
		op, ok := byID[id]
		if !ok {
			continue
		}
		deps := plan.ExecutionGraph[id]
		if deps == nil {
			deps = []string{}
		}
		nodes = append(nodes, dagNode{
			Order:     i + 1,
			ID:        id,
			Type:      op.Type,
			DependsOn: deps,
		})
	}
	return nodes, nil
}
