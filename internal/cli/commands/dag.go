package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapflow/internal/cli/output"
	"github.com/leapstack-labs/leapflow/internal/registry"
	"github.com/spf13/cobra"
)

// GraphQuerier provides read-only access to DAG structure.
type GraphQuerier interface {
	Parents(string) []string
	Children(string) []string
	NodeCount() int
	EdgeCount() int
}

// NewDAGCommand creates the dag command.
func NewDAGCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dag",
		Short: "Show the dependency graph",
		Long: `Display the dependency graph (DAG) of the pipeline models.

Prints the resolved execution order, then the models grouped by execution
level: models in the same level can run in parallel. Neither the warehouse
nor the raw data is read.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Show the DAG
  leapflow dag

  # Output as JSON
  leapflow dag --output json

  # Output as Markdown
  leapflow dag --output markdown`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDAG(cmd)
		},
	}

	return cmd
}

func runDAG(cmd *cobra.Command) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	eng, err := createPlanningEngine(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	reg := eng.Registry()
	order, err := reg.Resolve()
	if err != nil {
		return err
	}
	graph, err := reg.Graph()
	if err != nil {
		return err
	}
	levels, err := graph.Levels()
	if err != nil {
		return fmt.Errorf("failed to get execution levels: %w", err)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return dagJSON(r, reg, graph, order, levels)
	case output.ModeMarkdown:
		return dagMarkdown(r, reg, graph, order, levels)
	default:
		return dagText(r, reg, graph, order, levels)
	}
}

func modelInfo(reg *registry.ModelRegistry, name string) (layer string, sources []string) {
	m, ok := reg.GetModel(name)
	if !ok {
		return "", nil
	}
	for _, ref := range m.Refs {
		if reg.IsSource(ref) {
			sources = append(sources, ref)
		}
	}
	return string(m.Layer), sources
}

// dagText outputs DAG in styled text format.
func dagText(r *output.Renderer, reg *registry.ModelRegistry, graph GraphQuerier, order []string, levels [][]string) error {
	styles := r.Styles()

	r.Header(1, "Dependency Graph")
	r.Printf("%s %s\n\n", styles.Muted.Render("order:"), strings.Join(order, " → "))

	for i, level := range levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, model := range level {
			layer, sources := modelInfo(reg, model)
			deps := graph.Parents(model)
			children := graph.Children(model)

			r.Printf("  %s %s\n", styles.ModelPath.Render(model), styles.Muted.Render("("+layer+")"))
			if len(sources) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("reads:"), strings.Join(sources, ", "))
			}
			if len(deps) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("depends on:"), strings.Join(deps, ", "))
			}
			if len(children) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("used by:"), strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d models, %d dependencies", graph.NodeCount(), graph.EdgeCount())))

	return nil
}

// dagMarkdown outputs DAG in markdown format.
func dagMarkdown(r *output.Renderer, reg *registry.ModelRegistry, graph GraphQuerier, order []string, levels [][]string) error {
	r.Println(output.FormatHeader(1, "Dependency Graph"))
	r.Println("")
	r.Println(output.FormatKeyValue("Order", strings.Join(order, ", ")))
	r.Println("")

	for i, level := range levels {
		levelName := fmt.Sprintf("Level %d", i)
		if i == 0 {
			levelName = "Level 0 (Raw inputs only)"
		}
		r.Println(output.FormatHeader(2, levelName))

		for _, model := range level {
			layer, sources := modelInfo(reg, model)
			deps := graph.Parents(model)
			children := graph.Children(model)

			r.Printf("- %s (%s)\n", model, layer)
			if len(sources) > 0 {
				r.Printf("  - reads: %s\n", strings.Join(sources, ", "))
			}
			if len(deps) > 0 {
				r.Printf("  - depends on: %s\n", strings.Join(deps, ", "))
			}
			if len(children) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Total Models", fmt.Sprintf("%d", graph.NodeCount())))
	r.Println(output.FormatKeyValue("Total Dependencies", fmt.Sprintf("%d", graph.EdgeCount())))

	return nil
}

// dagJSON outputs DAG in JSON format.
func dagJSON(r *output.Renderer, reg *registry.ModelRegistry, graph GraphQuerier, order []string, levels [][]string) error {
	dagOutput := output.DAGOutput{
		Order:       order,
		Levels:      make([]output.DAGLevel, 0, len(levels)),
		TotalModels: graph.NodeCount(),
		TotalEdges:  graph.EdgeCount(),
	}

	for i, level := range levels {
		dagLevel := output.DAGLevel{
			Level:  i,
			Models: make([]output.DAGNode, 0, len(level)),
		}

		for _, model := range level {
			layer, sources := modelInfo(reg, model)
			dagLevel.Models = append(dagLevel.Models, output.DAGNode{
				Name:      model,
				Layer:     layer,
				DependsOn: nonNil(graph.Parents(model)),
				UsedBy:    nonNil(graph.Children(model)),
				Sources:   sources,
			})
		}

		dagOutput.Levels = append(dagOutput.Levels, dagLevel)
	}

	return r.JSON(dagOutput)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
