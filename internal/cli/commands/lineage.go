package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapflow/internal/cli/output"
	"github.com/leapstack-labs/leapflow/internal/dag"
	"github.com/leapstack-labs/leapflow/internal/registry"
	"github.com/spf13/cobra"
)

// LineageOptions holds options for the lineage command.
type LineageOptions struct {
	Upstream   bool
	Downstream bool
	Depth      int
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	opts := &LineageOptions{}

	cmd := &cobra.Command{
		Use:   "lineage <model>",
		Short: "Show lineage for a model",
		Long: `Display the upstream dependencies and downstream dependents of a model
or a raw table.

The lineage shows how data flows through the pipeline, helping you understand
the impact of a change to a raw export or a model.`,
		Example: `  # Show full lineage for a model
  leapflow lineage dim_listings

  # Which models read the reviews export
  leapflow lineage reviews --upstream=false

  # Limit traversal depth
  leapflow lineage mart_fullmoon_reviews --depth 1

  # Output as JSON
  leapflow lineage fact_reviews --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Upstream, "upstream", true, "Include upstream dependencies")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", true, "Include downstream dependents")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "Max traversal depth (0 = unlimited)")

	return cmd
}

func runLineage(cmd *cobra.Command, name string, opts *LineageOptions) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	eng, err := createPlanningEngine(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	reg := eng.Registry()
	lineage, err := buildLineage(reg, name, opts)
	if err != nil {
		return err
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(lineage)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Lineage for "+name))
		r.Println("")
	default:
		r.Header(1, "Lineage for "+name)
	}

	styles := r.Styles()
	if opts.Upstream {
		r.Println(styles.Header2.Render(fmt.Sprintf("Upstream dependencies (%d):", len(lineage.Upstream))))
		for _, node := range lineage.Upstream {
			r.Printf("  - %s\n", node)
		}
		r.Println("")
	}
	if opts.Downstream {
		r.Println(styles.Header2.Render(fmt.Sprintf("Downstream dependents (%d):", len(lineage.Downstream))))
		for _, node := range lineage.Downstream {
			r.Printf("  - %s\n", node)
		}
	}
	return nil
}

// buildLineage collects the upstream and downstream nodes of a model or raw
// table. Raw tables are not graph nodes: they sit upstream of the models that
// read them.
func buildLineage(reg *registry.ModelRegistry, name string, opts *LineageOptions) (*output.LineageOutput, error) {
	graph, err := reg.Graph()
	if err != nil {
		return nil, err
	}

	_, isModel := reg.GetModel(name)
	isRaw := reg.IsSource(name)
	if !isModel && !isRaw {
		return nil, fmt.Errorf("model not found: %s", name)
	}

	lineage := &output.LineageOutput{
		Root:       name,
		Upstream:   []string{},
		Downstream: []string{},
		Nodes:      []output.LineageNode{},
		Edges:      []output.LineageEdge{},
	}

	// readers are the models reading a raw table directly
	var readers []string
	if isRaw {
		for _, m := range reg.AllModels() {
			for _, ref := range m.Refs {
				if ref == name {
					readers = append(readers, m.Name)
				}
			}
		}
	}

	if opts.Upstream && isModel {
		lineage.Upstream = nonNil(getUpstreamWithDepth(graph, name, opts.Depth))
		lineage.Upstream = append(lineage.Upstream, rawInputs(reg, graph, name, opts.Depth)...)
	}

	if opts.Downstream {
		if isModel {
			lineage.Downstream = nonNil(getDownstreamWithDepth(graph, name, opts.Depth))
		} else {
			seen := make(map[string]bool)
			for _, reader := range readers {
				if !seen[reader] {
					seen[reader] = true
					lineage.Downstream = append(lineage.Downstream, reader)
				}
				if opts.Depth == 1 {
					continue
				}
				depth := opts.Depth
				if depth > 0 {
					depth--
				}
				for _, d := range getDownstreamWithDepth(graph, reader, depth) {
					if !seen[d] {
						seen[d] = true
						lineage.Downstream = append(lineage.Downstream, d)
					}
				}
			}
		}
	}

	nodeSet := map[string]bool{name: true}
	for _, n := range lineage.Upstream {
		nodeSet[n] = true
	}
	for _, n := range lineage.Downstream {
		nodeSet[n] = true
	}

	for _, id := range append(append([]string{name}, lineage.Upstream...), lineage.Downstream...) {
		node := output.LineageNode{ID: id, Type: "raw"}
		if m, ok := reg.GetModel(id); ok {
			node.Type = "model"
			node.Layer = string(m.Layer)
			for _, ref := range m.Refs {
				if nodeSet[ref] {
					lineage.Edges = append(lineage.Edges, output.LineageEdge{From: ref, To: id})
				}
			}
		}
		lineage.Nodes = append(lineage.Nodes, node)
	}

	lineage.Stats = output.LineageStats{
		TotalNodes:      len(lineage.Nodes),
		UpstreamCount:   len(lineage.Upstream),
		DownstreamCount: len(lineage.Downstream),
	}
	return lineage, nil
}

// rawInputs returns the raw tables read by root and its upstream models, in
// first-seen order. With a depth limit only models fewer than depth hops from
// root contribute, so every raw table stays within depth hops.
func rawInputs(reg *registry.ModelRegistry, graph *dag.Graph, root string, depth int) []string {
	modelNames := []string{root}
	switch {
	case depth == 0:
		modelNames = append(modelNames, graph.Upstream(root)...)
	case depth > 1:
		modelNames = append(modelNames, getUpstreamWithDepth(graph, root, depth-1)...)
	}

	seen := make(map[string]bool)
	var raws []string
	for _, n := range modelNames {
		m, ok := reg.GetModel(n)
		if !ok {
			continue
		}
		for _, ref := range m.Refs {
			if reg.IsSource(ref) && !seen[ref] {
				seen[ref] = true
				raws = append(raws, ref)
			}
		}
	}
	return raws
}

// getUpstreamWithDepth returns upstream nodes with optional depth limit.
func getUpstreamWithDepth(graph *dag.Graph, nodeID string, maxDepth int) []string {
	if maxDepth == 0 {
		return graph.Upstream(nodeID)
	}

	visited := make(map[string]bool)
	result := []string{}

	var traverse func(id string, depth int)
	traverse = func(id string, depth int) {
		if depth > maxDepth {
			return
		}
		for _, parent := range graph.Parents(id) {
			if !visited[parent] {
				visited[parent] = true
				result = append(result, parent)
				traverse(parent, depth+1)
			}
		}
	}

	traverse(nodeID, 1)
	return result
}

// getDownstreamWithDepth returns downstream nodes with optional depth limit.
func getDownstreamWithDepth(graph *dag.Graph, nodeID string, maxDepth int) []string {
	if maxDepth == 0 {
		return graph.Downstream(nodeID)
	}

	visited := make(map[string]bool)
	result := []string{}

	var traverse func(id string, depth int)
	traverse = func(id string, depth int) {
		if depth > maxDepth {
			return
		}
		for _, child := range graph.Children(id) {
			if !visited[child] {
				visited[child] = true
				result = append(result, child)
				traverse(child, depth+1)
			}
		}
	}

	traverse(nodeID, 1)
	return result
}
