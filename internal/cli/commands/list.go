package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapflow/internal/cli/output"
	"github.com/leapstack-labs/leapflow/internal/registry"
	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/spf13/cobra"
)

const statusNeverRun = "never_run"

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all models and their dependencies",
		Long: `List the pipeline models in execution order with their layer, cast policy,
dependencies and the outcome of their latest run in the current environment.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # List all models (auto-detect output format)
  leapflow list

  # List models as JSON
  leapflow list --output json

  # Last run outcomes in prod
  leapflow list -t prod`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}

	return cmd
}

func runList(cmd *cobra.Command) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	eng, err := createPlanningEngine(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	lastRuns, err := latestModelRuns(cmdCtx)
	if err != nil {
		return err
	}

	listOutput, err := buildList(eng.Registry(), lastRuns)
	if err != nil {
		return err
	}
	listOutput.Environment = cmdCtx.Cfg.Environment

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(listOutput)
	case output.ModeMarkdown:
		return listMarkdown(r, listOutput)
	default:
		return listText(r, listOutput)
	}
}

// latestModelRuns returns the model runs of the latest run in the current
// environment keyed by model name. No state file means no runs.
func latestModelRuns(cmdCtx *CommandContext) (map[string]*core.ModelRun, error) {
	store, err := openStore(cmdCtx)
	if err != nil || store == nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	run, err := store.GetLatestRun(cmdCtx.Cfg.Environment)
	if err != nil || run == nil {
		return nil, err
	}
	modelRuns, err := store.GetModelRunsForRun(run.ID)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*core.ModelRun, len(modelRuns))
	for _, mr := range modelRuns {
		byName[mr.ModelName] = mr
	}
	return byName, nil
}

// buildList describes the registered models in execution order.
func buildList(reg *registry.ModelRegistry, lastRuns map[string]*core.ModelRun) (*output.ListOutput, error) {
	order, err := reg.Resolve()
	if err != nil {
		return nil, err
	}
	graph, err := reg.Graph()
	if err != nil {
		return nil, err
	}

	out := &output.ListOutput{
		Models: make([]output.ModelInfo, 0, len(order)),
		Summary: output.ListSummary{
			TotalModels: len(order),
			ByLayer:     make(map[string]int),
			ByStatus:    make(map[string]int),
		},
	}

	for _, name := range order {
		m, _ := reg.GetModel(name)
		layer, sources := modelInfo(reg, name)

		info := output.ModelInfo{
			Name:      name,
			Layer:     layer,
			Reads:     nonNil(sources),
			DependsOn: nonNil(graph.Parents(name)),
			UsedBy:    nonNil(graph.Children(name)),
		}
		if m.Layer == core.LayerStaging {
			info.CastPolicy = string(m.CastPolicy)
			if info.CastPolicy == "" {
				info.CastPolicy = string(core.CastLenient)
			}
		}

		status := statusNeverRun
		if mr, ok := lastRuns[name]; ok {
			status = string(mr.Status)
			info.LastRun = &output.LastRunInfo{
				RunID:        mr.RunID,
				Status:       status,
				RowsOut:      mr.RowsOut,
				RowsDropped:  mr.RowsDropped,
				ValuesNulled: mr.ValuesNulled,
				DurationMS:   mr.ExecutionMS,
				Error:        mr.Error,
			}
		}

		out.Summary.ByLayer[layer]++
		out.Summary.ByStatus[status]++
		out.Models = append(out.Models, info)
	}
	return out, nil
}

// listText outputs models in styled text format.
func listText(r *output.Renderer, list *output.ListOutput) error {
	styles := r.Styles()

	r.Header(1, fmt.Sprintf("Models (%d total)", list.Summary.TotalModels))

	for i, m := range list.Models {
		line := fmt.Sprintf("%2d. %s %s", i+1, styles.ModelPath.Render(m.Name), styles.Muted.Render("["+m.Layer+"]"))
		if m.CastPolicy != "" {
			line += styles.Muted.Render(" cast=" + m.CastPolicy)
		}
		if m.LastRun != nil {
			line += " " + styles.ModelStatus(core.ModelRunStatus(m.LastRun.Status)).Render(m.LastRun.Status)
		}
		r.Println(line)

		deps := append(append([]string{}, m.Reads...), m.DependsOn...)
		if len(deps) > 0 {
			r.Printf("      %s %s\n", styles.Muted.Render("←"), strings.Join(deps, ", "))
		}
	}

	return nil
}

// listMarkdown outputs models in markdown format.
func listMarkdown(r *output.Renderer, list *output.ListOutput) error {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Models (%d total)", list.Summary.TotalModels)))
	r.Println("")

	for _, m := range list.Models {
		r.Println(output.FormatHeader(2, m.Name))
		r.Println(output.FormatKeyValue("Layer", m.Layer))
		if m.CastPolicy != "" {
			r.Println(output.FormatKeyValue("Cast Policy", m.CastPolicy))
		}
		if len(m.Reads) > 0 {
			r.Println(output.FormatKeyValue("Reads", strings.Join(m.Reads, ", ")))
		}
		if len(m.DependsOn) > 0 {
			r.Println(output.FormatKeyValue("Dependencies", strings.Join(m.DependsOn, ", ")))
		}
		if len(m.UsedBy) > 0 {
			r.Println(output.FormatKeyValue("Dependents", strings.Join(m.UsedBy, ", ")))
		}
		if m.LastRun != nil {
			r.Println(output.FormatKeyValue("Last Run", m.LastRun.Status))
			r.Println(output.FormatKeyValue("Rows", fmt.Sprintf("%d", m.LastRun.RowsOut)))
			if m.LastRun.Error != "" {
				r.Println(output.FormatKeyValue("Error", m.LastRun.Error))
			}
		}
		r.Println("")
	}

	return nil
}
