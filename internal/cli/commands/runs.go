package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/leapstack-labs/leapflow/internal/cli/output"
	"github.com/leapstack-labs/leapflow/internal/state"
	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/spf13/cobra"
)

// RunDetail is the JSON shape of `runs <id>`.
type RunDetail struct {
	Run         output.RunSummary    `json:"run"`
	Models      []output.ModelReport `json:"models"`
	Validations []ValidationSummary  `json:"validations"`
}

// ValidationSummary is a persisted rule outcome.
type ValidationSummary struct {
	Rule          string `json:"rule"`
	Table         string `json:"table"`
	Severity      string `json:"severity"`
	Passed        bool   `json:"passed"`
	Skipped       bool   `json:"skipped,omitempty"`
	ViolatingRows int64  `json:"violating_rows"`
	Error         string `json:"error,omitempty"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show run history",
		Long: `List the most recent pipeline runs recorded in the state file, or show
the model runs and rule outcomes of a single run.`,
		Example: `  # Last 10 runs
  leapflow runs

  # Details of one run, as JSON
  leapflow runs 3f2a9c1e-... --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runRunDetail(cmd, args[0])
			}
			return runRunList(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to list")
	return cmd
}

// openStore opens the state file for reading history. A missing file yields nil.
func openStore(cmdCtx *CommandContext) (*state.SQLiteStore, error) {
	path := cmdCtx.Cfg.StatePath
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	store := state.NewSQLiteStore(cmdCtx.Logger)
	if err := store.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}
	return store, nil
}

func runRunList(cmd *cobra.Command, limit int) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	store, err := openStore(cmdCtx)
	if err != nil {
		return err
	}
	var runs []*core.Run
	if store != nil {
		defer func() { _ = store.Close() }()
		if runs, err = store.ListRuns(limit); err != nil {
			return err
		}
	}

	summaries := make([]output.RunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, runSummary(run))
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(summaries)
	}

	r.Header(1, "Runs")
	if len(summaries) == 0 {
		r.Println("No runs recorded in " + cmdCtx.Cfg.StatePath)
		return nil
	}

	styles := r.Styles()
	rows := make([][]any, 0, len(runs))
	for _, run := range runs {
		duration := ""
		if run.CompletedAt != nil {
			duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		rows = append(rows, []any{
			run.ID, run.Environment,
			styles.RunStatus(run.Status).Render(string(run.Status)),
			run.StartedAt.Local().Format(time.DateTime), duration,
		})
	}
	r.Table([]string{"ID", "Env", "Status", "Started", "Duration"}, rows)
	return nil
}

func runRunDetail(cmd *cobra.Command, id string) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	store, err := openStore(cmdCtx)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("run %s not found: no state file at %s", id, cmdCtx.Cfg.StatePath)
	}
	defer func() { _ = store.Close() }()

	run, err := store.GetRun(id)
	if err != nil {
		return err
	}
	modelRuns, err := store.GetModelRunsForRun(id)
	if err != nil {
		return err
	}
	validations, err := store.GetValidationsForRun(id)
	if err != nil {
		return err
	}

	detail := RunDetail{
		Run:         runSummary(run),
		Models:      make([]output.ModelReport, 0, len(modelRuns)),
		Validations: make([]ValidationSummary, 0, len(validations)),
	}
	for _, mr := range modelRuns {
		detail.Models = append(detail.Models, output.ModelReport{
			Name:         mr.ModelName,
			Layer:        string(mr.Layer),
			Status:       string(mr.Status),
			RowsIn:       mr.RowsIn,
			RowsOut:      mr.RowsOut,
			RowsDropped:  mr.RowsDropped,
			ValuesNulled: mr.ValuesNulled,
			Fingerprint:  mr.Fingerprint,
			DurationMS:   mr.ExecutionMS,
			Error:        mr.Error,
		})
	}
	for _, v := range validations {
		detail.Validations = append(detail.Validations, ValidationSummary{
			Rule:          v.RuleName,
			Table:         v.TableName,
			Severity:      v.Severity,
			Passed:        v.Passed,
			Skipped:       v.Skipped,
			ViolatingRows: v.ViolatingRows,
			Error:         v.Error,
		})
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(detail)
	}

	styles := r.Styles()
	r.Header(1, "Run "+run.ID)
	r.Printf("%s %s\n", styles.Muted.Render("environment:"), run.Environment)
	r.Printf("%s %s\n", styles.Muted.Render("status:"), styles.RunStatus(run.Status).Render(string(run.Status)))
	r.Printf("%s %s\n", styles.Muted.Render("started:"), detail.Run.StartedAt)
	if run.Error != "" {
		r.Println(styles.Error.Render(run.Error))
	}
	r.Println("")

	rows := make([][]any, 0, len(detail.Models))
	for _, m := range detail.Models {
		rows = append(rows, []any{
			m.Name, m.Layer, styles.ModelStatus(core.ModelRunStatus(m.Status)).Render(m.Status),
			m.RowsIn, m.RowsOut, m.RowsDropped, m.ValuesNulled, m.Error,
		})
	}
	r.Table([]string{"Model", "Layer", "Status", "In", "Out", "Dropped", "Nulled", "Error"}, rows)
	r.Println("")

	if len(detail.Validations) > 0 {
		r.Header(2, "Tests")
		rows = rows[:0]
		for _, v := range detail.Validations {
			outcome := "pass"
			switch {
			case v.Skipped:
				outcome = "skipped"
			case v.Error != "":
				outcome = "error: " + v.Error
			case !v.Passed:
				outcome = "fail"
			}
			rows = append(rows, []any{v.Rule, v.Table, v.Severity, outcome, v.ViolatingRows})
		}
		r.Table([]string{"Rule", "Table", "Severity", "Result", "Violations"}, rows)
	}
	return nil
}

func runSummary(run *core.Run) output.RunSummary {
	s := output.RunSummary{
		ID:          run.ID,
		Environment: run.Environment,
		Status:      string(run.Status),
		StartedAt:   run.StartedAt.UTC().Format(time.RFC3339),
		Error:       run.Error,
	}
	if run.CompletedAt != nil {
		s.CompletedAt = run.CompletedAt.UTC().Format(time.RFC3339)
	}
	return s
}
