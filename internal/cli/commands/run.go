package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/leapflow/internal/cli/output"
	"github.com/leapstack-labs/leapflow/internal/engine"
	"github.com/leapstack-labs/leapflow/internal/validate"
	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/spf13/cobra"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	JSONOutput bool
	// FailOnTests makes failed error-severity rules fail the command
	FailOnTests bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline",
		Long: `Execute every model in dependency order, materialize the outputs,
then check the data-quality rules against the new tables.

A failed model skips its downstream models; independent models still run.
Failed rules are reported but do not fail the command unless --fail-on-tests
is given.`,
		Example: `  # Run the pipeline
  leapflow run

  # Run with four concurrent models per level
  leapflow run --threads 4

  # Treat unconvertible values as errors
  leapflow run --cast-policy strict

  # Machine-readable report for CI
  leapflow run --json`,
		Aliases: []string{"build"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "Output the run report as JSON")
	cmd.Flags().BoolVar(&opts.FailOnTests, "fail-on-tests", false, "Exit non-zero when an error-severity rule fails")
	cmd.Flags().Int("threads", 0, "Maximum models run concurrently within a level")
	cmd.Flags().String("cast-policy", "", "Default cast policy: lenient or strict")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	if opts.JSONOutput {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ModeJSON)
	}

	res, runErr := cmdCtx.Engine.RunPipeline(cmd.Context())
	if res == nil {
		return runErr
	}

	var renderErr error
	switch r.EffectiveMode() {
	case output.ModeJSON:
		renderErr = r.JSON(runReport(res))
	default:
		renderRunText(r, res)
	}
	if renderErr != nil {
		return renderErr
	}

	if runErr != nil {
		return runErr
	}
	if opts.FailOnTests {
		return res.QualityErr()
	}
	return nil
}

func renderRunText(r *output.Renderer, res *engine.PipelineResult) {
	styles := r.Styles()

	r.Header(1, "Run "+res.RunID)

	rows := make([][]any, 0, len(res.Models))
	for _, m := range res.Models {
		status := styles.ModelStatus(m.Status).Render(string(m.Status))
		changed := ""
		if m.Changed {
			changed = "yes"
		}
		rows = append(rows, []any{
			m.Name, string(m.Layer), status,
			m.RowsIn, m.RowsOut, m.RowsDropped, m.ValuesNulled,
			changed, m.Duration.Round(time.Millisecond).String(),
		})
	}
	r.Table([]string{"Model", "Layer", "Status", "In", "Out", "Dropped", "Nulled", "Changed", "Duration"}, rows)
	r.Println("")

	for _, m := range res.Models {
		switch {
		case m.Err != nil:
			r.Println(styles.Error.Render(fmt.Sprintf("%s: %v", m.Name, m.Err)))
		case m.SkippedBy != "":
			r.Println(styles.Warning.Render(fmt.Sprintf("%s: skipped, upstream model %s failed", m.Name, m.SkippedBy)))
		}
	}

	if len(res.Validations) > 0 {
		r.Header(2, "Tests")
		renderValidations(r, res.Validations)
	}

	errs, warns, skipped := validate.Summary(res.Validations)
	r.Println(styles.RunStatus(res.Status).Render(fmt.Sprintf("Run %s in %s", res.Status, res.Duration.Round(time.Millisecond))))
	r.Println(styles.Muted.Render(fmt.Sprintf("%d models (%d failed, %d skipped), %d rows dropped, %d failed tests, %d warnings, %d tests skipped",
		len(res.Models), res.Count(core.ModelRunStatusFailed), res.Count(core.ModelRunStatusSkipped), res.RowsDropped(), errs, warns, skipped)))
}

// renderValidations writes one row per rule.
func renderValidations(r *output.Renderer, results []validate.Result) {
	styles := r.Styles()
	rows := make([][]any, 0, len(results))
	for _, res := range results {
		var outcome string
		switch {
		case res.Skipped:
			outcome = styles.Muted.Render("skipped")
		case res.Err != nil:
			outcome = styles.Error.Render("error: " + res.Err.Error())
		case res.Passed:
			outcome = styles.Success.Render("pass")
		default:
			outcome = styles.Severity(res.Severity).Render("fail")
		}
		rows = append(rows, []any{res.Rule.Name, res.Rule.Table, string(res.Severity), outcome, res.ViolatingRows})
	}
	r.Table([]string{"Rule", "Table", "Severity", "Result", "Violations"}, rows)
	r.Println("")
}

func runReport(res *engine.PipelineResult) output.RunReport {
	report := output.RunReport{
		RunID:       res.RunID,
		Environment: res.Environment,
		Status:      string(res.Status),
		StartedAt:   res.StartedAt.UTC().Format(time.RFC3339),
		DurationMS:  res.Duration.Milliseconds(),
		Models:      make([]output.ModelReport, 0, len(res.Models)),
		Validations: validate.Reports(res.Validations),
	}
	for _, m := range res.Models {
		mr := output.ModelReport{
			Name:         m.Name,
			Layer:        string(m.Layer),
			Status:       string(m.Status),
			RowsIn:       m.RowsIn,
			RowsOut:      m.RowsOut,
			RowsDropped:  m.RowsDropped,
			ValuesNulled: m.ValuesNulled,
			Fingerprint:  m.Fingerprint,
			Changed:      m.Changed,
			DurationMS:   m.Duration.Milliseconds(),
			SkippedBy:    m.SkippedBy,
		}
		if m.Err != nil {
			mr.Error = m.Err.Error()
		}
		report.Models = append(report.Models, mr)
	}
	return report
}
