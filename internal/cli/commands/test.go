package commands

import (
	"github.com/leapstack-labs/leapflow/internal/cli/output"
	"github.com/leapstack-labs/leapflow/internal/validate"
	"github.com/spf13/cobra"
)

// NewTestCommand creates the test command.
func NewTestCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Check data-quality rules against the warehouse",
		Long: `Evaluate the standing rules and the tests declared in leapflow.yaml
against the tables currently in the warehouse, without running any model.

Rules whose tables do not exist yet are skipped. The command fails when an
error-severity rule finds violating rows.`,
		Example: `  # Check all rules
  leapflow test

  # Check the prod warehouse and emit JSON
  leapflow test -t prod --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTest(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the validation report as JSON")
	return cmd
}

func runTest(cmd *cobra.Command, jsonOutput bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	if jsonOutput {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ModeJSON)
	}

	results, err := cmdCtx.Engine.Validate(cmd.Context())
	if err != nil {
		return err
	}
	errs, warns, skipped := validate.Summary(results)

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(output.TestReport{
			Passed:      errs == 0,
			Errors:      errs,
			Warnings:    warns,
			Skipped:     skipped,
			Validations: validate.Reports(results),
		}); err != nil {
			return err
		}
		return validate.Err(results)
	}

	styles := r.Styles()
	r.Header(1, "Tests")
	if len(results) == 0 {
		r.Println(styles.Muted.Render("No rules configured"))
		return nil
	}
	renderValidations(r, results)

	summary := styles.Success
	if errs > 0 {
		summary = styles.Error
	} else if warns > 0 {
		summary = styles.Warning
	}
	r.Printf("%s\n", summary.Render(
		pluralize(len(results), "rule")+": "+
			pluralize(errs, "failure")+", "+
			pluralize(warns, "warning")+", "+
			pluralize(skipped, "skipped rule")))

	return validate.Err(results)
}
