package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leapflow/internal/cli/config"
	"github.com/leapstack-labs/leapflow/internal/cli/output"
	"github.com/leapstack-labs/leapflow/internal/models"
	"github.com/leapstack-labs/leapflow/internal/source"
	"github.com/leapstack-labs/leapflow/pkg/adapter"
	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/spf13/cobra"
)

// Health check statuses.
const (
	checkPass  = "pass"
	checkWarn  = "warn"
	checkError = "error"
)

// Health check groups, in report order.
const (
	groupConfig    = "config"
	groupRaw       = "raw"
	groupWarehouse = "warehouse"
	groupState     = "state"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string // Output format: text, json
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the project is ready to run",
		Long: `Check the configuration, the raw inputs, the warehouse and the run
history, and report anything that would stop or degrade a run:
- Configuration file and target
- Raw tables present with every column the staging models read
- Warehouse reachable, pipeline tables materialized
- Outcome of the latest run in the environment

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run health check
  leapflow doctor

  # Check the prod target, as JSON
  leapflow doctor -t prod --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, json")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         ProjectSummary `json:"summary"`
	HealthChecks    []HealthCheck  `json:"health_checks"`
	Score           int            `json:"score"`
	Recommendations []string       `json:"recommendations"`
	IssueCount      int            `json:"issue_count"`
}

// ProjectSummary contains project-level statistics.
type ProjectSummary struct {
	Environment string `json:"environment"`
	Target      string `json:"target"`
	Models      int    `json:"models"`
	RawTables   int    `json:"raw_tables"`
	Rules       int    `json:"rules"`
	DAGDepth    int    `json:"dag_depth"`
	EdgeCount   int    `json:"edge_count"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	RuleID     string   `json:"rule_id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

func (h *HealthCheck) fail(status, detail string) {
	if h.Status != checkError {
		h.Status = status
	}
	h.IssueCount++
	h.Details = append(h.Details, detail)
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.OutputMode(opts.Format))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	doctorOutput, err := diagnose(ctx, cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(doctorOutput)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, doctorOutput)
	default:
		return renderDoctorText(r, doctorOutput)
	}
}

// diagnose runs every health check. Only a configuration the pipeline cannot
// even be planned from is returned as an error.
func diagnose(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*DoctorOutput, error) {
	eng, err := createPlanningEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = eng.Close() }()

	summary := buildProjectSummary(cfg, eng.Registry().Sources(), len(eng.Rules()))
	graph, err := eng.Registry().Graph()
	if err != nil {
		return nil, err
	}
	summary.EdgeCount = graph.EdgeCount()
	if levels, err := graph.Levels(); err == nil {
		summary.DAGDepth = len(levels)
	}

	checks := []HealthCheck{checkConfigFile(), checkRawDir(cfg)}

	conn := HealthCheck{RuleID: "WH01", Name: "Warehouse connection", Group: groupWarehouse, Status: checkPass}
	adp, err := adapter.Open(ctx, cfg.Target.AdapterConfig(), logger)
	if err != nil {
		conn.fail(checkError, err.Error())
		adp = nil
	} else {
		defer func() { _ = adp.Close() }()
	}

	checks = append(checks, checkRawTables(ctx, rawProvider(cfg, adp))...)
	checks = append(checks, conn)
	if adp != nil {
		checks = append(checks, checkMaterialized(ctx, adp, cfg.Target.Schema, eng.Registry().AllModels()))
	}
	checks = append(checks, checkLatestRun(cfg, logger))

	issues := 0
	for _, c := range checks {
		issues += c.IssueCount
	}

	return &DoctorOutput{
		Summary:         summary,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks, len(checks)),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issues,
	}, nil
}

func buildProjectSummary(cfg *config.Config, sources []string, rules int) ProjectSummary {
	return ProjectSummary{
		Environment: cfg.Environment,
		Target:      cfg.Target.Type,
		Models:      len(models.Definitions()),
		RawTables:   len(sources),
		Rules:       rules,
	}
}

func checkConfigFile() HealthCheck {
	check := HealthCheck{RuleID: "CF01", Name: "Configuration file", Group: groupConfig, Status: checkPass}
	if config.GetConfigFileUsed() == "" {
		check.fail(checkWarn, "no leapflow.yaml found, using defaults")
	}
	return check
}

func checkRawDir(cfg *config.Config) HealthCheck {
	check := HealthCheck{RuleID: "RW01", Name: "Raw directory", Group: groupRaw, Status: checkPass}
	if err := cfg.ValidateDirectories(); err != nil {
		check.fail(checkWarn, strings.SplitN(err.Error(), "\n", 2)[0])
	}
	return check
}

// checkRawTables reads each raw table the staging models read and verifies
// it carries every source column.
func checkRawTables(ctx context.Context, provider source.Provider) []HealthCheck {
	specs := models.StagingSpecs()
	checks := make([]HealthCheck, 0, len(specs))
	for i, spec := range specs {
		check := HealthCheck{
			RuleID: fmt.Sprintf("RW%02d", i+2),
			Name:   "Raw table " + spec.Source,
			Group:  groupRaw,
			Status: checkPass,
		}

		t, err := provider.RawTable(ctx, spec.Source)
		switch {
		case errors.Is(err, source.ErrTableNotFound):
			check.fail(checkError, "not found in the raw directory, the raw schema or the embedded seeds")
		case err != nil:
			check.fail(checkError, err.Error())
		default:
			var missing []string
			for _, col := range spec.SourceColumns() {
				if !t.HasColumn(col) {
					missing = append(missing, col)
				}
			}
			if len(missing) > 0 {
				check.fail(checkError, "missing columns: "+strings.Join(missing, ", "))
			} else if t.Len() == 0 {
				check.fail(checkWarn, "table has no rows")
			}
		}
		checks = append(checks, check)
	}
	return checks
}

func checkMaterialized(ctx context.Context, adp adapter.Adapter, schema string, defs []*core.Model) HealthCheck {
	check := HealthCheck{RuleID: "WH02", Name: "Pipeline tables", Group: groupWarehouse, Status: checkPass}
	d := adp.Dialect()
	for _, m := range defs {
		ok, err := adp.TableExists(ctx, d.ResolveSchema(schema), m.Name)
		if err != nil {
			check.fail(checkError, fmt.Sprintf("%s: %v", m.Name, err))
			continue
		}
		if !ok {
			check.fail(checkWarn, m.Name+" has not been materialized")
		}
	}
	return check
}

func checkLatestRun(cfg *config.Config, logger *slog.Logger) HealthCheck {
	check := HealthCheck{RuleID: "ST01", Name: "Latest run", Group: groupState, Status: checkPass}

	store, err := openStore(&CommandContext{Cfg: cfg, Logger: logger})
	if err != nil {
		check.fail(checkError, err.Error())
		return check
	}
	if store == nil {
		check.fail(checkWarn, "no run recorded yet")
		return check
	}
	defer func() { _ = store.Close() }()

	run, err := store.GetLatestRun(cfg.Environment)
	switch {
	case err != nil:
		check.fail(checkError, err.Error())
	case run == nil:
		check.fail(checkWarn, "no run recorded in environment "+cfg.Environment)
	case run.Status == core.RunStatusFailed:
		check.fail(checkError, fmt.Sprintf("run %s failed: %s", run.ID, run.Error))
	case run.Status == core.RunStatusPartial:
		check.fail(checkWarn, fmt.Sprintf("run %s was partial: %s", run.ID, run.Error))
	}
	return check
}

// calculateHealthScore computes a health score from 0-100.
// The scoring weights:
// - Each issue reduces points
// - More checks means issues have less individual impact
func calculateHealthScore(checks []HealthCheck, checkCount int) int {
	if len(checks) == 0 {
		return 100
	}

	score := 100.0

	basePenalty := 10.0
	if checkCount > 10 {
		basePenalty = 5.0
	}

	for _, check := range checks {
		switch check.Status {
		case checkError:
			score -= float64(check.IssueCount) * basePenalty * 2 // Errors count double
		case checkWarn:
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	if score < 0 {
		score = 0
	}
	return int(score)
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	seen := make(map[string]bool)

	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}

		rec := getRecommendation(check.RuleID)
		if rec != "" && !seen[rec] {
			recommendations = append(recommendations, rec)
			seen[rec] = true
		}
	}

	// Limit to top 5 recommendations
	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}

	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(ruleID string) string {
	switch {
	case ruleID == "CF01":
		return "Run `leapflow init` to create a leapflow.yaml"
	case ruleID == "RW01":
		return "Create the raw directory or point --raw-dir at your exports"
	case strings.HasPrefix(ruleID, "RW"):
		return "Export listings.csv and reviews.csv with the expected headers, or load them with `leapflow seed`"
	case ruleID == "WH01":
		return "Check the target settings and that the warehouse is reachable"
	case ruleID == "WH02", ruleID == "ST01":
		return "Run `leapflow run` to build the pipeline tables"
	default:
		return ""
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("LeapFlow Project Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	r.Println(styles.Header2.Render("Project Summary"))
	r.Printf("   Environment: %s | Target: %s\n", out.Summary.Environment, out.Summary.Target)
	r.Printf("   Models: %d | Raw tables: %d | Rules: %d\n", out.Summary.Models, out.Summary.RawTables, out.Summary.Rules)
	r.Printf("   DAG Depth: %d levels | Dependencies: %d\n", out.Summary.DAGDepth, out.Summary.EdgeCount)
	r.Println("")

	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.Success.Render("✓")
		switch check.Status {
		case checkWarn:
			icon = styles.Warning.Render("!")
		case checkError:
			icon = styles.Error.Render("✗")
		}

		status := fmt.Sprintf("%s %s: %s", icon, check.RuleID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + status)

		// Show first 3 details for issues
		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# LeapFlow Project Health Report")
	r.Println("")

	r.Println("## Project Summary")
	r.Println("")
	r.Println(output.FormatKeyValue("Environment", out.Summary.Environment))
	r.Println(output.FormatKeyValue("Target", out.Summary.Target))
	r.Printf("- **Models**: %d\n", out.Summary.Models)
	r.Printf("- **Raw tables**: %d\n", out.Summary.RawTables)
	r.Printf("- **Rules**: %d\n", out.Summary.Rules)
	r.Printf("- **DAG Depth**: %d levels\n", out.Summary.DAGDepth)
	r.Println("")

	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		r.Printf("- **[%s]** %s: %s", strings.ToUpper(check.Status), check.RuleID, check.Name)
		if check.IssueCount > 0 {
			r.Printf(" (%d issues)", check.IssueCount)
		}
		r.Println("")

		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
