package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapflow/internal/cli/output"
	"github.com/leapstack-labs/leapflow/internal/validate"
	"github.com/leapstack-labs/leapflow/pkg/adapter"
	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/spf13/cobra"
)

// RulesOptions holds options for the rules command.
type RulesOptions struct {
	Table   string // Filter by table
	Kind    string // Filter by kind: predicate, not_null, ...
	Verbose bool   // Show description and check
	Format  string // Output format
}

// RuleInfo describes one data-quality rule for display.
type RuleInfo struct {
	Name        string   `json:"name"`
	Table       string   `json:"table"`
	Kind        string   `json:"kind"`
	Severity    string   `json:"severity"`
	Description string   `json:"description,omitempty"`
	Column      string   `json:"column,omitempty"`
	Values      []string `json:"values,omitempty"`
	Check       string   `json:"check"`
}

// NewRulesCommand creates the rules command.
func NewRulesCommand() *cobra.Command {
	opts := &RulesOptions{}
	cmd := &cobra.Command{
		Use:   "rules [rule-name]",
		Short: "List the data-quality rules",
		Long: `List the data-quality rules checked after each run: the standing rules
of the pipeline and the tests declared in leapflow.yaml.

Rules are grouped by the table they check. Use --verbose to see each rule's
description and the check it runs against the target warehouse.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # List all rules
  leapflow rules

  # Show the SQL behind a rule
  leapflow rules dim_listings_price_positive

  # Rules on one table
  leapflow rules --table dim_listings

  # Only uniqueness rules, with checks
  leapflow rules --kind unique -V

  # Output as JSON
  leapflow rules --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return showRule(cmd, args[0], opts)
			}
			return listRules(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Table, "table", "", "Filter by checked table")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "Filter by kind: predicate, expression, not_null, unique, accepted_values, relationships")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "V", false, "Show descriptions and checks")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, json, markdown")

	return cmd
}

// loadRuleInfos describes the engine's rules, rendering SQL checks in the
// target dialect.
func loadRuleInfos(cmd *cobra.Command) ([]RuleInfo, *output.Renderer, error) {
	cmdCtx := NewCommandContextWithoutEngine(cmd)

	eng, err := createPlanningEngine(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = eng.Close() }()

	var dialect *adapter.Dialect
	if adp, err := adapter.NewAdapter(cmdCtx.Cfg.Target.AdapterConfig(), cmdCtx.Logger); err == nil {
		dialect = adp.Dialect()
	}

	rules := eng.Rules()
	infos := make([]RuleInfo, 0, len(rules))
	for _, rule := range rules {
		infos = append(infos, describeRule(rule, dialect, cmdCtx.Cfg.Target.Schema))
	}
	return infos, cmdCtx.Renderer, nil
}

func describeRule(rule validate.Rule, d *adapter.Dialect, schema string) RuleInfo {
	info := RuleInfo{
		Name:        rule.Name,
		Table:       rule.Table,
		Kind:        string(rule.Kind),
		Severity:    string(rule.Severity),
		Description: rule.Description,
		Column:      rule.Column,
		Values:      rule.Values,
	}

	switch {
	case rule.Kind == validate.KindExpression:
		info.Check = rule.Expr
	case d != nil:
		if q, err := rule.CountSQL(d, schema); err == nil {
			info.Check = q
		}
	case rule.Kind == validate.KindPredicate:
		info.Check = rule.Where
	}
	return info
}

func listRules(cmd *cobra.Command, opts *RulesOptions) error {
	rules, r, err := loadRuleInfos(cmd)
	if err != nil {
		return err
	}
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.OutputMode(opts.Format))
	}

	rules = filterRulesByOptions(rules, opts)

	// Stable so rules on one table keep their declaration order
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Table < rules[j].Table
	})

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return listRulesJSON(r, rules)
	case output.ModeMarkdown:
		return listRulesMarkdown(r, rules, opts.Verbose)
	default:
		return listRulesText(r, rules, opts.Verbose)
	}
}

func filterRulesByOptions(rules []RuleInfo, opts *RulesOptions) []RuleInfo {
	if opts.Table == "" && opts.Kind == "" {
		return rules
	}

	var filtered []RuleInfo
	for _, r := range rules {
		if opts.Table != "" && r.Table != opts.Table {
			continue
		}
		if opts.Kind != "" && r.Kind != opts.Kind {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func showRule(cmd *cobra.Command, name string, opts *RulesOptions) error {
	rules, r, err := loadRuleInfos(cmd)
	if err != nil {
		return err
	}
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.OutputMode(opts.Format))
	}

	var rule *RuleInfo
	for i := range rules {
		if rules[i].Name == name {
			rule = &rules[i]
			break
		}
	}
	if rule == nil {
		return fmt.Errorf("rule not found: %s", name)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(rule)
	case output.ModeMarkdown:
		return showRuleMarkdown(r, rule)
	default:
		return showRuleText(r, rule)
	}
}

// listRulesText outputs rules in styled text format.
func listRulesText(r *output.Renderer, rules []RuleInfo, verbose bool) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render(fmt.Sprintf("Data-Quality Rules (%d)", len(rules))))
	r.Println("")

	currentTable := ""
	for _, rule := range rules {
		if rule.Table != currentTable {
			currentTable = rule.Table
			r.Println(styles.Header2.Render(currentTable))
		}

		r.Printf("    %s  %s - %s\n",
			rule.Name,
			styles.Muted.Render(rule.Kind),
			styles.Severity(severityOf(rule)).Render(rule.Severity),
		)

		if verbose {
			if rule.Description != "" {
				r.Println(styles.Muted.Render("        " + rule.Description))
			}
			if rule.Check != "" {
				r.Println(styles.Muted.Render("        Check: " + truncateOneLine(rule.Check, 100)))
			}
			r.Println("")
		}
	}

	r.Println("")
	r.Println(styles.Muted.Render("Use 'leapflow rules <rule-name>' for the full check"))
	r.Println("")

	return nil
}

// listRulesMarkdown outputs rules in markdown format.
func listRulesMarkdown(r *output.Renderer, rules []RuleInfo, verbose bool) error {
	r.Println("# Data-Quality Rules")
	r.Println("")

	currentTable := ""
	for _, rule := range rules {
		if rule.Table != currentTable {
			currentTable = rule.Table
			r.Println("## " + currentTable)
			r.Println("")
		}

		r.Printf("- **%s** - %s (`%s`)\n", rule.Name, rule.Kind, rule.Severity)
		if verbose {
			if rule.Description != "" {
				r.Println("  " + rule.Description)
			}
			if rule.Check != "" {
				r.Println("  > `" + truncateOneLine(rule.Check, 200) + "`")
			}
		}
	}

	r.Println("")
	return nil
}

// RulesJSONOutput is the JSON output structure for rules listing.
type RulesJSONOutput struct {
	Rules []RuleInfo `json:"rules"`
	Count struct {
		Error int `json:"error"`
		Warn  int `json:"warn"`
		Total int `json:"total"`
	} `json:"count"`
}

// listRulesJSON outputs rules in JSON format.
func listRulesJSON(r *output.Renderer, rules []RuleInfo) error {
	jsonOutput := RulesJSONOutput{Rules: rules}
	if jsonOutput.Rules == nil {
		jsonOutput.Rules = []RuleInfo{}
	}

	for _, rule := range rules {
		if severityOf(rule) == core.SeverityWarn {
			jsonOutput.Count.Warn++
		} else {
			jsonOutput.Count.Error++
		}
	}
	jsonOutput.Count.Total = len(rules)

	return r.JSON(jsonOutput)
}

// showRuleText displays detailed rule info in text format.
func showRuleText(r *output.Renderer, rule *RuleInfo) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render(rule.Name))
	r.Println("")
	r.Printf("  %s %s\n", styles.Muted.Render("Table:   "), rule.Table)
	r.Printf("  %s %s\n", styles.Muted.Render("Kind:    "), rule.Kind)
	r.Printf("  %s %s\n", styles.Muted.Render("Severity:"), styles.Severity(severityOf(*rule)).Render(rule.Severity))
	if rule.Column != "" {
		r.Printf("  %s %s\n", styles.Muted.Render("Column:  "), rule.Column)
	}
	if len(rule.Values) > 0 {
		r.Printf("  %s %s\n", styles.Muted.Render("Accepted:"), strings.Join(rule.Values, ", "))
	}
	r.Println("")

	if rule.Description != "" {
		r.Println(styles.Header2.Render("Description"))
		r.Println("  " + rule.Description)
		r.Println("")
	}

	if rule.Check != "" {
		r.Println(styles.Header2.Render("Check"))
		r.Println("  " + rule.Check)
		r.Println("")
	}

	return nil
}

// showRuleMarkdown displays detailed rule info in markdown format.
func showRuleMarkdown(r *output.Renderer, rule *RuleInfo) error {
	r.Println("# " + rule.Name)
	r.Println("")
	r.Println(output.FormatKeyValue("Table", rule.Table))
	r.Println(output.FormatKeyValue("Kind", rule.Kind))
	r.Println(output.FormatKeyValue("Severity", rule.Severity))
	if rule.Column != "" {
		r.Println(output.FormatKeyValue("Column", rule.Column))
	}
	if len(rule.Values) > 0 {
		r.Println(output.FormatKeyValue("Accepted", strings.Join(rule.Values, ", ")))
	}
	r.Println("")

	if rule.Description != "" {
		r.Println("## Description")
		r.Println("")
		r.Println(rule.Description)
		r.Println("")
	}

	if rule.Check != "" {
		r.Println("## Check")
		r.Println("")
		r.Println("```")
		r.Println(rule.Check)
		r.Println("```")
		r.Println("")
	}

	return nil
}

// Helper functions

func severityOf(rule RuleInfo) core.Severity {
	return core.Severity(rule.Severity)
}

func truncateOneLine(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
