package validate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lfstarlark "github.com/leapstack-labs/leapflow/internal/starlark"
	"github.com/leapstack-labs/leapflow/pkg/adapter"
	"github.com/leapstack-labs/leapflow/pkg/core"
)

// Result is the outcome of one rule.
type Result struct {
	Rule          Rule
	Passed        bool
	Skipped       bool
	ViolatingRows int64
	Severity      core.Severity
	Duration      time.Duration
	Err           error
}

// Runner evaluates rules through a warehouse adapter.
type Runner struct {
	adp    adapter.Adapter
	schema string
	env    string
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithEnvironment sets the value of the "env" global in expression rules.
func WithEnvironment(env string) Option {
	return func(r *Runner) { r.env = env }
}

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a Runner reading tables from schema.
func NewRunner(adp adapter.Adapter, schema string, opts ...Option) *Runner {
	r := &Runner{
		adp:    adp,
		schema: schema,
		env:    "dev",
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Validate evaluates one rule. Evaluation errors are reported in the result,
// never returned; a rule that could not be evaluated does not pass.
func (r *Runner) Validate(ctx context.Context, rule Rule) Result {
	start := time.Now()
	res := Result{Rule: rule, Severity: rule.Severity}
	if res.Severity == "" {
		res.Severity = core.SeverityError
	}

	var n int64
	var err error
	if rule.Kind == KindExpression {
		n, err = r.countExpression(ctx, rule)
	} else {
		n, err = r.countSQL(ctx, rule)
	}

	res.Duration = time.Since(start)
	res.ViolatingRows = n
	res.Err = err
	res.Passed = err == nil && n == 0

	attrs := []any{
		slog.String("rule", rule.Name),
		slog.String("table", rule.Table),
		slog.Bool("passed", res.Passed),
		slog.Int64("violating_rows", n),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	r.logger.Debug("rule evaluated", attrs...)
	return res
}

// Run evaluates rules in order. A rule reading a table for which
// materialized returns false is skipped.
func (r *Runner) Run(ctx context.Context, rules []Rule, materialized func(table string) bool) []Result {
	results := make([]Result, 0, len(rules))
	for _, rule := range rules {
		if ctx.Err() != nil {
			results = append(results, Result{Rule: rule, Severity: rule.Severity, Err: ctx.Err()})
			continue
		}
		if missing := firstMissing(rule, materialized); missing != "" {
			r.logger.Debug("rule skipped", slog.String("rule", rule.Name), slog.String("missing", missing))
			results = append(results, Result{Rule: rule, Severity: rule.Severity, Skipped: true})
			continue
		}
		results = append(results, r.Validate(ctx, rule))
	}
	return results
}

func firstMissing(rule Rule, materialized func(string) bool) string {
	if materialized == nil {
		return ""
	}
	for _, t := range rule.Tables() {
		if !materialized(t) {
			return t
		}
	}
	return ""
}

func (r *Runner) countSQL(ctx context.Context, rule Rule) (int64, error) {
	query, err := rule.CountSQL(r.adp.Dialect(), r.schema)
	if err != nil {
		return 0, err
	}

	rows, err := r.adp.Query(ctx, query)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var n sql.NullInt64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("scan violation count: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return n.Int64, nil
}

func (r *Runner) countExpression(ctx context.Context, rule Rule) (int64, error) {
	if err := rule.Check(); err != nil {
		return 0, err
	}

	d := r.adp.Dialect()
	rs, err := adapter.ReadAll(ctx, r.adp, "SELECT * FROM "+d.QualifiedName(r.schema, rule.Table))
	if err != nil {
		return 0, err
	}

	env := lfstarlark.NewEnv(r.env,
		&lfstarlark.TargetInfo{Type: d.Name, Schema: d.ResolveSchema(r.schema)},
		&lfstarlark.ThisInfo{Name: rule.Table, Schema: d.ResolveSchema(r.schema)})
	pred, err := env.Compile(rule.Name, rule.Expr)
	if err != nil {
		return 0, err
	}

	var n int64
	for i, values := range rs.Rows {
		row, err := lfstarlark.Row(rs.Columns, values)
		if err != nil {
			return n, fmt.Errorf("row %d: %w", i+1, err)
		}
		violates, err := pred.Match(row)
		if err != nil {
			return n, fmt.Errorf("row %d: %w", i+1, err)
		}
		if violates {
			n++
		}
	}
	return n, nil
}

// Summary counts failed rules by severity. Skipped rules count as neither.
func Summary(results []Result) (errs, warnings, skipped int) {
	for _, res := range results {
		switch {
		case res.Skipped:
			skipped++
		case res.Passed:
		case res.Severity == core.SeverityWarn:
			warnings++
		default:
			errs++
		}
	}
	return errs, warnings, skipped
}

// Err joins the failures of error-severity rules.
func Err(results []Result) error {
	var errs []error
	for _, res := range results {
		if res.Skipped || res.Passed || res.Severity == core.SeverityWarn {
			continue
		}
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", res.Rule.Name, res.Err))
			continue
		}
		errs = append(errs, fmt.Errorf("rule %s: %d violating rows", res.Rule.Name, res.ViolatingRows))
	}
	return errors.Join(errs...)
}
