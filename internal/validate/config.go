package validate

import (
	"fmt"

	"github.com/leapstack-labs/leapflow/pkg/core"
)

// RuleConfig is a rule as declared under "tests" in leapflow.yaml:
//
//	tests:
//	  - name: availability_in_year
//	    table: dim_listings
//	    expr: "row['availability_365'] > 365"
//	  - table: dim_listings
//	    type: accepted_values
//	    column: room_type
//	    values: [Entire home/apt, Private room, Shared room, Hotel room]
//	    severity: warn
type RuleConfig struct {
	Name     string   `koanf:"name"`
	Table    string   `koanf:"table"`
	Type     string   `koanf:"type"`
	Where    string   `koanf:"where"`
	Expr     string   `koanf:"expr"`
	Column   string   `koanf:"column"`
	Values   []string `koanf:"values"`
	To       string   `koanf:"to"`
	Field    string   `koanf:"field"`
	Severity string   `koanf:"severity"`
}

// Rule converts the declaration into a checked Rule.
func (c RuleConfig) Rule() (Rule, error) {
	var r Rule
	switch {
	case c.Where != "" && c.Expr != "":
		return Rule{}, fmt.Errorf("rule %q: set either where or expr, not both", c.Name)
	case c.Where != "":
		r = Predicate(c.Name, c.Table, c.Where)
	case c.Expr != "":
		r = Expression(c.Name, c.Table, c.Expr)
	default:
		switch Kind(c.Type) {
		case KindNotNull:
			r = NotNull(c.Table, c.Column)
		case KindUnique:
			r = Unique(c.Table, c.Column)
		case KindAcceptedValues:
			r = AcceptedValues(c.Table, c.Column, c.Values...)
		case KindRelationships:
			r = Relationships(c.Table, c.Column, c.To, c.Field)
		case "":
			return Rule{}, fmt.Errorf("rule %q: needs where, expr or type", c.Name)
		default:
			return Rule{}, fmt.Errorf("rule %q: unknown type %q", c.Name, c.Type)
		}
		if c.Name != "" {
			r.Name = c.Name
		}
	}

	r.Severity = core.ParseSeverity(c.Severity)
	if err := r.Check(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// RulesFromConfig converts declarations, failing on the first bad one.
func RulesFromConfig(cfgs []RuleConfig) ([]Rule, error) {
	rules := make([]Rule, 0, len(cfgs))
	seen := make(map[string]bool, len(cfgs))
	for i, c := range cfgs {
		r, err := c.Rule()
		if err != nil {
			return nil, fmt.Errorf("tests[%d]: %w", i, err)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("tests[%d]: duplicate rule name %q", i, r.Name)
		}
		seen[r.Name] = true
		rules = append(rules, r)
	}
	return rules, nil
}
