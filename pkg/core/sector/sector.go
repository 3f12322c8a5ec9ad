// Package sector maps free-text sector labels to debt-to-equity thresholds.
// The resolver is total: every label, including an unrecognized or empty one,
// resolves to exactly one threshold.
package sector

import "strings"

// Rule matches sector labels containing Keyword (case-insensitive) to a
// debt-to-equity threshold. First match wins.
type Rule struct {
	Keyword   string  `yaml:"keyword" json:"keyword"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// DefaultThreshold applies when no rule matches.
const DefaultThreshold = 1.0

// DefaultRules is the built-in threshold table. Capital-intensive and lending
// businesses run structurally higher leverage; asset-light services should
// carry almost none. Values are configuration defaults, not calibrated law.
func DefaultRules() []Rule {
	return []Rule{
		{Keyword: "Bank", Threshold: 2.0},
		{Keyword: "Power", Threshold: 2.0},
		{Keyword: "Infrastructure", Threshold: 2.0},
		{Keyword: "Finance", Threshold: 1.8},
		{Keyword: "NBFC", Threshold: 1.8},
		{Keyword: "Metal", Threshold: 1.2},
		{Keyword: "Cement", Threshold: 1.2},
		{Keyword: "Auto", Threshold: 0.8},
		{Keyword: "Pharma", Threshold: 0.7},
		{Keyword: "FMCG", Threshold: 0.6},
		{Keyword: "IT", Threshold: 0.3},
		{Keyword: "Software", Threshold: 0.3},
	}
}

// Resolver resolves sector labels against an ordered rule table.
type Resolver struct {
	rules    []Rule
	fallback float64
}

// NewResolver builds a resolver over the given rules. Nil or empty rules fall
// back to the built-in table.
func NewResolver(rules []Rule) *Resolver {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Resolver{rules: rules, fallback: DefaultThreshold}
}

// Threshold returns the debt-to-equity threshold for a sector label.
func (r *Resolver) Threshold(sectorLabel string) float64 {
	label := strings.ToLower(sectorLabel)
	for _, rule := range r.rules {
		if strings.Contains(label, strings.ToLower(rule.Keyword)) {
			return rule.Threshold
		}
	}
	return r.fallback
}
