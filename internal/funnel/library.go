// Package funnel is the declarative sales-funnel intelligence document: the
// core rules, date-filter templates, funnel stage/metric/source/status
// definitions, anti-patterns, and the named query-pattern library that
// get_sales_funnel_context, classify_sales_intent, get_query_template, and
// list_query_patterns draw on. original_source/ carried no usable data for
// this domain, so the concrete rule text below is authored to the shape
// spec.md §4.D describes rather than translated from a prior system.
package funnel

// CoreRule is one non-negotiable convention BI queries against the sales
// schema must follow.
type CoreRule struct {
	Name string `yaml:"name"`
	Rule string `yaml:"rule"`
}

// DateFilter is a named, reusable date-window template.
type DateFilter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Expression  string `yaml:"expression"`
}

// Stage is one funnel stage definition.
type Stage struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Order       int    `yaml:"order"`
}

// Metric is a named, precisely-defined metric.
type Metric struct {
	Name       string `yaml:"name"`
	Definition string `yaml:"definition"`
}

// SourceMapping documents how a lead's channel is derived from raw columns.
type SourceMapping struct {
	CaseExpression string `yaml:"case_expression"`
}

// QueryPattern is a named, reusable query shape with classification
// metadata used by classify_sales_intent.
type QueryPattern struct {
	Name              string   `yaml:"name"`
	Description       string   `yaml:"description"`
	Keywords          []string `yaml:"keywords"`
	Categories        []string `yaml:"categories"`
	DateFilter        string   `yaml:"date_filter"`
	Rules             []string `yaml:"rules"`
	ValidationChecks  []string `yaml:"validation_checks"`
	SpecialLogic      string   `yaml:"special_logic,omitempty"`
	RequiredByDefault bool     `yaml:"-"`
}

// KeywordGroup is one of the four declarative scoring dimensions
// classify_sales_intent tokenizes a question against.
type KeywordGroup struct {
	Name     string
	Keywords []string
}

// Library is the full intelligence document.
type Library struct {
	CoreRules         []CoreRule
	DateFilters       []DateFilter
	Stages            []Stage
	Metrics           []Metric
	Source            SourceMapping
	StatusLogic       []string
	AntiPatterns      []string
	ValidationChecks  []string
	Tables            []string
	Patterns          []QueryPattern
	TimePeriodGroup   KeywordGroup
	MetricGroup       KeywordGroup
	GranularityGroup  KeywordGroup
	FilterGroup       KeywordGroup
	DefaultPatternName string
}

// Default returns the library wired into the catalog at startup.
func Default() *Library {
	return &Library{
		CoreRules: []CoreRule{
			{Name: "read_only", Rule: "Every query is a SELECT; never mutate sales data from a BI tool."},
			{Name: "timezone", Rule: "Convert timestamps to the reporting timezone with `AT TIME ZONE` before date-truncating."},
			{Name: "soft_delete", Rule: "Filter `deleted_at IS NULL` on every table that carries the column."},
			{Name: "stage_order", Rule: "Funnel stage comparisons use the numeric `stage_order` column, never the stage name's lexical order."},
		},
		DateFilters: []DateFilter{
			{Name: "mtd_current", Description: "Month to date, current month.",
				Expression: "created_at >= date_trunc('month', CURRENT_DATE)"},
			{Name: "trailing_3_months", Description: "Rolling trailing three full months.",
				Expression: "created_at >= date_trunc('month', CURRENT_DATE) - interval '3 months'"},
			{Name: "prior_year_mtd", Description: "Same month-to-date window, one year prior.",
				Expression: "created_at >= date_trunc('month', CURRENT_DATE - interval '1 year')"},
		},
		Stages: []Stage{
			{Name: "lead", Description: "Raw inbound lead, not yet qualified.", Order: 1},
			{Name: "qualified", Description: "Lead has passed BANT qualification.", Order: 2},
			{Name: "opportunity", Description: "Qualified lead with an open opportunity record.", Order: 3},
			{Name: "closed_won", Description: "Opportunity closed with a signed contract.", Order: 4},
			{Name: "closed_lost", Description: "Opportunity closed without a contract.", Order: 5},
		},
		Metrics: []Metric{
			{Name: "conversion_rate", Definition: "closed_won count / lead count for the same cohort window."},
			{Name: "average_deal_size", Definition: "avg(amount) over closed_won opportunities in the window."},
			{Name: "sales_cycle_days", Definition: "avg(closed_at - created_at) in days, closed_won only."},
		},
		Source: SourceMapping{
			CaseExpression: "CASE " +
				"WHEN utm_source IN ('google', 'bing') THEN 'paid_search' " +
				"WHEN utm_source = 'linkedin' THEN 'paid_social' " +
				"WHEN referrer_domain IS NOT NULL THEN 'organic_referral' " +
				"ELSE 'direct' END",
		},
		StatusLogic: []string{
			"A lead is 'active' when stage_order < 4 and deleted_at IS NULL.",
			"A lead is 'stale' when active and updated_at older than 30 days.",
		},
		AntiPatterns: []string{
			"Do not filter on stage name with LIKE; use stage_order.",
			"Do not join leads to opportunities without deduping on the latest opportunity per lead.",
			"Do not trust utm_source alone for channel; fall back to referrer_domain.",
		},
		ValidationChecks: []string{
			"Row counts are non-negative and finite.",
			"Date filters never produce a window extending into the future.",
			"Aggregates are computed after, not before, the soft-delete filter.",
		},
		Tables: []string{"leads", "opportunities", "accounts", "stage_history"},
		TimePeriodGroup: KeywordGroup{Name: "time_period",
			Keywords: []string{"today", "yesterday", "week", "month", "mtd", "quarter", "year", "trailing", "ytd"}},
		MetricGroup: KeywordGroup{Name: "metric",
			Keywords: []string{"conversion", "rate", "count", "total", "average", "deal size", "cycle", "revenue"}},
		GranularityGroup: KeywordGroup{Name: "granularity",
			Keywords: []string{"daily", "weekly", "monthly", "by day", "by week", "by month", "breakdown"}},
		FilterGroup: KeywordGroup{Name: "filter",
			Keywords: []string{"active", "stale", "closed", "won", "lost", "source", "channel", "stage"}},
		DefaultPatternName: "funnel_overview",
		Patterns: []QueryPattern{
			{
				Name:             "funnel_overview",
				Description:      "Counts of leads at each funnel stage for the active window.",
				Keywords:         []string{"funnel", "overview", "stage", "pipeline"},
				Categories:       []string{"funnel"},
				DateFilter:       "mtd_current",
				Rules:            []string{"read_only", "soft_delete", "stage_order"},
				ValidationChecks: []string{"Row counts are non-negative and finite."},
			},
			{
				Name:             "conversion_rate_by_source",
				Description:      "Lead-to-closed-won conversion rate, broken down by acquisition source.",
				Keywords:         []string{"conversion", "rate", "source", "channel"},
				Categories:       []string{"funnel", "metric"},
				DateFilter:       "trailing_3_months",
				Rules:            []string{"read_only", "soft_delete"},
				ValidationChecks: []string{"Aggregates are computed after, not before, the soft-delete filter."},
				SpecialLogic:     "source.case_expression",
			},
			{
				Name:             "sales_cycle_length",
				Description:      "Average days from lead creation to closed_won, trailing 3 months vs. prior-year MTD.",
				Keywords:         []string{"cycle", "days", "average", "speed"},
				Categories:       []string{"metric"},
				DateFilter:       "prior_year_mtd",
				Rules:            []string{"read_only", "timezone"},
				ValidationChecks: []string{"Date filters never produce a window extending into the future."},
			},
			{
				Name:              "stale_lead_audit",
				Description:       "Leads that are active but have not been touched in 30+ days.",
				Keywords:          []string{"stale", "untouched", "audit", "active"},
				Categories:        []string{"filter"},
				DateFilter:        "mtd_current",
				Rules:             []string{"read_only", "stage_order"},
				ValidationChecks:  []string{"Row counts are non-negative and finite."},
				RequiredByDefault: false,
			},
		},
	}
}

// Pattern looks up a query pattern by name.
func (l *Library) Pattern(name string) (*QueryPattern, bool) {
	for i := range l.Patterns {
		if l.Patterns[i].Name == name {
			return &l.Patterns[i], true
		}
	}
	return nil, false
}

// DateFilterByName looks up a date filter by name.
func (l *Library) DateFilterByName(name string) (*DateFilter, bool) {
	for i := range l.DateFilters {
		if l.DateFilters[i].Name == name {
			return &l.DateFilters[i], true
		}
	}
	return nil, false
}

// CoreRuleByName looks up a core rule by name.
func (l *Library) CoreRuleByName(name string) (*CoreRule, bool) {
	for i := range l.CoreRules {
		if l.CoreRules[i].Name == name {
			return &l.CoreRules[i], true
		}
	}
	return nil, false
}

// ResolveSpecialLogic dereferences a dotted key path such as
// "source.case_expression" against the library.
func (l *Library) ResolveSpecialLogic(path string) (string, bool) {
	switch path {
	case "source.case_expression":
		return l.Source.CaseExpression, true
	default:
		return "", false
	}
}
