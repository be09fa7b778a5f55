package toolcatalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentsql/bridge/internal/apierror"
	"github.com/agentsql/bridge/internal/funnel"
)

// RegisterFunnelTools wires get_sales_funnel_context, classify_sales_intent,
// get_query_template, and list_query_patterns against lib.
func RegisterFunnelTools(catalog *Catalog, lib *funnel.Library, requiredACLs []string) error {
	if err := catalog.Register("get_sales_funnel_context",
		"Return the sales-funnel intelligence document: core rules, date filters, stages, metrics, source mapping, status logic, anti-patterns, validation checklist, and referenced tables.",
		[]byte(`{"type": "object", "properties": {}}`), requiredACLs, handleFunnelContext(lib)); err != nil {
		return err
	}

	if err := catalog.Register("classify_sales_intent",
		"Classify a free-text sales question into categories, matching query patterns, and a date filter.",
		[]byte(`{
			"type": "object",
			"properties": {"question": {"type": "string"}},
			"required": ["question"]
		}`), requiredACLs, handleClassifySalesIntent(lib)); err != nil {
		return err
	}

	if err := catalog.Register("get_query_template",
		"Return the full rule package for a named query pattern.",
		[]byte(`{
			"type": "object",
			"properties": {"pattern_name": {"type": "string"}},
			"required": ["pattern_name"]
		}`), requiredACLs, handleGetQueryTemplate(lib)); err != nil {
		return err
	}

	if err := catalog.Register("list_query_patterns",
		"List every known query pattern with its description and keywords.",
		[]byte(`{"type": "object", "properties": {}}`), requiredACLs, handleListQueryPatterns(lib)); err != nil {
		return err
	}
	return nil
}

func handleFunnelContext(lib *funnel.Library) HandlerFunc {
	return func(_ context.Context, _ json.RawMessage) (string, error) {
		document := map[string]any{
			"core_rules":         lib.CoreRules,
			"date_filters":       lib.DateFilters,
			"stages":             lib.Stages,
			"metrics":            lib.Metrics,
			"source_mapping":     lib.Source,
			"status_logic":       lib.StatusLogic,
			"anti_patterns":      lib.AntiPatterns,
			"validation_checks":  lib.ValidationChecks,
			"tables":             lib.Tables,
		}
		return marshalJSON(document)
	}
}

func handleClassifySalesIntent(lib *funnel.Library) HandlerFunc {
	return func(_ context.Context, args json.RawMessage) (string, error) {
		var input struct {
			Question string `json:"question"`
		}
		if err := json.Unmarshal(args, &input); err != nil {
			return "", apierror.Wrap(apierror.KindValidation, "malformed classify_sales_intent arguments", err)
		}

		classification := lib.Classify(input.Question)
		patterns := make([]*funnel.QueryPattern, 0, len(classification.MatchedPatterns))
		for _, name := range classification.MatchedPatterns {
			if pattern, ok := lib.Pattern(name); ok {
				patterns = append(patterns, pattern)
			}
		}

		result := map[string]any{
			"categories":        classification.Categories,
			"required_patterns": classification.RequiredPatterns,
			"date_filter":       classification.DateFilter,
			"patterns":          patterns,
		}
		return marshalJSON(result)
	}
}

func handleGetQueryTemplate(lib *funnel.Library) HandlerFunc {
	return func(_ context.Context, args json.RawMessage) (string, error) {
		var input struct {
			PatternName string `json:"pattern_name"`
		}
		if err := json.Unmarshal(args, &input); err != nil {
			return "", apierror.Wrap(apierror.KindValidation, "malformed get_query_template arguments", err)
		}

		pattern, ok := lib.Pattern(input.PatternName)
		if !ok {
			return "", apierror.New(apierror.KindNotFound, fmt.Sprintf("unknown query pattern %q", input.PatternName))
		}

		rules := make([]funnel.CoreRule, 0, len(pattern.Rules))
		for _, name := range pattern.Rules {
			if rule, ok := lib.CoreRuleByName(name); ok {
				rules = append(rules, *rule)
			}
		}
		var dateFilter *funnel.DateFilter
		if pattern.DateFilter != "" {
			if df, ok := lib.DateFilterByName(pattern.DateFilter); ok {
				dateFilter = df
			}
		}
		var specialLogic string
		if pattern.SpecialLogic != "" {
			if resolved, ok := lib.ResolveSpecialLogic(pattern.SpecialLogic); ok {
				specialLogic = resolved
			}
		}

		result := map[string]any{
			"pattern":           pattern,
			"rules":             rules,
			"date_filter":       dateFilter,
			"validation_checks": pattern.ValidationChecks,
			"special_logic":     specialLogic,
		}
		return marshalJSON(result)
	}
}

func handleListQueryPatterns(lib *funnel.Library) HandlerFunc {
	return func(_ context.Context, _ json.RawMessage) (string, error) {
		type summary struct {
			Name        string   `json:"name"`
			Description string   `json:"description"`
			Keywords    []string `json:"keywords"`
		}
		summaries := make([]summary, 0, len(lib.Patterns))
		for _, pattern := range lib.Patterns {
			summaries = append(summaries, summary{Name: pattern.Name, Description: pattern.Description, Keywords: pattern.Keywords})
		}
		return marshalJSON(summaries)
	}
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("toolcatalog: marshal result: %w", err)
	}
	return string(data), nil
}
