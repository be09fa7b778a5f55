package toolcatalog

import (
	"context"
	"encoding/json"

	"github.com/agentsql/bridge/internal/apierror"
	"github.com/agentsql/bridge/internal/sqlanalyzer"
)

// RegisterAnalyzerTools wires analyze_query and generate_rules.
func RegisterAnalyzerTools(catalog *Catalog, requiredACLs []string) error {
	if err := catalog.Register("analyze_query",
		"Run the regex-based structural analyzer over a SQL string.",
		[]byte(`{
			"type": "object",
			"properties": {"sql": {"type": "string"}},
			"required": ["sql"]
		}`), requiredACLs, handleAnalyzeQuery); err != nil {
		return err
	}

	if err := catalog.Register("generate_rules",
		"Analyze a SQL query and emit a YAML rules fragment, a tool descriptor, and a code snippet.",
		[]byte(`{
			"type": "object",
			"properties": {
				"sql": {"type": "string"},
				"pattern_name": {"type": "string"},
				"description": {"type": "string"},
				"category": {"type": "string"},
				"intent_keywords": {"type": "array", "items": {"type": "string"}}
			},
			"required": ["sql", "pattern_name", "description", "category"]
		}`), requiredACLs, handleGenerateRules); err != nil {
		return err
	}
	return nil
}

func handleAnalyzeQuery(_ context.Context, args json.RawMessage) (string, error) {
	var input struct {
		SQL string `json:"sql"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", apierror.Wrap(apierror.KindValidation, "malformed analyze_query arguments", err)
	}
	analysis := sqlanalyzer.AnalyzeQuery(input.SQL)
	return marshalJSON(analysis)
}

func handleGenerateRules(_ context.Context, args json.RawMessage) (string, error) {
	var input struct {
		SQL            string   `json:"sql"`
		PatternName    string   `json:"pattern_name"`
		Description    string   `json:"description"`
		Category       string   `json:"category"`
		IntentKeywords []string `json:"intent_keywords"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", apierror.Wrap(apierror.KindValidation, "malformed generate_rules arguments", err)
	}

	generated, err := sqlanalyzer.GenerateRules(input.SQL, input.PatternName, input.Description, input.Category, input.IntentKeywords)
	if err != nil {
		return "", apierror.Wrap(apierror.KindBackendFailure, "generate_rules failed", err)
	}

	result := map[string]any{
		"yaml_rules": generated.YAMLRules,
		"tool":       generated.Tool,
		"snippet":    generated.Snippet,
	}
	return marshalJSON(result)
}
