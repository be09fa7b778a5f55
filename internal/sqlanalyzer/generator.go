package sqlanalyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/agentsql/bridge/pkg/models"
)

// GeneratedRules is the three-artifact output of GenerateRules.
type GeneratedRules struct {
	YAMLRules string
	Tool      models.ToolDescriptor
	Snippet   string
}

// rulesDocument's field order is the YAML key order yaml.v3 emits, giving
// deterministic output without a custom encoder.
type rulesDocument struct {
	PatternName string    `yaml:"pattern_name"`
	Category    string    `yaml:"category"`
	Description string    `yaml:"description"`
	Keywords    []string  `yaml:"intent_keywords,omitempty"`
	Structure   string    `yaml:"structure"`
	Analysis    *Analysis `yaml:"analysis"`
}

// GenerateRules invokes the analyzer, then emits the YAML rules fragment,
// a tool descriptor conditioned on which analyzer dimensions were
// non-empty, and a code snippet embedding sql verbatim. Output is
// deterministic: the same inputs always produce the same three artifacts.
func GenerateRules(sql, patternName, description, category string, intentKeywords []string) (*GeneratedRules, error) {
	analysis := AnalyzeQuery(sql)

	doc := rulesDocument{
		PatternName: patternName,
		Category:    category,
		Description: description,
		Keywords:    intentKeywords,
		Structure:   analysis.Structure,
		Analysis:    analysis,
	}
	yamlBytes, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("sqlanalyzer: marshal rules yaml: %w", err)
	}

	descriptor := buildToolDescriptor(patternName, description, analysis)
	snippet := buildSnippet(patternName, sql)

	return &GeneratedRules{YAMLRules: string(yamlBytes), Tool: descriptor, Snippet: snippet}, nil
}

func buildToolDescriptor(patternName, description string, analysis *Analysis) models.ToolDescriptor {
	properties := map[string]any{
		"limit": map[string]any{"type": "integer", "description": "Maximum rows to return."},
	}
	required := []string{}

	if len(analysis.DateFilters) > 0 {
		properties["start_date"] = map[string]any{"type": "string", "format": "date"}
		properties["end_date"] = map[string]any{"type": "string", "format": "date"}
	}
	if len(analysis.Exclusions) > 0 {
		properties["exclude"] = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
	schemaJSON, _ := json.Marshal(schema)

	return models.ToolDescriptor{
		Name:        patternName,
		Description: description,
		InputSchema: schemaJSON,
	}
}

func buildSnippet(patternName, sql string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "func %s(ctx context.Context, pool *dbpool.Pool) (*dbpool.Result, error) {\n", toGoFuncName(patternName))
	b.WriteString("\tconst query = `\n")
	b.WriteString(sql)
	b.WriteString("\n\t`\n")
	b.WriteString("\treturn pool.ExecuteReadOnly(ctx, query)\n}\n")
	return b.String()
}

func toGoFuncName(patternName string) string {
	parts := strings.Split(patternName, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
