package toolcatalog

import (
	"context"
	"encoding/json"

	"github.com/agentsql/bridge/internal/apierror"
	"github.com/agentsql/bridge/internal/biclient"
	"github.com/agentsql/bridge/internal/sqlanalyzer"
)

// RegisterRedashTools wires fetch_redash_query and generate_rules_from_redash
// against client.
func RegisterRedashTools(catalog *Catalog, client *biclient.Client, requiredACLs []string) error {
	if err := catalog.Register("fetch_redash_query",
		"Fetch one or more BI queries by id from the query store.",
		[]byte(`{
			"type": "object",
			"properties": {"query_ids": {"type": "string"}},
			"required": ["query_ids"]
		}`), requiredACLs, handleFetchRedashQuery(client)); err != nil {
		return err
	}

	if err := catalog.Register("generate_rules_from_redash",
		"Fetch BI queries by id, then run generate_rules against each.",
		[]byte(`{
			"type": "object",
			"properties": {
				"query_ids": {"type": "string"},
				"category": {"type": "string"},
				"intent_keywords": {"type": "array", "items": {"type": "string"}}
			},
			"required": ["query_ids"]
		}`), requiredACLs, handleGenerateRulesFromRedash(client)); err != nil {
		return err
	}
	return nil
}

type fetchOutcome struct {
	ID      int    `json:"id"`
	Query   *biclient.Query `json:"query,omitempty"`
	Error   string `json:"error,omitempty"`
}

func handleFetchRedashQuery(client *biclient.Client) HandlerFunc {
	return func(ctx context.Context, args json.RawMessage) (string, error) {
		var input struct {
			QueryIDs string `json:"query_ids"`
		}
		if err := json.Unmarshal(args, &input); err != nil {
			return "", apierror.Wrap(apierror.KindValidation, "malformed fetch_redash_query arguments", err)
		}

		ids, err := biclient.ParseQueryIDs(input.QueryIDs)
		if err != nil {
			return "", apierror.Wrap(apierror.KindValidation, "malformed query_ids", err)
		}

		outcomes := make([]fetchOutcome, 0, len(ids))
		for _, result := range client.FetchQueries(ctx, ids) {
			outcome := fetchOutcome{ID: result.ID, Query: result.Query}
			if result.Err != nil {
				outcome.Error = result.Err.Error()
			}
			outcomes = append(outcomes, outcome)
		}
		return marshalJSON(outcomes)
	}
}

func handleGenerateRulesFromRedash(client *biclient.Client) HandlerFunc {
	return func(ctx context.Context, args json.RawMessage) (string, error) {
		var input struct {
			QueryIDs       string   `json:"query_ids"`
			Category       string   `json:"category"`
			IntentKeywords []string `json:"intent_keywords"`
		}
		if err := json.Unmarshal(args, &input); err != nil {
			return "", apierror.Wrap(apierror.KindValidation, "malformed generate_rules_from_redash arguments", err)
		}

		ids, err := biclient.ParseQueryIDs(input.QueryIDs)
		if err != nil {
			return "", apierror.Wrap(apierror.KindValidation, "malformed query_ids", err)
		}

		type generated struct {
			ID      int    `json:"id"`
			Name    string `json:"name,omitempty"`
			Rules   any    `json:"rules,omitempty"`
			Error   string `json:"error,omitempty"`
		}

		results := make([]generated, 0, len(ids))
		for _, fetched := range client.FetchQueries(ctx, ids) {
			if fetched.Err != nil {
				results = append(results, generated{ID: fetched.ID, Error: fetched.Err.Error()})
				continue
			}

			patternName := fetched.Query.Name
			rules, err := sqlanalyzer.GenerateRules(fetched.Query.Query, patternName, fetched.Query.Description, input.Category, input.IntentKeywords)
			if err != nil {
				results = append(results, generated{ID: fetched.ID, Error: err.Error()})
				continue
			}
			results = append(results, generated{ID: fetched.ID, Name: patternName, Rules: rules})
		}
		return marshalJSON(results)
	}
}
