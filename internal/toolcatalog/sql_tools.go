package toolcatalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentsql/bridge/internal/apierror"
	"github.com/agentsql/bridge/internal/dbpool"
)

// RegisterSQLTools wires query, list_tables, describe_table, and
// list_schemas against pool, per §4.A/§4.D.
func RegisterSQLTools(catalog *Catalog, pool *dbpool.Pool, requiredACLs []string) error {
	if err := catalog.Register("query", "Run read-only SQL against the production database.",
		[]byte(`{
			"type": "object",
			"properties": {
				"sql": {"type": "string"},
				"params": {"type": "array", "items": {}}
			},
			"required": ["sql"]
		}`), requiredACLs, handleQuery(pool)); err != nil {
		return err
	}

	if err := catalog.Register("list_tables", "List base tables in a schema.",
		[]byte(`{
			"type": "object",
			"properties": {"schema": {"type": "string"}}
		}`), requiredACLs, handleListTables(pool)); err != nil {
		return err
	}

	if err := catalog.Register("describe_table", "Describe a table's columns.",
		[]byte(`{
			"type": "object",
			"properties": {
				"table_name": {"type": "string"},
				"schema": {"type": "string"}
			},
			"required": ["table_name"]
		}`), requiredACLs, handleDescribeTable(pool)); err != nil {
		return err
	}

	if err := catalog.Register("list_schemas", "List non-system schemas.",
		[]byte(`{"type": "object", "properties": {}}`), requiredACLs, handleListSchemas(pool)); err != nil {
		return err
	}
	return nil
}

func handleQuery(pool *dbpool.Pool) HandlerFunc {
	return func(ctx context.Context, args json.RawMessage) (string, error) {
		var input struct {
			SQL    string `json:"sql"`
			Params []any  `json:"params"`
		}
		if err := json.Unmarshal(args, &input); err != nil {
			return "", apierror.Wrap(apierror.KindValidation, "malformed query arguments", err)
		}

		result, err := pool.ExecuteReadOnly(ctx, input.SQL, input.Params...)
		if err != nil {
			if err == dbpool.ErrPoolExhausted {
				return "", apierror.Wrap(apierror.KindBackendFailure, "connection pool exhausted", err)
			}
			return "", apierror.Wrap(apierror.KindBackendFailure, "query failed", err)
		}
		return marshalResult(result)
	}
}

func handleListTables(pool *dbpool.Pool) HandlerFunc {
	return func(ctx context.Context, args json.RawMessage) (string, error) {
		var input struct {
			Schema string `json:"schema"`
		}
		_ = json.Unmarshal(args, &input)

		result, err := pool.ListTables(ctx, input.Schema)
		if err != nil {
			return "", apierror.Wrap(apierror.KindBackendFailure, "list_tables failed", err)
		}
		return marshalResult(result)
	}
}

func handleDescribeTable(pool *dbpool.Pool) HandlerFunc {
	return func(ctx context.Context, args json.RawMessage) (string, error) {
		var input struct {
			TableName string `json:"table_name"`
			Schema    string `json:"schema"`
		}
		if err := json.Unmarshal(args, &input); err != nil {
			return "", apierror.Wrap(apierror.KindValidation, "malformed describe_table arguments", err)
		}

		result, err := pool.DescribeTable(ctx, input.TableName, input.Schema)
		if err != nil {
			return "", apierror.Wrap(apierror.KindBackendFailure, "describe_table failed", err)
		}
		return marshalResult(result)
	}
}

func handleListSchemas(pool *dbpool.Pool) HandlerFunc {
	return func(ctx context.Context, _ json.RawMessage) (string, error) {
		result, err := pool.ListSchemas(ctx)
		if err != nil {
			return "", apierror.Wrap(apierror.KindBackendFailure, "list_schemas failed", err)
		}
		return marshalResult(result)
	}
}

func marshalResult(result *dbpool.Result) (string, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("toolcatalog: marshal result: %w", err)
	}
	return string(data), nil
}
