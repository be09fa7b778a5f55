package dbpool

import (
	"context"
	"database/sql"
)

// ListSchemas returns every non-system schema name.
func (p *Pool) ListSchemas(ctx context.Context) (*Result, error) {
	return p.ExecuteReadOnly(ctx, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('information_schema', 'pg_catalog', 'pg_toast', 'crdb_internal')
		ORDER BY schema_name`)
}

// ListTables returns every base table in schema (defaulting to "public").
func (p *Pool) ListTables(ctx context.Context, schema string) (*Result, error) {
	if schema == "" {
		schema = "public"
	}
	return p.ExecuteReadOnly(ctx, `
		SELECT table_name, table_type
		FROM information_schema.tables
		WHERE table_schema = $1
		ORDER BY table_name`, schema)
}

// DescribeTable returns column metadata plus primary-key membership for one
// table. Both queries run inside the same read-only transaction via
// withReadOnlyConn so the two results describe one consistent snapshot
// rather than risking a schema change landing between two independent
// ExecuteReadOnly round trips.
func (p *Pool) DescribeTable(ctx context.Context, table, schema string) (*Result, error) {
	if schema == "" {
		schema = "public"
	}

	var result *Result
	err := p.withReadOnlyConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		columns, err := scanRows(ctx, tx, `
			SELECT column_name, data_type, is_nullable, column_default
			FROM information_schema.columns
			WHERE table_schema = $1 AND table_name = $2
			ORDER BY ordinal_position`, schema, table)
		if err != nil {
			return err
		}

		pkRows, err := scanRows(ctx, tx, `
			SELECT kcu.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
				AND tc.table_schema = $1 AND tc.table_name = $2`, schema, table)
		if err != nil {
			return err
		}

		primaryKeys := make(map[string]bool, len(pkRows.Rows))
		for _, row := range pkRows.Rows {
			if name, ok := row["column_name"].(string); ok {
				primaryKeys[name] = true
			}
		}
		for _, row := range columns.Rows {
			if name, ok := row["column_name"].(string); ok {
				row["primary_key"] = primaryKeys[name]
			}
		}

		result = columns
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
