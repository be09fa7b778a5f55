package toolcatalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/agentsql/bridge/internal/apierror"
	"github.com/agentsql/bridge/internal/dbpool"
)

func setupMockPool(t *testing.T) (*dbpool.Pool, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return dbpool.NewWithDB(db, time.Second), mock
}

func TestRegisterSQLTools_QueryRunsAgainstThePool(t *testing.T) {
	pool, mock := setupMockPool(t)
	catalog := NewCatalog()
	if err := RegisterSQLTools(catalog, pool, []string{"DB_VIEW"}); err != nil {
		t.Fatalf("RegisterSQLTools: %v", err)
	}

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id"}).AddRow("1")
	mock.ExpectQuery("SELECT id FROM widgets").WillReturnRows(rows)
	mock.ExpectCommit()

	args, err := json.Marshal(map[string]any{"sql": "SELECT id FROM widgets"})
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	result, err := catalog.Call(context.Background(), "query", args)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var decoded struct {
		RowCount int `json:"rowCount"`
	}
	if err := json.Unmarshal([]byte(result), &decoded); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if decoded.RowCount != 1 {
		t.Fatalf("expected 1 row, got %d", decoded.RowCount)
	}
}

func TestRegisterSQLTools_QueryBackendFailureSurfacesAsBackendFailure(t *testing.T) {
	pool, mock := setupMockPool(t)
	catalog := NewCatalog()
	if err := RegisterSQLTools(catalog, pool, nil); err != nil {
		t.Fatalf("RegisterSQLTools: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("backend exploded"))
	mock.ExpectRollback()

	args, _ := json.Marshal(map[string]any{"sql": "SELECT bad"})
	_, err := catalog.Call(context.Background(), "query", args)
	apiErr, ok := apierror.As(err)
	if !ok || apiErr.Kind != apierror.KindBackendFailure {
		t.Fatalf("expected KindBackendFailure, got %v", err)
	}
}

func TestRegisterSQLTools_DescribeTableRequiresTableName(t *testing.T) {
	pool, _ := setupMockPool(t)
	catalog := NewCatalog()
	if err := RegisterSQLTools(catalog, pool, nil); err != nil {
		t.Fatalf("RegisterSQLTools: %v", err)
	}

	_, err := catalog.Call(context.Background(), "describe_table", json.RawMessage(`{}`))
	apiErr, ok := apierror.As(err)
	if !ok || apiErr.Kind != apierror.KindValidation {
		t.Fatalf("expected KindValidation for missing table_name, got %v", err)
	}
}

func TestRegisterSQLTools_ListSchemas(t *testing.T) {
	pool, mock := setupMockPool(t)
	catalog := NewCatalog()
	if err := RegisterSQLTools(catalog, pool, nil); err != nil {
		t.Fatalf("RegisterSQLTools: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery("information_schema.schemata").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).AddRow("public"))
	mock.ExpectCommit()

	result, err := catalog.Call(context.Background(), "list_schemas", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result == "" {
		t.Fatal("expected non-empty result")
	}
}
