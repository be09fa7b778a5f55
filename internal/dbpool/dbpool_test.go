package dbpool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func setupMockPool(t *testing.T) (*Pool, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return NewWithDB(db, time.Second), mock
}

func TestExecuteReadOnly(t *testing.T) {
	t.Run("begins a read-only transaction and commits on success", func(t *testing.T) {
		pool, mock := setupMockPool(t)
		mock.ExpectBegin()
		rows := sqlmock.NewRows([]string{"id", "name"}).
			AddRow("1", "alice").
			AddRow("2", "bob")
		mock.ExpectQuery("SELECT id, name FROM users").WillReturnRows(rows)
		mock.ExpectCommit()

		result, err := pool.ExecuteReadOnly(context.Background(), "SELECT id, name FROM users")
		if err != nil {
			t.Fatalf("ExecuteReadOnly: %v", err)
		}
		if result.RowCount != 2 {
			t.Errorf("expected 2 rows, got %d", result.RowCount)
		}
		if result.Rows[0]["name"] != "alice" {
			t.Errorf("expected alice, got %v", result.Rows[0]["name"])
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("rolls back on query error", func(t *testing.T) {
		pool, mock := setupMockPool(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT").WillReturnError(errors.New("syntax error"))
		mock.ExpectRollback()

		if _, err := pool.ExecuteReadOnly(context.Background(), "SELECT bad"); err == nil {
			t.Fatal("expected error")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("normalizes byte-slice columns to strings", func(t *testing.T) {
		pool, mock := setupMockPool(t)
		mock.ExpectBegin()
		rows := sqlmock.NewRows([]string{"data"}).AddRow([]byte("raw"))
		mock.ExpectQuery("SELECT data").WillReturnRows(rows)
		mock.ExpectCommit()

		result, err := pool.ExecuteReadOnly(context.Background(), "SELECT data FROM t")
		if err != nil {
			t.Fatalf("ExecuteReadOnly: %v", err)
		}
		if v, ok := result.Rows[0]["data"].(string); !ok || v != "raw" {
			t.Errorf("expected normalized string \"raw\", got %#v", result.Rows[0]["data"])
		}
	})
}

func TestListTables_DefaultsToPublicSchema(t *testing.T) {
	pool, mock := setupMockPool(t)
	mock.ExpectBegin()
	mock.ExpectQuery("information_schema.tables").
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "table_type"}))
	mock.ExpectCommit()

	if _, err := pool.ListTables(context.Background(), ""); err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDescribeTable_RunsBothQueriesInOneTransaction(t *testing.T) {
	pool, mock := setupMockPool(t)
	mock.ExpectBegin()
	mock.ExpectQuery("information_schema.columns").
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "column_default"}).
			AddRow("id", "integer", "NO", nil).
			AddRow("email", "text", "NO", nil))
	mock.ExpectQuery("information_schema.table_constraints").
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id"))
	mock.ExpectCommit()

	result, err := pool.DescribeTable(context.Background(), "users", "")
	if err != nil {
		t.Fatalf("DescribeTable: %v", err)
	}
	if result.Rows[0]["primary_key"] != true {
		t.Errorf("expected id to be flagged primary_key, got %#v", result.Rows[0])
	}
	if result.Rows[1]["primary_key"] != false {
		t.Errorf("expected email not flagged primary_key, got %#v", result.Rows[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDescribeTable_RollsBackOnSecondQueryError(t *testing.T) {
	pool, mock := setupMockPool(t)
	mock.ExpectBegin()
	mock.ExpectQuery("information_schema.columns").
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "column_default"}).
			AddRow("id", "integer", "NO", nil))
	mock.ExpectQuery("information_schema.table_constraints").
		WithArgs("public", "users").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	if _, err := pool.DescribeTable(context.Background(), "users", ""); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
