package toolcatalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agentsql/bridge/internal/biclient"
)

func newTestBIServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/queries/42", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(biclient.Query{ID: 42, Name: "active_leads", Query: "SELECT id FROM leads"})
	})
	mux.HandleFunc("/api/queries/99", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRegisterRedashTools_FetchQuery(t *testing.T) {
	server := newTestBIServer(t)
	client := biclient.NewClient(server.URL, "test-key", 2*time.Second)
	catalog := NewCatalog()
	if err := RegisterRedashTools(catalog, client, nil); err != nil {
		t.Fatalf("RegisterRedashTools: %v", err)
	}

	args, _ := json.Marshal(map[string]string{"query_ids": "42, 99"})
	result, err := catalog.Call(context.Background(), "fetch_redash_query", args)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	var outcomes []struct {
		ID    int    `json:"id"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal([]byte(result), &outcomes); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Error != "" {
		t.Fatalf("expected query 42 to succeed, got error %q", outcomes[0].Error)
	}
	if outcomes[1].Error == "" {
		t.Fatal("expected query 99 to fail with a structured error")
	}
}

func TestRegisterRedashTools_GenerateRulesFromRedash(t *testing.T) {
	server := newTestBIServer(t)
	client := biclient.NewClient(server.URL, "test-key", 2*time.Second)
	catalog := NewCatalog()
	if err := RegisterRedashTools(catalog, client, nil); err != nil {
		t.Fatalf("RegisterRedashTools: %v", err)
	}

	args, _ := json.Marshal(map[string]any{"query_ids": "42", "category": "funnel"})
	result, err := catalog.Call(context.Background(), "generate_rules_from_redash", args)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result == "" {
		t.Fatal("expected a non-empty result")
	}
}
