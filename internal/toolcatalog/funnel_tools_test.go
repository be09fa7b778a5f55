package toolcatalog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentsql/bridge/internal/funnel"
)

func TestRegisterFunnelTools_ContextAndClassifyAndTemplate(t *testing.T) {
	catalog := NewCatalog()
	lib := funnel.Default()
	if err := RegisterFunnelTools(catalog, lib, nil); err != nil {
		t.Fatalf("RegisterFunnelTools: %v", err)
	}

	t.Run("get_sales_funnel_context returns a non-empty document", func(t *testing.T) {
		result, err := catalog.Call(context.Background(), "get_sales_funnel_context", nil)
		if err != nil {
			t.Fatalf("Call: %v", err)
		}
		if result == "{}" || result == "" {
			t.Fatal("expected a populated document")
		}
	})

	t.Run("classify_sales_intent falls back to the default pattern", func(t *testing.T) {
		args, _ := json.Marshal(map[string]string{"question": "xyzzy plugh"})
		result, err := catalog.Call(context.Background(), "classify_sales_intent", args)
		if err != nil {
			t.Fatalf("Call: %v", err)
		}
		var decoded struct {
			RequiredPatterns []string `json:"required_patterns"`
		}
		if err := json.Unmarshal([]byte(result), &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(decoded.RequiredPatterns) != 1 || decoded.RequiredPatterns[0] != lib.DefaultPatternName {
			t.Fatalf("unexpected patterns: %v", decoded.RequiredPatterns)
		}
	})

	t.Run("get_query_template rejects an unknown pattern", func(t *testing.T) {
		args, _ := json.Marshal(map[string]string{"pattern_name": "does_not_exist"})
		if _, err := catalog.Call(context.Background(), "get_query_template", args); err == nil {
			t.Fatal("expected an error for an unknown pattern")
		}
	})

	t.Run("get_query_template resolves a known pattern", func(t *testing.T) {
		args, _ := json.Marshal(map[string]string{"pattern_name": "funnel_overview"})
		result, err := catalog.Call(context.Background(), "get_query_template", args)
		if err != nil {
			t.Fatalf("Call: %v", err)
		}
		if result == "" {
			t.Fatal("expected a non-empty result")
		}
	})

	t.Run("list_query_patterns returns every pattern", func(t *testing.T) {
		result, err := catalog.Call(context.Background(), "list_query_patterns", nil)
		if err != nil {
			t.Fatalf("Call: %v", err)
		}
		var summaries []map[string]any
		if err := json.Unmarshal([]byte(result), &summaries); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(summaries) != len(lib.Patterns) {
			t.Fatalf("expected %d patterns, got %d", len(lib.Patterns), len(summaries))
		}
	})
}
