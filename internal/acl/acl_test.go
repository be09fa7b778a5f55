package acl

import (
	"context"
	"errors"
	"testing"

	"github.com/agentsql/bridge/pkg/models"
)

type fakeStaffLookup struct {
	records map[string]*models.StaffRecord
	err     error
}

func (f *fakeStaffLookup) LookupStaff(_ context.Context, email string) (*models.StaffRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records[email], nil
}

func scenarioEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := models.ACLConfig{
		DefaultPolicy: models.PolicyDeny,
		SuperuserACLs: []string{"ADMIN"},
		ToolACLs:      map[string][]string{"query": {"DB_VIEW"}},
	}
	lookup := &fakeStaffLookup{records: map[string]*models.StaffRecord{
		"a@x": {Email: "a@x", Active: true, ACLs: []string{"DB_VIEW"}},
		"b@x": {Email: "b@x", Active: true, ACLs: []string{"OTHER"}},
	}}
	engine, err := New(cfg, lookup, 300, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return engine
}

func TestCheckToolAccess_ScenarioOne(t *testing.T) {
	engine := scenarioEngine(t)
	ctx := context.Background()

	t.Run("allowed user with matching acl", func(t *testing.T) {
		decision, err := engine.CheckToolAccess(ctx, "query", "A@X")
		if err != nil {
			t.Fatalf("CheckToolAccess: %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("expected allowed, got denied: %s", decision.Reason)
		}
	})

	t.Run("denies user without required acl", func(t *testing.T) {
		decision, err := engine.CheckToolAccess(ctx, "query", "b@x")
		if err != nil {
			t.Fatalf("CheckToolAccess: %v", err)
		}
		if decision.Allowed {
			t.Fatal("expected denial")
		}
		if !contains(decision.Reason, "DB_VIEW") {
			t.Errorf("expected reason to name DB_VIEW, got %q", decision.Reason)
		}
	})

	t.Run("denies unknown user", func(t *testing.T) {
		decision, err := engine.CheckToolAccess(ctx, "query", "c@x")
		if err != nil {
			t.Fatalf("CheckToolAccess: %v", err)
		}
		if decision.Allowed || decision.Reason != "user not found" {
			t.Fatalf("expected 'user not found', got %+v", decision)
		}
	})
}

func TestCheckToolAccess_PublicAndAuthRequired(t *testing.T) {
	engine := scenarioEngine(t)
	engine.config.PublicTools = []string{"list_schemas"}
	ctx := context.Background()

	t.Run("public tool bypasses identity", func(t *testing.T) {
		decision, err := engine.CheckToolAccess(ctx, "list_schemas", "")
		if err != nil {
			t.Fatalf("CheckToolAccess: %v", err)
		}
		if !decision.Allowed {
			t.Fatal("expected public tool to be allowed")
		}
	})

	t.Run("no email denies", func(t *testing.T) {
		decision, err := engine.CheckToolAccess(ctx, "query", "")
		if err != nil {
			t.Fatalf("CheckToolAccess: %v", err)
		}
		if decision.Allowed || decision.Reason != "authentication required" {
			t.Fatalf("expected auth required, got %+v", decision)
		}
	})
}

func TestCheckToolAccess_SuperuserAndInactive(t *testing.T) {
	cfg := models.ACLConfig{
		DefaultPolicy: models.PolicyDeny,
		SuperuserACLs: []string{"ADMIN"},
	}
	lookup := &fakeStaffLookup{records: map[string]*models.StaffRecord{
		"admin@x":    {Email: "admin@x", Active: true, ACLs: []string{"ADMIN"}},
		"retired@x": {Email: "retired@x", Active: false, ACLs: []string{"DB_VIEW"}},
	}}
	engine, err := New(cfg, lookup, 300, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	t.Run("superuser allowed regardless of tool_acls", func(t *testing.T) {
		decision, err := engine.CheckToolAccess(ctx, "anything", "admin@x")
		if err != nil {
			t.Fatalf("CheckToolAccess: %v", err)
		}
		if !decision.Allowed {
			t.Fatal("expected superuser to be allowed")
		}
	})

	t.Run("inactive staff denied", func(t *testing.T) {
		decision, err := engine.CheckToolAccess(ctx, "query", "retired@x")
		if err != nil {
			t.Fatalf("CheckToolAccess: %v", err)
		}
		if decision.Allowed || decision.Reason != "user inactive" {
			t.Fatalf("expected inactive denial, got %+v", decision)
		}
	})
}

func TestFilterTools_MatchesCheckToolAccess(t *testing.T) {
	engine := scenarioEngine(t)
	ctx := context.Background()
	tools := []models.ToolDescriptor{{Name: "query"}, {Name: "list_tables"}}

	for _, email := range []string{"a@x", "b@x", "c@x"} {
		visible, err := engine.FilterTools(ctx, tools, email)
		if err != nil {
			t.Fatalf("FilterTools(%s): %v", email, err)
		}
		for _, tool := range tools {
			want, err := engine.CheckToolAccess(ctx, tool.Name, email)
			if err != nil {
				t.Fatalf("CheckToolAccess: %v", err)
			}
			got := containsTool(visible, tool.Name)
			if got != want.Allowed {
				t.Errorf("email=%s tool=%s: filterTools visible=%v, checkToolAccess allowed=%v", email, tool.Name, got, want.Allowed)
			}
		}
	}
}

func TestResolveEmail_PriorityChain(t *testing.T) {
	engine := scenarioEngine(t)
	engine.envFallback = "fallback@x"

	if got := engine.ResolveEmail("Meta@X", "session@x"); got != "meta@x" {
		t.Errorf("expected meta email to win, got %q", got)
	}
	if got := engine.ResolveEmail("", "Session@X"); got != "session@x" {
		t.Errorf("expected session email to win, got %q", got)
	}
	if got := engine.ResolveEmail("", ""); got != "fallback@x" {
		t.Errorf("expected env fallback, got %q", got)
	}
}

func TestResolveACLs_BackendFailureNotCached(t *testing.T) {
	lookup := &fakeStaffLookup{err: errors.New("db down")}
	engine, err := New(models.ACLConfig{DefaultPolicy: models.PolicyDeny}, lookup, 300, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, _, err := engine.ResolveACLs(context.Background(), "a@x"); err == nil {
		t.Fatal("expected backend failure to surface")
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (haystack == needle || indexOf(haystack, needle) >= 0)
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func containsTool(tools []models.ToolDescriptor, name string) bool {
	for _, tool := range tools {
		if tool.Name == name {
			return true
		}
	}
	return false
}
