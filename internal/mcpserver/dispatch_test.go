package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentsql/bridge/internal/acl"
	"github.com/agentsql/bridge/internal/mcpwire"
	"github.com/agentsql/bridge/internal/toolcatalog"
	"github.com/agentsql/bridge/pkg/models"
)

func mcpwireRequest(t *testing.T, method string, params any) *mcpwire.Request {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		raw = data
	}
	return &mcpwire.Request{JSONRPC: "2.0", ID: 1, Method: method, Params: raw}
}

type fakeStaffLookup struct {
	records map[string]*models.StaffRecord
}

func (f *fakeStaffLookup) LookupStaff(_ context.Context, email string) (*models.StaffRecord, error) {
	return f.records[email], nil
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	catalog := toolcatalog.NewCatalog()
	if err := catalog.Register("ping", "Always succeeds.",
		[]byte(`{"type":"object","properties":{}}`), []string{"DB_VIEW"},
		func(_ context.Context, _ json.RawMessage) (string, error) { return "pong", nil }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := catalog.Register("status", "Public health check.",
		[]byte(`{"type":"object","properties":{}}`), nil,
		func(_ context.Context, _ json.RawMessage) (string, error) { return "ok", nil }); err != nil {
		t.Fatalf("Register: %v", err)
	}

	lookup := &fakeStaffLookup{records: map[string]*models.StaffRecord{
		"viewer@x": {Email: "viewer@x", Active: true, ACLs: []string{"DB_VIEW"}},
		"guest@x":  {Email: "guest@x", Active: true, ACLs: []string{}},
	}}
	cfg := models.ACLConfig{
		DefaultPolicy: models.PolicyDeny,
		ToolACLs:      map[string][]string{"ping": {"DB_VIEW"}},
		PublicTools:   []string{"status"},
	}
	engine, err := acl.New(cfg, lookup, 60, 0)
	if err != nil {
		t.Fatalf("acl.New: %v", err)
	}
	return NewHandler(catalog, engine)
}

func TestDispatch_ListToolsFiltersByACL(t *testing.T) {
	handler := newTestHandler(t)
	ctx := context.Background()

	req := mcpwireRequest(t, "tools/list", nil)
	resp := handler.Dispatch(ctx, "guest@x", req)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	var result struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Tools) != 1 || result.Tools[0].Name != "status" {
		t.Fatalf("expected only the public tool visible to guest, got %+v", result.Tools)
	}
}

func TestDispatch_ListToolsForPrivilegedUser(t *testing.T) {
	handler := newTestHandler(t)
	req := mcpwireRequest(t, "tools/list", nil)
	resp := handler.Dispatch(context.Background(), "viewer@x", req)

	var result struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Tools) != 2 {
		t.Fatalf("expected both tools visible to viewer, got %+v", result.Tools)
	}
}

func TestDispatch_CallToolDeniedSurfacesAsIsError(t *testing.T) {
	handler := newTestHandler(t)
	req := mcpwireRequest(t, "tools/call", map[string]any{"name": "ping", "arguments": map[string]any{}})
	resp := handler.Dispatch(context.Background(), "guest@x", req)

	if resp.Error != nil {
		t.Fatalf("tool-call denial must not be a transport-level error, got %+v", resp.Error)
	}
	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected isError true")
	}
	if len(result.Content) == 0 || result.Content[0].Text == "" {
		t.Fatal("expected a denial reason in content")
	}
}

func TestDispatch_CallToolAllowedReturnsHandlerOutput(t *testing.T) {
	handler := newTestHandler(t)
	req := mcpwireRequest(t, "tools/call", map[string]any{"name": "ping", "arguments": map[string]any{}})
	resp := handler.Dispatch(context.Background(), "viewer@x", req)

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error content: %+v", result.Content)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "pong" {
		t.Fatalf("unexpected content: %+v", result.Content)
	}
}

func TestDispatch_CallToolSchemaValidationFailure(t *testing.T) {
	catalog := toolcatalog.NewCatalog()
	if err := catalog.Register("strict", "Requires a name.",
		[]byte(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`), nil,
		func(_ context.Context, _ json.RawMessage) (string, error) { return "ok", nil }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	cfg := models.ACLConfig{DefaultPolicy: models.PolicyOpen, PublicTools: []string{"strict"}}
	engine, err := acl.New(cfg, &fakeStaffLookup{records: map[string]*models.StaffRecord{}}, 60, 0)
	if err != nil {
		t.Fatalf("acl.New: %v", err)
	}
	handler := NewHandler(catalog, engine)

	req := mcpwireRequest(t, "tools/call", map[string]any{"name": "strict", "arguments": map[string]any{}})
	resp := handler.Dispatch(context.Background(), "", req)

	var result struct {
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a schema validation failure to surface as isError")
	}
}

func TestDispatch_SessionEmailTravelsOnContextNotASharedField(t *testing.T) {
	handler := newTestHandler(t)
	req := mcpwireRequest(t, "tools/call", map[string]any{"name": "ping", "arguments": map[string]any{}})

	firstResp := handler.Dispatch(context.Background(), "viewer@x", req)
	secondResp := handler.Dispatch(context.Background(), "guest@x", req)

	var first, second struct {
		IsError bool `json:"isError"`
	}
	_ = json.Unmarshal(firstResp.Result, &first)
	_ = json.Unmarshal(secondResp.Result, &second)

	if first.IsError {
		t.Fatal("viewer call should have been allowed")
	}
	if !second.IsError {
		t.Fatal("guest call should have been denied independently of the concurrent viewer call")
	}
}
