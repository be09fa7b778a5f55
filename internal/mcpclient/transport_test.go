package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agentsql/bridge/internal/mcpwire"
)

// newFakeSSEServer is a minimal MCP tool server: it answers "GET /sse" with
// an endpoint event pointing back at "POST /messages", then replies to every
// posted request over the open SSE stream, correlated by JSON-RPC id.
func newFakeSSEServer(t *testing.T, handle func(req mcpwire.Request) *mcpwire.Response) *httptest.Server {
	t.Helper()
	events := make(chan string, 16)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sse", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("response writer does not support flushing")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "event: endpoint\ndata: /messages\n\n")
		flusher.Flush()

		for {
			select {
			case data := <-events:
				fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
	mux.HandleFunc("POST /messages", func(w http.ResponseWriter, r *http.Request) {
		var req mcpwire.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)

		resp := handle(req)
		data, err := json.Marshal(resp)
		if err != nil {
			t.Fatalf("marshal response: %v", err)
		}
		events <- string(data)
	})

	return httptest.NewServer(mux)
}

func TestTransport_ConnectAndCall(t *testing.T) {
	server := newFakeSSEServer(t, func(req mcpwire.Request) *mcpwire.Response {
		switch req.Method {
		case "initialize":
			result, _ := mcpwire.NewResponse(req.ID, mcpwire.InitializeResult{
				ProtocolVersion: "2024-11-05",
				ServerInfo:      mcpwire.ServerInfo{Name: "fake", Version: "0.0.1"},
			})
			return result
		case "tools/list":
			result, _ := mcpwire.NewResponse(req.ID, mcpwire.ListToolsResult{
				Tools: []mcpwire.Tool{{Name: "query", Description: "run a query"}},
			})
			return result
		default:
			return mcpwire.NewErrorResponse(req.ID, mcpwire.ErrCodeMethodNotFound, "unknown method")
		}
	})
	defer server.Close()

	client := NewClient(server.URL, nil, 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	tools := client.ToolsForLLM()
	if len(tools) != 1 || tools[0].Name != "query" {
		t.Fatalf("unexpected tools after connect: %+v", tools)
	}
}

func TestTransport_CallToolCarriesUserEmailMeta(t *testing.T) {
	var sawMeta *mcpwire.CallToolMeta
	server := newFakeSSEServer(t, func(req mcpwire.Request) *mcpwire.Response {
		switch req.Method {
		case "initialize":
			result, _ := mcpwire.NewResponse(req.ID, mcpwire.InitializeResult{ServerInfo: mcpwire.ServerInfo{Name: "fake"}})
			return result
		case "tools/list":
			result, _ := mcpwire.NewResponse(req.ID, mcpwire.ListToolsResult{})
			return result
		case "tools/call":
			var params mcpwire.CallToolParams
			_ = json.Unmarshal(req.Params, &params)
			sawMeta = params.Meta
			result, _ := mcpwire.NewResponse(req.ID, mcpwire.CallToolResult{
				Content: []mcpwire.ToolResultContent{{Type: "text", Text: "ok"}},
			})
			return result
		default:
			return mcpwire.NewErrorResponse(req.ID, mcpwire.ErrCodeMethodNotFound, "unknown method")
		}
	})
	defer server.Close()

	client := NewClient(server.URL, nil, 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	text, err := client.CallTool(ctx, "query", map[string]any{"sql": "select 1"}, "staff@agentsql.test")
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if text != "ok" {
		t.Fatalf("unexpected result text: %q", text)
	}
	if sawMeta == nil || sawMeta.UserEmail != "staff@agentsql.test" {
		t.Fatalf("expected _meta.user_email to carry through, got %+v", sawMeta)
	}
}

func TestTransport_CallTimesOutWhenServerNeverResponds(t *testing.T) {
	server := newFakeSSEServer(t, func(req mcpwire.Request) *mcpwire.Response {
		if req.Method == "initialize" {
			result, _ := mcpwire.NewResponse(req.ID, mcpwire.InitializeResult{ServerInfo: mcpwire.ServerInfo{Name: "fake"}})
			return result
		}
		if req.Method == "tools/list" {
			result, _ := mcpwire.NewResponse(req.ID, mcpwire.ListToolsResult{})
			return result
		}
		// tools/call: never answer, forcing the caller's context to expire.
		return nil
	})
	defer server.Close()

	client := NewClient(server.URL, nil, 5*time.Second)
	connectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer callCancel()
	if _, err := client.CallTool(callCtx, "query", nil, ""); err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}
