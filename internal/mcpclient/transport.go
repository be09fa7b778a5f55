// Package mcpclient is the outbound MCP client bridge (component F): a
// single connection to the peer tool server over SSE, grounded directly on
// the teacher's mcp.Client/Manager/ToolBridge, adapted from their bespoke
// JSON-RPC envelope onto mcpwire and from a multi-server manager down to
// the single peer this gateway talks to.
package mcpclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/agentsql/bridge/internal/mcpwire"
)

// transport owns the SSE connection and the correlation of outbound
// requests to their eventually-arriving SSE responses.
type transport struct {
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	messagesURL string
	pending     map[any]chan *mcpwire.Response
	nextID      atomic.Int64

	cancel context.CancelFunc
	closed chan struct{}
}

func newTransport(baseURL string, httpClient *http.Client) *transport {
	return &transport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		pending:    make(map[any]chan *mcpwire.Response),
		closed:     make(chan struct{}),
	}
}

// connect opens the SSE stream and starts the background reader that
// resolves pending calls as their responses arrive.
func (t *transport) connect(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, t.baseURL+"/sse", nil)
	if err != nil {
		cancel()
		return fmt.Errorf("mcpclient: build sse request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("mcpclient: connect sse: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		cancel()
		resp.Body.Close()
		return fmt.Errorf("mcpclient: sse connect status %d", resp.StatusCode)
	}

	t.cancel = cancel
	endpointReady := make(chan struct{})
	go t.readLoop(resp.Body, endpointReady)

	select {
	case <-endpointReady:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (t *transport) readLoop(body io.ReadCloser, endpointReady chan struct{}) {
	defer body.Close()
	defer close(t.closed)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)

	var event string
	endpointSignaled := false
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			switch event {
			case "endpoint":
				t.mu.Lock()
				t.messagesURL = t.resolveEndpoint(data)
				t.mu.Unlock()
				if !endpointSignaled {
					endpointSignaled = true
					close(endpointReady)
				}
			case "message":
				t.dispatchResponse(data)
			}
		case line == "":
			event = ""
		}
	}
	if !endpointSignaled {
		close(endpointReady)
	}
}

func (t *transport) resolveEndpoint(data string) string {
	if strings.HasPrefix(data, "http://") || strings.HasPrefix(data, "https://") {
		return data
	}
	return t.baseURL + data
}

func (t *transport) dispatchResponse(data string) {
	var resp mcpwire.Response
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		return
	}

	t.mu.Lock()
	ch, ok := t.pending[normalizeID(resp.ID)]
	if ok {
		delete(t.pending, normalizeID(resp.ID))
	}
	t.mu.Unlock()

	if ok {
		ch <- &resp
	}
}

// normalizeID collapses JSON-decoded numeric IDs (float64) and the IDs we
// assign ourselves (int) onto a single comparable key.
func normalizeID(id any) any {
	if f, ok := id.(float64); ok {
		return int64(f)
	}
	if i, ok := id.(int); ok {
		return int64(i)
	}
	return id
}

// call sends one JSON-RPC request and blocks for its correlated response.
func (t *transport) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := t.nextID.Add(1)

	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("mcpclient: marshal params: %w", err)
		}
		raw = data
	}

	req := mcpwire.Request{JSONRPC: "2.0", ID: id, Method: method, Params: raw}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: marshal request: %w", err)
	}

	respCh := make(chan *mcpwire.Response, 1)
	t.mu.Lock()
	messagesURL := t.messagesURL
	t.pending[normalizeID(id)] = respCh
	t.mu.Unlock()

	if messagesURL == "" {
		return nil, fmt.Errorf("mcpclient: not connected")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, messagesURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("mcpclient: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: post message: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("mcpclient: post message status %d", resp.StatusCode)
	}

	select {
	case rpcResp := <-respCh:
		if rpcResp.Error != nil {
			return nil, fmt.Errorf("mcpclient: %s (code %d)", rpcResp.Error.Message, rpcResp.Error.Code)
		}
		return rpcResp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.closed:
		return nil, fmt.Errorf("mcpclient: connection closed")
	}
}

func (t *transport) close() error {
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}
