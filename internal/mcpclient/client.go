package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/agentsql/bridge/internal/mcpwire"
)

// Client is the single outbound connection to a peer MCP tool server.
type Client struct {
	baseURL string
	logger  *slog.Logger
	t       *transport

	mu         sync.RWMutex
	tools      []mcpwire.Tool
	serverInfo mcpwire.ServerInfo
}

// NewClient constructs a Client bound to baseURL, not yet connected.
func NewClient(baseURL string, logger *slog.Logger, timeout time.Duration) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		logger:  logger,
		t:       newTransport(baseURL, &http.Client{Timeout: 0}),
	}
}

// Connect opens the SSE stream, performs the initialize handshake, and
// caches the tool catalog.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.t.connect(ctx); err != nil {
		return fmt.Errorf("mcpclient: connect: %w", err)
	}

	result, err := c.t.call(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo":      map[string]any{"name": "agentsql-gateway", "version": "1.0.0"},
	})
	if err != nil {
		c.t.close()
		return fmt.Errorf("mcpclient: initialize: %w", err)
	}

	var initResult mcpwire.InitializeResult
	if err := json.Unmarshal(result, &initResult); err != nil {
		c.t.close()
		return fmt.Errorf("mcpclient: parse initialize result: %w", err)
	}
	c.serverInfo = initResult.ServerInfo
	c.logger.Info("connected to mcp server", "name", c.serverInfo.Name, "version", c.serverInfo.Version)

	if err := c.RefreshCapabilities(ctx); err != nil {
		return fmt.Errorf("mcpclient: initial refresh: %w", err)
	}
	return nil
}

// Close tears down the SSE connection.
func (c *Client) Close() error {
	return c.t.close()
}

// RefreshCapabilities re-fetches and caches tools/list. Callers may invoke
// this explicitly to pick up catalog changes without reconnecting.
func (c *Client) RefreshCapabilities(ctx context.Context) error {
	result, err := c.t.call(ctx, "tools/list", nil)
	if err != nil {
		return fmt.Errorf("mcpclient: tools/list: %w", err)
	}

	var listResult mcpwire.ListToolsResult
	if err := json.Unmarshal(result, &listResult); err != nil {
		return fmt.Errorf("mcpclient: parse tools/list: %w", err)
	}

	c.mu.Lock()
	c.tools = listResult.Tools
	c.mu.Unlock()
	return nil
}

// Tools returns the cached tool catalog.
func (c *Client) Tools() []mcpwire.Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tools
}

// LLMTool is the shape an LLM vendor's tool-use API expects.
type LLMTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolsForLLM projects the cached catalog into the LLM vendor's tool shape.
func (c *Client) ToolsForLLM() []LLMTool {
	tools := c.Tools()
	llmTools := make([]LLMTool, 0, len(tools))
	for _, tool := range tools {
		schema := tool.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		llmTools = append(llmTools, LLMTool{Name: tool.Name, Description: tool.Description, InputSchema: schema})
	}
	return llmTools
}

// CallTool invokes name on the peer and returns the concatenated text of
// its content blocks. A tool-level failure (isError: true) is returned as
// an error so callers can decide how to surface it.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any, userEmail string) (string, error) {
	var argsJSON json.RawMessage
	if arguments != nil {
		data, err := json.Marshal(arguments)
		if err != nil {
			return "", fmt.Errorf("mcpclient: marshal arguments: %w", err)
		}
		argsJSON = data
	}

	params := mcpwire.CallToolParams{Name: name, Arguments: argsJSON}
	if userEmail != "" {
		params.Meta = &mcpwire.CallToolMeta{UserEmail: userEmail}
	}

	result, err := c.t.call(ctx, "tools/call", params)
	if err != nil {
		return "", err
	}

	var callResult mcpwire.CallToolResult
	if err := json.Unmarshal(result, &callResult); err != nil {
		return "", fmt.Errorf("mcpclient: parse tools/call result: %w", err)
	}

	text := formatToolCallResult(&callResult)
	if callResult.IsError {
		return text, fmt.Errorf("mcpclient: tool %s: %s", name, text)
	}
	return text, nil
}

// formatToolCallResult concatenates the text content blocks of a call
// result, exactly as the teacher's formatToolCallResult does.
func formatToolCallResult(result *mcpwire.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	var combined string
	for _, item := range result.Content {
		if item.Type != "text" || item.Text == "" {
			continue
		}
		if combined != "" {
			combined += "\n"
		}
		combined += item.Text
	}
	return combined
}
