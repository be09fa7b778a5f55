// Package mcpserver hosts the MCP tool-catalog server (component E): it
// dispatches tools/list and tools/call over a transport, gating every call
// through ACL filtering, JSON-schema validation, and the tool's handler
// body. Grounded on the teacher's mcp JSON-RPC envelope, inverted from
// client to server.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentsql/bridge/internal/acl"
	"github.com/agentsql/bridge/internal/apierror"
	"github.com/agentsql/bridge/internal/audit"
	"github.com/agentsql/bridge/internal/auth"
	"github.com/agentsql/bridge/internal/mcpwire"
	"github.com/agentsql/bridge/internal/ratelimit"
	"github.com/agentsql/bridge/internal/toolcatalog"
)

// Handler dispatches JSON-RPC requests to the tool catalog.
type Handler struct {
	catalog     *toolcatalog.Catalog
	acl         *acl.Engine
	envFallback string
	limiter     *ratelimit.Limiter
	auditLog    *audit.Logger
}

// NewHandler constructs a Handler. Each resolved caller email gets its own
// token bucket so one noisy session can't starve the rest, and every
// tools/call is recorded through the audit logger for later review.
func NewHandler(catalog *toolcatalog.Catalog, aclEngine *acl.Engine) *Handler {
	auditLog, err := audit.NewLogger(audit.Config{
		Enabled:       true,
		Level:         audit.LevelInfo,
		Format:        audit.FormatJSON,
		Output:        "stdout",
		MaxFieldSize:  2048,
		SampleRate:    1.0,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
	})
	if err != nil {
		// Falls back to a disabled logger rather than failing tool-server
		// construction over an audit-sink misconfiguration.
		auditLog, _ = audit.NewLogger(audit.DefaultConfig())
	}

	return &Handler{
		catalog:  catalog,
		acl:      aclEngine,
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		auditLog: auditLog,
	}
}

// Dispatch routes one JSON-RPC request to its method and returns the
// response to write back on the transport. sessionEmail is the identity
// attached to the calling transport session (stdio: the process's single
// caller; SSE: the per-connection handle), threaded via context rather than
// a shared transport field, fixing the documented email/session race.
func (h *Handler) Dispatch(ctx context.Context, sessionEmail string, req *mcpwire.Request) *mcpwire.Response {
	ctx = auth.WithSessionEmail(ctx, sessionEmail)

	switch req.Method {
	case "initialize":
		return h.handleInitialize(req)
	case "tools/list":
		return h.handleListTools(ctx, req)
	case "tools/call":
		return h.handleCallTool(ctx, req)
	default:
		return mcpwire.NewErrorResponse(req.ID, mcpwire.ErrCodeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
	}
}

func (h *Handler) handleInitialize(req *mcpwire.Request) *mcpwire.Response {
	resp, err := mcpwire.NewResponse(req.ID, mcpwire.InitializeResult{
		ProtocolVersion: "2024-11-05",
		ServerInfo:      mcpwire.ServerInfo{Name: "agentsql-toolserver", Version: "1.0.0"},
	})
	if err != nil {
		return mcpwire.NewErrorResponse(req.ID, mcpwire.ErrCodeInternalError, err.Error())
	}
	return resp
}

func (h *Handler) handleListTools(ctx context.Context, req *mcpwire.Request) *mcpwire.Response {
	email := h.acl.ResolveEmail("", auth.SessionEmailFromContext(ctx))
	visible, err := h.acl.FilterTools(ctx, h.catalog.Descriptors(), email)
	if err != nil {
		return mcpwire.NewErrorResponse(req.ID, mcpwire.ErrCodeInternalError, err.Error())
	}

	tools := make([]mcpwire.Tool, 0, len(visible))
	for _, d := range visible {
		tools = append(tools, mcpwire.Tool{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema})
	}
	resp, err := mcpwire.NewResponse(req.ID, mcpwire.ListToolsResult{Tools: tools})
	if err != nil {
		return mcpwire.NewErrorResponse(req.ID, mcpwire.ErrCodeInternalError, err.Error())
	}
	return resp
}

func (h *Handler) handleCallTool(ctx context.Context, req *mcpwire.Request) *mcpwire.Response {
	var params mcpwire.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return mcpwire.NewErrorResponse(req.ID, mcpwire.ErrCodeInvalidParams, "malformed tools/call params")
	}

	metaEmail := ""
	if params.Meta != nil {
		metaEmail = params.Meta.UserEmail
	}
	email := h.acl.ResolveEmail(metaEmail, auth.SessionEmailFromContext(ctx))
	callID := uuid.NewString()

	if !h.limiter.Allow(email) {
		h.auditLog.LogToolDenied(ctx, params.Name, callID, "rate limit exceeded", "", email)
		return h.toolError(req.ID, "rate limit exceeded, slow down")
	}

	decision, err := h.acl.CheckToolAccess(ctx, params.Name, email)
	if err != nil {
		return mcpwire.NewErrorResponse(req.ID, mcpwire.ErrCodeInternalError, err.Error())
	}
	if !decision.Allowed {
		h.auditLog.LogToolDenied(ctx, params.Name, callID, decision.Reason, "", email)
		return h.toolError(req.ID, decision.Reason)
	}

	h.auditLog.LogToolInvocation(ctx, params.Name, callID, params.Arguments, email)
	start := time.Now()

	result, err := h.catalog.Call(ctx, params.Name, params.Arguments)
	if err != nil {
		message := err.Error()
		if apierr, ok := apierror.As(err); ok {
			message = apierr.Message
		}
		h.auditLog.LogToolCompletion(ctx, params.Name, callID, false, message, time.Since(start), email)
		return h.toolError(req.ID, message)
	}
	h.auditLog.LogToolCompletion(ctx, params.Name, callID, true, result, time.Since(start), email)

	resp, err := mcpwire.NewResponse(req.ID, mcpwire.CallToolResult{
		Content: []mcpwire.ToolResultContent{{Type: "text", Text: result}},
	})
	if err != nil {
		return mcpwire.NewErrorResponse(req.ID, mcpwire.ErrCodeInternalError, err.Error())
	}
	return resp
}

// Close flushes the audit logger's buffered events.
func (h *Handler) Close() error {
	return h.auditLog.Close()
}

// toolError wraps a handler-level failure as a successful JSON-RPC response
// carrying isError, matching MCP's convention that tool failures are not
// transport-level errors.
func (h *Handler) toolError(id any, message string) *mcpwire.Response {
	resp, _ := mcpwire.NewResponse(id, mcpwire.CallToolResult{
		Content: []mcpwire.ToolResultContent{{Type: "text", Text: message}},
		IsError: true,
	})
	return resp
}
