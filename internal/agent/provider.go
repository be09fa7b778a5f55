// Package agent implements the agent orchestrator (component H): given a
// session and a new user message, it persists the message, translates the
// stored transcript into the LLM's turn format, and loops calling the LLM
// and routing tool_use through the MCP client bridge until the model stops
// or the round cap is reached. Grounded on the teacher's
// agent.LLMProvider/CompletionRequest/CompletionChunk shape
// (provider_types.go) and the overall shape of agent.AgenticLoop
// (loop.go), simplified down to the single round-trip, single-provider
// case this bridge needs.
package agent

import (
	"context"
	"encoding/json"
)

// Provider is the LLM backend contract. Grounded on the teacher's
// LLMProvider interface, collapsed from a streaming channel down to one
// synchronous Complete call: the orchestrator needs the full turn before it
// can decide whether to loop again, so streaming buys nothing here.
type Provider interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest is one call to the LLM: system prompt, the translated
// transcript, and the tool catalog available this round.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []CompletionMessage
	Tools     []ToolSpec
	MaxTokens int
}

// ToolSpec is one tool offered to the LLM.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// CompletionMessage is one turn in the LLM's wire format: a role and its
// content blocks.
type CompletionMessage struct {
	Role   string        `json:"role"`
	Blocks []ContentBlock `json:"content"`
}

// ContentBlock is one LLM content block, discriminated by Type.
type ContentBlock struct {
	Type      string          `json:"type"` // "text", "tool_use", "tool_result"
	Text      string          `json:"text,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	ToolName  string          `json:"name,omitempty"`
	ToolInput json.RawMessage `json:"input,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// StopReason classifies why the LLM stopped generating.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

// CompletionResponse is the LLM's full reply for one round.
type CompletionResponse struct {
	Blocks       []ContentBlock
	StopReason   StopReason
	InputTokens  int
	OutputTokens int
}
