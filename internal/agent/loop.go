package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentsql/bridge/internal/mcpclient"
	"github.com/agentsql/bridge/pkg/models"
)

// SessionStore is the subset of docstore.Store the loop needs to persist a
// transcript and synthesize a session title.
type SessionStore interface {
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, sessionID string) ([]*models.Message, error)
	SetSessionTitle(ctx context.Context, sessionID, title string) error
}

// LoopConfig bounds one call to AgenticLoop.Run. Grounded on the teacher's
// LoopConfig, collapsed to the handful of knobs this bridge's single
// synchronous round-trip actually needs: no executor config, no async
// jobs, no branch store, no streaming knobs.
type LoopConfig struct {
	MaxIterations int
	MaxTokens     int
	Model         string
	System        string
}

const titleMaxRunes = 60

// Transcript window defaults. Adapted from the teacher's context packer,
// which selects messages from the end of history backwards until either a
// message-count or character budget is hit; this bridge's flat one-row-per-
// role Message doesn't carry the teacher's per-message ToolCalls/ToolResults
// slices, so the budget is applied per persisted row rather than per turn.
const (
	defaultMaxTranscriptMessages = 120
	defaultMaxTranscriptChars    = 60000
)

// windowTranscript keeps the most recent messages within a message-count and
// character budget, always preserving the very first message (the session's
// opening user turn, useful context for the model even in a long-running
// conversation) alongside the most recent window.
func windowTranscript(messages []models.Message, maxMessages, maxChars int) []models.Message {
	if len(messages) <= maxMessages {
		return messages
	}

	chars := 0
	cut := len(messages)
	for i := len(messages) - 1; i >= 0 && len(messages)-i <= maxMessages; i-- {
		chars += len(messages[i].Content) + len(messages[i].ToolInput)
		if chars > maxChars {
			break
		}
		cut = i
	}

	windowed := messages[cut:]
	if cut == 0 {
		return windowed
	}
	out := make([]models.Message, 0, len(windowed)+1)
	out = append(out, messages[0])
	out = append(out, windowed...)
	return out
}

// AgenticLoop ties together transcript persistence, translation, the LLM
// provider, and the MCP tool bridge. Grounded on the teacher's AgenticLoop,
// simplified from a multi-phase streaming state machine down to one
// synchronous per-round loop: this bridge has exactly one tool source (the
// peer MCP server) and no need to stream partial content to a caller before
// the round completes.
type AgenticLoop struct {
	provider Provider
	tools    *mcpclient.Client
	sessions SessionStore
	config   LoopConfig
	logger   *slog.Logger
}

// NewAgenticLoop constructs a loop bound to provider, the MCP tool bridge,
// and the session store.
func NewAgenticLoop(provider Provider, tools *mcpclient.Client, sessions SessionStore, config LoopConfig, logger *slog.Logger) *AgenticLoop {
	if config.MaxIterations <= 0 {
		config.MaxIterations = 20
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 4096
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AgenticLoop{provider: provider, tools: tools, sessions: sessions, config: config, logger: logger}
}

// Run persists userText as a new message on session, then drives the
// provider/tool loop until the model stops asking for tools or the round
// cap is reached. It returns the assistant-visible text accumulated across
// all rounds.
func (l *AgenticLoop) Run(ctx context.Context, session *models.Session, userEmail, userText string) (string, error) {
	now := time.Now()
	userMsg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Role:      models.RoleUser,
		Content:   userText,
		CreatedAt: now,
	}
	if err := l.sessions.AppendMessage(ctx, userMsg); err != nil {
		return "", fmt.Errorf("agent: persist user message: %w", err)
	}

	existing, err := l.sessions.ListMessages(ctx, session.ID)
	if err != nil {
		return "", fmt.Errorf("agent: load transcript: %w", err)
	}
	if len(existing) <= 1 {
		l.synthesizeTitle(ctx, session.ID, userText)
	}

	transcript := make([]models.Message, 0, len(existing))
	for _, msg := range existing {
		transcript = append(transcript, *msg)
	}

	var finalText strings.Builder

	for round := 0; round < l.config.MaxIterations; round++ {
		windowed := windowTranscript(transcript, defaultMaxTranscriptMessages, defaultMaxTranscriptChars)
		turns := Translate(windowed)
		req := &CompletionRequest{
			Model:     l.config.Model,
			System:    l.config.System,
			Messages:  ToCompletionMessages(turns),
			Tools:     l.toolSpecs(),
			MaxTokens: l.config.MaxTokens,
		}

		resp, err := l.provider.Complete(ctx, req)
		if err != nil {
			return "", fmt.Errorf("agent: complete round %d: %w", round, err)
		}

		var toolUses []ContentBlock
		for _, block := range resp.Blocks {
			switch block.Type {
			case "text":
				if block.Text != "" {
					if finalText.Len() > 0 {
						finalText.WriteString("\n")
					}
					finalText.WriteString(block.Text)
				}
			case "tool_use":
				toolUses = append(toolUses, block)
			}
		}

		assistantMsg := models.Message{
			ID:        uuid.NewString(),
			SessionID: session.ID,
			Role:      models.RoleAssistant,
			Content:   collectText(resp.Blocks),
			CreatedAt: time.Now(),
		}
		if err := l.sessions.AppendMessage(ctx, &assistantMsg); err != nil {
			return "", fmt.Errorf("agent: persist assistant message: %w", err)
		}
		transcript = append(transcript, assistantMsg)

		if resp.StopReason != StopToolUse || len(toolUses) == 0 {
			return finalText.String(), nil
		}

		for _, use := range toolUses {
			toolUseMsg := models.Message{
				ID:        uuid.NewString(),
				SessionID: session.ID,
				Role:      models.RoleToolUse,
				ToolName:  use.ToolName,
				ToolInput: use.ToolInput,
				ToolUseID: use.ToolUseID,
				CreatedAt: time.Now(),
			}
			if err := l.sessions.AppendMessage(ctx, &toolUseMsg); err != nil {
				return "", fmt.Errorf("agent: persist tool_use message: %w", err)
			}
			transcript = append(transcript, toolUseMsg)

			resultText := l.callTool(ctx, use, userEmail)
			toolResultMsg := models.Message{
				ID:        uuid.NewString(),
				SessionID: session.ID,
				Role:      models.RoleToolResult,
				Content:   resultText,
				ToolUseID: use.ToolUseID,
				CreatedAt: time.Now(),
			}
			if err := l.sessions.AppendMessage(ctx, &toolResultMsg); err != nil {
				return "", fmt.Errorf("agent: persist tool_result message: %w", err)
			}
			transcript = append(transcript, toolResultMsg)
		}
	}

	return finalText.String(), nil
}

// callTool invokes a single tool_use block through the MCP bridge. A
// backend failure is folded into the tool_result text rather than aborting
// the round: the model gets a chance to recover (retry with different
// arguments, fall back to a different tool, or explain the failure).
func (l *AgenticLoop) callTool(ctx context.Context, use ContentBlock, userEmail string) string {
	var args map[string]any
	if len(use.ToolInput) > 0 {
		if err := json.Unmarshal(use.ToolInput, &args); err != nil {
			return fmt.Sprintf("Error: invalid tool arguments: %s", err)
		}
	}

	text, err := l.tools.CallTool(ctx, use.ToolName, args, userEmail)
	if err != nil {
		l.logger.Warn("tool call failed", "tool", use.ToolName, "error", err)
		if text != "" {
			return fmt.Sprintf("Error: %s", text)
		}
		return fmt.Sprintf("Error: %s", err)
	}
	return text
}

func (l *AgenticLoop) toolSpecs() []ToolSpec {
	llmTools := l.tools.ToolsForLLM()
	specs := make([]ToolSpec, 0, len(llmTools))
	for _, tool := range llmTools {
		specs = append(specs, ToolSpec{Name: tool.Name, Description: tool.Description, InputSchema: tool.InputSchema})
	}
	return specs
}

func (l *AgenticLoop) synthesizeTitle(ctx context.Context, sessionID, userText string) {
	title := truncateRunes(strings.TrimSpace(userText), titleMaxRunes)
	if title == "" {
		return
	}
	if err := l.sessions.SetSessionTitle(ctx, sessionID, title); err != nil {
		l.logger.Warn("session title synthesis failed", "session_id", sessionID, "error", err)
	}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

func collectText(blocks []ContentBlock) string {
	var b strings.Builder
	for _, block := range blocks {
		if block.Type != "text" || block.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(block.Text)
	}
	return b.String()
}
