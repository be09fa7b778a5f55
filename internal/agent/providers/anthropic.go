// Package providers implements the hosted LLM backend used by the agent
// orchestrator. Grounded on the teacher's providers.AnthropicProvider,
// collapsed from a streaming, multi-vendor-routed client down to the
// single synchronous Anthropic implementation this bridge's agent.Provider
// interface needs.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentsql/bridge/internal/agent"
)

// AnthropicProvider implements agent.Provider against Anthropic's Messages
// API, with linear-backoff retry on transient failures.
type AnthropicProvider struct {
	BaseProvider
	client       anthropic.Client
	defaultModel string
}

// AnthropicConfig configures the provider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

// NewAnthropicProvider validates config and returns a ready-to-use provider.
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		BaseProvider: NewBaseProvider("anthropic", config.MaxRetries, config.RetryDelay),
		client:       anthropic.NewClient(opts...),
		defaultModel: config.DefaultModel,
	}, nil
}

// Complete sends one non-streaming Messages.New call, retrying transient
// failures, and projects the response into the orchestrator's
// CompletionResponse shape.
func (p *AnthropicProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.CompletionResponse, error) {
	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("anthropic: convert messages: %w", err)
	}
	tools, err := p.convertTools(req.Tools)
	if err != nil {
		return nil, fmt.Errorf("anthropic: convert tools: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.getModel(req.Model)),
		MaxTokens: int64(p.getMaxTokens(req.MaxTokens)),
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(tools) > 0 {
		params.Tools = tools
	}

	var message *anthropic.Message
	err = p.Retry(ctx, isRetryableError, func() error {
		resp, callErr := p.client.Messages.New(ctx, params)
		if callErr != nil {
			return p.wrapError(callErr)
		}
		message = resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	return p.convertResponse(message), nil
}

func (p *AnthropicProvider) convertMessages(messages []agent.CompletionMessage) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion
		for _, block := range msg.Blocks {
			switch block.Type {
			case "text":
				if block.Text != "" {
					content = append(content, anthropic.NewTextBlock(block.Text))
				}
			case "tool_use":
				var input map[string]any
				if len(block.ToolInput) > 0 {
					if err := json.Unmarshal(block.ToolInput, &input); err != nil {
						return nil, fmt.Errorf("invalid tool_use input: %w", err)
					}
				}
				content = append(content, anthropic.NewToolUseBlock(block.ToolUseID, input, block.ToolName))
			case "tool_result":
				content = append(content, anthropic.NewToolResultBlock(block.ToolUseID, block.Text, block.IsError))
			}
		}
		if len(content) == 0 {
			continue
		}
		if msg.Role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func (p *AnthropicProvider) convertTools(tools []agent.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("invalid schema for %s: %w", tool.Name, err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid tool definition for %s", tool.Name)
		}
		toolParam.OfTool.Description = anthropic.String(tool.Description)
		result = append(result, toolParam)
	}
	return result, nil
}

func (p *AnthropicProvider) convertResponse(message *anthropic.Message) *agent.CompletionResponse {
	resp := &agent.CompletionResponse{
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}

	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Blocks = append(resp.Blocks, agent.ContentBlock{Type: "text", Text: variant.Text})
		case anthropic.ToolUseBlock:
			input, _ := json.Marshal(variant.Input)
			resp.Blocks = append(resp.Blocks, agent.ContentBlock{
				Type:      "tool_use",
				ToolUseID: variant.ID,
				ToolName:  variant.Name,
				ToolInput: input,
			})
		}
	}

	switch message.StopReason {
	case anthropic.StopReasonToolUse:
		resp.StopReason = agent.StopToolUse
	case anthropic.StopReasonMaxTokens:
		resp.StopReason = agent.StopMaxTokens
	default:
		resp.StopReason = agent.StopEndTurn
	}
	return resp
}

func (p *AnthropicProvider) getModel(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

func (p *AnthropicProvider) getMaxTokens(maxTokens int) int {
	if maxTokens <= 0 {
		return 4096
	}
	return maxTokens
}

func (p *AnthropicProvider) wrapError(err error) error {
	return NewProviderError("anthropic", "", err)
}

func isRetryableError(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return ShouldFailover(err)
	}
	return false
}
