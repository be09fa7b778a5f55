package agent

import (
	"github.com/agentsql/bridge/pkg/models"
)

// Translate turns a stored message sequence into Turn/Block form, applying
// the coalescing rules: a tool_use message attaches to the current
// assistant turn (opening one if the prior turn was not an in-progress
// assistant turn); a tool_result attaches to the current user turn the same
// way. A tool_use immediately followed by its tool_result thus produces
// (assistant{text,tool_use})(user{tool_result}), never tool_use on a user
// turn or tool_result on an assistant turn.
func Translate(messages []models.Message) []models.Turn {
	var turns []models.Turn

	appendToTurn := func(speaker models.TurnSpeaker, block models.Block) {
		if len(turns) > 0 && turns[len(turns)-1].Speaker == speaker {
			last := &turns[len(turns)-1]
			last.Blocks = append(last.Blocks, block)
			return
		}
		turns = append(turns, models.Turn{Speaker: speaker, Blocks: []models.Block{block}})
	}

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleUser:
			appendToTurn(models.SpeakerUser, models.UserText(msg.Content))
		case models.RoleAssistant:
			appendToTurn(models.SpeakerAssistant, models.AssistantText(msg.Content))
		case models.RoleToolUse:
			appendToTurn(models.SpeakerAssistant, models.ToolUse(msg.ToolUseID, msg.ToolName, msg.ToolInput))
		case models.RoleToolResult:
			appendToTurn(models.SpeakerUser, models.ToolResult(msg.ToolUseID, msg.Content, false))
		}
	}
	return turns
}

// ToCompletionMessages projects turns into the LLM wire format.
func ToCompletionMessages(turns []models.Turn) []CompletionMessage {
	messages := make([]CompletionMessage, 0, len(turns))
	for _, turn := range turns {
		role := "user"
		if turn.Speaker == models.SpeakerAssistant {
			role = "assistant"
		}
		blocks := make([]ContentBlock, 0, len(turn.Blocks))
		for _, block := range turn.Blocks {
			blocks = append(blocks, toContentBlock(block))
		}
		messages = append(messages, CompletionMessage{Role: role, Blocks: blocks})
	}
	return messages
}

func toContentBlock(block models.Block) ContentBlock {
	switch block.Kind() {
	case models.BlockUserText, models.BlockAssistantText:
		return ContentBlock{Type: "text", Text: block.Text()}
	case models.BlockToolUse:
		return ContentBlock{Type: "tool_use", ToolUseID: block.ToolUseID(), ToolName: block.ToolName(), ToolInput: block.ToolInput()}
	case models.BlockToolResult:
		return ContentBlock{Type: "tool_result", ToolUseID: block.ToolUseID(), Text: block.Text(), IsError: block.IsError()}
	default:
		return ContentBlock{}
	}
}
