package models

import "encoding/json"

// BlockKind tags a Block variant. Block is the closed sum type mandated in
// place of the duck-typed (role x optional-fields) union the teacher uses
// for LLM content: exactly one of the accessors below is meaningful for a
// given Kind, and callers are expected to exhaustively switch on Kind
// rather than probe for non-zero fields.
type BlockKind string

const (
	BlockUserText      BlockKind = "user_text"
	BlockAssistantText BlockKind = "assistant_text"
	BlockToolUse       BlockKind = "tool_use"
	BlockToolResult    BlockKind = "tool_result"
)

// Block is one piece of LLM turn content. Construct with the UserText,
// AssistantText, ToolUse, or ToolResult helpers; never populate fields
// directly outside this package.
type Block struct {
	kind       BlockKind
	text       string
	toolName   string
	toolInput  json.RawMessage
	toolUseID  string
	isError    bool
}

func UserText(text string) Block      { return Block{kind: BlockUserText, text: text} }
func AssistantText(text string) Block { return Block{kind: BlockAssistantText, text: text} }

func ToolUse(toolUseID, toolName string, input json.RawMessage) Block {
	return Block{kind: BlockToolUse, toolUseID: toolUseID, toolName: toolName, toolInput: input}
}

func ToolResult(toolUseID, content string, isError bool) Block {
	return Block{kind: BlockToolResult, toolUseID: toolUseID, text: content, isError: isError}
}

func (b Block) Kind() BlockKind           { return b.kind }
func (b Block) Text() string              { return b.text }
func (b Block) ToolName() string          { return b.toolName }
func (b Block) ToolInput() json.RawMessage { return b.toolInput }
func (b Block) ToolUseID() string         { return b.toolUseID }
func (b Block) IsError() bool             { return b.isError }

// Turn is one LLM-facing message: a speaker and the blocks attached to it.
// tool_use blocks only ever appear on an AssistantTurn; tool_result blocks
// only ever appear on a UserTurn, per the coalescing rules in the
// orchestrator's transcript translation.
type Turn struct {
	Speaker TurnSpeaker
	Blocks  []Block
}

type TurnSpeaker string

const (
	SpeakerUser      TurnSpeaker = "user"
	SpeakerAssistant TurnSpeaker = "assistant"
)
