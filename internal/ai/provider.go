package ai

import (
	"context"
	"encoding/json"
)

// Message is one chat turn sent to a provider.
// ToolCalls is set on assistant messages that requested tools;
// ToolCallID links a "tool" role message back to the request.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolDef describes one callable capability offered to the model.
// Parameters is a JSON schema object.
type ToolDef struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCall is a tool invocation the model asked for.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolChatResult is the outcome of one generation step: either final
// text, or one or more tool calls to execute before generating again.
type ToolChatResult struct {
	Content   string
	ToolCalls []ToolCall
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// ToolProvider is implemented by providers that support tool calling.
type ToolProvider interface {
	Provider
	ChatTools(ctx context.Context, messages []Message, tools []ToolDef) (*ToolChatResult, error)
}
