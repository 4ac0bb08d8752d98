package models

import "context"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleData carries client-side annotations; providers never see it.
	RoleData Role = "data"
	RoleTool Role = "tool"
)

// ToolCall is a structured function call requested by the model.
type ToolCall struct {
	ID        string         `json:"toolCallId"`
	Name      string         `json:"toolName"`
	Arguments map[string]any `json:"args"`
}

// Message is one turn of the conversation.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
	// Name is the tool name on RoleTool messages.
	Name string `json:"name,omitempty"`
}

// ToolDefinition declares a callable function. Parameters is a JSON schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is a single completion request.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolDefinition
}

// Response is a fully collected completion.
type Response struct {
	Text         string
	ToolCalls    []ToolCall
	FinishReason string
}

// StreamChunk is one element of a streamed completion. The final chunk has Done
// set and carries FullText, any ToolCalls and the error that ended the stream.
type StreamChunk struct {
	Delta        string
	FullText     string
	ToolCalls    []ToolCall
	FinishReason string
	Done         bool
	Err          error
}

// Agent is a hosted or local chat-completion model.
type Agent interface {
	Generate(ctx context.Context, req Request) (Response, error)
	GenerateStream(ctx context.Context, req Request) (<-chan StreamChunk, error)
}
