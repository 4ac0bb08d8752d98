package todoagent

import (
	"context"

	"github.com/Protocol-Lattice/todo-agent/src/dispatch"
	"github.com/Protocol-Lattice/todo-agent/src/models"
)

// ToolSpec describes how the agent should present a tool to the model.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolRequest captures an invocation request for a tool.
type ToolRequest struct {
	CallID    string
	Arguments map[string]any
}

// ToolResponse represents the structured response returned by a tool.
type ToolResponse struct {
	Content string
	Success bool
	// Result is set by todo tools to the dispatcher outcome.
	Result *dispatch.ExecutionResult
}

// Tool exposes structured metadata and an invocation handler.
type Tool interface {
	Spec() ToolSpec
	Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error)
}

// ToolCatalog stores tools by name. Lookup may normalise the name it is given.
type ToolCatalog interface {
	Register(tool Tool) error
	Lookup(name string) (Tool, ToolSpec, bool)
	Specs() []ToolSpec
}

// Mode selects how a chat turn may change the todo list.
type Mode string

const (
	// ModeChat streams replies and never touches the list.
	ModeChat Mode = "chat"
	// ModeInstruction applies one JSON instruction parsed from the finished reply.
	ModeInstruction Mode = "instruction"
	// ModeTools runs the bounded tool-calling loop.
	ModeTools Mode = "tools"
)

// EventKind tags an Event.
type EventKind string

const (
	EventText       EventKind = "text"
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventAction     EventKind = "action"
	EventStepFinish EventKind = "step_finish"
	EventFinish     EventKind = "finish"
	EventError      EventKind = "error"
)

// Finish reasons reported on step_finish and finish events.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool-calls"
	FinishError     = "error"
)

// ToolResult is the observation produced by one executed tool call.
type ToolResult struct {
	ToolCallID string                    `json:"toolCallId"`
	ToolName   string                    `json:"toolName"`
	Result     string                    `json:"result"`
	Success    bool                      `json:"success"`
	Action     *dispatch.ExecutionResult `json:"-"`
}

// Event is one element of a streamed chat turn.
type Event struct {
	Kind       EventKind
	Text       string
	ToolCall   *models.ToolCall
	ToolResult *ToolResult
	Action     *dispatch.ExecutionResult
	// FinishReason and Continued are set on step_finish and finish events.
	FinishReason string
	Continued    bool
	// Messages is set on the finish event: the turns this reply added to the conversation.
	Messages   []models.Message
	StopReason StopReason
	Err        error
}

// Reply is a fully drained chat turn.
type Reply struct {
	Text        string
	Actions     []dispatch.ExecutionResult
	ToolResults []ToolResult
	Messages    []models.Message
	StopReason  StopReason
}
