package models

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicLLM implements Agent using Anthropic's Messages API.
type AnthropicLLM struct {
	Client    *anthropic.Client
	Model     string
	MaxTokens int
}

// NewAnthropicLLM reads ANTHROPIC_API_KEY from the env.
func NewAnthropicLLM(model string) (*AnthropicLLM, error) {
	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		return nil, &CredentialError{Provider: "anthropic", EnvVars: []string{"ANTHROPIC_API_KEY"}}
	}
	cl := anthropic.NewClient(anthropicopt.WithAPIKey(key))
	return &AnthropicLLM{
		Client:    &cl,
		Model:     model, // e.g. "claude-3-5-sonnet-latest"
		MaxTokens: 1024,
	}, nil
}

func (a *AnthropicLLM) Generate(ctx context.Context, req Request) (Response, error) {
	return Collect(a.GenerateStream(ctx, req))
}

func (a *AnthropicLLM) GenerateStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	system, rest := splitSystem(req)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: int64(a.MaxTokens),
		Messages:  toAnthropicMessages(rest),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
	}

	stream := a.Client.Messages.NewStreaming(ctx, params)
	ch := make(chan StreamChunk, streamBuffer)
	go func() {
		defer close(ch)
		defer stream.Close()

		var (
			sb      strings.Builder
			message anthropic.Message
		)
		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				send(ctx, ch, StreamChunk{Done: true, FullText: sb.String(), Err: fmt.Errorf("anthropic: %w", err)})
				return
			}
			ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			if td, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && td.Text != "" {
				sb.WriteString(td.Text)
				if !send(ctx, ch, StreamChunk{Delta: td.Text}) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			send(ctx, ch, StreamChunk{Done: true, FullText: sb.String(), Err: fmt.Errorf("anthropic: %w", err)})
			return
		}

		var calls []ToolCall
		for _, block := range message.Content {
			if tu, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
				calls = append(calls, ToolCall{
					ID:        callID(tu.ID),
					Name:      tu.Name,
					Arguments: parseArguments(string(tu.Input)),
				})
			}
		}
		send(ctx, ch, StreamChunk{
			Done:         true,
			FullText:     sb.String(),
			ToolCalls:    calls,
			FinishReason: string(message.StopReason),
		})
	}()
	return prime(ctx, ch)
}

func toAnthropicMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if strings.TrimSpace(m.Content) != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, json.RawMessage(encodeArguments(tc.Arguments)), tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

func toAnthropicTools(defs []ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		tool := &anthropic.ToolParam{
			Name:        d.Name,
			Description: anthropic.String(d.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: d.Parameters["properties"],
				Required:   requiredFields(d.Parameters),
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: tool})
	}
	return out
}

func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
