package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type OpenAILLM struct {
	Client *openai.Client
	Model  string
}

// NewOpenAILLM reads OPENAI_API_KEY (or OPENAI_KEY) and the optional OPENAI_BASE_URL.
func NewOpenAILLM(model string) (*OpenAILLM, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_KEY") // fallback
	}
	if apiKey == "" {
		return nil, &CredentialError{Provider: "openai", EnvVars: []string{"OPENAI_API_KEY", "OPENAI_KEY"}}
	}
	cfg := openai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); base != "" {
		cfg.BaseURL = base
	}
	return &OpenAILLM{Client: openai.NewClientWithConfig(cfg), Model: model}, nil
}

func (o *OpenAILLM) Generate(ctx context.Context, req Request) (Response, error) {
	return Collect(o.GenerateStream(ctx, req))
}

func (o *OpenAILLM) GenerateStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	stream, err := o.Client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    o.Model,
		Messages: toOpenAIMessages(req),
		Tools:    toOpenAITools(req.Tools),
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	ch := make(chan StreamChunk, streamBuffer)
	go func() {
		defer close(ch)
		defer stream.Close()

		var (
			sb     strings.Builder
			finish string
			calls  = map[int]*openai.ToolCall{}
		)
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				send(ctx, ch, StreamChunk{Done: true, FullText: sb.String(), Err: fmt.Errorf("openai: %w", err)})
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]
			if delta := choice.Delta.Content; delta != "" {
				sb.WriteString(delta)
				if !send(ctx, ch, StreamChunk{Delta: delta}) {
					return
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				acc, ok := calls[idx]
				if !ok {
					acc = &openai.ToolCall{}
					calls[idx] = acc
				}
				if tc.ID != "" {
					acc.ID = tc.ID
				}
				if tc.Function.Name != "" {
					acc.Function.Name = tc.Function.Name
				}
				acc.Function.Arguments += tc.Function.Arguments
			}
			if choice.FinishReason != "" {
				finish = string(choice.FinishReason)
			}
		}

		send(ctx, ch, StreamChunk{
			Done:         true,
			FullText:     sb.String(),
			ToolCalls:    collectOpenAICalls(calls),
			FinishReason: finish,
		})
	}()
	return ch, nil
}

func collectOpenAICalls(calls map[int]*openai.ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	idx := make([]int, 0, len(calls))
	for i := range calls {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]ToolCall, 0, len(idx))
	for _, i := range idx {
		c := calls[i]
		out = append(out, ToolCall{
			ID:        callID(c.ID),
			Name:      c.Function.Name,
			Arguments: parseArguments(c.Function.Arguments),
		})
	}
	return out
}

func toOpenAIMessages(req Request) []openai.ChatCompletionMessage {
	system, rest := splitSystem(req)
	out := make([]openai.ChatCompletionMessage, 0, len(rest)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range rest {
		switch m.Role {
		case RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: encodeArguments(tc.Arguments),
					},
				})
			}
			out = append(out, msg)
		case RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		default:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		}
	}
	return out
}

func toOpenAITools(defs []ToolDefinition) []openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return out
}
