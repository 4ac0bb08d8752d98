package models

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
)

const streamBuffer = 16

func send(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// prime waits for the first chunk so that failures raised before any output
// (bad credentials, unreachable host, rejected request) surface as an error
// from GenerateStream instead of a failed stream.
func prime(ctx context.Context, in <-chan StreamChunk) (<-chan StreamChunk, error) {
	var first StreamChunk
	select {
	case c, ok := <-in:
		if !ok {
			return nil, errors.New("stream closed before first chunk")
		}
		first = c
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if first.Done && first.Err != nil && first.FullText == "" {
		return nil, first.Err
	}

	out := make(chan StreamChunk, streamBuffer)
	go func() {
		defer close(out)
		if !send(ctx, out, first) {
			return
		}
		for c := range in {
			if !send(ctx, out, c) {
				return
			}
		}
	}()
	return out, nil
}

// Collect drains a stream into a Response.
func Collect(ch <-chan StreamChunk, err error) (Response, error) {
	if err != nil {
		return Response{}, err
	}
	var (
		sb   strings.Builder
		resp Response
	)
	for chunk := range ch {
		sb.WriteString(chunk.Delta)
		if !chunk.Done {
			continue
		}
		if chunk.Err != nil {
			return Response{Text: sb.String()}, chunk.Err
		}
		resp.ToolCalls = chunk.ToolCalls
		resp.FinishReason = chunk.FinishReason
		if chunk.FullText != "" {
			sb.Reset()
			sb.WriteString(chunk.FullText)
		}
	}
	resp.Text = sb.String()
	return resp, nil
}

// parseArguments decodes a JSON arguments payload. Blank input yields an empty map.
func parseArguments(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	args := map[string]any{}
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}
	}
	return args
}

func encodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func callID(id string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return "call_" + uuid.NewString()
}

// providerMessages drops data annotations and empty turns that carry no tool traffic.
func providerMessages(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleData {
			continue
		}
		if strings.TrimSpace(m.Content) == "" && len(m.ToolCalls) == 0 && m.Role != RoleTool {
			continue
		}
		out = append(out, m)
	}
	return out
}

// splitSystem moves system messages into the system instruction.
func splitSystem(req Request) (string, []Message) {
	system := strings.TrimSpace(req.System)
	var rest []Message
	for _, m := range providerMessages(req.Messages) {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += strings.TrimSpace(m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
