package models

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DummyLLM is an offline model for local testing without API calls. It
// recognises a few imperative phrasings ("add ...", "done ...", "list") and
// answers with either an instruction block or a tool call, depending on
// whether the request declares tools. Anything else is echoed.
type DummyLLM struct {
	Prefix string
}

func NewDummyLLM(prefix string) *DummyLLM {
	if strings.TrimSpace(prefix) == "" {
		prefix = "Dummy response:"
	}
	return &DummyLLM{Prefix: prefix}
}

type dummyIntent struct {
	action string
	task   string
}

var dummyTools = map[string]string{
	"add":             "addTodo",
	"complete":        "completeTodo",
	"delete":          "deleteTodo",
	"list":            "listTodos",
	"clear_completed": "clearCompleted",
	"clear_all":       "clearAll",
}

func parseDummyIntent(text string) (dummyIntent, bool) {
	t := strings.TrimSpace(text)
	lower := strings.ToLower(t)
	prefixes := []struct {
		prefix string
		action string
	}{
		{"clear completed", "clear_completed"},
		{"clear all", "clear_all"},
		{"add ", "add"},
		{"complete ", "complete"},
		{"done ", "complete"},
		{"finish ", "complete"},
		{"delete ", "delete"},
		{"remove ", "delete"},
		{"list", "list"},
		{"show", "list"},
	}
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p.prefix) {
			return dummyIntent{action: p.action, task: strings.TrimSpace(t[len(p.prefix):])}, true
		}
	}
	return dummyIntent{}, false
}

func (d *DummyLLM) reply(req Request) Response {
	var last Message
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role != RoleData && req.Messages[i].Role != RoleSystem {
			last = req.Messages[i]
			break
		}
	}

	if last.Role == RoleTool {
		line, _, _ := strings.Cut(last.Content, "\n")
		return Response{Text: "Done. " + line, FinishReason: "stop"}
	}

	text := strings.TrimSpace(last.Content)
	if text == "" {
		text = "<empty prompt>"
	}
	intent, ok := parseDummyIntent(text)
	if !ok {
		return Response{Text: fmt.Sprintf("%s %s", d.Prefix, text), FinishReason: "stop"}
	}

	if len(req.Tools) > 0 {
		name := dummyTools[intent.action]
		for _, def := range req.Tools {
			if def.Name != name {
				continue
			}
			args := map[string]any{}
			if intent.task != "" {
				args["task"] = intent.task
			}
			return Response{ToolCalls: []ToolCall{{ID: callID(""), Name: name, Arguments: args}}, FinishReason: "tool_calls"}
		}
	}

	payload := map[string]string{"action": intent.action, "response": "On it."}
	if intent.task != "" {
		payload["task"] = intent.task
	}
	b, _ := json.Marshal(payload)
	return Response{Text: "On it.\n```json\n" + string(b) + "\n```", FinishReason: "stop"}
}

func (d *DummyLLM) Generate(_ context.Context, req Request) (Response, error) {
	return d.reply(req), nil
}

// GenerateStream simulates streaming by splitting the response into word-level chunks.
func (d *DummyLLM) GenerateStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	resp := d.reply(req)

	ch := make(chan StreamChunk, streamBuffer)
	go func() {
		defer close(ch)
		words := strings.SplitAfter(resp.Text, " ")
		for _, word := range words {
			if word == "" {
				continue
			}
			if !send(ctx, ch, StreamChunk{Delta: word}) {
				return
			}
		}
		send(ctx, ch, StreamChunk{Done: true, FullText: resp.Text, ToolCalls: resp.ToolCalls, FinishReason: resp.FinishReason})
	}()

	return ch, nil
}

var (
	_ Agent = (*DummyLLM)(nil)
	_ Agent = (*OpenAILLM)(nil)
	_ Agent = (*AnthropicLLM)(nil)
	_ Agent = (*GeminiLLM)(nil)
	_ Agent = (*OllamaLLM)(nil)
)
