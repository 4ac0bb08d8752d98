package models

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func userReq(text string, tools ...ToolDefinition) Request {
	return Request{Messages: []Message{{Role: RoleUser, Content: text}}, Tools: tools}
}

func TestDummyLLMEchoesUnknownInput(t *testing.T) {
	llm := NewDummyLLM("")
	resp, err := llm.Generate(context.Background(), userReq("hello there"))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if resp.Text != "Dummy response: hello there" {
		t.Fatalf("unexpected response: %q", resp.Text)
	}
}

func TestDummyLLMHandlesEmptyPrompt(t *testing.T) {
	llm := NewDummyLLM("Prefix")
	resp, _ := llm.Generate(context.Background(), Request{})
	if resp.Text != "Prefix <empty prompt>" {
		t.Fatalf("unexpected response: %q", resp.Text)
	}
}

func TestDummyLLMEmitsInstructionBlock(t *testing.T) {
	llm := NewDummyLLM("")
	resp, _ := llm.Generate(context.Background(), userReq("add buy milk"))
	if !strings.Contains(resp.Text, "```json") || !strings.Contains(resp.Text, `"task":"buy milk"`) {
		t.Fatalf("expected fenced instruction, got %q", resp.Text)
	}
	if len(resp.ToolCalls) != 0 {
		t.Fatalf("expected no tool calls without tools, got %v", resp.ToolCalls)
	}
}

func TestDummyLLMEmitsToolCallWhenToolsDeclared(t *testing.T) {
	llm := NewDummyLLM("")
	resp, _ := llm.Generate(context.Background(), userReq("done buy milk", ToolDefinition{Name: "completeTodo"}))
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected one tool call, got %v", resp.ToolCalls)
	}
	call := resp.ToolCalls[0]
	if call.Name != "completeTodo" || call.Arguments["task"] != "buy milk" || call.ID == "" {
		t.Fatalf("unexpected call: %+v", call)
	}
}

func TestDummyLLMSummarisesToolResult(t *testing.T) {
	llm := NewDummyLLM("")
	req := Request{Messages: []Message{
		{Role: RoleUser, Content: "list"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "1", Name: "listTodos"}}},
		{Role: RoleTool, ToolCallID: "1", Name: "listTodos", Content: "ok: 2 task(s), 1 pending\ntasks[2]:"},
	}}
	resp, _ := llm.Generate(context.Background(), req)
	if resp.Text != "Done. ok: 2 task(s), 1 pending" {
		t.Fatalf("unexpected response: %q", resp.Text)
	}
}

func TestDummyLLMStreamReassembles(t *testing.T) {
	llm := NewDummyLLM("")
	resp, err := Collect(llm.GenerateStream(context.Background(), userReq("what is up")))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if resp.Text != "Dummy response: what is up" {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
}

func TestNewLLMProviderErrorsOnUnknownProvider(t *testing.T) {
	if _, err := NewLLMProvider(context.Background(), "unknown", "model"); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestNewLLMProviderReportsMissingCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	for _, provider := range []string{"openai", "anthropic", "gemini"} {
		_, err := NewLLMProvider(context.Background(), provider, "m")
		if !errors.Is(err, ErrMissingCredential) {
			t.Fatalf("%s: expected ErrMissingCredential, got %v", provider, err)
		}
		var ce *CredentialError
		if !errors.As(err, &ce) || ce.Provider == "" || len(ce.EnvVars) == 0 {
			t.Fatalf("%s: expected CredentialError, got %T", provider, err)
		}
	}
}

func TestNewLLMProviderDummyAndOllamaNeedNoKey(t *testing.T) {
	for _, provider := range []string{"dummy", "ollama"} {
		if _, err := NewLLMProvider(context.Background(), provider, "m"); err != nil {
			t.Fatalf("%s: unexpected error %v", provider, err)
		}
	}
	if SupportsTools("ollama") || !SupportsTools("openai") {
		t.Fatalf("unexpected SupportsTools result")
	}
}

func TestCollectReturnsStreamError(t *testing.T) {
	ch := make(chan StreamChunk, 2)
	ch <- StreamChunk{Delta: "par"}
	ch <- StreamChunk{Done: true, Err: errors.New("boom")}
	close(ch)

	resp, err := Collect(ch, nil)
	if err == nil || resp.Text != "par" {
		t.Fatalf("expected partial text and error, got %q %v", resp.Text, err)
	}
}

func TestPrimeSurfacesEarlyFailure(t *testing.T) {
	ch := make(chan StreamChunk, 1)
	ch <- StreamChunk{Done: true, Err: errors.New("401")}
	close(ch)

	if _, err := prime(context.Background(), ch); err == nil {
		t.Fatalf("expected early error")
	}
}

func TestPrimeReplaysFirstChunk(t *testing.T) {
	ch := make(chan StreamChunk, 2)
	ch <- StreamChunk{Delta: "a"}
	ch <- StreamChunk{Done: true, FullText: "a"}
	close(ch)

	out, err := prime(context.Background(), ch)
	if err != nil {
		t.Fatalf("prime: %v", err)
	}
	resp, _ := Collect(out, nil)
	if resp.Text != "a" {
		t.Fatalf("unexpected text %q", resp.Text)
	}
}

func TestProviderMessagesDropsDataAndFoldsSystem(t *testing.T) {
	system, rest := splitSystem(Request{
		System: "base",
		Messages: []Message{
			{Role: RoleSystem, Content: "extra"},
			{Role: RoleData, Content: `{"k":1}`},
			{Role: RoleUser, Content: "  "},
			{Role: RoleUser, Content: "hi"},
		},
	})
	if system != "base\n\nextra" {
		t.Fatalf("unexpected system %q", system)
	}
	if len(rest) != 1 || rest[0].Content != "hi" {
		t.Fatalf("unexpected messages %+v", rest)
	}
}

func TestToOpenAIMessagesCarriesToolTraffic(t *testing.T) {
	msgs := toOpenAIMessages(Request{
		System: "sys",
		Messages: []Message{
			{Role: RoleUser, Content: "add milk"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "addTodo", Arguments: map[string]any{"task": "milk"}}}},
			{Role: RoleTool, ToolCallID: "c1", Content: "ok"},
		},
	})
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[2].ToolCalls[0].Function.Arguments != `{"task":"milk"}` {
		t.Fatalf("unexpected arguments %q", msgs[2].ToolCalls[0].Function.Arguments)
	}
	if msgs[3].Role != openai.ChatMessageRoleTool || msgs[3].ToolCallID != "c1" {
		t.Fatalf("unexpected tool message %+v", msgs[3])
	}
}

func TestToGeminiSchema(t *testing.T) {
	s := toGeminiSchema(map[string]any{
		"type":       "object",
		"properties": map[string]any{"task": map[string]any{"type": "string", "description": "d"}},
		"required":   []string{"task"},
	})
	if s.Properties["task"] == nil || s.Properties["task"].Description != "d" {
		t.Fatalf("unexpected schema %+v", s)
	}
	if len(s.Required) != 1 || s.Required[0] != "task" {
		t.Fatalf("unexpected required %v", s.Required)
	}
}

func TestOpenAIStreamAccumulatesToolCallDeltas(t *testing.T) {
	chunks := []string{
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":"Sure"}}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"addTodo","arguments":"{\"task\""}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":":\"milk\"}"}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test")
	cfg.BaseURL = srv.URL + "/v1"
	llm := &OpenAILLM{Client: openai.NewClientWithConfig(cfg), Model: "m"}

	resp, err := llm.Generate(context.Background(), userReq("add milk", ToolDefinition{Name: "addTodo"}))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != "Sure" || resp.FinishReason != "tool_calls" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ID != "call_1" || resp.ToolCalls[0].Arguments["task"] != "milk" {
		t.Fatalf("unexpected tool calls %+v", resp.ToolCalls)
	}
}

func TestOpenAIUpstreamErrorSurfacesBeforeStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test")
	cfg.BaseURL = srv.URL + "/v1"
	llm := &OpenAILLM{Client: openai.NewClientWithConfig(cfg), Model: "m"}

	if _, err := llm.GenerateStream(context.Background(), userReq("hi")); err == nil {
		t.Fatalf("expected upstream error")
	}
}
