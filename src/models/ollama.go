package models

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	ollama "github.com/ollama/ollama/api"
)

// ---------------------------- Ollama -----------------------------------------

// OllamaLLM talks to a local Ollama server. It ignores Request.Tools.
type OllamaLLM struct {
	Client *ollama.Client
	Model  string
	host   string
}

func NewOllamaLLM(model string) (*OllamaLLM, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}

	// no client timeout: streams run as long as the request context allows
	c := ollama.NewClient(u, &http.Client{})
	return &OllamaLLM{Client: c, Model: model, host: host}, nil
}

func (o *OllamaLLM) Generate(ctx context.Context, req Request) (Response, error) {
	return Collect(o.GenerateStream(ctx, req))
}

// GenerateStream leverages Ollama's native callback-based streaming.
func (o *OllamaLLM) GenerateStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	stream := true
	chatReq := &ollama.ChatRequest{
		Model:    o.Model,
		Messages: toOllamaMessages(req),
		Stream:   &stream,
	}

	ch := make(chan StreamChunk, streamBuffer)
	go func() {
		defer close(ch)

		var (
			sb     strings.Builder
			finish string
		)
		err := o.Client.Chat(ctx, chatReq, func(resp ollama.ChatResponse) error {
			if delta := resp.Message.Content; delta != "" {
				sb.WriteString(delta)
				if !send(ctx, ch, StreamChunk{Delta: delta}) {
					return ctx.Err()
				}
			}
			if resp.Done {
				finish = resp.DoneReason
			}
			return nil
		})
		if err != nil {
			send(ctx, ch, StreamChunk{Done: true, FullText: sb.String(), Err: fmt.Errorf("ollama %s: %w", o.host, err)})
			return
		}
		send(ctx, ch, StreamChunk{Done: true, FullText: sb.String(), FinishReason: finish})
	}()
	return prime(ctx, ch)
}

func toOllamaMessages(req Request) []ollama.Message {
	system, rest := splitSystem(req)
	out := make([]ollama.Message, 0, len(rest)+1)
	if system != "" {
		out = append(out, ollama.Message{Role: string(RoleSystem), Content: system})
	}
	for _, m := range rest {
		role := m.Role
		if role != RoleAssistant && role != RoleTool {
			role = RoleUser
		}
		out = append(out, ollama.Message{Role: string(role), Content: m.Content})
	}
	return out
}
