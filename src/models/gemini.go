package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// ---------------------------- Google Gemini ----------------------------------

type GeminiLLM struct {
	Client *genai.Client
	Model  string
}

func NewGeminiLLM(ctx context.Context, model string) (*GeminiLLM, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, &CredentialError{Provider: "gemini", EnvVars: []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}}
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &GeminiLLM{Client: client, Model: model}, nil
}

func (g *GeminiLLM) Generate(ctx context.Context, req Request) (Response, error) {
	return Collect(g.GenerateStream(ctx, req))
}

func (g *GeminiLLM) GenerateStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	system, rest := splitSystem(req)
	if len(rest) == 0 {
		return nil, errors.New("gemini: no messages")
	}

	model := g.Client.GenerativeModel(g.Model)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: toGeminiFunctions(req.Tools)}}
	}

	contents := toGeminiContents(rest)
	session := model.StartChat()
	session.History = contents[:len(contents)-1]
	iter := session.SendMessageStream(ctx, contents[len(contents)-1].Parts...)

	ch := make(chan StreamChunk, streamBuffer)
	go func() {
		defer close(ch)

		var (
			sb     strings.Builder
			calls  []ToolCall
			finish string
		)
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				send(ctx, ch, StreamChunk{Done: true, FullText: sb.String(), Err: fmt.Errorf("gemini generate: %w", err)})
				return
			}
			for _, cand := range resp.Candidates {
				if cand.FinishReason != genai.FinishReasonUnspecified {
					finish = cand.FinishReason.String()
				}
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					switch p := part.(type) {
					case genai.Text:
						if p == "" {
							continue
						}
						sb.WriteString(string(p))
						if !send(ctx, ch, StreamChunk{Delta: string(p)}) {
							return
						}
					case genai.FunctionCall:
						args := p.Args
						if args == nil {
							args = map[string]any{}
						}
						calls = append(calls, ToolCall{ID: callID(""), Name: p.Name, Arguments: args})
					}
				}
			}
		}
		send(ctx, ch, StreamChunk{Done: true, FullText: sb.String(), ToolCalls: calls, FinishReason: finish})
	}()
	return prime(ctx, ch)
}

func toGeminiContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			c := &genai.Content{Role: "model"}
			if strings.TrimSpace(m.Content) != "" {
				c.Parts = append(c.Parts, genai.Text(m.Content))
			}
			for _, tc := range m.ToolCalls {
				c.Parts = append(c.Parts, genai.FunctionCall{Name: tc.Name, Args: tc.Arguments})
			}
			out = append(out, c)
		case RoleTool:
			out = append(out, &genai.Content{Role: "user", Parts: []genai.Part{
				genai.FunctionResponse{Name: m.Name, Response: map[string]any{"result": m.Content}},
			}})
		default:
			out = append(out, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	return out
}

func toGeminiFunctions(defs []ToolDefinition) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		out = append(out, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  toGeminiSchema(d.Parameters),
		})
	}
	return out
}

// toGeminiSchema converts the JSON-schema subset used by tool parameters.
func toGeminiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	s := &genai.Schema{}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	switch schema["type"] {
	case "object":
		s.Type = genai.TypeObject
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
		if items, ok := schema["items"].(map[string]any); ok {
			s.Items = toGeminiSchema(items)
		}
	default:
		s.Type = genai.TypeString
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				s.Properties[name] = toGeminiSchema(sub)
			}
		}
	}
	s.Required = requiredFields(schema)
	return s
}
