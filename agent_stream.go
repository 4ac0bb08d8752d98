package todoagent

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Protocol-Lattice/todo-agent/src/instruction"
	"github.com/Protocol-Lattice/todo-agent/src/models"
)

const eventBuffer = 16

// ErrEmptyConversation is returned by Stream when no message carries content.
var ErrEmptyConversation = errors.New("conversation has no messages")

type emitter struct {
	ctx context.Context
	out chan<- Event
}

func (e emitter) emit(ev Event) bool {
	select {
	case e.out <- ev:
		return true
	case <-e.ctx.Done():
		return false
	}
}

// Stream starts one chat turn. Model loading and request failures are returned
// before any event is produced; failures after that arrive as an error event.
// The channel is closed when the turn ends or ctx is canceled.
func (a *Agent) Stream(ctx context.Context, messages []models.Message) (<-chan Event, error) {
	model, err := a.loader(ctx)
	if err != nil {
		return nil, err
	}
	conv := conversation(messages)
	if len(conv) == 0 {
		return nil, ErrEmptyConversation
	}
	system := a.BuildSystemPrompt()

	if a.mode == ModeTools {
		run, err := (&Loop{
			Model:    model,
			Executor: a.executor,
			MaxSteps: a.maxSteps,
			System:   system,
			Tools:    ToolDefinitions(a.toolCatalog),
			Logger:   a.logger,
		}).Begin(ctx, conv)
		if err != nil {
			a.logger.Error("model request failed", zap.Error(err))
			return nil, err
		}
		out := make(chan Event, eventBuffer)
		go func() {
			defer close(out)
			run.Drive(emitter{ctx: ctx, out: out}.emit)
		}()
		return out, nil
	}

	stream, err := model.GenerateStream(ctx, models.Request{System: system, Messages: conv})
	if err != nil {
		a.logger.Error("model request failed", zap.Error(err))
		return nil, err
	}
	out := make(chan Event, eventBuffer)
	go func() {
		defer close(out)
		a.relay(ctx, stream, emitter{ctx: ctx, out: out})
	}()
	return out, nil
}

// relay forwards text and, in instruction mode, applies the instruction found
// in the completed reply. Nothing is dispatched when the stream fails or the
// caller goes away first.
func (a *Agent) relay(ctx context.Context, stream <-chan models.StreamChunk, em emitter) {
	var (
		full     strings.Builder
		finished bool
		finish   = FinishStop
	)
	for chunk := range stream {
		if chunk.Delta != "" {
			full.WriteString(chunk.Delta)
			if !em.emit(Event{Kind: EventText, Text: chunk.Delta}) {
				return
			}
		}
		if !chunk.Done {
			continue
		}
		if chunk.Err != nil {
			a.logger.Error("model stream failed", zap.Error(chunk.Err))
			em.emit(Event{Kind: EventError, Err: chunk.Err, Text: chunk.Err.Error()})
			return
		}
		if chunk.FullText != "" {
			full.Reset()
			full.WriteString(chunk.FullText)
		}
		finished = true
	}
	if !finished || ctx.Err() != nil {
		return
	}

	text := full.String()
	if a.mode == ModeInstruction {
		ins, err := instruction.Parse(text, a.Actions())
		if err != nil {
			a.logger.Debug("no instruction applied", zap.Error(err))
		} else {
			res := a.dispatcher.Dispatch(ctx, ins)
			if !em.emit(Event{Kind: EventAction, Action: &res}) {
				return
			}
		}
	}

	if !em.emit(Event{Kind: EventStepFinish, FinishReason: finish}) {
		return
	}
	em.emit(Event{
		Kind:         EventFinish,
		FinishReason: finish,
		StopReason:   StopCompleted,
		Messages:     []models.Message{{Role: models.RoleAssistant, Content: text}},
	})
}

// conversation drops blank turns the client may send.
func conversation(messages []models.Message) []models.Message {
	out := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" && len(m.ToolCalls) == 0 && m.Role != models.RoleTool {
			continue
		}
		out = append(out, m)
	}
	return out
}
