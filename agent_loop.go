package todoagent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Protocol-Lattice/todo-agent/src/logging"
	"github.com/Protocol-Lattice/todo-agent/src/models"
)

var (
	ErrMissingModel    = errors.New("loop requires a model")
	ErrMissingExecutor = errors.New("loop requires a step executor")
)

// LoopState is the controller state between model calls.
type LoopState string

const (
	StateThinking  LoopState = "thinking"
	StateActing    LoopState = "acting"
	StateObserving LoopState = "observing"
	StateDone      LoopState = "done"
)

// StopReason explains why a turn ended.
type StopReason string

const (
	StopCompleted  StopReason = "completed"
	StopStepBudget StopReason = "step_budget"
	StopError      StopReason = "error"
	StopCanceled   StopReason = "canceled"
)

// rejectedCallObservation is returned for every tool call after the first in a step.
const rejectedCallObservation = "failed: one tool call per step; this call was not executed, retry it in the next step"

// StepExecutor runs one tool call and returns its observation.
type StepExecutor interface {
	Execute(ctx context.Context, call models.ToolCall) ToolResult
}

// CatalogExecutor resolves tool calls against a ToolCatalog.
type CatalogExecutor struct {
	Catalog ToolCatalog
}

func (e *CatalogExecutor) Execute(ctx context.Context, call models.ToolCall) ToolResult {
	result := ToolResult{ToolCallID: call.ID, ToolName: call.Name}
	tool, _, ok := e.Catalog.Lookup(call.Name)
	if !ok {
		result.Result = fmt.Sprintf("failed: unknown tool %q", call.Name)
		return result
	}
	resp, err := tool.Invoke(ctx, ToolRequest{CallID: call.ID, Arguments: call.Arguments})
	if err != nil {
		result.Result = "failed: " + err.Error()
		return result
	}
	result.Result = resp.Content
	result.Success = resp.Success
	result.Action = resp.Result
	return result
}

// Loop is a bounded think/act/observe controller. Each step makes one model
// call; at most one tool call per step is executed.
type Loop struct {
	Model    models.Agent
	Executor StepExecutor
	MaxSteps int
	System   string
	Tools    []models.ToolDefinition
	Logger   *zap.Logger
}

// LoopRun is a started loop. The first model call has already been made.
type LoopRun struct {
	loop    *Loop
	ctx     context.Context
	conv    []models.Message
	added   []models.Message
	pending <-chan models.StreamChunk
	step    int
}

// Begin validates the loop and makes the first model call, so request errors
// surface before any output is produced. Defaults apply to the run only; l is
// left as the caller set it.
func (l *Loop) Begin(ctx context.Context, messages []models.Message) (*LoopRun, error) {
	if l.Model == nil {
		return nil, ErrMissingModel
	}
	if l.Executor == nil {
		return nil, ErrMissingExecutor
	}
	cfg := *l
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	cfg.Logger = logging.OrNop(cfg.Logger)
	run := &LoopRun{
		loop: &cfg,
		ctx:  ctx,
		conv: append([]models.Message(nil), messages...),
	}
	stream, err := run.request()
	if err != nil {
		return nil, err
	}
	run.pending = stream
	return run, nil
}

func (r *LoopRun) request() (<-chan models.StreamChunk, error) {
	r.step++
	return r.loop.Model.GenerateStream(r.ctx, models.Request{
		System:   r.loop.System,
		Messages: r.conv,
		Tools:    r.loop.Tools,
	})
}

func (r *LoopRun) append(m models.Message) {
	r.conv = append(r.conv, m)
	r.added = append(r.added, m)
}

// Drive runs the loop to completion, passing events to emit. emit returning
// false means the consumer is gone and the run is treated as canceled.
func (r *LoopRun) Drive(emit func(Event) bool) StopReason {
	var (
		state = StateThinking
		stop  StopReason
		calls []models.ToolCall
	)

	for state != StateDone {
		switch state {
		case StateThinking:
			if r.pending == nil {
				if r.step >= r.loop.MaxSteps {
					stop, state = StopStepBudget, StateDone
					continue
				}
				stream, err := r.request()
				if err != nil {
					r.loop.Logger.Error("model request failed", zap.Int("step", r.step), zap.Error(err))
					emit(Event{Kind: EventError, Err: err, Text: err.Error()})
					stop, state = StopError, StateDone
					continue
				}
				r.pending = stream
			}

			resp, ok, err := r.consume(emit)
			r.pending = nil
			switch {
			case !ok:
				stop, state = StopCanceled, StateDone
				continue
			case err != nil:
				r.loop.Logger.Error("model stream failed", zap.Int("step", r.step), zap.Error(err))
				emit(Event{Kind: EventError, Err: err, Text: err.Error()})
				stop, state = StopError, StateDone
				continue
			}

			r.append(models.Message{Role: models.RoleAssistant, Content: resp.Text, ToolCalls: resp.ToolCalls})
			if len(resp.ToolCalls) == 0 {
				if !emit(Event{Kind: EventStepFinish, FinishReason: FinishStop}) {
					stop = StopCanceled
				} else {
					stop = StopCompleted
				}
				state = StateDone
				continue
			}
			calls = resp.ToolCalls
			state = StateActing

		case StateActing:
			for i := range calls {
				call := calls[i]
				if !emit(Event{Kind: EventToolCall, ToolCall: &call}) {
					return StopCanceled
				}
				var result ToolResult
				if i == 0 {
					result = r.loop.Executor.Execute(r.ctx, call)
				} else {
					result = ToolResult{ToolCallID: call.ID, ToolName: call.Name, Result: rejectedCallObservation}
				}
				result.ToolCallID, result.ToolName = call.ID, call.Name
				r.loop.Logger.Debug("tool call executed",
					zap.Int("step", r.step),
					zap.String("tool", call.Name),
					zap.Bool("success", result.Success),
				)
				r.append(models.Message{Role: models.RoleTool, ToolCallID: call.ID, Name: call.Name, Content: result.Result})
				if !emit(Event{Kind: EventToolResult, ToolResult: &result}) {
					return StopCanceled
				}
			}
			state = StateObserving

		case StateObserving:
			if !emit(Event{Kind: EventStepFinish, FinishReason: FinishToolCalls, Continued: r.step < r.loop.MaxSteps}) {
				stop, state = StopCanceled, StateDone
				continue
			}
			calls = nil
			state = StateThinking
		}
	}

	if stop == StopCanceled || r.ctx.Err() != nil {
		return StopCanceled
	}
	finish := FinishStop
	switch stop {
	case StopStepBudget:
		finish = FinishToolCalls
	case StopError:
		finish = FinishError
	}
	emit(Event{Kind: EventFinish, FinishReason: finish, StopReason: stop, Messages: r.added})
	return stop
}

// consume drains the pending stream. ok is false when emit reports the
// consumer has gone or the stream closed without a final chunk.
func (r *LoopRun) consume(emit func(Event) bool) (models.Response, bool, error) {
	var text strings.Builder
	for chunk := range r.pending {
		if chunk.Delta != "" {
			text.WriteString(chunk.Delta)
			if !emit(Event{Kind: EventText, Text: chunk.Delta}) {
				return models.Response{}, false, nil
			}
		}
		if !chunk.Done {
			continue
		}
		if chunk.Err != nil {
			return models.Response{Text: text.String()}, true, chunk.Err
		}
		if chunk.FullText != "" {
			text.Reset()
			text.WriteString(chunk.FullText)
		}
		return models.Response{Text: text.String(), ToolCalls: chunk.ToolCalls, FinishReason: chunk.FinishReason}, true, nil
	}
	return models.Response{}, false, nil
}
