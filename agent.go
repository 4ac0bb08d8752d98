// Package todoagent wires a chat model to an in-memory todo list. A turn either
// streams plain chat, applies one JSON instruction parsed from the finished
// reply, or runs a bounded tool-calling loop.
package todoagent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Protocol-Lattice/todo-agent/src/dispatch"
	"github.com/Protocol-Lattice/todo-agent/src/instruction"
	"github.com/Protocol-Lattice/todo-agent/src/logging"
	"github.com/Protocol-Lattice/todo-agent/src/models"
	"github.com/Protocol-Lattice/todo-agent/src/todo"
)

const defaultSystemPrompt = "You are a friendly assistant that helps the user manage a todo list. Keep replies short and confirm what changed."

// DefaultMaxSteps bounds the tool-calling loop.
const DefaultMaxSteps = 7

// Agent runs chat turns against a model and applies their effects to a task store.
type Agent struct {
	loader       models.Loader
	store        *todo.Store
	dispatcher   *dispatch.Dispatcher
	systemPrompt string
	mode         Mode
	maxSteps     int
	logger       *zap.Logger

	toolCatalog ToolCatalog
	executor    StepExecutor
}

// Options configure a new Agent.
type Options struct {
	// ModelLoader is called once per turn. Model is used when it is nil.
	ModelLoader  models.Loader
	Model        models.Agent
	Store        *todo.Store
	SystemPrompt string
	Mode         Mode
	Actions      instruction.ActionSet
	MaxSteps     int
	Logger       *zap.Logger
	ToolCatalog  ToolCatalog
	Executor     StepExecutor
}

// New creates an Agent with the provided options.
func New(opts Options) (*Agent, error) {
	loader := opts.ModelLoader
	if loader == nil && opts.Model != nil {
		model := opts.Model
		loader = func(context.Context) (models.Agent, error) { return model, nil }
	}
	if loader == nil {
		return nil, errors.New("agent requires a language model")
	}
	if opts.Store == nil {
		return nil, errors.New("agent requires a task store")
	}

	mode := opts.Mode
	switch mode {
	case "":
		mode = ModeInstruction
	case ModeChat, ModeInstruction, ModeTools:
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	systemPrompt := opts.SystemPrompt
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}

	logger := logging.OrNop(opts.Logger)

	d := dispatch.New(opts.Store, dispatch.WithActions(opts.Actions), dispatch.WithLogger(logger))

	toolCatalog := opts.ToolCatalog
	tolerantTools := false
	if toolCatalog == nil {
		toolCatalog = NewStaticToolCatalog(nil)
		tolerantTools = true
	}
	for _, tool := range TodoTools(d) {
		if err := toolCatalog.Register(tool); err != nil {
			if tolerantTools {
				continue
			}
			return nil, err
		}
	}

	a := &Agent{
		loader:       loader,
		store:        opts.Store,
		dispatcher:   d,
		systemPrompt: systemPrompt,
		mode:         mode,
		maxSteps:     maxSteps,
		logger:       logger,
		toolCatalog:  toolCatalog,
		executor:     opts.Executor,
	}
	if a.executor == nil {
		a.executor = &CatalogExecutor{Catalog: toolCatalog}
	}
	return a, nil
}

// Store returns the task store the agent mutates.
func (a *Agent) Store() *todo.Store { return a.store }

// Actions returns the enabled action set.
func (a *Agent) Actions() instruction.ActionSet { return a.dispatcher.Actions() }

// Mode returns the turn mode.
func (a *Agent) Mode() Mode { return a.mode }

// ToolSpecs returns the registered tool specifications.
func (a *Agent) ToolSpecs() []ToolSpec { return a.toolCatalog.Specs() }

// BuildSystemPrompt renders the base prompt, the mode's convention and the
// current task list.
func (a *Agent) BuildSystemPrompt() string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(a.systemPrompt))

	switch a.mode {
	case ModeInstruction:
		sb.WriteString("\n\n")
		sb.WriteString(instruction.Describe(a.Actions()))
	case ModeTools:
		sb.WriteString("\n\nYou can manage the todo list with these tools:\n")
		for _, spec := range a.toolCatalog.Specs() {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", spec.Name, spec.Description))
		}
		sb.WriteString("Call at most one tool per step, then read its result before continuing.")
	}

	sb.WriteString("\n\nCurrent todo list:\n")
	sb.WriteString(todo.RenderList(a.store.Snapshot()))
	return sb.String()
}

// Apply parses and dispatches one instruction from free text.
func (a *Agent) Apply(ctx context.Context, text string) (dispatch.ExecutionResult, error) {
	ins, err := instruction.Parse(text, a.Actions())
	if err != nil {
		return dispatch.ExecutionResult{}, err
	}
	return a.dispatcher.Dispatch(ctx, ins), nil
}

// Respond runs one turn to completion.
func (a *Agent) Respond(ctx context.Context, messages []models.Message) (Reply, error) {
	events, err := a.Stream(ctx, messages)
	if err != nil {
		return Reply{}, err
	}
	var (
		reply Reply
		text  strings.Builder
		rerr  error
	)
	for ev := range events {
		switch ev.Kind {
		case EventText:
			text.WriteString(ev.Text)
		case EventAction:
			reply.Actions = append(reply.Actions, *ev.Action)
		case EventToolResult:
			reply.ToolResults = append(reply.ToolResults, *ev.ToolResult)
			if ev.ToolResult.Action != nil {
				reply.Actions = append(reply.Actions, *ev.ToolResult.Action)
			}
		case EventError:
			rerr = ev.Err
		case EventFinish:
			reply.Messages = ev.Messages
			reply.StopReason = ev.StopReason
		}
	}
	reply.Text = text.String()
	if rerr == nil && ctx.Err() != nil {
		rerr = ctx.Err()
	}
	return reply, rerr
}
