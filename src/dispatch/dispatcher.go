// Package dispatch routes validated instructions to the task store.
package dispatch

import (
	"context"
	"fmt"

	"github.com/alpkeskin/gotoon"
	"go.uber.org/zap"

	"github.com/Protocol-Lattice/todo-agent/src/instruction"
	"github.com/Protocol-Lattice/todo-agent/src/logging"
	"github.com/Protocol-Lattice/todo-agent/src/todo"
)

// ExecutionResult is the outcome of one dispatched instruction.
type ExecutionResult struct {
	Action   instruction.Action `json:"action"`
	Success  bool               `json:"success"`
	Message  string             `json:"message"`
	Response string             `json:"response,omitempty"`
	Task     *todo.Task         `json:"task,omitempty"`
	Tasks    []todo.Task        `json:"tasks,omitempty"`
	Count    int                `json:"count"`
}

// Observation renders the result as text for the model. Task lists are
// TOON-encoded to keep the observation compact.
func (r ExecutionResult) Observation() string {
	status := "ok"
	if !r.Success {
		status = "failed"
	}
	out := fmt.Sprintf("%s: %s", status, r.Message)
	if len(r.Tasks) == 0 {
		return out
	}
	rows := make([]map[string]any, len(r.Tasks))
	for i, t := range r.Tasks {
		rows[i] = map[string]any{"id": t.ID, "text": t.Text, "completed": t.Completed}
	}
	encoded, err := gotoon.Encode(map[string]any{"tasks": rows})
	if err != nil {
		return out + "\n" + todo.RenderList(r.Tasks)
	}
	return out + "\n" + encoded
}

// Dispatcher maps an instruction's action to a store operation.
type Dispatcher struct {
	store   *todo.Store
	actions instruction.ActionSet
	logger  *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger attaches a logger; the default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logging.OrNop(l)
	}
}

// WithActions restricts dispatch to set. The default is instruction.FullActions.
func WithActions(set instruction.ActionSet) Option {
	return func(d *Dispatcher) {
		if len(set) > 0 {
			d.actions = set
		}
	}
}

// New builds a dispatcher over store.
func New(store *todo.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:   store,
		actions: instruction.FullActions,
		logger:  logging.OrNop(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Actions returns the enabled action set.
func (d *Dispatcher) Actions() instruction.ActionSet { return d.actions }

// Store returns the underlying task store.
func (d *Dispatcher) Store() *todo.Store { return d.store }

// Dispatch applies ins and always returns exactly one result.
func (d *Dispatcher) Dispatch(_ context.Context, ins instruction.Instruction) ExecutionResult {
	if d.store == nil || !d.actions.Contains(ins.Action) {
		return d.finish(ins, todo.Result{Message: fmt.Sprintf("unrecognized action: %s", ins.Action)})
	}

	var res todo.Result
	switch ins.Action {
	case instruction.ActionAdd:
		res = d.store.Add(ins.Task)
	case instruction.ActionComplete:
		res = d.store.Complete(ins.Task)
	case instruction.ActionDelete:
		res = d.store.Delete(ins.Task)
	case instruction.ActionList:
		res = d.store.List()
	case instruction.ActionClearCompleted:
		res = d.store.ClearCompleted()
	case instruction.ActionClearAll, instruction.ActionClear:
		res = d.store.ClearAll()
	case instruction.ActionChat:
		res = todo.Result{Success: true, Message: "no change"}
	default:
		res = todo.Result{Message: fmt.Sprintf("unrecognized action: %s", ins.Action)}
	}
	return d.finish(ins, res)
}

func (d *Dispatcher) finish(ins instruction.Instruction, res todo.Result) ExecutionResult {
	out := ExecutionResult{
		Action:   ins.Action,
		Success:  res.Success,
		Message:  res.Message,
		Response: ins.Response,
		Task:     res.Task,
		Tasks:    res.Tasks,
		Count:    res.Count,
	}
	d.logger.Info("instruction dispatched",
		zap.String("action", string(ins.Action)),
		zap.String("task", ins.Task),
		zap.Bool("success", out.Success),
		zap.String("message", out.Message),
	)
	return out
}
