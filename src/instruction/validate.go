package instruction

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotObject         = errors.New("instruction is not a JSON object")
	ErrMissingAction     = errors.New("instruction has no action")
	ErrUnsupportedAction = errors.New("unsupported action")
	ErrMissingTask       = errors.New("instruction requires a non-empty task")
	ErrNoInstruction     = errors.New("no instruction found")
)

// Validate checks candidate against the action set and normalizes it. Any error
// means the candidate is rejected as a whole.
func Validate(candidate any, set ActionSet) (Instruction, error) {
	obj, ok := candidate.(map[string]any)
	if !ok || obj == nil {
		return Instruction{}, ErrNotObject
	}

	rawAction, ok := obj["action"].(string)
	if !ok || strings.TrimSpace(rawAction) == "" {
		return Instruction{}, ErrMissingAction
	}
	action := Action(strings.ToLower(strings.TrimSpace(rawAction)))
	if !set.Contains(action) {
		return Instruction{}, fmt.Errorf("%w: %q", ErrUnsupportedAction, rawAction)
	}

	ins := Instruction{Action: action}

	if action.RequiresTask() {
		task, ok := obj["task"].(string)
		task = strings.TrimSpace(task)
		if !ok || task == "" {
			return Instruction{}, fmt.Errorf("%w: %s", ErrMissingTask, action)
		}
		ins.Task = task
	}

	// a response of any other type is dropped, not fatal
	if resp, ok := obj["response"].(string); ok {
		ins.Response = strings.TrimSpace(resp)
	}
	return ins, nil
}

// Parse extracts and validates the first instruction in text.
func Parse(text string, set ActionSet) (Instruction, error) {
	candidate, ok := Extract(text)
	if !ok {
		return Instruction{}, ErrNoInstruction
	}
	return Validate(candidate, set)
}
