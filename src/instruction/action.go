// Package instruction pulls JSON directives out of model replies and validates them
// against the set of actions a deployment supports.
package instruction

import (
	"fmt"
	"strings"

	"github.com/Protocol-Lattice/todo-agent/src/helpers"
)

// Action names one kind of directive the model may emit.
type Action string

const (
	ActionAdd            Action = "add"
	ActionComplete       Action = "complete"
	ActionDelete         Action = "delete"
	ActionList           Action = "list"
	ActionClearCompleted Action = "clear_completed"
	ActionClearAll       Action = "clear_all"
	// ActionClear is the single clear verb of the smallest deployment; it empties the list.
	ActionClear Action = "clear"
	// ActionChat carries a response only and never touches the list.
	ActionChat Action = "chat"
)

// RequiresTask reports whether the action targets or creates a specific task.
func (a Action) RequiresTask() bool {
	switch a {
	case ActionAdd, ActionComplete, ActionDelete:
		return true
	}
	return false
}

func (a Action) known() bool {
	switch a {
	case ActionAdd, ActionComplete, ActionDelete, ActionList,
		ActionClearCompleted, ActionClearAll, ActionClear, ActionChat:
		return true
	}
	return false
}

// Instruction is a validated directive.
type Instruction struct {
	Action   Action `json:"action"`
	Task     string `json:"task,omitempty"`
	Response string `json:"response,omitempty"`
}

// ActionSet is the ordered enumeration of actions a deployment accepts.
type ActionSet []Action

var (
	// BasicActions is the smallest deployment.
	BasicActions = ActionSet{ActionAdd, ActionList, ActionClear}
	// FullActions is the complete todo vocabulary.
	FullActions = ActionSet{ActionAdd, ActionComplete, ActionDelete, ActionList, ActionClearCompleted, ActionClearAll}
)

// Contains reports whether a is enabled.
func (s ActionSet) Contains(a Action) bool {
	for _, x := range s {
		if x == a {
			return true
		}
	}
	return false
}

// Strings returns the action names in order.
func (s ActionSet) Strings() []string {
	out := make([]string, len(s))
	for i, a := range s {
		out[i] = string(a)
	}
	return out
}

func (s ActionSet) String() string { return strings.Join(s.Strings(), ", ") }

// ParseActionSet accepts preset names ("basic", "full") and individual actions,
// comma separated, e.g. "full,chat". Empty input yields FullActions.
func ParseActionSet(raw string) (ActionSet, error) {
	items := helpers.ParseCSVList(raw)
	if len(items) == 0 {
		return append(ActionSet(nil), FullActions...), nil
	}
	var out ActionSet
	add := func(a Action) {
		if !out.Contains(a) {
			out = append(out, a)
		}
	}
	for _, item := range items {
		switch name := strings.ToLower(item); name {
		case "basic":
			for _, a := range BasicActions {
				add(a)
			}
		case "full":
			for _, a := range FullActions {
				add(a)
			}
		default:
			a := Action(name)
			if !a.known() {
				return nil, fmt.Errorf("unknown action %q", item)
			}
			add(a)
		}
	}
	return out, nil
}
