package instruction

import (
	"fmt"
	"strings"
)

var actionHelp = map[Action]string{
	ActionAdd:            `add a new task; "task" is the task text`,
	ActionComplete:       `mark a task as done; "task" is its id or text`,
	ActionDelete:         `remove a task; "task" is its id or text`,
	ActionList:           "show the current tasks",
	ActionClearCompleted: "remove every completed task",
	ActionClearAll:       "remove every task",
	ActionClear:          "remove every task",
	ActionChat:           "no list change, just reply",
}

// Describe renders the instruction convention for a system prompt.
func Describe(set ActionSet) string {
	var sb strings.Builder
	sb.WriteString("When the user asks to change or view the todo list, reply with a short sentence and then a JSON instruction in a fenced block:\n")
	sb.WriteString("```json\n{\"action\": \"<action>\", \"task\": \"<task text or id>\", \"response\": \"<what you tell the user>\"}\n```\n")
	sb.WriteString("Supported actions:\n")
	for _, a := range set {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", a, actionHelp[a]))
	}
	sb.WriteString("Emit at most one instruction per reply. Omit \"task\" for actions that do not need it. ")
	sb.WriteString("If the user is just chatting, do not emit an instruction.")
	return sb.String()
}
