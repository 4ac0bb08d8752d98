// Package todo holds the in-memory task list mutated by dispatched instructions.
package todo

import (
	"fmt"
	"strings"
	"time"
)

// Task is a single to-do item. CompletedAt is set if and only if Completed is true.
type Task struct {
	ID          int64      `json:"id"`
	Text        string     `json:"text"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// String renders the task the way list replies show it.
func (t Task) String() string {
	mark := " "
	if t.Completed {
		mark = "x"
	}
	return fmt.Sprintf("[%s] #%d %s", mark, t.ID, t.Text)
}

// Result is returned by every store operation. Failures are reported here, never as errors.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Task    *Task  `json:"task,omitempty"`
	Tasks   []Task `json:"tasks,omitempty"`
	Count   int    `json:"count,omitempty"`
}

func ok(msg string) Result   { return Result{Success: true, Message: msg} }
func fail(msg string) Result { return Result{Success: false, Message: msg} }

// RenderList formats tasks one per line in store order.
func RenderList(tasks []Task) string {
	if len(tasks) == 0 {
		return "No tasks yet."
	}
	var sb strings.Builder
	for i, t := range tasks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(t.String())
	}
	return sb.String()
}
