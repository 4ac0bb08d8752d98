package todo

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Store is an ordered, process-lifetime collection of tasks. Each method is atomic;
// sequences of calls are not.
type Store struct {
	mu     sync.Mutex
	tasks  []Task
	nextID int64
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for CreatedAt/CompletedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTasks seeds the store. IDs are reassigned in order.
func WithTasks(texts ...string) Option {
	return func(s *Store) {
		for _, text := range texts {
			s.add(text)
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{nextID: 1, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Add appends a new pending task.
func (s *Store) Add(text string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(text)
}

func (s *Store) add(text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return fail("task text is empty")
	}
	task := Task{ID: s.nextID, Text: text, CreatedAt: s.now()}
	s.nextID++
	s.tasks = append(s.tasks, task)

	res := ok(fmt.Sprintf("Added task #%d: %s", task.ID, task.Text))
	res.Task = &task
	return res
}

// Complete marks the task resolved by identifier as done. Completing a task that is
// already done is a failure and leaves CompletedAt untouched.
func (s *Store) Complete(identifier string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.resolve(identifier)
	if idx < 0 {
		return fail(fmt.Sprintf("No task matching %q", strings.TrimSpace(identifier)))
	}
	task := &s.tasks[idx]
	if task.Completed {
		cp := *task
		res := fail(fmt.Sprintf("Task #%d is already completed: %s", task.ID, task.Text))
		res.Task = &cp
		return res
	}
	at := s.now()
	task.Completed = true
	task.CompletedAt = &at

	cp := *task
	res := ok(fmt.Sprintf("Completed task #%d: %s", cp.ID, cp.Text))
	res.Task = &cp
	return res
}

// Delete removes the task resolved by identifier.
func (s *Store) Delete(identifier string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.resolve(identifier)
	if idx < 0 {
		return fail(fmt.Sprintf("No task matching %q", strings.TrimSpace(identifier)))
	}
	removed := s.tasks[idx]
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)

	res := ok(fmt.Sprintf("Deleted task #%d: %s", removed.ID, removed.Text))
	res.Task = &removed
	return res
}

// List returns every task in insertion order. An empty store is still a success.
func (s *Store) List() Result {
	tasks := s.Snapshot()
	if len(tasks) == 0 {
		return ok("No tasks yet.")
	}
	pending := 0
	for _, t := range tasks {
		if !t.Completed {
			pending++
		}
	}
	res := ok(fmt.Sprintf("%d task(s), %d pending", len(tasks), pending))
	res.Tasks = tasks
	res.Count = len(tasks)
	return res
}

// ClearCompleted removes all completed tasks.
func (s *Store) ClearCompleted() Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tasks[:0]
	removed := 0
	for _, t := range s.tasks {
		if t.Completed {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	s.tasks = kept

	res := ok(fmt.Sprintf("Cleared %d completed task(s)", removed))
	res.Count = removed
	return res
}

// ClearAll removes every task and resets the id counter.
func (s *Store) ClearAll() Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.tasks)
	s.tasks = nil
	s.nextID = 1

	res := ok(fmt.Sprintf("Cleared all %d task(s)", removed))
	res.Count = removed
	return res
}

// Snapshot returns a copy of the tasks in insertion order.
func (s *Store) Snapshot() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Task, len(s.tasks))
	for i, t := range s.tasks {
		if t.CompletedAt != nil {
			at := *t.CompletedAt
			t.CompletedAt = &at
		}
		out[i] = t
	}
	return out
}

// Len reports the number of tasks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// resolve finds the index for identifier: exact id first, then the first task whose
// text contains the identifier or is contained by it, case-insensitively.
// Callers hold s.mu.
func (s *Store) resolve(identifier string) int {
	ident := strings.TrimSpace(identifier)
	if ident == "" {
		return -1
	}
	if id, err := strconv.ParseInt(strings.TrimPrefix(ident, "#"), 10, 64); err == nil {
		for i, t := range s.tasks {
			if t.ID == id {
				return i
			}
		}
	}
	needle := strings.ToLower(ident)
	for i, t := range s.tasks {
		hay := strings.ToLower(t.Text)
		if strings.Contains(hay, needle) || strings.Contains(needle, hay) {
			return i
		}
	}
	return -1
}
