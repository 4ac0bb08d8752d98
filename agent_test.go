package todoagent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/Protocol-Lattice/todo-agent/src/instruction"
	"github.com/Protocol-Lattice/todo-agent/src/models"
	"github.com/Protocol-Lattice/todo-agent/src/todo"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedModel replays replies in order and repeats the last one.
type scriptedModel struct {
	mu        sync.Mutex
	replies   []models.Response
	failAt    int
	streamErr error
	requests  []models.Request
}

func (m *scriptedModel) Generate(ctx context.Context, req models.Request) (models.Response, error) {
	return models.Collect(m.GenerateStream(ctx, req))
}

func (m *scriptedModel) GenerateStream(ctx context.Context, req models.Request) (<-chan models.StreamChunk, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	m.mu.Unlock()

	if m.failAt == n {
		return nil, errors.New("upstream unavailable")
	}
	var resp models.Response
	if len(m.replies) > 0 {
		resp = m.replies[min(n, len(m.replies))-1]
	}

	ch := make(chan models.StreamChunk, 2)
	go func() {
		defer close(ch)
		if resp.Text != "" {
			select {
			case ch <- models.StreamChunk{Delta: resp.Text}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case ch <- models.StreamChunk{Done: true, FullText: resp.Text, ToolCalls: resp.ToolCalls, Err: m.streamErr}:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// stallingModel sends one delta and then waits for cancellation.
type stallingModel struct{}

func (stallingModel) Generate(ctx context.Context, req models.Request) (models.Response, error) {
	return models.Collect(stallingModel{}.GenerateStream(ctx, req))
}

func (stallingModel) GenerateStream(ctx context.Context, _ models.Request) (<-chan models.StreamChunk, error) {
	ch := make(chan models.StreamChunk)
	go func() {
		defer close(ch)
		select {
		case ch <- models.StreamChunk{Delta: "```json\n{\"action\":\"add\",\"task\":\"x\"}\n```"}:
		case <-ctx.Done():
			return
		}
		<-ctx.Done()
	}()
	return ch, nil
}

func userTurn(text string) []models.Message {
	return []models.Message{{Role: models.RoleUser, Content: text}}
}

func newAgent(t *testing.T, model models.Agent, opts Options) *Agent {
	t.Helper()
	opts.Model = model
	if opts.Store == nil {
		opts.Store = todo.NewStore()
	}
	a, err := New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return a
}

func TestNewValidatesRequirements(t *testing.T) {
	if _, err := New(Options{Store: todo.NewStore()}); err == nil {
		t.Fatalf("expected error when model is missing")
	}
	if _, err := New(Options{Model: &scriptedModel{}}); err == nil {
		t.Fatalf("expected error when store is missing")
	}
	if _, err := New(Options{Model: &scriptedModel{}, Store: todo.NewStore(), Mode: "telepathy"}); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	a := newAgent(t, &scriptedModel{}, Options{})
	if a.Mode() != ModeInstruction {
		t.Fatalf("expected instruction mode, got %q", a.Mode())
	}
	if a.maxSteps != DefaultMaxSteps {
		t.Fatalf("expected max steps %d, got %d", DefaultMaxSteps, a.maxSteps)
	}
	if len(a.ToolSpecs()) != 6 {
		t.Fatalf("expected 6 tools, got %d", len(a.ToolSpecs()))
	}
	if a.systemPrompt != defaultSystemPrompt {
		t.Fatalf("expected default system prompt")
	}
}

func TestBasicActionsRegisterMatchingTools(t *testing.T) {
	a := newAgent(t, &scriptedModel{}, Options{Actions: instruction.BasicActions})
	var names []string
	for _, spec := range a.ToolSpecs() {
		names = append(names, spec.Name)
	}
	if strings.Join(names, ",") != "addTodo,listTodos,clearAll" {
		t.Fatalf("unexpected tools: %v", names)
	}
}

func TestBuildSystemPromptInstructionMode(t *testing.T) {
	store := todo.NewStore(todo.WithTasks("Buy milk"))
	a := newAgent(t, &scriptedModel{}, Options{Store: store, SystemPrompt: "Be brief."})

	prompt := a.BuildSystemPrompt()
	for _, want := range []string{"Be brief.", "```json", "clear_completed", "[ ] #1 Buy milk"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q, got:\n%s", want, prompt)
		}
	}
}

func TestBuildSystemPromptToolsAndChatModes(t *testing.T) {
	tools := newAgent(t, &scriptedModel{}, Options{Mode: ModeTools})
	if p := tools.BuildSystemPrompt(); !strings.Contains(p, "- addTodo:") || strings.Contains(p, "```json") {
		t.Fatalf("unexpected tools prompt:\n%s", p)
	}
	chat := newAgent(t, &scriptedModel{}, Options{Mode: ModeChat})
	if p := chat.BuildSystemPrompt(); strings.Contains(p, "addTodo") || !strings.Contains(p, "No tasks yet.") {
		t.Fatalf("unexpected chat prompt:\n%s", p)
	}
}

func TestRespondInstructionModeDispatchesOnFinish(t *testing.T) {
	model := &scriptedModel{replies: []models.Response{{Text: "Sure!\n```json\n{\"action\":\"add\",\"task\":\" Buy milk \",\"response\":\"Added.\"}\n```"}}}
	a := newAgent(t, model, Options{})

	reply, err := a.Respond(context.Background(), userTurn("add buy milk"))
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if len(reply.Actions) != 1 || !reply.Actions[0].Success || reply.Actions[0].Response != "Added." {
		t.Fatalf("unexpected actions: %+v", reply.Actions)
	}
	if got := a.Store().Snapshot(); len(got) != 1 || got[0].Text != "Buy milk" {
		t.Fatalf("unexpected store: %+v", got)
	}
	if len(reply.Messages) != 1 || reply.Messages[0].Role != models.RoleAssistant {
		t.Fatalf("expected assistant message, got %+v", reply.Messages)
	}
	if reply.StopReason != StopCompleted {
		t.Fatalf("expected completed, got %q", reply.StopReason)
	}

	req := model.requests[0]
	if !strings.Contains(req.System, "Current todo list") || len(req.Tools) != 0 {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestRespondChatModeNeverDispatches(t *testing.T) {
	model := &scriptedModel{replies: []models.Response{{Text: `{"action":"clear_all"}`}}}
	store := todo.NewStore(todo.WithTasks("keep"))
	a := newAgent(t, model, Options{Mode: ModeChat, Store: store})

	reply, err := a.Respond(context.Background(), userTurn("hi"))
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if len(reply.Actions) != 0 || store.Len() != 1 {
		t.Fatalf("chat mode must not dispatch: %+v", reply.Actions)
	}
}

func TestRespondIgnoresInvalidInstruction(t *testing.T) {
	model := &scriptedModel{replies: []models.Response{{Text: "ok {\"action\":\"add\",\"task\":\"   \"}"}}}
	a := newAgent(t, model, Options{})

	reply, err := a.Respond(context.Background(), userTurn("add"))
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if len(reply.Actions) != 0 || a.Store().Len() != 0 {
		t.Fatalf("invalid instruction must be discarded")
	}
	if !strings.HasPrefix(reply.Text, "ok ") {
		t.Fatalf("expected text to stream through, got %q", reply.Text)
	}
}

func TestRespondStreamErrorSkipsDispatch(t *testing.T) {
	model := &scriptedModel{
		replies:   []models.Response{{Text: `{"action":"add","task":"x"}`}},
		streamErr: errors.New("connection reset"),
	}
	a := newAgent(t, model, Options{})

	if _, err := a.Respond(context.Background(), userTurn("add x")); err == nil {
		t.Fatalf("expected stream error")
	}
	if a.Store().Len() != 0 {
		t.Fatalf("failed stream must not dispatch")
	}
}

func TestStreamCanceledBeforeFinishSkipsDispatch(t *testing.T) {
	a := newAgent(t, stallingModel{}, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	events, err := a.Stream(ctx, userTurn("add x"))
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}
	first := <-events
	if first.Kind != EventText {
		t.Fatalf("expected text event, got %q", first.Kind)
	}
	cancel()
	for range events {
	}
	if a.Store().Len() != 0 {
		t.Fatalf("canceled stream must not dispatch")
	}
}

func TestStreamSurfacesLoaderAndRequestErrors(t *testing.T) {
	loaderErr := &models.CredentialError{Provider: "openai", EnvVars: []string{"OPENAI_API_KEY"}}
	a, err := New(Options{
		ModelLoader: func(context.Context) (models.Agent, error) { return nil, loaderErr },
		Store:       todo.NewStore(),
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := a.Stream(context.Background(), userTurn("hi")); !errors.Is(err, models.ErrMissingCredential) {
		t.Fatalf("expected credential error, got %v", err)
	}

	b := newAgent(t, &scriptedModel{failAt: 1}, Options{})
	if _, err := b.Stream(context.Background(), userTurn("hi")); err == nil {
		t.Fatalf("expected upstream error before streaming")
	}
	if _, err := b.Stream(context.Background(), []models.Message{{Role: models.RoleUser, Content: "  "}}); err == nil {
		t.Fatalf("expected error for empty conversation")
	}
}

func TestApply(t *testing.T) {
	a := newAgent(t, &scriptedModel{}, Options{Store: todo.NewStore(todo.WithTasks("a", "b", "c"))})

	res, err := a.Apply(context.Background(), `{"action":"clear_all"}`)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if !res.Success || res.Count != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := a.Apply(context.Background(), "no instruction here"); !errors.Is(err, instruction.ErrNoInstruction) {
		t.Fatalf("expected ErrNoInstruction, got %v", err)
	}
}
