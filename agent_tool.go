package todoagent

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	utcp "github.com/universal-tool-calling-protocol/go-utcp"
	"github.com/universal-tool-calling-protocol/go-utcp/src/providers/base"
	"github.com/universal-tool-calling-protocol/go-utcp/src/providers/cli"
	"github.com/universal-tool-calling-protocol/go-utcp/src/tools"
	"github.com/universal-tool-calling-protocol/go-utcp/src/transports"

	"github.com/Protocol-Lattice/todo-agent/src/dispatch"
	"github.com/Protocol-Lattice/todo-agent/src/instruction"
)

// DefaultUTCPProvider is the provider name used when none is given.
const DefaultUTCPProvider = "todos"

type todoToolDef struct {
	name        string
	description string
	action      instruction.Action
}

var todoToolDefs = []todoToolDef{
	{"addTodo", "Add a new task to the todo list.", instruction.ActionAdd},
	{"completeTodo", "Mark a task as completed. Identify it by id (\"3\" or \"#3\") or by part of its text.", instruction.ActionComplete},
	{"deleteTodo", "Delete a task. Identify it by id (\"3\" or \"#3\") or by part of its text.", instruction.ActionDelete},
	{"listTodos", "List every task with its id and completion state.", instruction.ActionList},
	{"clearCompleted", "Remove all completed tasks.", instruction.ActionClearCompleted},
	{"clearAll", "Remove every task and restart numbering.", instruction.ActionClearAll},
}

// TodoTool invokes one dispatcher action.
type TodoTool struct {
	def        todoToolDef
	dispatcher *dispatch.Dispatcher
}

// TodoTools returns the tools for every action enabled on d, in a fixed order.
// clearAll is exposed when either clear_all or the clear alias is enabled.
func TodoTools(d *dispatch.Dispatcher) []Tool {
	set := d.Actions()
	var out []Tool
	for _, def := range todoToolDefs {
		switch {
		case set.Contains(def.action):
		case def.action == instruction.ActionClearAll && set.Contains(instruction.ActionClear):
			def.action = instruction.ActionClear
		default:
			continue
		}
		out = append(out, &TodoTool{def: def, dispatcher: d})
	}
	return out
}

func (t *TodoTool) Spec() ToolSpec {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	if t.def.action.RequiresTask() {
		desc := "The task id or text to match."
		if t.def.action == instruction.ActionAdd {
			desc = "The text of the new task."
		}
		schema["properties"] = map[string]any{
			"task": map[string]any{
				"type":        "string",
				"description": desc,
			},
		}
		schema["required"] = []string{"task"}
	}
	return ToolSpec{
		Name:        t.def.name,
		Description: t.def.description,
		InputSchema: schema,
	}
}

// Invoke validates the arguments with the same rules as parsed instructions.
// Validation and store failures come back as unsuccessful responses, not errors,
// so the model can observe them.
func (t *TodoTool) Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	candidate := map[string]any{"action": string(t.def.action)}
	if task, ok := taskArgument(req.Arguments); ok {
		candidate["task"] = task
	}
	ins, err := instruction.Validate(candidate, t.dispatcher.Actions())
	if err != nil {
		return ToolResponse{Content: "failed: " + err.Error()}, nil
	}
	res := t.dispatcher.Dispatch(ctx, ins)
	return ToolResponse{Content: res.Observation(), Success: res.Success, Result: &res}, nil
}

// taskArgument accepts a string or a whole-number id. Other values pass through
// unchanged and fail validation.
func taskArgument(args map[string]any) (any, bool) {
	raw, ok := args["task"]
	if !ok || raw == nil {
		return nil, false
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return v, true
		}
		return strconv.FormatInt(int64(v), 10), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return v, true
	}
}

// AsUTCPTools exposes the agent's tools as UTCP tools with in-process handlers.
// Tool names are prefixed with provider.
func (a *Agent) AsUTCPTools(provider string) []tools.Tool {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		provider = DefaultUTCPProvider
	}
	specs := a.toolCatalog.Specs()
	out := make([]tools.Tool, 0, len(specs))
	for _, spec := range specs {
		out = append(out, a.utcpTool(provider, spec))
	}
	return out
}

func (a *Agent) utcpTool(provider string, spec ToolSpec) tools.Tool {
	props, _ := spec.InputSchema["properties"].(map[string]any)
	required, _ := spec.InputSchema["required"].([]string)
	name := spec.Name
	return tools.Tool{
		Name:        provider + "." + name,
		Description: spec.Description,
		Provider: &base.BaseProvider{
			Name:         provider,
			ProviderType: base.ProviderCLI, // in-process handler, no remote transport
		},
		Inputs: tools.ToolInputOutputSchema{
			Type:       "object",
			Properties: props,
			Required:   required,
		},
		Outputs: tools.ToolInputOutputSchema{
			Type: "object",
			Properties: map[string]any{
				"success": map[string]any{"type": "boolean"},
				"message": map[string]any{"type": "string"},
				"action":  map[string]any{"type": "string"},
				"task":    map[string]any{"type": "object"},
			},
		},
		Handler: tools.ToolHandler(func(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error) {
			return a.callTodoTool(ctx, name, inputs)
		}),
	}
}

// callTodoTool runs one catalog tool and reports the store outcome. A rejected
// call is a result with success=false; only an unknown tool is an error.
func (a *Agent) callTodoTool(ctx context.Context, name string, inputs map[string]any) (map[string]any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	tool, _, ok := a.toolCatalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("tool %s is not registered", name)
	}
	resp, err := tool.Invoke(ctx, ToolRequest{Arguments: inputs})
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"success": resp.Success,
		"message": resp.Content,
	}
	if res := resp.Result; res != nil {
		out["action"] = string(res.Action)
		out["message"] = res.Message
		if res.Task != nil {
			out["task"] = map[string]any{"id": res.Task.ID, "text": res.Task.Text, "completed": res.Task.Completed}
		}
	}
	return out, nil
}

// todoToolTransport replaces the client's CLI transport. Every provider it
// serves is an agent registered through RegisterUTCPProvider; calls go
// straight to that agent's task store.
type todoToolTransport struct {
	agents map[string]*Agent
}

func (t *todoToolTransport) agent(prov base.Provider) (*Agent, string, error) {
	p, ok := prov.(*cli.CliProvider)
	if !ok {
		return nil, "", fmt.Errorf("unsupported provider type %T", prov)
	}
	a, ok := t.agents[p.Name]
	if !ok {
		return nil, "", fmt.Errorf("todo tools not found for provider %s", p.Name)
	}
	return a, p.Name, nil
}

func (t *todoToolTransport) RegisterToolProvider(_ context.Context, prov base.Provider) ([]tools.Tool, error) {
	a, name, err := t.agent(prov)
	if err != nil {
		return nil, err
	}
	return a.AsUTCPTools(name), nil
}

func (t *todoToolTransport) DeregisterToolProvider(_ context.Context, prov base.Provider) error {
	if p, ok := prov.(*cli.CliProvider); ok {
		delete(t.agents, p.Name)
	}
	return nil
}

// CallTool accepts both "addTodo" and the qualified "todos.addTodo".
func (t *todoToolTransport) CallTool(ctx context.Context, toolName string, args map[string]any, prov base.Provider, _ *string) (any, error) {
	a, _, err := t.agent(prov)
	if err != nil {
		return nil, err
	}
	return a.callTodoTool(ctx, toolName, args)
}

func (t *todoToolTransport) CallToolStream(_ context.Context, toolName string, _ map[string]any, prov base.Provider) (transports.StreamResult, error) {
	_, name, err := t.agent(prov)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("streaming not supported for tool %s (provider %s)", toolName, name)
}

// RegisterUTCPProvider installs the todo tools on client under provider. The
// client's CLI transport is replaced by an in-process one so CallTool
// invocations reach the task store directly.
func (a *Agent) RegisterUTCPProvider(ctx context.Context, client utcp.UtcpClientInterface, provider string) error {
	if client == nil {
		return fmt.Errorf("utcp client is nil")
	}
	provider = strings.TrimSpace(provider)
	if provider == "" {
		provider = DefaultUTCPProvider
	}

	transportsMap := client.GetTransports()
	if transportsMap == nil {
		return fmt.Errorf("utcp client transports map is nil")
	}

	shim, ok := transportsMap[string(base.ProviderCLI)].(*todoToolTransport)
	if !ok {
		shim = &todoToolTransport{agents: make(map[string]*Agent)}
		transportsMap[string(base.ProviderCLI)] = shim
	}
	shim.agents[provider] = a

	tp := &cli.CliProvider{
		BaseProvider: base.BaseProvider{
			Name:         provider,
			ProviderType: base.ProviderCLI,
		},
	}
	_, err := client.RegisterToolProvider(ctx, tp)
	return err
}
