package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Protocol-Lattice/todo-agent/src/instruction"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"TODO_AGENT_PROVIDER", "TODO_AGENT_MODEL", "TODO_AGENT_MODE", "TODO_AGENT_ACTIONS", "TODO_AGENT_MAX_STEPS"} {
		t.Setenv(key, "")
	}
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append(args, "--log-level", "error"))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return out.String(), err
}

func TestExecAppliesInstructionOffline(t *testing.T) {
	out, err := runCLI(t, "", "exec", "--provider", "dummy", "--task", "buy milk", `Sure! {"action":"complete","task":"milk"}`)
	require.NoError(t, err)

	var res struct {
		Action  string `json:"action"`
		Success bool   `json:"success"`
		Task    struct {
			Text      string `json:"text"`
			Completed bool   `json:"completed"`
		} `json:"task"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "complete", res.Action)
	assert.True(t, res.Success)
	assert.Equal(t, "buy milk", res.Task.Text)
	assert.True(t, res.Task.Completed)
}

func TestExecRejectsTextWithoutInstruction(t *testing.T) {
	_, err := runCLI(t, "", "exec", "--provider", "dummy", "just chatting")
	require.ErrorIs(t, err, instruction.ErrNoInstruction)
}

func TestToolsPrintsEnabledSchema(t *testing.T) {
	out, err := runCLI(t, "", "tools", "--provider", "dummy", "--actions", "basic")
	require.NoError(t, err)

	var specs []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &specs))
	var names []string
	for _, s := range specs {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"addTodo", "listTodos", "clearAll"}, names)
}

func TestToolsListsUTCPNames(t *testing.T) {
	out, err := runCLI(t, "", "tools", "--provider", "dummy", "--utcp", "--provider-name", "todo")
	require.NoError(t, err)
	assert.Contains(t, out, "todo.addTodo\t")
	assert.Contains(t, out, "todo.clearCompleted\t")
}

func TestChatREPLAppliesInstructions(t *testing.T) {
	out, err := runCLI(t, "add buy milk\n/todos\n/reset\n\n", "chat", "--provider", "dummy")
	require.NoError(t, err)
	assert.Contains(t, out, "[add] ")
	assert.Contains(t, out, "[ ] #1 buy milk")
	assert.Contains(t, out, "Conversation cleared.")
	assert.Contains(t, out, "Goodbye!")
}

func TestChatREPLToolsMode(t *testing.T) {
	out, err := runCLI(t, "add water plants\n", "chat", "--provider", "dummy", "--mode", "tools")
	require.NoError(t, err)
	assert.Contains(t, out, `[tool] addTodo {"task":"water plants"}`)
	assert.Contains(t, out, "[result] ok")
}

func TestRootRejectsInvalidFlags(t *testing.T) {
	_, err := runCLI(t, "", "tools", "--provider", "dummy", "--mode", "telepathy")
	require.Error(t, err)

	_, err = runCLI(t, "", "tools", "--provider", "ollama", "--mode", "tools")
	require.Error(t, err)
}
