package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Protocol-Lattice/todo-agent/src/instruction"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TODO_AGENT_PROVIDER", "TODO_AGENT_MODEL", "TODO_AGENT_MODE", "TODO_AGENT_ACTIONS",
		"TODO_AGENT_ADDR", "TODO_AGENT_MAX_STEPS", "TODO_AGENT_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "todo-agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, ModeInstruction, cfg.Mode)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 7, cfg.MaxSteps)
	assert.Equal(t, 16, cfg.Server.MaxInflight)

	set, err := cfg.ActionSet()
	require.NoError(t, err)
	assert.Equal(t, instruction.FullActions, set)
}

func TestLoadYAMLAcceptsListOrCSV(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "provider: anthropic\nactions: [add, list, clear]\nserver:\n  session_ttl: 5m\n"))
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider)
	set, _ := cfg.ActionSet()
	assert.Equal(t, instruction.BasicActions, set)
	ttl, _ := cfg.SessionTTL()
	assert.Equal(t, 5*time.Minute, ttl)

	cfg, err = Load(writeConfig(t, "actions: basic,chat\n"))
	require.NoError(t, err)
	set, _ = cfg.ActionSet()
	assert.True(t, set.Contains(instruction.ActionChat))
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TODO_AGENT_PROVIDER", "Dummy")
	t.Setenv("TODO_AGENT_MODE", "tools")
	t.Setenv("TODO_AGENT_MAX_STEPS", "3")
	t.Setenv("TODO_AGENT_ADDR", ":9999")

	cfg, err := Load(writeConfig(t, "provider: openai\nmax_steps: 9\n"))
	require.NoError(t, err)
	assert.Equal(t, "dummy", cfg.Provider)
	assert.Equal(t, ModeTools, cfg.Mode)
	assert.Equal(t, 3, cfg.MaxSteps)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestValidateRejects(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"unknown provider": "provider: nope\n",
		"unknown mode":     "mode: telepathy\n",
		"ollama tools":     "provider: ollama\nmode: tools\n",
		"bad action":       "actions: add,fly\n",
		"bad ttl":          "server:\n  session_ttl: soon\n",
		"zero steps":       "max_steps: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
