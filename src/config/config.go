// Package config loads todo-agent settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Protocol-Lattice/todo-agent/src/helpers"
	"github.com/Protocol-Lattice/todo-agent/src/instruction"
	"github.com/Protocol-Lattice/todo-agent/src/models"
)

// Modes accepted by Config.Mode.
const (
	ModeChat        = "chat"
	ModeInstruction = "instruction"
	ModeTools       = "tools"
)

var ErrInvalid = errors.New("invalid config")

// Config is the top-level configuration.
type Config struct {
	Provider     string  `yaml:"provider"`
	Model        string  `yaml:"model"`
	Mode         string  `yaml:"mode"`
	Actions      CSVList `yaml:"actions"`
	SystemPrompt string  `yaml:"system_prompt"`
	MaxSteps     int     `yaml:"max_steps"`

	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	MaxInflight     int    `yaml:"max_inflight"`
	SessionCapacity int    `yaml:"session_capacity"`
	SessionTTL      string `yaml:"session_ttl"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// CSVList accepts either a YAML sequence or a comma separated scalar.
type CSVList []string

func (l *CSVList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = helpers.ParseCSVList(value.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = helpers.ParseCSVList(strings.Join(items, ","))
		return nil
	default:
		return fmt.Errorf("actions: expected list or string, got yaml kind %d", value.Kind)
	}
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		Mode:     ModeInstruction,
		Actions:  CSVList{"full"},
		MaxSteps: 7,
		Server: ServerConfig{
			Addr:            ":8080",
			MaxInflight:     16,
			SessionCapacity: 256,
			SessionTTL:      "30m",
			ShutdownTimeout: "10s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies TODO_AGENT_* variables. Provider credentials are
// not read here; providers look them up on every request.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TODO_AGENT_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("TODO_AGENT_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("TODO_AGENT_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("TODO_AGENT_ACTIONS"); v != "" {
		c.Actions = helpers.ParseCSVList(v)
	}
	if v := os.Getenv("TODO_AGENT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("TODO_AGENT_MAX_STEPS"); v != "" {
		c.MaxSteps = helpers.ParsePositiveInt(v, c.MaxSteps)
	}
	if v := os.Getenv("TODO_AGENT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate normalises names and checks cross-field constraints.
func (c *Config) Validate() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))

	known := false
	for _, p := range models.Providers {
		if c.Provider == p {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: unknown provider %q (want one of %s)", ErrInvalid, c.Provider, helpers.JoinNames(models.Providers))
	}

	switch c.Mode {
	case ModeChat, ModeInstruction:
	case ModeTools:
		if !models.SupportsTools(c.Provider) {
			return fmt.Errorf("%w: provider %q does not support tools mode", ErrInvalid, c.Provider)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalid, c.Mode)
	}

	if c.MaxSteps <= 0 {
		return fmt.Errorf("%w: max_steps must be positive", ErrInvalid)
	}
	if _, err := c.ActionSet(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := c.SessionTTL(); err != nil {
		return fmt.Errorf("%w: session_ttl: %v", ErrInvalid, err)
	}
	if _, err := c.ShutdownTimeout(); err != nil {
		return fmt.Errorf("%w: shutdown_timeout: %v", ErrInvalid, err)
	}
	return nil
}

// ActionSet parses Actions into the enabled action set.
func (c *Config) ActionSet() (instruction.ActionSet, error) {
	return instruction.ParseActionSet(strings.Join(c.Actions, ","))
}

func (c *Config) SessionTTL() (time.Duration, error) {
	return parseDuration(c.Server.SessionTTL, 30*time.Minute)
}

func (c *Config) ShutdownTimeout() (time.Duration, error) {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

func parseDuration(raw string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	return time.ParseDuration(strings.TrimSpace(raw))
}
