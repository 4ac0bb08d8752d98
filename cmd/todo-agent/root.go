package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	todoagent "github.com/Protocol-Lattice/todo-agent"
	"github.com/Protocol-Lattice/todo-agent/src/config"
	"github.com/Protocol-Lattice/todo-agent/src/logging"
	"github.com/Protocol-Lattice/todo-agent/src/models"
	"github.com/Protocol-Lattice/todo-agent/src/todo"
)

// cli holds state shared by every subcommand after the root pre-run.
type cli struct {
	cfgFile  string
	provider string
	model    string
	mode     string
	actions  string
	logLevel string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "todo-agent",
		Short:         "Chat assistant that manages an in-memory todo list",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "Path to YAML config file")
	flags.StringVar(&c.provider, "provider", "", "Model provider (openai, anthropic, gemini, ollama, dummy)")
	flags.StringVar(&c.model, "model", "", "Model name")
	flags.StringVar(&c.mode, "mode", "", "Turn mode (chat, instruction, tools)")
	flags.StringVar(&c.actions, "actions", "", "Enabled actions: basic, full or a comma separated list")
	flags.StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(c),
		newChatCmd(c),
		newExecCmd(c),
		newToolsCmd(c),
	)
	return root
}

// load reads the config file and environment, then applies explicitly set flags.
func (c *cli) load(cmd *cobra.Command) error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.Provider = c.provider
	}
	if flags.Changed("model") {
		cfg.Model = c.model
	}
	if flags.Changed("mode") {
		cfg.Mode = c.mode
	}
	if flags.Changed("actions") {
		cfg.Actions = config.CSVList{c.actions}
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	return nil
}

// newAgent builds an agent over store. The model is resolved per turn, so
// commands that never call it work without credentials.
func (c *cli) newAgent(store *todo.Store) (*todoagent.Agent, error) {
	actions, err := c.cfg.ActionSet()
	if err != nil {
		return nil, err
	}
	a, err := todoagent.New(todoagent.Options{
		ModelLoader:  models.NewLoader(c.cfg.Provider, c.cfg.Model),
		Store:        store,
		SystemPrompt: c.cfg.SystemPrompt,
		Mode:         todoagent.Mode(c.cfg.Mode),
		Actions:      actions,
		MaxSteps:     c.cfg.MaxSteps,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build agent: %w", err)
	}
	return a, nil
}
