package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Protocol-Lattice/todo-agent/src/todo"
)

func newExecCmd(c *cli) *cobra.Command {
	var seed []string

	cmd := &cobra.Command{
		Use:   "exec <instruction>",
		Short: "Apply one JSON instruction without calling a model",
		Example: `  todo-agent exec '{"action":"add","task":"buy milk"}'
  todo-agent exec --task "buy milk" 'Sure! {"action":"complete","task":"milk"}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newAgent(todo.NewStore(todo.WithTasks(seed...)))
			if err != nil {
				return err
			}
			res, err := a.Apply(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringArrayVar(&seed, "task", nil, "Seed the list with a task (repeatable)")
	return cmd
}
