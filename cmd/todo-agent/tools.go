package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Protocol-Lattice/todo-agent/src/todo"
)

func newToolsCmd(c *cli) *cobra.Command {
	var (
		utcp     bool
		provider string
	)

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the function-calling schema for the enabled actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.newAgent(todo.NewStore())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if utcp {
				for _, tool := range a.AsUTCPTools(provider) {
					fmt.Fprintf(out, "%s\t%s\n", tool.Name, tool.Description)
				}
				return nil
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(a.ToolSpecs())
		},
	}
	cmd.Flags().BoolVar(&utcp, "utcp", false, "List the tools under their UTCP names")
	cmd.Flags().StringVar(&provider, "provider-name", "", "UTCP provider prefix")
	return cmd
}
