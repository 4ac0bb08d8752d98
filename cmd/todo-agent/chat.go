package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	todoagent "github.com/Protocol-Lattice/todo-agent"
	"github.com/Protocol-Lattice/todo-agent/src/models"
	"github.com/Protocol-Lattice/todo-agent/src/todo"
)

func newChatCmd(c *cli) *cobra.Command {
	var seed []string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		Long: "Chat with the assistant in the terminal. An empty line or /quit exits,\n" +
			"/todos prints the list and /reset clears the conversation.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.newAgent(todo.NewStore(todo.WithTasks(seed...)))
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), a, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringArrayVar(&seed, "task", nil, "Seed the list with a task (repeatable)")
	return cmd
}

// runChat reads one user turn per line and streams each reply to out.
func runChat(ctx context.Context, a *todoagent.Agent, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Todo assistant (%s mode). Empty line exits; /todos, /reset.\n", a.Mode())

	var history []models.Message
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "", "/quit", "/exit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "/todos":
			fmt.Fprintln(out, todo.RenderList(a.Store().Snapshot()))
			continue
		case "/reset":
			history = nil
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		}

		turn := append(history, models.Message{Role: models.RoleUser, Content: line})
		added, err := streamTurn(ctx, a, turn, out)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		history = append(turn, added...)
	}
}

// streamTurn prints one reply as it streams and returns the messages it added.
func streamTurn(ctx context.Context, a *todoagent.Agent, turn []models.Message, out io.Writer) ([]models.Message, error) {
	events, err := a.Stream(ctx, turn)
	if err != nil {
		return nil, err
	}

	var (
		added   []models.Message
		failure error
	)
	for ev := range events {
		switch ev.Kind {
		case todoagent.EventText:
			fmt.Fprint(out, ev.Text)
		case todoagent.EventToolCall:
			args, _ := json.Marshal(ev.ToolCall.Arguments)
			fmt.Fprintf(out, "\n[tool] %s %s\n", ev.ToolCall.Name, args)
		case todoagent.EventToolResult:
			first, _, _ := strings.Cut(ev.ToolResult.Result, "\n")
			fmt.Fprintf(out, "[result] %s\n", first)
		case todoagent.EventAction:
			fmt.Fprintf(out, "\n[%s] %s\n", ev.Action.Action, ev.Action.Message)
		case todoagent.EventError:
			failure = ev.Err
		case todoagent.EventFinish:
			added = ev.Messages
			if ev.StopReason == todoagent.StopStepBudget {
				fmt.Fprintln(out, "\n[step budget reached]")
			}
		}
	}
	fmt.Fprintln(out)
	if failure != nil {
		return nil, failure
	}
	return added, nil
}
