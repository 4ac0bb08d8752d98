package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Protocol-Lattice/todo-agent/src/concurrent"
	"github.com/Protocol-Lattice/todo-agent/src/server"
	"github.com/Protocol-Lattice/todo-agent/src/session"
	"github.com/Protocol-Lattice/todo-agent/src/todo"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat endpoint over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				c.cfg.Server.Addr = addr
			}
			ttl, err := c.cfg.SessionTTL()
			if err != nil {
				return err
			}
			shutdown, err := c.cfg.ShutdownTimeout()
			if err != nil {
				return err
			}

			a, err := c.newAgent(todo.NewStore())
			if err != nil {
				return err
			}
			srv, err := server.New(a, server.Options{
				Addr:            c.cfg.Server.Addr,
				ShutdownTimeout: shutdown,
				Sessions:        session.NewStore(c.cfg.Server.SessionCapacity, ttl),
				Pool:            concurrent.NewWorkerPool(c.cfg.Server.MaxInflight),
				Logger:          c.logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c.logger.Info("starting todo agent",
				zap.String("provider", c.cfg.Provider),
				zap.String("model", c.cfg.Model),
				zap.String("mode", c.cfg.Mode),
				zap.String("actions", a.Actions().String()),
			)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", server.DefaultAddr, "Listen address")
	return cmd
}
