package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aponysus/hostkit/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Migrate the catalog, then serve /healthz and /metrics",
		Long: `Runs the same initialization as migrate and keeps running even when it
fails; /healthz then reports "degraded". Stops on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			return rt.serve(ctx)
		},
	}
	return cmd
}

func (rt *runtime) serve(ctx context.Context) error {
	if _, err := rt.migrate(ctx); err != nil {
		return err
	}
	rt.app.AddHostedService(server.New(rt.cfg.HTTP.Addr, rt.tracker, rt.registry,
		server.WithLogger(rt.logger),
		server.WithShutdownTimeout(rt.cfg.HTTP.ShutdownTimeout),
	))
	return rt.app.Run(ctx)
}
