package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/rhythmiq/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the control plane until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}

	cp, closeFn, err := server.OpenControlPlane(r.config, r.httpClient, r.logger)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if interval := cmd.Duration("purge-interval"); interval > 0 {
		go cp.PurgeExpired(ctx, interval)
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           cp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.Run(ctx, srv, r.logger)
}
