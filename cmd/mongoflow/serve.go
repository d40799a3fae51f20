package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server locally",
		Long: `Start the HTTP server on the configured PORT (default :8080).

It shuts down cleanly on SIGTERM or SIGINT and disconnects from MongoDB.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *options) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, opts, defaultParameterClient)
	if err != nil {
		return err
	}
	return serve(ctx, app)
}

func newHTTPServer(app *App) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", app.Config.Server.Port),
		Handler:      app.Engine,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
	}
}

// serve blocks until ctx is cancelled or the listener fails.
func serve(ctx context.Context, app *App) error {
	srv := newHTTPServer(app)

	serverErr := make(chan error, 1)
	go func() {
		app.Logger.Info("mongoflow server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		app.Close(context.Background())
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		app.Logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	defer app.Close(shutCtx)
	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	app.Logger.Info("server stopped cleanly")
	return nil
}
