package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/invoice-reconciler/internal/api"
	"github.com/eshaffer321/invoice-reconciler/internal/application/scheduler"
)

func newServeCommand(flags *GlobalFlags) *cobra.Command {
	serveFlags := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, app *App) error {
			return RunServe(cmd.Context(), app, serveFlags)
		}),
	}
	serveFlags.Register(cmd)
	return cmd
}

// RunServe runs the API server, and the scheduler when enabled, until
// SIGINT or SIGTERM.
func RunServe(ctx context.Context, app *App, flags *ServeFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := app.Logger.With("system", "api")

	apiCfg := api.Config{
		Port:           app.Config.API.Port,
		AllowedOrigins: app.Config.API.AllowedOrigins,
	}
	if flags.Port > 0 {
		apiCfg.Port = flags.Port
	}

	server := api.NewServer(apiCfg, app.Store, api.Services{
		Reconciler: app.Reconciler,
		Overrides:  app.Overrides,
		Reports:    app.Reports,
		Importer:   app.Importer,
		Health:     app.Health,
	}, logger)

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	schedCfg := app.Config.Scheduler
	if schedCfg.Enabled || flags.WithScheduler {
		interval := schedCfg.Interval
		if interval <= 0 {
			interval = time.Hour
		}
		sched := scheduler.New(app.Reconciler, interval, app.Logger)
		go func() {
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler stopped", slog.Any("error", err))
			}
		}()
	}

	// Handle graceful shutdown
	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		defer close(done)
		select {
		case <-quit:
			logger.Info("received shutdown signal")
		case <-ctx.Done():
		}
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		stop()
		<-done
		return err
	}

	<-done
	logger.Info("server stopped")
	return nil
}
