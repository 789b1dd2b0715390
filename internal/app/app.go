package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"covid19datasets/internal/config"
	handlers "covid19datasets/internal/transport/http"
)

// Application represents the HTTP service container
type Application struct {
	*Runtime

	Router   chi.Router
	Server   *http.Server
	Pipeline *Pipeline
}

// NewApplication creates a new application instance with dependency injection
func NewApplication(cfg *config.Config) (*Application, error) {
	rt, err := NewRuntime(cfg)
	if err != nil {
		return nil, err
	}

	rt.Logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion))

	app := &Application{
		Runtime:  rt,
		Pipeline: rt.NewPipeline(),
	}
	app.setupRouter()
	app.Server = handlers.NewServer(fmt.Sprintf(":%d", cfg.Server.Port), app.Router, cfg.Server)

	return app, nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	providers := a.Pipeline.Providers()
	mortalitySources := make([]handlers.MortalitySource, len(providers))
	for i, p := range providers {
		mortalitySources[i] = p
	}

	a.Router = handlers.NewRouter(handlers.RouterConfig{
		Dataset:    a.Pipeline.Dataset,
		Mortality:  mortalitySources,
		Server:     a.Config.Server,
		Logger:     a.Logger,
		Version:    config.AppVersion,
		Tracer:     a.OTelProviders.Tracer,
		Metrics:    a.Metrics,
		Prometheus: a.OTelProviders.PrometheusHTTP,
	})
}

// Start starts the HTTP server and, when configured, builds the combined
// table in the background so the first request does not pay for it
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("address", a.Server.Addr),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			// Signal shutdown through context instead of os.Exit
			cancel()
		}
	}()

	if a.Config.Server.Prewarm {
		go a.prewarm(ctx)
	}
	return nil
}

// prewarm builds the combined table once. Failures are logged; requests
// will retry the build.
func (a *Application) prewarm(ctx context.Context) {
	start := time.Now()
	t, err := a.Pipeline.Dataset.Load(ctx, false)
	if err != nil {
		a.Logger.WarnContext(ctx, "Initial build failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return
	}
	a.Logger.InfoContext(ctx, "Initial build complete",
		slog.Int("rows", t.Len()),
		slog.Duration("duration", time.Since(start)))
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if err := a.Close(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down telemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Server stopped")
	}

	// Shutdown gets its own context since ctx may already be cancelled
	return a.Stop(context.Background())
}
