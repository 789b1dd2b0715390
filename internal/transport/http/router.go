package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/trace"

	"covid19datasets/internal/config"
	apierrors "covid19datasets/internal/errors"
	"covid19datasets/internal/infrastructure"
	"covid19datasets/internal/middleware"
)

// RouterConfig carries the dependencies of the HTTP API
type RouterConfig struct {
	Dataset   DatasetService
	Mortality []MortalitySource
	Server    config.ServerConfig
	Logger    *slog.Logger
	Version   string

	// Tracer and Metrics may be nil, in which case the global tracer and
	// no-op instruments are used
	Tracer  trace.Tracer
	Metrics *infrastructure.PipelineMetrics

	// Prometheus is mounted at /metrics when set
	Prometheus http.Handler

	IncludeStack bool
}

// NewRouter builds the chi router with the middleware chain and every route
func NewRouter(cfg RouterConfig) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	errorHandler := apierrors.NewErrorHandler(logger, cfg.IncludeStack)

	r := chi.NewRouter()
	// RequestID → RealIP → OTel → Logger → Recoverer
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewOTelMiddleware(cfg.Tracer, cfg.Metrics).Handler)
		r.Use(middleware.StructuredLogger(logger))
		r.Use(middleware.Recoverer(logger))
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.FromConfig(cfg.Server.RateLimit, logger))

		r.Route("/api", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))
			r.Use(apierrors.RecoveryMiddleware(errorHandler))

			health := NewHealthHandler(cfg.Dataset, cfg.Version, logger)
			r.Get("/health", health.LivenessCheck)
			r.Get("/health/ready", health.ReadinessCheck)

			NewDataHandler(cfg.Dataset, logger, errorHandler).RegisterRoutes(r)
			NewMortalityHandler(cfg.Mortality, logger, errorHandler).RegisterRoutes(r)
		})
	})

	// Outside the middleware group so scrapes stay out of request metrics
	if cfg.Prometheus != nil {
		r.Handle("/metrics", cfg.Prometheus)
	}

	return r
}

// NewServer wraps the router in an http.Server using the configured
// timeouts
func NewServer(addr string, handler http.Handler, cfg config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
