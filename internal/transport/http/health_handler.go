package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	dataset DatasetService
	version string
	started time.Time
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(dataset DatasetService, version string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		dataset: dataset,
		version: version,
		started: time.Now(),
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// LivenessCheck handles GET /api/health
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// ReadinessCheck handles GET /api/health/ready. The service is ready once
// a combined table has been built.
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	t, err := h.dataset.Table()
	if err != nil {
		h.logger.DebugContext(r.Context(), "not ready", slog.String("reason", err.Error()))
		resp := map[string]interface{}{
			"status": "not_ready",
			"reason": err.Error(),
		}
		if last := h.dataset.LastBuild(); last != nil {
			resp["last_build"] = last
		}
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, resp)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status":     "ready",
		"rows":       t.Len(),
		"last_build": h.dataset.LastBuild(),
	})
}
