package http

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "covid19datasets/internal/errors"
)

const providerKey ctxKey = filterKey + 1

// MortalityHandler serves excess mortality per provider
type MortalityHandler struct {
	providers    map[string]MortalitySource
	validate     *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewMortalityHandler creates a handler serving the given providers under
// their names
func NewMortalityHandler(providers []MortalitySource, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *MortalityHandler {
	byName := make(map[string]MortalitySource, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &MortalityHandler{
		providers:    byName,
		validate:     newValidator(),
		logger:       logger.With(slog.String("component", "mortality_handler")),
		errorHandler: errorHandler,
	}
}

// RegisterRoutes registers the excess mortality routes on r
func (h *MortalityHandler) RegisterRoutes(r chi.Router) {
	r.Route("/excess-mortality", func(r chi.Router) {
		r.Get("/", h.ListProviders)
		r.With(h.ProviderCtx).Get("/{provider}", h.GetExcessMortality)
	})
}

// ProviderCtx middleware resolves the provider URL parameter
func (h *MortalityHandler) ProviderCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "provider")
		p, ok := h.providers[name]
		if !ok {
			h.errorHandler.HandleError(w, r, apierrors.NotFoundError("provider "+strconv.Quote(name)))
			return
		}
		ctx := context.WithValue(r.Context(), providerKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ListProviders handles GET /api/excess-mortality
func (h *MortalityHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.providers))
	for name := range h.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   names,
		"count":  len(names),
	})
}

// GetExcessMortality handles GET /api/excess-mortality/{provider}
func (h *MortalityHandler) GetExcessMortality(w http.ResponseWriter, r *http.Request) {
	p := r.Context().Value(providerKey).(MortalitySource)

	daily := false
	if v := r.URL.Query().Get("daily"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("daily", "must be true or false"))
			return
		}
		daily = b
	}

	f, err := parseFilter(h.validate, r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	t, err := p.GetData(r.Context(), daily)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to compute excess mortality",
			slog.String("provider", p.Name()),
			slog.Bool("daily", daily),
			slog.String("error", err.Error()),
		)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp := tableResponse(f.Apply(t))
	resp["provider"] = p.Name()
	resp["daily"] = daily
	render.JSON(w, r, resp)
}
