package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "covid19datasets/internal/errors"
	"covid19datasets/internal/exporter"
	"covid19datasets/internal/sources"
	"covid19datasets/internal/table"
)

// Download content types
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type ctxKey int

const filterKey ctxKey = iota

// TableFilter narrows a table by country and date range
type TableFilter struct {
	ISO  string `query:"iso" validate:"omitempty,len=3,alpha,uppercase"`
	From string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `query:"to" validate:"omitempty,datetime=2006-01-02"`
}

// Apply returns the rows of t matching the filter. Rows without a date are
// kept when only the country is filtered.
func (f TableFilter) Apply(t *table.Table) *table.Table {
	if f == (TableFilter{}) {
		return t
	}
	from, _ := time.Parse(table.DateLayout, f.From)
	to, _ := time.Parse(table.DateLayout, f.To)

	return t.Filter(func(r table.Row) bool {
		if f.ISO != "" {
			if iso, ok := r.Text(sources.ISOColumn); !ok || iso != f.ISO {
				return false
			}
		}
		if f.From == "" && f.To == "" {
			return true
		}
		date, ok := r.Time(sources.DateColumn)
		if !ok {
			return false
		}
		if f.From != "" && date.Before(from) {
			return false
		}
		if f.To != "" && date.After(to) {
			return false
		}
		return true
	})
}

// newValidator reports query parameter names instead of struct fields
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("query"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

// parseFilter reads and validates the filter query parameters
func parseFilter(v *validator.Validate, r *http.Request) (TableFilter, error) {
	q := r.URL.Query()
	f := TableFilter{
		ISO:  strings.TrimSpace(q.Get("iso")),
		From: strings.TrimSpace(q.Get("from")),
		To:   strings.TrimSpace(q.Get("to")),
	}

	if err := v.Struct(f); err != nil {
		var errs []apierrors.ValidationError
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				errs = append(errs, apierrors.ValidationError{
					Field:   fe.Field(),
					Message: filterMessage(fe),
				})
			}
		}
		return f, apierrors.NewValidationErrors(errs)
	}
	if f.From != "" && f.To != "" && f.From > f.To {
		return f, apierrors.ErrValidation("from", "must not be after to")
	}
	return f, nil
}

func filterMessage(fe validator.FieldError) string {
	if fe.Field() == "iso" {
		return "must be an ISO 3166-1 alpha-3 code in upper case"
	}
	return "must be a date formatted as YYYY-MM-DD"
}

// filterFromContext returns the filter stored by FilterCtx
func filterFromContext(ctx context.Context) TableFilter {
	f, _ := ctx.Value(filterKey).(TableFilter)
	return f
}

// DataHandler serves the combined table with RFC 7807 compliance
type DataHandler struct {
	dataset      DatasetService
	validate     *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDataHandler creates a new data handler
func NewDataHandler(dataset DatasetService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DataHandler {
	return &DataHandler{
		dataset:      dataset,
		validate:     newValidator(),
		logger:       logger.With(slog.String("component", "data_handler")),
		errorHandler: errorHandler,
	}
}

// RegisterRoutes registers the combined table routes on r
func (h *DataHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.FilterCtx)
		r.Get("/combined", h.GetCombined)
		r.Get("/combined.csv", h.DownloadCSV)
		r.Get("/combined.xlsx", h.DownloadXLSX)
	})
	r.Get("/combined/build", h.GetLastBuild)
	r.Post("/combined/reload", h.Reload)
}

// FilterCtx middleware validates the filter parameters
func (h *DataHandler) FilterCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, err := parseFilter(h.validate, r)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), filterKey, f)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// combined loads the table, building it on first use, and applies the
// request filter
func (h *DataHandler) combined(r *http.Request) (*table.Table, error) {
	t, err := h.dataset.Load(r.Context(), false)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load combined table",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		return nil, err
	}
	return filterFromContext(r.Context()).Apply(t), nil
}

// GetCombined handles GET /api/combined
func (h *DataHandler) GetCombined(w http.ResponseWriter, r *http.Request) {
	t, err := h.combined(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, tableResponse(t))
}

// DownloadCSV handles GET /api/combined.csv
func (h *DataHandler) DownloadCSV(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, "combined.csv", ContentTypeCSV, func(buf *bytes.Buffer, t *table.Table) error {
		return exporter.WriteCSV(buf, t, exporter.CSVOptions{})
	})
}

// DownloadXLSX handles GET /api/combined.xlsx
func (h *DataHandler) DownloadXLSX(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, "combined.xlsx", ContentTypeXLSX, func(buf *bytes.Buffer, t *table.Table) error {
		return exporter.WriteXLSX(buf, t, exporter.DefaultSheet)
	})
}

// download encodes the whole body before writing so encoding failures
// still produce a problem response
func (h *DataHandler) download(w http.ResponseWriter, r *http.Request, filename, contentType string, encode func(*bytes.Buffer, *table.Table) error) {
	t, err := h.combined(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := encode(&buf, t); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "download interrupted",
			slog.String("file", filename),
			slog.String("error", err.Error()),
		)
	}
}

// GetLastBuild handles GET /api/combined/build
func (h *DataHandler) GetLastBuild(w http.ResponseWriter, r *http.Request) {
	summary := h.dataset.LastBuild()
	if summary == nil {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("build"))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   summary,
	})
}

// Reload handles POST /api/combined/reload. Sources are fetched again and
// the table is rebuilt; on failure the previous table keeps being served.
func (h *DataHandler) Reload(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "reloading combined table",
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	t, err := h.dataset.Load(r.Context(), true)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"count":  t.Len(),
		"build":  h.dataset.LastBuild(),
	})
}

// ColumnInfo describes one column in a JSON table response
type ColumnInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// tableResponse renders t as column metadata plus one object per row
func tableResponse(t *table.Table) map[string]interface{} {
	cols := t.Columns()
	info := make([]ColumnInfo, len(cols))
	for i, c := range cols {
		info[i] = ColumnInfo{Name: c.Name, Kind: c.Kind.String()}
	}

	rows := make([]map[string]interface{}, t.Len())
	for i := range rows {
		row := make(map[string]interface{}, len(cols))
		for j, v := range t.Row(i) {
			if ts, ok := v.(time.Time); ok {
				row[cols[j].Name] = ts.Format(table.DateLayout)
				continue
			}
			row[cols[j].Name] = v
		}
		rows[i] = row
	}

	return map[string]interface{}{
		"status":  "success",
		"columns": info,
		"data":    rows,
		"count":   len(rows),
	}
}
