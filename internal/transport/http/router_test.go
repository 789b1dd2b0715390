package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"covid19datasets/internal/combined"
	"covid19datasets/internal/config"
	"covid19datasets/internal/operations"
	"covid19datasets/internal/shared/testutil"
	"covid19datasets/internal/sources"
	"covid19datasets/internal/table"
)

// MockDataset is a mock implementation of DatasetService
type MockDataset struct {
	mock.Mock
}

func (m *MockDataset) Load(ctx context.Context, forceLoad bool) (*table.Table, error) {
	args := m.Called(forceLoad)
	t, _ := args.Get(0).(*table.Table)
	return t, args.Error(1)
}

func (m *MockDataset) Table() (*table.Table, error) {
	args := m.Called()
	t, _ := args.Get(0).(*table.Table)
	return t, args.Error(1)
}

func (m *MockDataset) LastBuild() *operations.Summary {
	args := m.Called()
	s, _ := args.Get(0).(*operations.Summary)
	return s
}

type fakeProvider struct {
	name      string
	data      *table.Table
	err       error
	lastDaily bool
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) GetData(_ context.Context, daily bool) (*table.Table, error) {
	p.lastDaily = daily
	return p.data, p.err
}

func day(s string) time.Time {
	d, _ := time.Parse(table.DateLayout, s)
	return d
}

func fixture() *table.Table {
	return table.New(
		table.Column{Name: sources.ISOColumn, Kind: table.String},
		table.Column{Name: sources.DateColumn, Kind: table.Date},
		table.Column{Name: "new_cases", Kind: table.Float},
	).
		MustAppend("DEU", day("2020-03-01"), 1.0).
		MustAppend("DEU", day("2020-03-02"), 2.0).
		MustAppend("FRA", day("2020-03-01"), nil)
}

func newTestRouter(t *testing.T, ds DatasetService, providers ...MortalitySource) chi.Router {
	logger, _ := testutil.NewTestLogger(t)
	return NewRouter(RouterConfig{
		Dataset:    ds,
		Mortality:  providers,
		Logger:     logger,
		Version:    "test",
		Prometheus: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("# metrics")) }),
	})
}

func serve(r http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestGetCombined(t *testing.T) {
	ds := new(MockDataset)
	ds.On("Load", false).Return(fixture(), nil)
	r := newTestRouter(t, ds)

	rec := serve(r, http.MethodGet, "/api/combined")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, float64(3), body["count"])
	rows := body["data"].([]any)
	first := rows[0].(map[string]any)
	assert.Equal(t, "DEU", first["ISO"])
	assert.Equal(t, "2020-03-01", first["DATE"])
	assert.Equal(t, float64(1), first["new_cases"])
	assert.Nil(t, rows[2].(map[string]any)["new_cases"])

	cols := body["columns"].([]any)
	assert.Equal(t, map[string]any{"name": "DATE", "kind": "date"}, cols[1])
	ds.AssertExpectations(t)
}

func TestGetCombinedFilters(t *testing.T) {
	tests := []struct {
		name  string
		query string
		count float64
	}{
		{"by country", "?iso=DEU", 2},
		{"by start date", "?from=2020-03-02", 1},
		{"by end date", "?to=2020-03-01", 2},
		{"country and range", "?iso=FRA&from=2020-03-01&to=2020-03-01", 1},
		{"no match", "?iso=ITA", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := new(MockDataset)
			ds.On("Load", false).Return(fixture(), nil)
			rec := serve(newTestRouter(t, ds), http.MethodGet, "/api/combined"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.count, decode(t, rec)["count"])
		})
	}
}

func TestGetCombinedRejectsBadFilters(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"lower case iso", "?iso=deu"},
		{"short iso", "?iso=DE"},
		{"numeric iso", "?iso=D3U"},
		{"bad date", "?from=03/01/2020"},
		{"inverted range", "?from=2020-03-02&to=2020-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := new(MockDataset)
			rec := serve(newTestRouter(t, ds), http.MethodGet, "/api/combined"+tt.query)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_FAILED", decode(t, rec)["error_code"])
			ds.AssertNotCalled(t, "Load", mock.Anything)
		})
	}
}

func TestGetCombinedMapsBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"upstream", &sources.UpstreamError{Source: "owid_cases", Location: "https://example.org", Status: 502}, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
		{"integrity", operations.WrapError(table.ErrDuplicateKey, "index", nil), http.StatusInternalServerError, "DATA_INTEGRITY"},
		{"not loaded", combined.ErrNotLoaded, http.StatusNotFound, "DATA_NOT_LOADED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := new(MockDataset)
			ds.On("Load", false).Return(nil, tt.err)
			rec := serve(newTestRouter(t, ds), http.MethodGet, "/api/combined")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode(t, rec)["error_code"])
		})
	}
}

func TestDownloadCSV(t *testing.T) {
	ds := new(MockDataset)
	ds.On("Load", false).Return(fixture(), nil)

	rec := serve(newTestRouter(t, ds), http.MethodGet, "/api/combined.csv?iso=DEU")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentTypeCSV, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "combined.csv")
	assert.Equal(t, "ISO,DATE,new_cases\nDEU,2020-03-01,1\nDEU,2020-03-02,2\n", rec.Body.String())
}

func TestDownloadXLSX(t *testing.T) {
	ds := new(MockDataset)
	ds.On("Load", false).Return(fixture(), nil)

	rec := serve(newTestRouter(t, ds), http.MethodGet, "/api/combined.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentTypeXLSX, rec.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"ISO", "DATE", "new_cases"}, rows[0])
}

func TestLastBuild(t *testing.T) {
	t.Run("none yet", func(t *testing.T) {
		ds := new(MockDataset)
		ds.On("LastBuild").Return(nil)
		rec := serve(newTestRouter(t, ds), http.MethodGet, "/api/combined/build")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("summary", func(t *testing.T) {
		ds := new(MockDataset)
		ds.On("LastBuild").Return(&operations.Summary{ID: "b-1", Status: operations.OperationStatusCompleted})
		rec := serve(newTestRouter(t, ds), http.MethodGet, "/api/combined/build")
		require.Equal(t, http.StatusOK, rec.Code)
		data := decode(t, rec)["data"].(map[string]any)
		assert.Equal(t, "b-1", data["id"])
	})
}

func TestReloadForcesBuild(t *testing.T) {
	ds := new(MockDataset)
	ds.On("Load", true).Return(fixture(), nil).Once()
	ds.On("LastBuild").Return(&operations.Summary{ID: "b-2"})

	rec := serve(newTestRouter(t, ds), http.MethodPost, "/api/combined/reload")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), decode(t, rec)["count"])
	ds.AssertExpectations(t)
}

func TestReloadRequiresPost(t *testing.T) {
	ds := new(MockDataset)
	rec := serve(newTestRouter(t, ds), http.MethodGet, "/api/combined/reload")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	ds.AssertNotCalled(t, "Load", mock.Anything)
}

func TestHealth(t *testing.T) {
	ds := new(MockDataset)
	rec := serve(newTestRouter(t, ds), http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestReadiness(t *testing.T) {
	t.Run("not built", func(t *testing.T) {
		ds := new(MockDataset)
		ds.On("Table").Return(nil, combined.ErrNotLoaded)
		ds.On("LastBuild").Return(nil)
		rec := serve(newTestRouter(t, ds), http.MethodGet, "/api/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "not_ready", decode(t, rec)["status"])
	})

	t.Run("built", func(t *testing.T) {
		ds := new(MockDataset)
		ds.On("Table").Return(fixture(), nil)
		ds.On("LastBuild").Return(&operations.Summary{ID: "b-3"})
		rec := serve(newTestRouter(t, ds), http.MethodGet, "/api/health/ready")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "ready", body["status"])
		assert.Equal(t, float64(3), body["rows"])
	})
}

func TestExcessMortality(t *testing.T) {
	hmd := &fakeProvider{name: sources.HMDName, data: fixture()}
	eurostat := &fakeProvider{name: sources.EurostatName, err: &sources.UpstreamError{Source: sources.EurostatName, Location: "eurostat.tsv"}}
	r := newTestRouter(t, new(MockDataset), hmd, eurostat)

	t.Run("list", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/api/excess-mortality/")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(2), decode(t, rec)["count"])
	})

	t.Run("daily", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/api/excess-mortality/"+sources.HMDName+"?daily=true&iso=DEU")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.True(t, hmd.lastDaily)
		assert.Equal(t, true, body["daily"])
		assert.Equal(t, sources.HMDName, body["provider"])
		assert.Equal(t, float64(2), body["count"])
	})

	t.Run("unknown provider", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/api/excess-mortality/nope")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad daily flag", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/api/excess-mortality/"+sources.HMDName+"?daily=sometimes")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("upstream failure", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/api/excess-mortality/"+sources.EurostatName)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestMetricsAndUnknownRoutes(t *testing.T) {
	r := newTestRouter(t, new(MockDataset))

	rec := serve(r, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())

	rec = serve(r, http.MethodGet, "/nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "/errors/not-found", decode(t, rec)["type"])
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	rec := serve(newTestRouter(t, new(MockDataset)), http.MethodGet, "/api/health")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestNewServerUsesTimeouts(t *testing.T) {
	cfg := config.ServerConfig{ReadTimeout: time.Second, WriteTimeout: 2 * time.Second, IdleTimeout: 3 * time.Second}
	srv := NewServer(":0", http.NotFoundHandler(), cfg)
	assert.Equal(t, time.Second, srv.ReadTimeout)
	assert.Equal(t, 2*time.Second, srv.WriteTimeout)
	assert.Equal(t, 3*time.Second, srv.IdleTimeout)
}
