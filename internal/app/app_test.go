package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covid19datasets/internal/config"
	"covid19datasets/internal/sources"
	"covid19datasets/internal/store"
	"covid19datasets/internal/table"
)

// testConfig points every source at a missing file under a temp dir
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	missing := func(name string) string { return filepath.Join(dir, name) }

	cfg := config.Default()
	cfg.Sources = config.SourcesConfig{
		OxfordPolicy:   missing("oxford.csv"),
		MaskPolicies:   missing("masks.csv"),
		OWIDCases:      missing("cases.csv"),
		OWIDMedianAges: missing("ages.csv"),
		WorldBank:      missing("wb.xlsx"),
		Mobility:       missing("mobility.csv"),
		HMD:            missing("hmd.csv"),
		Eurostat:       missing("eurostat.tsv"),
		Economist:      missing("economist.csv"),
	}
	cfg.Logging.Level = "error"
	cfg.Telemetry.TraceExporter = "none"
	cfg.Telemetry.MetricExporter = "none"
	cfg.Server.Port = 0
	cfg.Server.Prewarm = false
	cfg.Server.RateLimit.Enabled = false
	return cfg
}

func TestPipelineProviders(t *testing.T) {
	rt, err := NewRuntime(testConfig(t))
	require.NoError(t, err)
	defer rt.Close(context.Background())

	p := rt.NewPipeline()
	var names []string
	for _, src := range p.Providers() {
		names = append(names, src.Name())
	}
	assert.Equal(t, []string{sources.HMDName, sources.EurostatName, sources.EconomistName}, names)

	eurostat, ok := p.Provider(sources.EurostatName)
	require.True(t, ok)
	assert.Same(t, p.Eurostat, eurostat)

	_, ok = p.Provider("unknown")
	assert.False(t, ok)
}

func TestApplicationServesAPI(t *testing.T) {
	a, err := NewApplication(testConfig(t))
	require.NoError(t, err)
	defer a.Close(context.Background())

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// Every source file is missing, so the first build fails upstream
	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/combined", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "UPSTREAM_UNAVAILABLE")

	_, err = a.Pipeline.Dataset.Table()
	assert.Error(t, err)
}

func TestApplicationStartStop(t *testing.T) {
	a, err := NewApplication(testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, a.Start(ctx, cancel))
	assert.NoError(t, a.Stop(context.Background()))
}

func TestExport(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.ExportDir = t.TempDir()
	rt, err := NewRuntime(cfg)
	require.NoError(t, err)
	defer rt.Close(context.Background())

	tbl := table.New(table.Column{Name: sources.ISOColumn, Kind: table.String}).MustAppend("DEU")
	ctx := context.Background()

	path, err := rt.Export(ctx, tbl, FormatCSV, "combined")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Paths.ExportDir, "combined.csv"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ISO\nDEU\n", string(data))

	path, err = rt.Export(ctx, tbl, "XLSX", "combined")
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = rt.Export(ctx, tbl, FormatPostgres, "combined")
	assert.ErrorIs(t, err, store.ErrDisabled)

	_, err = rt.Export(ctx, tbl, "parquet", "combined")
	assert.ErrorContains(t, err, "unsupported export format")
}
