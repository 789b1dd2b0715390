package sources

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"covid19datasets/internal/config"
	"covid19datasets/internal/table"
)

func testFetcher() *Fetcher {
	return NewFetcher(config.FetchConfig{
		Timeout:           5 * time.Second,
		RequestsPerSecond: 100,
		Burst:             10,
		UserAgent:         "test",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCSVDecoder(t *testing.T) {
	tests := []struct {
		name    string
		decoder CSVDecoder
		input   string
		rows    int
		check   func(t *testing.T, tb *table.Table)
	}{
		{
			name:  "strips byte order mark",
			input: "\xef\xbb\xbfISO,value\nAAA,1\n",
			rows:  1,
			check: func(t *testing.T, tb *table.Table) {
				assert.Equal(t, []string{"ISO", "value"}, tb.Names())
			},
		},
		{
			name:    "skips preamble lines",
			decoder: CSVDecoder{SkipRows: 2},
			input:   "Short-term mortality fluctuations\nVersion 1\nCountryCode,Year\nAUT,2020\nBEL,2019\n",
			rows:    2,
			check: func(t *testing.T, tb *table.Table) {
				v, _ := tb.Text(1, "CountryCode")
				assert.Equal(t, "BEL", v)
			},
		},
		{
			name:    "pads short records and honours delimiter",
			decoder: CSVDecoder{Comma: ';'},
			input:   "a;b;c\n1;2\n",
			rows:    1,
			check: func(t *testing.T, tb *table.Table) {
				v, _ := tb.Text(0, "c")
				assert.Equal(t, "", v)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb, err := tt.decoder.Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.rows, tb.Len())
			tt.check(t, tb)
		})
	}

	t.Run("rejects repeated header", func(t *testing.T) {
		_, err := CSVDecoder{}.Decode([]byte("a,a\n1,2\n"))
		assert.ErrorIs(t, err, table.ErrColumnConflict)
	})
}

func TestSchemaApply(t *testing.T) {
	raw, err := CSVDecoder{}.Decode([]byte("code,when,value,extra\nAAA,20200102,1.5,x\nBBB,bad,n/a,y\n"))
	require.NoError(t, err)

	schema := Schema{
		{Upstream: "code", Canonical: ISOColumn, Kind: table.String},
		{Upstream: "when", Canonical: DateColumn, Kind: table.Date, Layout: "20060102"},
		Same("value", table.Float),
	}

	out, err := schema.Apply("test", raw)
	require.NoError(t, err)
	assert.Equal(t, []string{ISOColumn, DateColumn, "value"}, out.Names())

	ts, ok := out.Time(0, DateColumn)
	require.True(t, ok)
	assert.Equal(t, day(2020, 1, 2), ts)
	assert.Equal(t, 1.5, out.Get(0, "value"))
	assert.Nil(t, out.Get(1, DateColumn), "unparseable date becomes missing")
	assert.Nil(t, out.Get(1, "value"), "unparseable number becomes missing")

	_, err = append(schema, Same("absent", table.Float)).Apply("test", raw)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test", r.UserAgent())
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, "ISO\nAAA\n")
	}))
	defer server.Close()

	f := testFetcher()
	ctx := context.Background()

	t.Run("remote", func(t *testing.T) {
		data, err := f.Fetch(ctx, "test", server.URL+"/data.csv")
		require.NoError(t, err)
		assert.Equal(t, "ISO\nAAA\n", string(data))
	})

	t.Run("remote status error", func(t *testing.T) {
		_, err := f.Fetch(ctx, "test", server.URL+"/missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)

		var upstream *UpstreamError
		require.True(t, errors.As(err, &upstream))
		assert.Equal(t, http.StatusNotFound, upstream.Status)
		assert.Equal(t, "test", upstream.Source)
	})

	t.Run("local file", func(t *testing.T) {
		path := writeFile(t, "data.csv", "ISO\nBBB\n")
		data, err := f.Fetch(ctx, "test", path)
		require.NoError(t, err)
		assert.Equal(t, "ISO\nBBB\n", string(data))
	})

	t.Run("missing local file", func(t *testing.T) {
		_, err := f.Fetch(ctx, "test", filepath.Join(t.TempDir(), "nope.csv"))
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	})
}

func TestAdapterCachesAndCopies(t *testing.T) {
	var hits atomic.Int32
	var failing atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "Country,ISO,DATE,Stringency,Source\nA,AAA,2020-01-01,1,x\n")
	}))
	defer server.Close()

	a := NewAdapter(MaskPolicies(), server.URL, testFetcher())
	ctx := context.Background()

	first, err := a.GetData(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, first.Len())

	// the caller owns its copy
	first.MustAppend("B", "BBB", day(2020, 1, 1), 2.0, "y")

	second, err := a.GetData(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Len())
	assert.Equal(t, int32(1), hits.Load(), "second call is served from cache")

	require.NoError(t, a.Reload(ctx))
	assert.Equal(t, int32(2), hits.Load())

	failing.Store(true)
	err = a.Reload(ctx)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	third, err := a.GetData(ctx, false)
	require.NoError(t, err, "failed reload keeps the previous table")
	assert.Equal(t, 1, third.Len())
}

func TestAdapterUpstreamFailureIsNotCached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "masks.csv")
	a := NewAdapter(MaskPolicies(), path, testFetcher())

	_, err := a.GetData(context.Background(), false)
	require.ErrorIs(t, err, ErrUpstreamUnavailable)

	require.NoError(t, os.WriteFile(path, []byte("Country,ISO,DATE,Stringency,Source\nA,AAA,2020-01-01,1,x\n"), 0644))
	got, err := a.GetData(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}

func TestOxfordPolicyKeepsNationalRows(t *testing.T) {
	header := []string{"CountryName", "CountryCode", "RegionName", "RegionCode", "Date"}
	for _, m := range OxfordPolicy().Schema[4:] {
		header = append(header, m.Upstream)
	}
	row := func(country, code, region, date string) string {
		cells := []string{country, code, region, "", date}
		for range OxfordPolicy().Schema[4:] {
			cells = append(cells, "1")
		}
		return strings.Join(cells, ",")
	}
	content := strings.Join([]string{
		strings.Join(header, ","),
		row("United States", "USA", "", "20200301"),
		row("United States", "USA", "Texas", "20200301"),
		row("Austria", "AUT", "", "20200301"),
	}, "\n") + "\n"

	a := NewAdapter(OxfordPolicy(), writeFile(t, "oxford.csv", content), testFetcher())
	got, err := a.GetData(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, got.Len())
	assert.False(t, got.Has("RegionName"))
	ts, _ := got.Time(0, DateColumn)
	assert.Equal(t, day(2020, 3, 1), ts)
	_, err = got.Index(ISOColumn, DateColumn)
	assert.NoError(t, err)
}

func TestHMDSpec(t *testing.T) {
	content := "Short-term Mortality Fluctuations\nLast modified\n" +
		"CountryCode,Year,Week,Sex,D0_14,D15_64,D65_74,D75_84,D85p,DTotal,R0_14,R15_64,R65_74,R75_84,R85p,RTotal,Split,SplitSex,Forecast\n" +
		"DEUTNP,2020,1,b,10,20,30,40,50,150,0.1,0.1,0.1,0.1,0.1,0.1,0,0,0\n"

	a := NewAdapter(HMD(), writeFile(t, "stmf.csv", content), testFetcher())
	got, err := a.GetData(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{ISOColumn, "Year", "Week", "Sex", "D0_14", "D15_64", "D65_74", "D75_84", "D85p", "DTotal"}, got.Names())
	iso, _ := got.Text(0, ISOColumn)
	assert.Equal(t, "DEUTNP", iso)
	assert.Equal(t, 150.0, got.Get(0, "DTotal"))
}

func TestOWIDMedianAges(t *testing.T) {
	content := "Entity,Code,Year,UN Population Division (Median Age) (2017)\n" +
		"Austria,AUT,2015,43.2\n" +
		"Austria,AUT,2020,44.4\n" +
		"Austria,AUT,2025,45.9\n" +
		"World,OWID_WRL,2020,30.9\n" +
		"Africa,,2020,19.7\n"

	a := NewAdapter(OWIDMedianAges(2020), writeFile(t, "ages.csv", content), testFetcher())
	got, err := a.GetData(context.Background(), false)
	require.NoError(t, err)

	require.Equal(t, 1, got.Len())
	assert.Equal(t, 44.4, got.Get(0, "median_age"))
	assert.Equal(t, 2020.0, got.Get(0, "Year"))
}

func TestEurostat(t *testing.T) {
	content := "DATAFLOW,LAST UPDATE,freq,age,sex,unit,geo,TIME_PERIOD,OBS_VALUE,OBS_FLAG\n" +
		"ESTAT:DEMO_R_MWK_10(1.0),01/01/21,W,TOTAL,T,NR,EL,2020-W07,2500,\n" +
		"ESTAT:DEMO_R_MWK_10(1.0),01/01/21,W,Y_LT10,F,NR,AT,2020-W07,12,p\n" +
		"ESTAT:DEMO_R_MWK_10(1.0),01/01/21,W,TOTAL,T,NR,EU27_2020,2020-W07,90000,\n" +
		"ESTAT:DEMO_R_MWK_10(1.0),01/01/21,W,TOTAL,T,NR,AT,2020-W99,1,\n"

	a := NewAdapter(Eurostat(), writeFile(t, "eurostat.csv", content), testFetcher())
	got, err := a.GetData(context.Background(), false)
	require.NoError(t, err)

	require.Equal(t, 2, got.Len())
	assert.Equal(t, []string{ISOColumn, "Year", "Week", "SEX", "AGE", "deaths"}, got.Names())
	assert.Equal(t, "GRC", got.Get(0, ISOColumn))
	assert.Equal(t, "Total", got.Get(0, "AGE"))
	assert.Equal(t, 7.0, got.Get(0, "Week"))
	assert.Equal(t, "Y_LT10", got.Get(1, "AGE"))
}

func TestParseWeek(t *testing.T) {
	y, w, err := ParseWeek("2020-W53")
	require.NoError(t, err)
	assert.Equal(t, 2020, y)
	assert.Equal(t, 53, w)

	_, _, err = ParseWeek("2019-W53")
	assert.Error(t, err, "2019 has 52 ISO weeks")

	_, _, err = ParseWeek("2020-07")
	assert.Error(t, err)
}

func TestWorldBankPivot(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Country Name", "Country Code", "Series Name", "Series Code", "2018 [YR2018]", "2019 [YR2019]"},
		{"Austria", "AUT", "Population, total", "SP.POP.TOTL", "8840521", "8877067"},
		{"Austria", "AUT", "Hospital beds (per 1,000 people)", "SH.MED.BEDS.ZS", "7.3", ".."},
		{"Austria", "AUT", "Unlisted series", "X.Y", "1", "2"},
		{"World", "WLD", "Population, total", "SP.POP.TOTL", "7.5e9", "7.6e9"},
		{},
		{"Data from database: World Development Indicators"},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	a := NewAdapter(WorldBank(), writeFile(t, "wb.xlsx", buf.String()), testFetcher())
	got, err := a.GetData(context.Background(), false)
	require.NoError(t, err)

	require.Equal(t, 1, got.Len())
	assert.Equal(t, len(WorldBankSeries)+2, len(got.Columns()))
	assert.Equal(t, "AUT", got.Get(0, ISOColumn))
	assert.Equal(t, "Austria", got.Get(0, "country"))
	assert.Equal(t, 8877067.0, got.Get(0, "Population, total"))
	assert.Equal(t, 7.3, got.Get(0, "Hospital beds (per 1,000 people)"), "latest non-missing year wins")
	assert.Nil(t, got.Get(0, "Smoking prevalence, males (% of adults)"))
}
