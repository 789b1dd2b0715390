package exporter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"covid19datasets/internal/shared/testutil"
	"covid19datasets/internal/table"
)

func sample() *table.Table {
	return table.New(
		table.Column{Name: "ISO", Kind: table.String},
		table.Column{Name: "DATE", Kind: table.Date},
		table.Column{Name: "Population, total", Kind: table.Float},
	).
		MustAppend("AAA", time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), 1234.5).
		MustAppend("BBB", time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC), nil)
}

func TestWriteCSV(t *testing.T) {
	tests := []struct {
		name string
		opts CSVOptions
		want string
	}{
		{
			name: "plain",
			want: "ISO,DATE,\"Population, total\"\nAAA,2020-01-02,1234.5\nBBB,2020-01-03,\n",
		},
		{
			name: "with BOM",
			opts: CSVOptions{BOMPrefix: true},
			want: "\xef\xbb\xbfISO,DATE,\"Population, total\"\nAAA,2020-01-02,1234.5\nBBB,2020-01-03,\n",
		},
		{
			name: "semicolon",
			opts: CSVOptions{Comma: ';'},
			want: "ISO;DATE;Population, total\nAAA;2020-01-02;1234.5\nBBB;2020-01-03;\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCSV(&buf, sample(), tt.opts))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriteCSVFileCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	logger, handler := testutil.NewTestLogger(t)
	w := NewWriter(dir, logger)

	path, err := w.WriteCSVFile(filepath.Join("nested", "combined.csv"), sample(), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nested", "combined.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "ISO,DATE,"))
	testutil.AssertLogAttr(t, handler, "record_count", int64(2))
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sample(), "combined"))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("combined")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ISO", "DATE", "Population, total"}, rows[0])
	assert.Equal(t, []string{"AAA", "2020-01-02", "1234.5"}, rows[1])
	assert.Equal(t, []string{"BBB", "2020-01-03"}, rows[2])
}

func TestWriteXLSXFile(t *testing.T) {
	w := NewWriter(t.TempDir(), nil)
	path, err := w.WriteXLSXFile("combined.xlsx", sample(), "")
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(DefaultSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "AAA", v)
}
