package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"covid19datasets/internal/exporter"
	"covid19datasets/internal/store"
	"covid19datasets/internal/table"
)

// Export formats
const (
	FormatCSV      = "csv"
	FormatXLSX     = "xlsx"
	FormatPostgres = "postgres"
)

// Formats lists the supported export formats
var Formats = []string{FormatCSV, FormatXLSX, FormatPostgres}

// Export writes t in the given format. File formats are written to the
// configured export directory as name plus the format extension; postgres
// replaces the database table called name. It returns where the data went.
func (rt *Runtime) Export(ctx context.Context, t *table.Table, format, name string) (string, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		w := exporter.NewWriter(rt.Config.Paths.ExportDir, rt.Logger)
		return w.WriteCSVFile(name+".csv", t, exporter.CSVOptions{})

	case FormatXLSX:
		w := exporter.NewWriter(rt.Config.Paths.ExportDir, rt.Logger)
		return w.WriteXLSXFile(name+".xlsx", t, exporter.DefaultSheet)

	case FormatPostgres:
		pool, err := store.Connect(ctx, rt.Config.Postgres)
		if err != nil {
			return "", err
		}
		defer pool.Close()

		if err := store.New(pool, rt.Logger).Replace(ctx, name, t); err != nil {
			return "", err
		}
		return "postgres table " + name, nil
	}

	return "", fmt.Errorf("unsupported export format %q (want one of %s)", format, strings.Join(Formats, ", "))
}

// LogExport records where an export went
func (rt *Runtime) LogExport(ctx context.Context, dest string, t *table.Table) {
	rt.Logger.InfoContext(ctx, "export complete",
		slog.String("destination", dest),
		slog.Int("rows", t.Len()),
		slog.Int("columns", len(t.Columns())))
}
