package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"covid19datasets/internal/table"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Writer exports tables below a base directory
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a writer resolving relative paths against dir
func NewWriter(dir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{dir: dir, logger: logger}
}

// CSVOptions configures CSV writing behavior
type CSVOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
	Comma     rune
}

// WriteCSV encodes t as CSV: one header row with the column names, then
// one record per row. Missing cells are empty, dates are YYYY-MM-DD.
func WriteCSV(w io.Writer, t *table.Table, opts CSVOptions) error {
	if opts.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	cw := csv.NewWriter(w)
	if opts.Comma != 0 {
		cw.Comma = opts.Comma
	}
	if err := cw.Write(t.Names()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	record := make([]string, len(t.Columns()))
	for i := 0; i < t.Len(); i++ {
		for j, v := range t.Row(i) {
			record[j] = table.Format(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes t to the named file, creating parent directories
func (w *Writer) WriteCSVFile(name string, t *table.Table, opts CSVOptions) (string, error) {
	return w.writeFile(name, t, func(f io.Writer) error {
		return WriteCSV(f, t, opts)
	})
}

func (w *Writer) writeFile(name string, t *table.Table, encode func(io.Writer) error) (path string, err error) {
	path = w.resolvePath(name)
	w.logger.Info("Writing export file",
		slog.String("file_path", name),
		slog.String("full_path", path),
		slog.Int("record_count", t.Len()))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	if err := encode(file); err != nil {
		return "", err
	}
	return path, nil
}

// resolvePath resolves a path against the export directory
func (w *Writer) resolvePath(name string) string {
	if filepath.IsAbs(name) || w.dir == "" {
		return name
	}
	return filepath.Join(w.dir, name)
}
