package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"covid19datasets/internal/table"
)

// DefaultSheet is the worksheet tables are written to
const DefaultSheet = "Sheet1"

// WriteXLSX encodes t as a single-sheet workbook. Floats stay numeric,
// dates are written as YYYY-MM-DD text so they survive any locale.
func WriteXLSX(w io.Writer, t *table.Table, sheet string) error {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	defer f.Close()

	if sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open sheet writer: %w", err)
	}

	header := make([]interface{}, 0, len(t.Columns()))
	for _, name := range t.Names() {
		header = append(header, name)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for i := 0; i < t.Len(); i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, xlsxRow(t.Row(i))); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func xlsxRow(vals []any) []interface{} {
	row := make([]interface{}, len(vals))
	for j, v := range vals {
		switch x := v.(type) {
		case nil:
			row[j] = nil
		case float64:
			row[j] = x
		default:
			row[j] = table.Format(x)
		}
	}
	return row
}

// WriteXLSXFile writes t to the named workbook, creating parent directories
func (w *Writer) WriteXLSXFile(name string, t *table.Table, sheet string) (string, error) {
	return w.writeFile(name, t, func(out io.Writer) error {
		return WriteXLSX(out, t, sheet)
	})
}
