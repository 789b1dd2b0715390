package sources

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"covid19datasets/internal/table"
)

// Decoder turns raw upstream bytes into a table of text cells whose
// columns are named by the header row
type Decoder interface {
	Decode(data []byte) (*table.Table, error)
}

// CSVDecoder decodes delimited text
type CSVDecoder struct {
	// Comma is the field delimiter, ',' when zero
	Comma rune
	// SkipRows is the number of lines preceding the header
	SkipRows int
}

// Decode implements Decoder
func (d CSVDecoder) Decode(data []byte) (*table.Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	br := bufio.NewReader(bytes.NewReader(data))
	for i := 0; i < d.SkipRows; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			return nil, fmt.Errorf("csv: skip line %d: %w", i+1, err)
		}
	}

	r := csv.NewReader(br)
	if d.Comma != 0 {
		r.Comma = d.Comma
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv: no header row")
		}
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	out, err := textTable(header)
	if err != nil {
		return nil, err
	}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		if err := appendText(out, record); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// XLSXDecoder decodes one sheet of an Excel workbook
type XLSXDecoder struct {
	// Sheet is the sheet to read, the first sheet when empty
	Sheet string
	// SkipRows is the number of rows preceding the header
	SkipRows int
}

// Decode implements Decoder
func (d XLSXDecoder) Decode(data []byte) (*table.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xlsx: open: %w", err)
	}
	defer f.Close()

	sheet := d.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("xlsx: workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx: read sheet %q: %w", sheet, err)
	}
	if len(rows) <= d.SkipRows {
		return nil, fmt.Errorf("xlsx: sheet %q has no header row", sheet)
	}

	out, err := textTable(rows[d.SkipRows])
	if err != nil {
		return nil, err
	}
	for _, row := range rows[d.SkipRows+1:] {
		if err := appendText(out, row); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func textTable(header []string) (*table.Table, error) {
	cols := make([]table.Column, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if seen[h] {
			return nil, fmt.Errorf("header: column %q repeated: %w", h, table.ErrColumnConflict)
		}
		seen[h] = true
		cols[i] = table.Column{Name: h, Kind: table.String}
	}
	return table.New(cols...), nil
}

// appendText pads short records and ignores cells past the header width
func appendText(t *table.Table, record []string) error {
	width := len(t.Columns())
	vals := make([]any, width)
	for i := range vals {
		if i < len(record) {
			vals[i] = record[i]
		} else {
			vals[i] = ""
		}
	}
	return t.Append(vals...)
}
