package sources

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"covid19datasets/internal/table"
)

// Mapping binds one upstream column to its canonical name and kind
type Mapping struct {
	Upstream  string
	Canonical string
	Kind      table.Kind
	// Layout is the time layout of Date columns, table.DateLayout when empty
	Layout string
}

// Same maps an upstream column onto itself
func Same(name string, kind table.Kind) Mapping {
	return Mapping{Upstream: name, Canonical: name, Kind: kind}
}

// Schema is the ordered list of columns an adapter exposes
type Schema []Mapping

// Names returns the canonical column names in order
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, m := range s {
		out[i] = m.Canonical
	}
	return out
}

// Apply converts a decoded table of text cells into the schema's typed
// columns. Every declared upstream column must be present; extra upstream
// columns are ignored. Blank or unparseable cells become missing.
func (s Schema) Apply(source string, raw *table.Table) (*table.Table, error) {
	cols := make([]table.Column, len(s))
	for i, m := range s {
		if !raw.Has(m.Upstream) {
			return nil, fmt.Errorf("%s: column %q: %w", source, m.Upstream, ErrSchemaMismatch)
		}
		cols[i] = table.Column{Name: m.Canonical, Kind: m.Kind}
	}

	out := table.New(cols...)
	vals := make([]any, len(s))
	for i := 0; i < raw.Len(); i++ {
		for j, m := range s {
			text, _ := raw.Text(i, m.Upstream)
			vals[j] = parseCell(m, text)
		}
		if err := out.Append(vals...); err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", source, i, err)
		}
	}
	return out, nil
}

func parseCell(m Mapping, text string) any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	switch m.Kind {
	case table.Float:
		f, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
		if err != nil {
			return nil
		}
		return f
	case table.Date:
		layout := m.Layout
		if layout == "" {
			layout = table.DateLayout
		}
		ts, err := time.Parse(layout, text)
		if err != nil {
			return nil
		}
		return ts
	default:
		return text
	}
}
