package table

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Kind is the type of the values stored in a column
type Kind int

const (
	String Kind = iota
	Float
	Date
)

// DateLayout is the textual form of Date cells
const DateLayout = "2006-01-02"

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Float:
		return "float"
	case Date:
		return "date"
	default:
		return "unknown"
	}
}

var (
	ErrColumnNotFound = errors.New("column not found")
	ErrColumnConflict = errors.New("column conflict")
	ErrDuplicateKey   = errors.New("duplicate key")
	ErrKindMismatch   = errors.New("kind mismatch")
	ErrMissingKey     = errors.New("missing key value")
)

// Column describes one column of a table
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Table is an ordered collection of typed columns and nullable cells
type Table struct {
	cols []Column
	pos  map[string]int
	rows [][]any

	index []string
	keys  map[string]int
}

// New creates an empty table with the given columns.
// New panics if two columns share a name.
func New(cols ...Column) *Table {
	t := &Table{
		cols: make([]Column, len(cols)),
		pos:  make(map[string]int, len(cols)),
	}
	copy(t.cols, cols)
	for i, c := range cols {
		if _, dup := t.pos[c.Name]; dup {
			panic(fmt.Sprintf("table: duplicate column %q", c.Name))
		}
		t.pos[c.Name] = i
	}
	return t
}

// Day returns the UTC midnight of the calendar day holding ts
func Day(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Append adds a row. Values are matched to columns positionally; ints are
// accepted for Float columns and dates are normalized to UTC midnight.
func (t *Table) Append(vals ...any) error {
	if len(vals) != len(t.cols) {
		return fmt.Errorf("append: got %d values for %d columns", len(vals), len(t.cols))
	}
	row := make([]any, len(vals))
	for i, v := range vals {
		cell, err := coerce(t.cols[i], v)
		if err != nil {
			return err
		}
		row[i] = cell
	}
	t.rows = append(t.rows, row)
	t.index, t.keys = nil, nil
	return nil
}

// MustAppend is like Append but panics on error. It returns the table so
// fixtures can be built in one expression.
func (t *Table) MustAppend(vals ...any) *Table {
	if err := t.Append(vals...); err != nil {
		panic(err)
	}
	return t
}

func coerce(c Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch c.Kind {
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Float:
		switch n := v.(type) {
		case float64:
			if math.IsNaN(n) {
				return nil, nil
			}
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case Date:
		if ts, ok := v.(time.Time); ok {
			return Day(ts), nil
		}
	}
	return nil, fmt.Errorf("column %q (%s) got %T: %w", c.Name, c.Kind, v, ErrKindMismatch)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Columns returns a copy of the column descriptors
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.cols))
	copy(out, t.cols)
	return out
}

// Names returns the column names in order
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Has reports whether the table has a column with the given name
func (t *Table) Has(name string) bool {
	_, ok := t.pos[name]
	return ok
}

// Column returns the descriptor of the named column
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.pos[name]
	if !ok {
		return Column{}, false
	}
	return t.cols[i], true
}

func (t *Table) require(names ...string) error {
	for _, n := range names {
		if !t.Has(n) {
			return fmt.Errorf("%q: %w", n, ErrColumnNotFound)
		}
	}
	return nil
}

// Get returns the cell at row i of the named column, nil if missing
func (t *Table) Get(i int, name string) any {
	p, ok := t.pos[name]
	if !ok {
		return nil
	}
	return t.rows[i][p]
}

// Float returns a Float cell
func (t *Table) Float(i int, name string) (float64, bool) {
	v, ok := t.Get(i, name).(float64)
	return v, ok
}

// Text returns a String cell
func (t *Table) Text(i int, name string) (string, bool) {
	v, ok := t.Get(i, name).(string)
	return v, ok
}

// Time returns a Date cell
func (t *Table) Time(i int, name string) (time.Time, bool) {
	v, ok := t.Get(i, name).(time.Time)
	return v, ok
}

// Row returns a copy of row i
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.rows[i]))
	copy(out, t.rows[i])
	return out
}

// Clone returns a deep copy of the table, including its index
func (t *Table) Clone() *Table {
	out := New(t.cols...)
	out.rows = make([][]any, len(t.rows))
	for i := range t.rows {
		out.rows[i] = t.Row(i)
	}
	if t.index != nil {
		out.index = append([]string(nil), t.index...)
		out.keys = make(map[string]int, len(t.keys))
		for k, v := range t.keys {
			out.keys[k] = v
		}
	}
	return out
}

// Row is a read-only view of one row, handed to predicates and generators
type Row struct {
	t *Table
	i int
}

// Index returns the row position
func (r Row) Index() int { return r.i }

// Get returns the named cell
func (r Row) Get(name string) any { return r.t.Get(r.i, name) }

// Float returns the named Float cell
func (r Row) Float(name string) (float64, bool) { return r.t.Float(r.i, name) }

// Text returns the named String cell
func (r Row) Text(name string) (string, bool) { return r.t.Text(r.i, name) }

// Time returns the named Date cell
func (r Row) Time(name string) (time.Time, bool) { return r.t.Time(r.i, name) }

// Each calls fn for every row in order
func (t *Table) Each(fn func(r Row)) {
	for i := range t.rows {
		fn(Row{t: t, i: i})
	}
}

// Format renders a cell as text: empty for missing, DateLayout for dates
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatFloat(x)
	case time.Time:
		return x.Format(DateLayout)
	default:
		return fmt.Sprint(x)
	}
}
