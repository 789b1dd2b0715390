package table

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Select returns a table holding only the named columns, in the given order
func (t *Table) Select(names ...string) (*Table, error) {
	if err := t.require(names...); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	cols := make([]Column, len(names))
	idx := make([]int, len(names))
	for i, n := range names {
		idx[i] = t.pos[n]
		cols[i] = t.cols[idx[i]]
	}
	out := New(cols...)
	out.rows = make([][]any, len(t.rows))
	for r, row := range t.rows {
		nr := make([]any, len(idx))
		for i, p := range idx {
			nr[i] = row[p]
		}
		out.rows[r] = nr
	}
	return out, nil
}

// Drop returns a table without the named columns. Every name must exist.
func (t *Table) Drop(names ...string) (*Table, error) {
	if err := t.require(names...); err != nil {
		return nil, fmt.Errorf("drop: %w", err)
	}
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	keep := make([]string, 0, len(t.cols))
	for _, c := range t.cols {
		if !skip[c.Name] {
			keep = append(keep, c.Name)
		}
	}
	return t.Select(keep...)
}

// Rename returns a table with columns renamed by the mapping. Names absent
// from the table are ignored; a rename onto an existing name is an error.
func (t *Table) Rename(mapping map[string]string) (*Table, error) {
	cols := t.Columns()
	seen := make(map[string]bool, len(cols))
	for i := range cols {
		if to, ok := mapping[cols[i].Name]; ok {
			cols[i].Name = to
		}
		if seen[cols[i].Name] {
			return nil, fmt.Errorf("rename: %q: %w", cols[i].Name, ErrColumnConflict)
		}
		seen[cols[i].Name] = true
	}
	out := New(cols...)
	out.rows = t.copyRows()
	return out, nil
}

// Filter returns the rows for which keep returns true
func (t *Table) Filter(keep func(r Row) bool) *Table {
	rows := make([]int, 0, len(t.rows))
	for i := range t.rows {
		if keep(Row{t: t, i: i}) {
			rows = append(rows, i)
		}
	}
	return t.Take(rows)
}

// Take returns the given rows, in the given order
func (t *Table) Take(rows []int) *Table {
	out := New(t.cols...)
	out.rows = make([][]any, len(rows))
	for i, r := range rows {
		out.rows[i] = t.Row(r)
	}
	return out
}

// WithColumn returns a table with column c computed by fn. An existing
// column with the same name is replaced in place, otherwise c is appended.
func (t *Table) WithColumn(c Column, fn func(r Row) any) (*Table, error) {
	cols := t.Columns()
	p, replace := t.pos[c.Name]
	if replace {
		cols[p] = c
	} else {
		p = len(cols)
		cols = append(cols, c)
	}
	out := New(cols...)
	out.rows = make([][]any, len(t.rows))
	for i := range t.rows {
		row := t.Row(i)
		if !replace {
			row = append(row, nil)
		}
		cell, err := coerce(c, fn(Row{t: t, i: i}))
		if err != nil {
			return nil, err
		}
		row[p] = cell
		out.rows[i] = row
	}
	return out, nil
}

// SortBy returns the rows stably ordered by the named columns, ascending.
// Missing cells sort before present ones.
func (t *Table) SortBy(names ...string) (*Table, error) {
	if err := t.require(names...); err != nil {
		return nil, fmt.Errorf("sort: %w", err)
	}
	order := make([]int, len(t.rows))
	for i := range order {
		order[i] = i
	}
	pos := make([]int, len(names))
	for i, n := range names {
		pos[i] = t.pos[n]
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := t.rows[order[a]], t.rows[order[b]]
		for _, p := range pos {
			if c := compare(ra[p], rb[p]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return t.Take(order), nil
}

func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case string:
		return strings.Compare(x, b.(string))
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case time.Time:
		return x.Compare(b.(time.Time))
	}
	return 0
}

// Concat stacks tables vertically. All tables must have the columns of the
// first one (same names and kinds); the first table's order is kept.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return New(), nil
	}
	first := tables[0]
	out := New(first.cols...)
	for ti, tb := range tables {
		if len(tb.cols) != len(first.cols) {
			return nil, fmt.Errorf("concat: table %d has %d columns, want %d: %w", ti, len(tb.cols), len(first.cols), ErrColumnConflict)
		}
		idx := make([]int, len(first.cols))
		for i, c := range first.cols {
			other, ok := tb.Column(c.Name)
			if !ok {
				return nil, fmt.Errorf("concat: table %d: %q: %w", ti, c.Name, ErrColumnNotFound)
			}
			if other.Kind != c.Kind {
				return nil, fmt.Errorf("concat: table %d: %q is %s, want %s: %w", ti, c.Name, other.Kind, c.Kind, ErrKindMismatch)
			}
			idx[i] = tb.pos[c.Name]
		}
		for _, row := range tb.rows {
			nr := make([]any, len(idx))
			for i, p := range idx {
				nr[i] = row[p]
			}
			out.rows = append(out.rows, nr)
		}
	}
	return out, nil
}

// Group is a set of rows sharing the same values in the grouping columns
type Group struct {
	Key  []any
	Rows []int
}

// GroupBy partitions the rows by the named columns. Groups are returned in
// order of first appearance and rows keep their table order.
func (t *Table) GroupBy(names ...string) ([]Group, error) {
	if err := t.require(names...); err != nil {
		return nil, fmt.Errorf("group: %w", err)
	}
	var groups []Group
	at := make(map[string]int)
	for i := range t.rows {
		vals := t.values(i, names)
		k := keyOf(vals)
		g, ok := at[k]
		if !ok {
			g = len(groups)
			at[k] = g
			groups = append(groups, Group{Key: vals})
		}
		groups[g].Rows = append(groups[g].Rows, i)
	}
	return groups, nil
}

// Distinct returns the distinct non-missing String values of a column, in
// order of first appearance
func (t *Table) Distinct(name string) []string {
	p, ok := t.pos[name]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, row := range t.rows {
		s, ok := row[p].(string)
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func (t *Table) values(i int, names []string) []any {
	vals := make([]any, len(names))
	for j, n := range names {
		vals[j] = t.rows[i][t.pos[n]]
	}
	return vals
}

func (t *Table) copyRows() [][]any {
	rows := make([][]any, len(t.rows))
	for i := range t.rows {
		rows[i] = t.Row(i)
	}
	return rows
}

func keyOf(vals []any) string {
	var b strings.Builder
	for i, v := range vals {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		switch x := v.(type) {
		case nil:
			b.WriteByte(0)
		case string:
			b.WriteString("s:")
			b.WriteString(x)
		case float64:
			b.WriteString("f:")
			b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
		case time.Time:
			b.WriteString("d:")
			b.WriteString(x.Format(DateLayout))
		}
	}
	return b.String()
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
