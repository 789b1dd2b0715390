package table

import (
	"fmt"
)

// LeftJoin joins right onto t by the `on` columns. Every row of t appears
// exactly once in the result, in its original order, extended with the
// non-key columns of right (missing when right has no matching row).
//
// right must hold at most one row per key (ErrDuplicateKey) and may not
// share non-key column names with t (ErrColumnConflict). Key columns must
// have the same kind on both sides.
func (t *Table) LeftJoin(right *Table, on ...string) (*Table, error) {
	if len(on) == 0 {
		return nil, fmt.Errorf("left join: no key columns")
	}
	if err := t.require(on...); err != nil {
		return nil, fmt.Errorf("left join: left: %w", err)
	}
	if err := right.require(on...); err != nil {
		return nil, fmt.Errorf("left join: right: %w", err)
	}

	isKey := make(map[string]bool, len(on))
	for _, k := range on {
		isKey[k] = true
		lc, _ := t.Column(k)
		rc, _ := right.Column(k)
		if lc.Kind != rc.Kind {
			return nil, fmt.Errorf("left join: key %q is %s on the left and %s on the right: %w", k, lc.Kind, rc.Kind, ErrKindMismatch)
		}
	}

	cols := t.Columns()
	var extra []int
	for i, c := range right.cols {
		if isKey[c.Name] {
			continue
		}
		if t.Has(c.Name) {
			return nil, fmt.Errorf("left join on %v: %q: %w", on, c.Name, ErrColumnConflict)
		}
		cols = append(cols, c)
		extra = append(extra, i)
	}

	lookup := make(map[string]int, len(right.rows))
	for i := range right.rows {
		k := keyOf(right.values(i, on))
		if _, dup := lookup[k]; dup {
			return nil, fmt.Errorf("left join on %v: right side key %v: %w", on, right.values(i, on), ErrDuplicateKey)
		}
		lookup[k] = i
	}

	out := New(cols...)
	out.rows = make([][]any, len(t.rows))
	for i := range t.rows {
		row := make([]any, 0, len(cols))
		row = append(row, t.rows[i]...)
		match, ok := lookup[keyOf(t.values(i, on))]
		for _, p := range extra {
			if ok {
				row = append(row, right.rows[match][p])
			} else {
				row = append(row, nil)
			}
		}
		out.rows[i] = row
	}
	return out, nil
}

// Index returns a copy of t indexed by the given key columns. Every key
// value must be present and every key tuple unique.
func (t *Table) Index(keys ...string) (*Table, error) {
	if err := t.require(keys...); err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	out := t.Clone()
	out.index = append([]string(nil), keys...)
	out.keys = make(map[string]int, len(t.rows))
	for i := range t.rows {
		vals := t.values(i, keys)
		for j, v := range vals {
			if v == nil {
				return nil, fmt.Errorf("index: row %d: %q: %w", i, keys[j], ErrMissingKey)
			}
		}
		k := keyOf(vals)
		if prev, dup := out.keys[k]; dup {
			return nil, fmt.Errorf("index: rows %d and %d share key %v: %w", prev, i, vals, ErrDuplicateKey)
		}
		out.keys[k] = i
	}
	return out, nil
}

// IndexColumns returns the key columns set by Index, nil if not indexed
func (t *Table) IndexColumns() []string {
	return append([]string(nil), t.index...)
}

// Lookup returns the row holding the given key values. The table must have
// been indexed; values are given in index column order.
func (t *Table) Lookup(vals ...any) (int, bool) {
	if t.keys == nil || len(vals) != len(t.index) {
		return 0, false
	}
	norm := make([]any, len(vals))
	for i, v := range vals {
		c, _ := t.Column(t.index[i])
		cell, err := coerce(c, v)
		if err != nil {
			return 0, false
		}
		norm[i] = cell
	}
	i, ok := t.keys[keyOf(norm)]
	return i, ok
}
