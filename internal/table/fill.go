package table

import (
	"fmt"
)

// ForwardFill returns a copy of t where a missing cell in any of cols takes
// the last present value of the same column among earlier rows of the same
// `by` group. Rows are visited in table order, so callers sort first when
// the fill must follow time. Values never cross group boundaries.
// With no cols, every column except `by` is filled.
func (t *Table) ForwardFill(by string, cols ...string) (*Table, error) {
	if err := t.require(by); err != nil {
		return nil, fmt.Errorf("forward fill: %w", err)
	}
	if len(cols) == 0 {
		for _, c := range t.cols {
			if c.Name != by {
				cols = append(cols, c.Name)
			}
		}
	}
	if err := t.require(cols...); err != nil {
		return nil, fmt.Errorf("forward fill: %w", err)
	}

	pos := make([]int, len(cols))
	for i, c := range cols {
		pos[i] = t.pos[c]
	}
	byPos := t.pos[by]

	out := New(t.cols...)
	out.rows = t.copyRows()
	last := make(map[string][]any)
	for _, row := range out.rows {
		g := keyOf([]any{row[byPos]})
		prev, ok := last[g]
		if !ok {
			prev = make([]any, len(pos))
			last[g] = prev
		}
		for i, p := range pos {
			if row[p] == nil {
				row[p] = prev[i]
			} else {
				prev[i] = row[p]
			}
		}
	}
	return out, nil
}

// FillMissing returns a copy of t with missing cells of the given Float
// columns set to v. With no cols, every Float column is filled; cells of
// other kinds are left missing.
func (t *Table) FillMissing(v float64, cols ...string) (*Table, error) {
	if len(cols) == 0 {
		for _, c := range t.cols {
			if c.Kind == Float {
				cols = append(cols, c.Name)
			}
		}
	}
	if err := t.require(cols...); err != nil {
		return nil, fmt.Errorf("fill missing: %w", err)
	}
	pos := make([]int, 0, len(cols))
	for _, name := range cols {
		c, _ := t.Column(name)
		if c.Kind != Float {
			return nil, fmt.Errorf("fill missing: %q is %s: %w", name, c.Kind, ErrKindMismatch)
		}
		pos = append(pos, t.pos[name])
	}

	out := New(t.cols...)
	out.rows = t.copyRows()
	for _, row := range out.rows {
		for _, p := range pos {
			if row[p] == nil {
				row[p] = v
			}
		}
	}
	return out, nil
}
