// Package interventions merges government policy stringency with mask
// mandates into one per-country daily series.
package interventions

import (
	"fmt"
	"time"

	"covid19datasets/internal/sources"
	"covid19datasets/internal/table"
)

// MasksColumn is the mask-mandate stringency column of the merged table
const MasksColumn = "Masks"

// MaskDropColumns are mask-table columns not carried into the merge
var MaskDropColumns = []string{"Country", "Source"}

// PrepareMasks drops the descriptive mask columns and renames the
// stringency column to MasksColumn
func PrepareMasks(masks *table.Table) (*table.Table, error) {
	t, err := masks.Drop(MaskDropColumns...)
	if err != nil {
		return nil, fmt.Errorf("prepare masks: %w", err)
	}
	return t.Rename(map[string]string{"Stringency": MasksColumn})
}

// Merge left-joins prepared masks onto policies by (ISO, DATE). The policy
// table fixes the date axis, extended by Daily to every calendar day of each
// country's range. Within each country, ordered by date, a missing cell
// takes the previous day's value; cells still missing (before a country's
// first record) become 0, meaning no intervention recorded.
func Merge(policies, masks *table.Table) (*table.Table, error) {
	days, err := Daily(policies)
	if err != nil {
		return nil, fmt.Errorf("merge interventions: %w", err)
	}
	sorted, err := days.LeftJoin(masks, sources.ISOColumn, sources.DateColumn)
	if err != nil {
		return nil, fmt.Errorf("merge interventions: %w", err)
	}

	var fill []string
	for _, c := range sorted.Columns() {
		if c.Name != sources.ISOColumn && c.Name != sources.DateColumn {
			fill = append(fill, c.Name)
		}
	}
	filled, err := sorted.ForwardFill(sources.ISOColumn, fill...)
	if err != nil {
		return nil, fmt.Errorf("merge interventions: %w", err)
	}
	out, err := filled.FillMissing(0)
	if err != nil {
		return nil, fmt.Errorf("merge interventions: %w", err)
	}
	return out, nil
}

// Daily sorts policies by (ISO, DATE) and inserts a row for every calendar
// day missing between a country's first and last DATE. Inserted rows carry
// only ISO and DATE.
func Daily(policies *table.Table) (*table.Table, error) {
	sorted, err := policies.SortBy(sources.ISOColumn, sources.DateColumn)
	if err != nil {
		return nil, fmt.Errorf("daily policies: %w", err)
	}
	groups, err := sorted.GroupBy(sources.ISOColumn)
	if err != nil {
		return nil, fmt.Errorf("daily policies: %w", err)
	}

	names := sorted.Names()
	out := table.New(sorted.Columns()...)
	for _, g := range groups {
		var prev time.Time
		for _, i := range g.Rows {
			d, ok := sorted.Time(i, sources.DateColumn)
			if ok && !prev.IsZero() {
				for gap := prev.AddDate(0, 0, 1); gap.Before(d); gap = gap.AddDate(0, 0, 1) {
					row := make([]any, len(names))
					for j, name := range names {
						switch name {
						case sources.ISOColumn:
							row[j] = g.Key[0]
						case sources.DateColumn:
							row[j] = gap
						}
					}
					if err := out.Append(row...); err != nil {
						return nil, fmt.Errorf("daily policies: %w", err)
					}
				}
			}
			if ok {
				prev = d
			}
			if err := out.Append(sorted.Row(i)...); err != nil {
				return nil, fmt.Errorf("daily policies: %w", err)
			}
		}
	}
	return out, nil
}
