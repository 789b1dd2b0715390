package mortality

import (
	"fmt"
	"sort"
	"time"

	"covid19datasets/internal/sources"
	"covid19datasets/internal/table"
)

// DefaultSpan is the number of days one weekly record covers
const DefaultSpan = 7

// ResampleConfig describes how a weekly series is spread over days
type ResampleConfig struct {
	// GroupBy partitions the series, e.g. ISO and sex
	GroupBy []string
	// Fill are the columns back-filled from each record onto the days it
	// covers; every other column is set only on the record's own date
	Fill []string
	// Drop are columns removed from the output, e.g. the week number
	Drop []string
	// Span is the number of days a record covers, ending on its DATE.
	// DefaultSpan when zero.
	Span int
	// StartColumn, when set, names a Date column holding the first day a
	// record covers. It can shorten a record's coverage below Span but
	// never extend it. The column is dropped.
	StartColumn string
}

// Resample reindexes a weekly table onto calendar days. Each group covers
// every day from its first record's first covered day to its last DATE.
// A Fill column on a day without a record takes the value of the nearest
// record on or after that day, provided the record covers the day, so no
// record fills more than Span days.
func Resample(t *table.Table, cfg ResampleConfig) (*table.Table, error) {
	span := cfg.Span
	if span <= 0 {
		span = DefaultSpan
	}
	drop := append([]string(nil), cfg.Drop...)
	if cfg.StartColumn != "" {
		drop = append(drop, cfg.StartColumn)
	}

	sorted, err := t.SortBy(append(append([]string(nil), cfg.GroupBy...), sources.DateColumn)...)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	for _, name := range append(append([]string(nil), cfg.Fill...), drop...) {
		if !t.Has(name) {
			return nil, fmt.Errorf("resample: %q: %w", name, table.ErrColumnNotFound)
		}
	}

	skip := make(map[string]bool)
	for _, name := range append(append([]string(nil), cfg.GroupBy...), drop...) {
		skip[name] = true
	}
	skip[sources.DateColumn] = true

	cols := make([]table.Column, 0, len(t.Columns()))
	for _, name := range cfg.GroupBy {
		c, _ := t.Column(name)
		cols = append(cols, c)
	}
	cols = append(cols, table.Column{Name: sources.DateColumn, Kind: table.Date})
	var rest []string
	for _, c := range t.Columns() {
		if !skip[c.Name] {
			cols = append(cols, c)
			rest = append(rest, c.Name)
		}
	}
	isFill := make(map[string]bool, len(cfg.Fill))
	for _, name := range cfg.Fill {
		isFill[name] = true
	}

	groups, err := sorted.GroupBy(cfg.GroupBy...)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}

	out := table.New(cols...)
	for _, g := range groups {
		records := weeklyRecords(sorted, g.Rows, cfg.StartColumn, span)
		if len(records) == 0 {
			continue
		}
		start := records[0].first
		for _, r := range records[1:] {
			if r.first.Before(start) {
				start = r.first
			}
		}
		end := records[len(records)-1].end

		next := 0
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			for next < len(records) && records[next].end.Before(d) {
				next++
			}
			row := append([]any(nil), g.Key...)
			row = append(row, d)

			var rec *weeklyRecord
			if next < len(records) {
				rec = &records[next]
			}
			switch {
			case rec != nil && rec.end.Equal(d):
				for _, name := range rest {
					row = append(row, sorted.Get(rec.row, name))
				}
			case rec != nil && !d.Before(rec.first):
				for _, name := range rest {
					if isFill[name] {
						row = append(row, sorted.Get(rec.row, name))
					} else {
						row = append(row, nil)
					}
				}
			default:
				for range rest {
					row = append(row, nil)
				}
			}
			if err := out.Append(row...); err != nil {
				return nil, fmt.Errorf("resample: %w", err)
			}
		}
	}
	return out, nil
}

type weeklyRecord struct {
	row   int
	first time.Time
	end   time.Time
}

// weeklyRecords returns the dated records of a group ordered by DATE. When
// two records share a DATE the first one wins.
func weeklyRecords(t *table.Table, rows []int, startColumn string, span int) []weeklyRecord {
	records := make([]weeklyRecord, 0, len(rows))
	for _, i := range rows {
		end, ok := t.Time(i, sources.DateColumn)
		if !ok {
			continue
		}
		first := end.AddDate(0, 0, -(span - 1))
		if startColumn != "" {
			if s, ok := t.Time(i, startColumn); ok && !s.After(end) && s.After(first) {
				first = s
			}
		}
		if n := len(records); n > 0 && records[n-1].end.Equal(end) {
			continue
		}
		records = append(records, weeklyRecord{row: i, first: first, end: end})
	}
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].end.Before(records[b].end)
	})
	return records
}
