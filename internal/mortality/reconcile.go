package mortality

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"covid19datasets/internal/sources"
	"covid19datasets/internal/table"
)

// ErrDuplicateCoverage is matched by *DuplicateCoverageError
var ErrDuplicateCoverage = errors.New("duplicate mortality coverage")

// OutputColumns is the layout of the reconciled mortality table
var OutputColumns = []string{sources.ISOColumn, sources.DateColumn, DailyAvgColumn, WeeklyColumn}

// DuplicateCoverageError reports countries present in two contributions
// after exclusion
type DuplicateCoverageError struct {
	Sources [2]string
	Codes   []string
}

// Error implements the error interface
func (e *DuplicateCoverageError) Error() string {
	return fmt.Sprintf("%s and %s both cover %s", e.Sources[0], e.Sources[1], strings.Join(e.Codes, ", "))
}

// Is matches ErrDuplicateCoverage
func (e *DuplicateCoverageError) Is(target error) bool {
	return target == ErrDuplicateCoverage
}

// Contribution is one provider's share of the reconciled table
type Contribution struct {
	Name  string
	Table *table.Table
	// Keep selects the rows taking part, all rows when nil
	Keep func(r table.Row) bool
	// Exclude lists countries better covered by another contribution
	Exclude []string
	// Rename maps provider column names onto OutputColumns
	Rename map[string]string
}

// EconomistContribution wraps Economist country-level data
func EconomistContribution(t *table.Table, exclude []string) Contribution {
	return Contribution{Name: sources.EconomistName, Table: t, Exclude: exclude}
}

// EurostatContribution wraps Eurostat data, keeping the all-sex all-age
// series
func EurostatContribution(t *table.Table, exclude []string) Contribution {
	return Contribution{
		Name:  sources.EurostatName,
		Table: t,
		Keep: func(r table.Row) bool {
			return r.Get("SEX") == "Total" && r.Get("AGE") == "Total"
		},
		Exclude: exclude,
		Rename: map[string]string{
			EurostatWeeklyColumn:   WeeklyColumn,
			EurostatDailyAvgColumn: DailyAvgColumn,
		},
	}
}

// Reconcile blends contributions into one table with OutputColumns. Each
// contribution is filtered, stripped of its excluded countries and
// renamed; if any two of them still share a country the result is a
// *DuplicateCoverageError. Rows are concatenated in contribution order.
func Reconcile(contribs ...Contribution) (*table.Table, error) {
	prepared := make([]*table.Table, len(contribs))
	coverage := make([]map[string]bool, len(contribs))

	for i, c := range contribs {
		t, err := prepare(c)
		if err != nil {
			return nil, fmt.Errorf("reconcile %s: %w", c.Name, err)
		}
		prepared[i] = t
		coverage[i] = make(map[string]bool)
		for _, iso := range t.Distinct(sources.ISOColumn) {
			coverage[i][iso] = true
		}
	}

	for i := range contribs {
		for j := i + 1; j < len(contribs); j++ {
			var common []string
			for iso := range coverage[i] {
				if coverage[j][iso] {
					common = append(common, iso)
				}
			}
			if len(common) > 0 {
				sort.Strings(common)
				return nil, &DuplicateCoverageError{
					Sources: [2]string{contribs[i].Name, contribs[j].Name},
					Codes:   common,
				}
			}
		}
	}

	if len(prepared) == 0 {
		return emptyOutput(), nil
	}
	return table.Concat(prepared...)
}

func prepare(c Contribution) (*table.Table, error) {
	excluded := make(map[string]bool, len(c.Exclude))
	for _, iso := range c.Exclude {
		excluded[iso] = true
	}
	t := c.Table.Filter(func(r table.Row) bool {
		if c.Keep != nil && !c.Keep(r) {
			return false
		}
		iso, _ := r.Text(sources.ISOColumn)
		return !excluded[iso]
	})
	t, err := t.Rename(c.Rename)
	if err != nil {
		return nil, err
	}
	return t.Select(OutputColumns...)
}

func emptyOutput() *table.Table {
	return table.New(
		table.Column{Name: sources.ISOColumn, Kind: table.String},
		table.Column{Name: sources.DateColumn, Kind: table.Date},
		table.Column{Name: DailyAvgColumn, Kind: table.Float},
		table.Column{Name: WeeklyColumn, Kind: table.Float},
	)
}
