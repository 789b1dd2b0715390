package mortality

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"covid19datasets/internal/isoweek"
	"covid19datasets/internal/sources"
	"covid19datasets/internal/table"
)

// ValueColumn maps a raw death-count column to its excess-mortality name
type ValueColumn struct {
	Raw    string
	Excess string
}

// EstimatorConfig describes the layout of one raw weekly mortality table
type EstimatorConfig struct {
	Provider string
	// Strata are the columns, besides ISO and week, that a baseline is kept
	// per (sex, age group, ...)
	Strata     []string
	YearColumn string
	WeekColumn string
	Values     []ValueColumn
	// TotalColumn is the excess column the daily average is derived from
	TotalColumn    string
	DailyAvgColumn string
	// SexColumn is relabelled through SexLabels; unknown labels are kept
	SexColumn string
	SexLabels map[string]string
	// CountryAliases maps provider-specific country codes to ISO alpha-3
	CountryAliases map[string]string
	CurrentYear    int
	ReferenceYears int
}

// StratumWeek identifies one current-year stratum-week
type StratumWeek struct {
	ISO    string
	Strata []string
	Week   int
}

// String renders the key as ISO/strata.../week
func (s StratumWeek) String() string {
	parts := append([]string{s.ISO}, s.Strata...)
	return fmt.Sprintf("%s/w%d", strings.Join(parts, "/"), s.Week)
}

// Result is the outcome of one estimation
type Result struct {
	// Table holds one row per kept current-year stratum-week
	Table *table.Table
	// Dropped lists the stratum-weeks without any usable baseline
	Dropped []StratumWeek
}

// Estimator derives weekly excess mortality from raw weekly death counts:
// the current year's counts minus the mean of the same stratum-week over
// the preceding reference years
type Estimator struct {
	cfg    EstimatorConfig
	logger *slog.Logger
}

// NewEstimator creates an estimator
func NewEstimator(cfg EstimatorConfig, logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{cfg: cfg, logger: logger}
}

// ReferenceWindow returns the first and last reference year, inclusive
func (e *Estimator) ReferenceWindow() (int, int) {
	return e.cfg.CurrentYear - e.cfg.ReferenceYears, e.cfg.CurrentYear - 1
}

type accumulator struct {
	sum   []float64
	count []int
}

// Estimate computes excess mortality for every stratum-week of the current
// year. Rows outside the reference window and the current year are ignored.
func (e *Estimator) Estimate(ctx context.Context, raw *table.Table) (*Result, error) {
	cfg := e.cfg
	required := append([]string{sources.ISOColumn, cfg.YearColumn, cfg.WeekColumn}, cfg.Strata...)
	for _, v := range cfg.Values {
		required = append(required, v.Raw)
	}
	for _, name := range required {
		if !raw.Has(name) {
			return nil, fmt.Errorf("%s: estimate: %q: %w", cfg.Provider, name, table.ErrColumnNotFound)
		}
	}

	first, last := e.ReferenceWindow()
	baselines := make(map[string]*accumulator)
	var current []int

	for i := 0; i < raw.Len(); i++ {
		year, ok := raw.Float(i, cfg.YearColumn)
		if !ok {
			continue
		}
		y := int(year)
		switch {
		case y == cfg.CurrentYear:
			current = append(current, i)
		case y >= first && y <= last:
			k := e.key(raw, i)
			acc, ok := baselines[k]
			if !ok {
				acc = &accumulator{sum: make([]float64, len(cfg.Values)), count: make([]int, len(cfg.Values))}
				baselines[k] = acc
			}
			for j, v := range cfg.Values {
				if x, ok := raw.Float(i, v.Raw); ok {
					acc.sum[j] += x
					acc.count[j]++
				}
			}
		}
	}

	out := table.New(e.outputColumns()...)
	var dropped []StratumWeek
	for _, i := range current {
		week, ok := raw.Float(i, cfg.WeekColumn)
		if !ok {
			continue
		}
		excess := make([]any, len(cfg.Values))
		present := false
		if acc, ok := baselines[e.key(raw, i)]; ok {
			for j, v := range cfg.Values {
				x, ok := raw.Float(i, v.Raw)
				if !ok || acc.count[j] == 0 {
					continue
				}
				excess[j] = x - acc.sum[j]/float64(acc.count[j])
				present = true
			}
		}
		if !present {
			dropped = append(dropped, e.stratumWeek(raw, i, int(week)))
			continue
		}
		if err := isoweek.Validate(cfg.CurrentYear, int(week)); err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", cfg.Provider, i, err)
		}

		row := []any{e.country(raw, i)}
		for _, s := range cfg.Strata {
			row = append(row, e.label(s, raw.Get(i, s)))
		}
		row = append(row, week, isoweek.LastDay(cfg.CurrentYear, int(week)))
		row = append(row, excess...)
		row = append(row, dailyAverage(excess[e.totalIndex()], 7))
		if err := out.Append(row...); err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Provider, err)
		}
	}

	if len(dropped) > 0 {
		e.logger.WarnContext(ctx, "stratum-weeks without reference history dropped",
			slog.String("provider", cfg.Provider),
			slog.Int("dropped_strata", len(dropped)),
			slog.Int("reference_first", first),
			slog.Int("reference_last", last))
	}
	e.logger.DebugContext(ctx, "excess mortality estimated",
		slog.String("provider", cfg.Provider),
		slog.Int("rows", out.Len()),
		slog.Int("baselines", len(baselines)))

	return &Result{Table: out, Dropped: dropped}, nil
}

func (e *Estimator) outputColumns() []table.Column {
	cols := []table.Column{{Name: sources.ISOColumn, Kind: table.String}}
	for _, s := range e.cfg.Strata {
		cols = append(cols, table.Column{Name: s, Kind: table.String})
	}
	cols = append(cols,
		table.Column{Name: e.cfg.WeekColumn, Kind: table.Float},
		table.Column{Name: sources.DateColumn, Kind: table.Date},
	)
	for _, v := range e.cfg.Values {
		cols = append(cols, table.Column{Name: v.Excess, Kind: table.Float})
	}
	return append(cols, table.Column{Name: e.cfg.DailyAvgColumn, Kind: table.Float})
}

// key is computed on raw labels so aliases never merge two strata
func (e *Estimator) key(raw *table.Table, i int) string {
	var b strings.Builder
	b.WriteString(table.Format(raw.Get(i, sources.ISOColumn)))
	for _, s := range e.cfg.Strata {
		b.WriteByte(0x1f)
		b.WriteString(table.Format(raw.Get(i, s)))
	}
	b.WriteByte(0x1f)
	b.WriteString(table.Format(raw.Get(i, e.cfg.WeekColumn)))
	return b.String()
}

func (e *Estimator) stratumWeek(raw *table.Table, i, week int) StratumWeek {
	sw := StratumWeek{ISO: e.country(raw, i), Week: week}
	for _, s := range e.cfg.Strata {
		sw.Strata = append(sw.Strata, table.Format(e.label(s, raw.Get(i, s))))
	}
	return sw
}

func (e *Estimator) country(raw *table.Table, i int) string {
	iso, _ := raw.Text(i, sources.ISOColumn)
	if alias, ok := e.cfg.CountryAliases[iso]; ok {
		return alias
	}
	return iso
}

func (e *Estimator) label(column string, v any) any {
	s, ok := v.(string)
	if !ok || column != e.cfg.SexColumn {
		return v
	}
	if mapped, ok := e.cfg.SexLabels[s]; ok {
		return mapped
	}
	return s
}

func (e *Estimator) totalIndex() int {
	for j, v := range e.cfg.Values {
		if v.Excess == e.cfg.TotalColumn {
			return j
		}
	}
	return len(e.cfg.Values) - 1
}

func dailyAverage(weekly any, days int) any {
	w, ok := weekly.(float64)
	if !ok || days <= 0 {
		return nil
	}
	return w / float64(days)
}
