package mortality

import (
	"context"
	"fmt"
	"log/slog"

	"covid19datasets/internal/infrastructure"
	"covid19datasets/internal/sources"
	"covid19datasets/internal/table"
)

// Column names shared by the reconciled mortality table
const (
	DailyAvgColumn = "excess_death_daily_avg"
	WeeklyColumn   = "weekly_excess_deaths"
)

// HMD column names
const (
	HMDDailyAvgColumn = "deaths_excess_daily_avg"
	HMDWeeklyColumn   = "deaths_excess_weekly"
)

// Eurostat column names
const (
	EurostatWeeklyColumn   = "excess_mortality"
	EurostatDailyAvgColumn = "excess_mortality_daily_average"
)

// Window is the reference period of an estimator
type Window struct {
	CurrentYear    int
	ReferenceYears int
}

// Option configures a provider
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

// WithLogger sets the provider logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the instruments recording dropped strata
func WithMetrics(m *infrastructure.PipelineMetrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default(), metrics: infrastructure.NoopMetrics()}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = infrastructure.WithComponent(o.logger, "mortality")
	return o
}

// HMDConfig returns the estimator layout of the Human Mortality Database
// short-term mortality fluctuations series
func HMDConfig(w Window) EstimatorConfig {
	return EstimatorConfig{
		Provider:   sources.HMDName,
		Strata:     []string{"Sex"},
		YearColumn: "Year",
		WeekColumn: "Week",
		Values: []ValueColumn{
			{Raw: "D0_14", Excess: "deaths_excess_weekly_age_0_to_14"},
			{Raw: "D15_64", Excess: "deaths_excess_weekly_age_15_to_64"},
			{Raw: "D65_74", Excess: "deaths_excess_weekly_age_65_to_74"},
			{Raw: "D75_84", Excess: "deaths_excess_weekly_age_75_to_84"},
			{Raw: "D85p", Excess: "deaths_excess_weekly_age_85_plus"},
			{Raw: "DTotal", Excess: HMDWeeklyColumn},
		},
		TotalColumn:    HMDWeeklyColumn,
		DailyAvgColumn: HMDDailyAvgColumn,
		SexColumn:      "Sex",
		SexLabels:      map[string]string{"b": "Total", "m": "Male", "f": "Female"},
		// HMD publishes Germany's total population as DEUTNP
		CountryAliases: map[string]string{"DEUTNP": "DEU"},
		CurrentYear:    w.CurrentYear,
		ReferenceYears: w.ReferenceYears,
	}
}

// EurostatConfig returns the estimator layout of Eurostat weekly deaths
func EurostatConfig(w Window) EstimatorConfig {
	return EstimatorConfig{
		Provider:       sources.EurostatName,
		Strata:         []string{"SEX", "AGE"},
		YearColumn:     "Year",
		WeekColumn:     "Week",
		Values:         []ValueColumn{{Raw: "deaths", Excess: EurostatWeeklyColumn}},
		TotalColumn:    EurostatWeeklyColumn,
		DailyAvgColumn: EurostatDailyAvgColumn,
		SexColumn:      "SEX",
		SexLabels:      map[string]string{"T": "Total", "M": "Male", "F": "Female"},
		CurrentYear:    w.CurrentYear,
		ReferenceYears: w.ReferenceYears,
	}
}

// Provider computes excess mortality from a raw weekly deaths source. It
// satisfies sources.Source so the combined build can treat it as one.
type Provider struct {
	raw       sources.Source
	estimator *Estimator
	cfg       EstimatorConfig
	opts      options
}

// NewProvider creates a provider estimating over raw with cfg
func NewProvider(raw sources.Source, cfg EstimatorConfig, opts ...Option) *Provider {
	o := newOptions(opts)
	return &Provider{
		raw:       raw,
		estimator: NewEstimator(cfg, o.logger),
		cfg:       cfg,
		opts:      o,
	}
}

// NewHMD creates the Human Mortality Database provider
func NewHMD(raw sources.Source, w Window, opts ...Option) *Provider {
	return NewProvider(raw, HMDConfig(w), opts...)
}

// NewEurostat creates the Eurostat provider
func NewEurostat(raw sources.Source, w Window, opts ...Option) *Provider {
	return NewProvider(raw, EurostatConfig(w), opts...)
}

// Name implements sources.Source
func (p *Provider) Name() string {
	return p.cfg.Provider
}

// RawData returns the raw weekly deaths table
func (p *Provider) RawData(ctx context.Context) (*table.Table, error) {
	return p.raw.GetData(ctx, false)
}

// Estimate returns the weekly excess mortality with the dropped strata
func (p *Provider) Estimate(ctx context.Context) (*Result, error) {
	raw, err := p.RawData(ctx)
	if err != nil {
		return nil, err
	}
	res, err := p.estimator.Estimate(ctx, raw)
	if err != nil {
		return nil, err
	}
	p.opts.metrics.RecordDroppedStrata(ctx, p.cfg.Provider, len(res.Dropped))
	return res, nil
}

// GetData implements sources.Source. Weekly rows are dated on the last day
// of their ISO week; daily rows spread each week's daily average over the
// seven days it covers and drop the week number.
func (p *Provider) GetData(ctx context.Context, daily bool) (*table.Table, error) {
	res, err := p.Estimate(ctx)
	if err != nil {
		return nil, err
	}
	if !daily {
		return res.Table, nil
	}
	out, err := Resample(res.Table, ResampleConfig{
		GroupBy: append([]string{sources.ISOColumn}, p.cfg.Strata...),
		Fill:    []string{p.cfg.DailyAvgColumn},
		Drop:    []string{p.cfg.WeekColumn},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.cfg.Provider, err)
	}
	return out, nil
}

// Reload forces the raw source to fetch again
func (p *Provider) Reload(ctx context.Context) error {
	if r, ok := p.raw.(sources.Reloader); ok {
		return r.Reload(ctx)
	}
	return nil
}

// Economist serves The Economist excess-deaths compilation, which is
// already expressed as excess over a baseline
type Economist struct {
	raw  sources.Source
	opts options
}

// NewEconomist creates the Economist provider
func NewEconomist(raw sources.Source, opts ...Option) *Economist {
	return &Economist{raw: raw, opts: newOptions(opts)}
}

// Name implements sources.Source
func (e *Economist) Name() string {
	return sources.EconomistName
}

// RawData returns the raw compilation
func (e *Economist) RawData(ctx context.Context) (*table.Table, error) {
	return e.raw.GetData(ctx, false)
}

// GetData implements sources.Source with country-level rows only
func (e *Economist) GetData(ctx context.Context, daily bool) (*table.Table, error) {
	return e.CountryLevelData(ctx, daily)
}

// CountryLevelData returns one series per country (rows whose region is
// the country itself) in the reconciled column layout. A record covers
// start_date..end_date and is dated on end_date.
func (e *Economist) CountryLevelData(ctx context.Context, daily bool) (*table.Table, error) {
	raw, err := e.RawData(ctx)
	if err != nil {
		return nil, err
	}

	national := raw.Filter(func(r table.Row) bool {
		country, ok := r.Text("country")
		region, _ := r.Text("region")
		_, hasISO := r.Text(sources.ISOColumn)
		return ok && hasISO && country == region
	})

	out := table.New(
		table.Column{Name: sources.ISOColumn, Kind: table.String},
		table.Column{Name: sources.DateColumn, Kind: table.Date},
		table.Column{Name: "start_date", Kind: table.Date},
		table.Column{Name: DailyAvgColumn, Kind: table.Float},
		table.Column{Name: WeeklyColumn, Kind: table.Float},
	)
	for i := 0; i < national.Len(); i++ {
		end, ok := national.Time(i, "end_date")
		if !ok {
			continue
		}
		days := DefaultSpan
		start, hasStart := national.Time(i, "start_date")
		if hasStart && !start.After(end) {
			days = int(end.Sub(start).Hours()/24) + 1
		} else {
			start = end.AddDate(0, 0, -(DefaultSpan - 1))
		}
		weekly := national.Get(i, "excess_deaths")
		if err := out.Append(national.Get(i, sources.ISOColumn), end, start, dailyAverage(weekly, days), weekly); err != nil {
			return nil, fmt.Errorf("%s: %w", sources.EconomistName, err)
		}
	}

	e.opts.logger.DebugContext(ctx, "economist country-level rows",
		slog.Int("rows", out.Len()),
		slog.Int("raw_rows", raw.Len()))

	if !daily {
		return out.Drop("start_date")
	}
	res, err := Resample(out, ResampleConfig{
		GroupBy:     []string{sources.ISOColumn},
		Fill:        []string{DailyAvgColumn},
		StartColumn: "start_date",
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sources.EconomistName, err)
	}
	return res, nil
}

// Reload forces the raw source to fetch again
func (e *Economist) Reload(ctx context.Context) error {
	if r, ok := e.raw.(sources.Reloader); ok {
		return r.Reload(ctx)
	}
	return nil
}
