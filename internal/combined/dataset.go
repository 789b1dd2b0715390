// Package combined assembles the country-by-date table joining every
// upstream source.
package combined

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"

	"covid19datasets/internal/config"
	"covid19datasets/internal/infrastructure"
	"covid19datasets/internal/mortality"
	"covid19datasets/internal/operations"
	"covid19datasets/internal/sources"
	"covid19datasets/internal/table"
)

// ErrNotLoaded is returned when the table is requested before any
// successful build
var ErrNotLoaded = errors.New("combined table not loaded")

// Sources are the inputs of a build. Eurostat and Economist must already
// produce excess mortality (see mortality.Provider and mortality.Economist).
type Sources struct {
	Policies   sources.Source
	Masks      sources.Source
	Cases      sources.Source
	Mobility   sources.Source
	MedianAges sources.Source
	Reference  sources.Source
	Eurostat   sources.Source
	Economist  sources.Source
}

// FromSet wires the upstream adapters and the two mortality providers
// feeding the combined table
func FromSet(set *sources.Set, cfg config.MortalityConfig, opts ...mortality.Option) Sources {
	w := mortality.Window{CurrentYear: cfg.CurrentYear, ReferenceYears: cfg.ReferenceYears}
	return Sources{
		Policies:   set.OxfordPolicy,
		Masks:      set.MaskPolicies,
		Cases:      set.OWIDCases,
		Mobility:   set.Mobility,
		MedianAges: set.OWIDMedianAges,
		Reference:  set.WorldBank,
		Eurostat:   mortality.NewEurostat(set.Eurostat, w, opts...),
		Economist:  mortality.NewEconomist(set.Economist, opts...),
	}
}

func (s Sources) all() []sources.Source {
	return []sources.Source{
		s.Policies, s.Masks, s.Cases, s.Mobility,
		s.MedianAges, s.Reference, s.Eurostat, s.Economist,
	}
}

// Option configures a Dataset
type Option func(*Dataset)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dataset) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithTracer sets the tracer for build spans
func WithTracer(t trace.Tracer) Option {
	return func(d *Dataset) {
		if t != nil {
			d.tracer = t
		}
	}
}

// WithMetrics sets the build instruments
func WithMetrics(m *infrastructure.PipelineMetrics) Option {
	return func(d *Dataset) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithExclusions sets the countries each mortality provider leaves to
// the other
func WithExclusions(economist, eurostat []string) Option {
	return func(d *Dataset) {
		d.economistExclude = economist
		d.eurostatExclude = eurostat
	}
}

// Dataset owns the combined table. The table is built on the first Load
// and reused until a forced reload.
type Dataset struct {
	sources          Sources
	economistExclude []string
	eurostatExclude  []string

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics

	group singleflight.Group

	mu        sync.RWMutex
	data      *table.Table
	lastBuild *operations.Summary
}

// New creates a dataset over srcs
func New(srcs Sources, opts ...Option) *Dataset {
	defaults := config.Default().Mortality
	d := &Dataset{
		sources:          srcs,
		economistExclude: defaults.EconomistExclude,
		eurostatExclude:  defaults.EurostatExclude,
		logger:           slog.Default(),
		tracer:           noop.NewTracerProvider().Tracer(infrastructure.TracerName),
		metrics:          infrastructure.NoopMetrics(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = infrastructure.WithComponent(d.logger, "combined")
	return d
}

// Load returns the combined table, building it when none has been built
// yet or when forceLoad is set. A forced load makes every source fetch
// again. Concurrent calls share one build, run with the first caller's
// context. A failed build leaves the previous table in place.
func (d *Dataset) Load(ctx context.Context, forceLoad bool) (*table.Table, error) {
	if !forceLoad {
		if t := d.Data(); t != nil {
			return t, nil
		}
	}

	key := "load"
	if forceLoad {
		key = "reload"
	}
	v, err, _ := d.group.Do(key, func() (any, error) {
		if !forceLoad {
			if t := d.Data(); t != nil {
				return t, nil
			}
		}
		return d.build(ctx, forceLoad)
	})
	if err != nil {
		return nil, err
	}
	return v.(*table.Table), nil
}

// Data returns the last successfully built table, nil before the first
func (d *Dataset) Data() *table.Table {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data
}

// Table returns the last successfully built table or ErrNotLoaded
func (d *Dataset) Table() (*table.Table, error) {
	if t := d.Data(); t != nil {
		return t, nil
	}
	return nil, ErrNotLoaded
}

// LastBuild summarises the most recent build attempt, nil if none ran
func (d *Dataset) LastBuild() *operations.Summary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.lastBuild == nil {
		return nil
	}
	sum := *d.lastBuild
	return &sum
}

func (d *Dataset) build(ctx context.Context, reload bool) (*table.Table, error) {
	buildID := uuid.NewString()
	ctx = infrastructure.WithBuildID(infrastructure.EnsureTraceID(ctx), buildID)
	ctx, span := d.tracer.Start(ctx, "combined.build",
		trace.WithAttributes(
			attribute.String("build.id", buildID),
			attribute.Bool("build.reload", reload),
		))
	defer span.End()

	start := time.Now()
	state := operations.NewOperationState(buildID)
	d.logger.InfoContext(ctx, "building combined table", slog.Bool("reload", reload))

	t, err := d.run(ctx, state, reload)
	if err != nil {
		state.Fail(err)
	}
	d.metrics.RecordBuild(ctx, time.Since(start), err == nil)

	d.mu.Lock()
	sum := state.Summary()
	d.lastBuild = &sum
	if err == nil {
		d.data = t
	}
	d.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.ErrorContext(ctx, "combined build failed",
			slog.String("error", err.Error()),
			slog.String("error_type", string(operations.GetErrorType(err))))
		return nil, err
	}

	span.SetAttributes(attribute.Int("build.rows", t.Len()))
	d.logger.InfoContext(ctx, "combined table built",
		slog.Int("rows", t.Len()),
		slog.Int("columns", len(t.Columns())),
		slog.Duration("duration", time.Since(start)))
	return t, nil
}

func (d *Dataset) run(ctx context.Context, state *operations.OperationState, reload bool) (*table.Table, error) {
	if reload {
		if err := d.reloadSources(ctx); err != nil {
			return nil, err
		}
	}

	reg, err := d.registry()
	if err != nil {
		return nil, err
	}
	runner := operations.NewRunner(reg,
		operations.WithTracer(d.tracer),
		operations.WithMetrics(d.metrics),
		operations.WithLogger(d.logger),
		operations.WithClassifier(classify),
	)
	if err := runner.Run(ctx, state); err != nil {
		return nil, err
	}
	return current(state)
}

func (d *Dataset) reloadSources(ctx context.Context) error {
	for _, src := range d.sources.all() {
		r, ok := src.(sources.Reloader)
		if !ok {
			continue
		}
		if err := r.Reload(ctx); err != nil {
			return operations.WrapError(err, "reload:"+src.Name(), classify)
		}
	}
	return nil
}
