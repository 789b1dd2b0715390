package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"covid19datasets/internal/combined"
	"covid19datasets/internal/config"
	"covid19datasets/internal/infrastructure"
	"covid19datasets/internal/mortality"
	"covid19datasets/internal/sources"
)

// Runtime is the ambient stack shared by every binary
type Runtime struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.PipelineMetrics

	logCloser io.Closer
}

// NewRuntime initializes logging and OpenTelemetry from cfg
func NewRuntime(cfg *config.Config) (*Runtime, error) {
	logger, closer, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	providers, err := infrastructure.InitTelemetry(cfg.Telemetry, logger)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.NewPipelineMetrics(providers.Meter)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	return &Runtime{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
		logCloser:     closer,
	}, nil
}

// Close flushes telemetry and releases the log file
func (rt *Runtime) Close(ctx context.Context) error {
	var err error
	if rt.OTelProviders != nil {
		err = rt.OTelProviders.Shutdown(ctx)
	}
	if cerr := rt.logCloser.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Pipeline is the wired set of sources, the combined dataset and the
// excess mortality providers
type Pipeline struct {
	Sources   *sources.Set
	Dataset   *combined.Dataset
	HMD       *mortality.Provider
	Eurostat  sources.Source
	Economist sources.Source
}

// NewPipeline creates the adapters and the dataset. Nothing is fetched
// until the dataset or a provider is first asked for data.
func (rt *Runtime) NewPipeline() *Pipeline {
	cfg := rt.Config
	fetcher := sources.NewFetcher(cfg.Fetch, infrastructure.WithComponent(rt.Logger, "fetcher"))
	set := sources.NewSet(cfg, fetcher,
		sources.WithLogger(rt.Logger),
		sources.WithMetrics(rt.Metrics),
	)

	mortalityOpts := []mortality.Option{
		mortality.WithLogger(rt.Logger),
		mortality.WithMetrics(rt.Metrics),
	}
	srcs := combined.FromSet(set, cfg.Mortality, mortalityOpts...)
	window := mortality.Window{CurrentYear: cfg.Mortality.CurrentYear, ReferenceYears: cfg.Mortality.ReferenceYears}

	return &Pipeline{
		Sources: set,
		Dataset: combined.New(srcs,
			combined.WithLogger(rt.Logger),
			combined.WithTracer(rt.OTelProviders.Tracer),
			combined.WithMetrics(rt.Metrics),
			combined.WithExclusions(cfg.Mortality.EconomistExclude, cfg.Mortality.EurostatExclude),
		),
		HMD:       mortality.NewHMD(set.HMD, window, mortalityOpts...),
		Eurostat:  srcs.Eurostat,
		Economist: srcs.Economist,
	}
}

// Providers returns the excess mortality providers in a fixed order
func (p *Pipeline) Providers() []sources.Source {
	return []sources.Source{p.HMD, p.Eurostat, p.Economist}
}

// Provider returns the excess mortality provider called name
func (p *Pipeline) Provider(name string) (sources.Source, bool) {
	for _, src := range p.Providers() {
		if src.Name() == name {
			return src, true
		}
	}
	return nil, false
}
