package sources

import (
	"context"
	"fmt"

	"covid19datasets/internal/config"
)

// Set holds one adapter per upstream dataset
type Set struct {
	OxfordPolicy   *Adapter
	MaskPolicies   *Adapter
	OWIDCases      *Adapter
	OWIDMedianAges *Adapter
	WorldBank      *Adapter
	Mobility       *Adapter
	HMD            *Adapter
	Eurostat       *Adapter
	Economist      *Adapter
}

// NewSet creates every adapter from configuration
func NewSet(cfg *config.Config, fetcher *Fetcher, opts ...Option) *Set {
	s := cfg.Sources
	return &Set{
		OxfordPolicy:   NewAdapter(OxfordPolicy(), s.OxfordPolicy, fetcher, opts...),
		MaskPolicies:   NewAdapter(MaskPolicies(), s.MaskPolicies, fetcher, opts...),
		OWIDCases:      NewAdapter(OWIDCases(), s.OWIDCases, fetcher, opts...),
		OWIDMedianAges: NewAdapter(OWIDMedianAges(cfg.Mortality.CurrentYear), s.OWIDMedianAges, fetcher, opts...),
		WorldBank:      NewAdapter(WorldBank(), s.WorldBank, fetcher, opts...),
		Mobility:       NewAdapter(Mobility(), s.Mobility, fetcher, opts...),
		HMD:            NewAdapter(HMD(), s.HMD, fetcher, opts...),
		Eurostat:       NewAdapter(Eurostat(), s.Eurostat, fetcher, opts...),
		Economist:      NewAdapter(Economist(), s.Economist, fetcher, opts...),
	}
}

// All returns the adapters in a fixed order
func (s *Set) All() []*Adapter {
	return []*Adapter{
		s.OxfordPolicy, s.MaskPolicies, s.OWIDCases, s.OWIDMedianAges,
		s.WorldBank, s.Mobility, s.HMD, s.Eurostat, s.Economist,
	}
}

// ReloadAll forces every adapter to fetch again, stopping at the first failure
func (s *Set) ReloadAll(ctx context.Context) error {
	for _, a := range s.All() {
		if err := a.Reload(ctx); err != nil {
			return fmt.Errorf("reload %s: %w", a.Name(), err)
		}
	}
	return nil
}
