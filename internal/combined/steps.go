package combined

import (
	"context"
	"errors"
	"fmt"

	"covid19datasets/internal/interventions"
	"covid19datasets/internal/mortality"
	"covid19datasets/internal/operations"
	"covid19datasets/internal/sources"
	"covid19datasets/internal/table"
)

// Build step IDs, in execution order
const (
	StepInterventions = "interventions"
	StepCases         = "cases"
	StepMobility      = "mobility"
	StepDemographics  = "demographics"
	StepReference     = "reference"
	StepMortality     = "mortality"
	StepIndex         = "index"
)

// tableKey holds the growing combined table in the operation context
const tableKey = "combined_table"

// Columns removed from each source before it is joined
var (
	PolicyDropColumns = []string{"ConfirmedCases", "ConfirmedDeaths"}
	CasesDropColumns  = []string{"tests_units", "location"}
	AgesDropColumns   = []string{"Entity", "Year"}
	// sparse or duplicated reference indicators
	ReferenceDropColumns = []string{
		"country",
		"Smoking prevalence, females (% of adults)",
		"Smoking prevalence, males (% of adults)",
		"Diabetes (% of population ages 20 to 79)",
	}
)

var (
	dateKey    = []string{sources.ISOColumn, sources.DateColumn}
	countryKey = []string{sources.ISOColumn}
)

func (d *Dataset) registry() (*operations.Registry, error) {
	return operations.NewRegistry(
		operations.NewStep(StepInterventions, "Merge policies and masks", d.mergeInterventions),
		d.joinStep(StepCases, "Join case counts", d.sources.Cases, dateKey, CasesDropColumns, true),
		d.joinStep(StepMobility, "Join mobility", d.sources.Mobility, dateKey, nil, false),
		d.joinStep(StepDemographics, "Join median ages", d.sources.MedianAges, countryKey, AgesDropColumns, false),
		d.joinStep(StepReference, "Join reference indicators", d.sources.Reference, countryKey, ReferenceDropColumns, false),
		operations.NewStep(StepMortality, "Join excess mortality", d.joinMortality, tableKey),
		operations.NewStep(StepIndex, "Index by country and date", indexCombined, tableKey),
	)
}

func (d *Dataset) mergeInterventions(ctx context.Context, state *operations.OperationState) (int, error) {
	policies, err := d.sources.Policies.GetData(ctx, false)
	if err != nil {
		return 0, err
	}
	if policies, err = policies.Drop(PolicyDropColumns...); err != nil {
		return 0, fmt.Errorf("%s: %w", d.sources.Policies.Name(), err)
	}
	masks, err := d.sources.Masks.GetData(ctx, false)
	if err != nil {
		return 0, err
	}
	if masks, err = interventions.PrepareMasks(masks); err != nil {
		return 0, err
	}
	merged, err := interventions.Merge(policies, masks)
	if err != nil {
		return 0, err
	}
	state.SetContext(tableKey, merged)
	return merged.Len(), nil
}

// joinStep left-joins one source onto the combined table on keys after
// dropping the listed columns. With zeroFill, the joined source's numeric
// columns are set to 0 where the source has no row.
func (d *Dataset) joinStep(id, name string, src sources.Source, keys, drop []string, zeroFill bool) operations.Step {
	return operations.NewStep(id, name, func(ctx context.Context, state *operations.OperationState) (int, error) {
		anchor, err := current(state)
		if err != nil {
			return 0, err
		}
		right, err := src.GetData(ctx, false)
		if err != nil {
			return 0, err
		}
		if len(drop) > 0 {
			if right, err = right.Drop(drop...); err != nil {
				return 0, fmt.Errorf("%s: %w", src.Name(), err)
			}
		}
		joined, err := anchor.LeftJoin(right, keys...)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", src.Name(), err)
		}
		if fill := floatColumns(right, keys); zeroFill && len(fill) > 0 {
			if joined, err = joined.FillMissing(0, fill...); err != nil {
				return 0, fmt.Errorf("%s: %w", src.Name(), err)
			}
		}
		state.SetContext(tableKey, joined)
		return joined.Len(), nil
	}, tableKey)
}

func (d *Dataset) joinMortality(ctx context.Context, state *operations.OperationState) (int, error) {
	anchor, err := current(state)
	if err != nil {
		return 0, err
	}
	eurostat, err := d.sources.Eurostat.GetData(ctx, true)
	if err != nil {
		return 0, err
	}
	economist, err := d.sources.Economist.GetData(ctx, true)
	if err != nil {
		return 0, err
	}
	excess, err := mortality.Reconcile(
		mortality.EconomistContribution(economist, d.economistExclude),
		mortality.EurostatContribution(eurostat, d.eurostatExclude),
	)
	if err != nil {
		return 0, err
	}
	joined, err := anchor.LeftJoin(excess, dateKey...)
	if err != nil {
		return 0, fmt.Errorf("excess mortality: %w", err)
	}
	state.SetContext(tableKey, joined)
	return joined.Len(), nil
}

func indexCombined(_ context.Context, state *operations.OperationState) (int, error) {
	t, err := current(state)
	if err != nil {
		return 0, err
	}
	indexed, err := t.Index(dateKey...)
	if err != nil {
		return 0, err
	}
	state.SetContext(tableKey, indexed)
	return indexed.Len(), nil
}

func current(state *operations.OperationState) (*table.Table, error) {
	v, _ := state.GetContext(tableKey)
	t, ok := v.(*table.Table)
	if !ok || t == nil {
		return nil, errors.New("combined table not initialised")
	}
	return t, nil
}

func floatColumns(t *table.Table, exclude []string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, k := range exclude {
		skip[k] = true
	}
	var cols []string
	for _, c := range t.Columns() {
		if c.Kind == table.Float && !skip[c.Name] {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// classify types a build failure for callers and the HTTP layer
func classify(err error) operations.ErrorType {
	switch {
	case errors.Is(err, sources.ErrUpstreamUnavailable):
		return operations.ErrorTypeUpstream
	case errors.Is(err, mortality.ErrDuplicateCoverage),
		errors.Is(err, table.ErrDuplicateKey),
		errors.Is(err, table.ErrMissingKey),
		errors.Is(err, table.ErrColumnConflict),
		errors.Is(err, table.ErrColumnNotFound),
		errors.Is(err, sources.ErrSchemaMismatch):
		return operations.ErrorTypeIntegrity
	}
	return operations.ErrorTypeExecution
}
