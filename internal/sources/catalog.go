package sources

import (
	"fmt"
	"strings"

	"covid19datasets/internal/table"
)

// Source names
const (
	OxfordPolicyName   = "oxford_policy"
	MaskPoliciesName   = "mask_policies"
	OWIDCasesName      = "owid_cases"
	OWIDMedianAgesName = "owid_median_ages"
	WorldBankName      = "world_bank"
	MobilityName       = "mobility"
	HMDName            = "hmd"
	EurostatName       = "eurostat"
	EconomistName      = "economist"
)

// OxfordPolicy reads the Oxford COVID-19 Government Response Tracker.
// Sub-national rows are removed so that (ISO, DATE) is unique.
func OxfordPolicy() Spec {
	indicators := []string{
		"C1_School closing",
		"C2_Workplace closing",
		"C3_Cancel public events",
		"C4_Restrictions on gatherings",
		"C5_Close public transport",
		"C6_Stay at home requirements",
		"C7_Restrictions on internal movement",
		"C8_International travel controls",
		"E1_Income support",
		"E2_Debt/contract relief",
		"H1_Public information campaigns",
		"H2_Testing policy",
		"H3_Contact tracing",
		"StringencyIndex",
		"ConfirmedCases",
		"ConfirmedDeaths",
	}
	schema := Schema{
		Same("CountryName", table.String),
		{Upstream: "CountryCode", Canonical: ISOColumn, Kind: table.String},
		Same("RegionName", table.String),
		{Upstream: "Date", Canonical: DateColumn, Kind: table.Date, Layout: "20060102"},
	}
	for _, name := range indicators {
		schema = append(schema, Same(name, table.Float))
	}

	return Spec{
		Name:    OxfordPolicyName,
		Decoder: CSVDecoder{},
		Schema:  schema,
		Transform: func(t *table.Table) (*table.Table, error) {
			national := t.Filter(func(r table.Row) bool {
				return r.Get("RegionName") == nil
			})
			return national.Drop("RegionName")
		},
	}
}

// MaskPolicies reads the curated mask-mandate stringency table
func MaskPolicies() Spec {
	return Spec{
		Name:    MaskPoliciesName,
		Decoder: CSVDecoder{},
		Schema: Schema{
			Same("Country", table.String),
			Same(ISOColumn, table.String),
			Same(DateColumn, table.Date),
			Same("Stringency", table.Float),
			Same("Source", table.String),
		},
	}
}

// OWIDCases reads the Our World in Data case, death and test series.
// OWID aggregate rows (World, continents) are removed.
func OWIDCases() Spec {
	schema := Schema{
		{Upstream: "iso_code", Canonical: ISOColumn, Kind: table.String},
		Same("location", table.String),
		{Upstream: "date", Canonical: DateColumn, Kind: table.Date},
	}
	for _, name := range []string{
		"total_cases", "new_cases",
		"total_deaths", "new_deaths",
		"total_cases_per_million", "new_cases_per_million",
		"total_deaths_per_million", "new_deaths_per_million",
		"total_tests", "new_tests",
		"total_tests_per_thousand", "new_tests_per_thousand",
	} {
		schema = append(schema, Same(name, table.Float))
	}
	schema = append(schema, Same("tests_units", table.String))

	return Spec{
		Name:      OWIDCasesName,
		Decoder:   CSVDecoder{},
		Schema:    schema,
		Transform: countriesOnly,
	}
}

// OWIDMedianAges reads the OWID median-age grapher export and keeps, for
// each country, the latest estimate not after year
func OWIDMedianAges(year int) Spec {
	return Spec{
		Name:    OWIDMedianAgesName,
		Decoder: CSVDecoder{},
		// the value column is named after the publishing dataset
		Prepare: func(raw *table.Table) (*table.Table, error) {
			names := raw.Names()
			if len(names) < 4 {
				return nil, fmt.Errorf("expected 4 columns, got %d: %w", len(names), ErrSchemaMismatch)
			}
			return raw.Rename(map[string]string{names[len(names)-1]: "median_age"})
		},
		Schema: Schema{
			Same("Entity", table.String),
			{Upstream: "Code", Canonical: ISOColumn, Kind: table.String},
			Same("Year", table.Float),
			Same("median_age", table.Float),
		},
		Transform: func(t *table.Table) (*table.Table, error) {
			t, err := countriesOnly(t)
			if err != nil {
				return nil, err
			}
			return latestPerCountry(t, "Year", float64(year))
		},
	}
}

// Mobility reads national mobility indices
func Mobility() Spec {
	schema := Schema{
		Same(ISOColumn, table.String),
		{Upstream: "date", Canonical: DateColumn, Kind: table.Date},
	}
	for _, name := range []string{
		"retail_and_recreation",
		"grocery_and_pharmacy",
		"parks",
		"transit_stations",
		"workplaces",
		"residential",
	} {
		schema = append(schema, Mapping{
			Upstream:  name + "_percent_change_from_baseline",
			Canonical: "mobility_" + name,
			Kind:      table.Float,
		})
	}
	return Spec{
		Name:      MobilityName,
		Decoder:   CSVDecoder{},
		Schema:    schema,
		Transform: countriesOnly,
	}
}

// HMD reads the Human Mortality Database short-term mortality fluctuations
// file. Death-rate, split and forecast flag columns are not exposed.
func HMD() Spec {
	return Spec{
		Name:    HMDName,
		Decoder: CSVDecoder{SkipRows: 2},
		Schema: Schema{
			{Upstream: "CountryCode", Canonical: ISOColumn, Kind: table.String},
			Same("Year", table.Float),
			Same("Week", table.Float),
			Same("Sex", table.String),
			Same("D0_14", table.Float),
			Same("D15_64", table.Float),
			Same("D65_74", table.Float),
			Same("D75_84", table.Float),
			Same("D85p", table.Float),
			Same("DTotal", table.Float),
		},
	}
}

// Economist reads The Economist excess-deaths compilation
func Economist() Spec {
	return Spec{
		Name:    EconomistName,
		Decoder: CSVDecoder{},
		Schema: Schema{
			Same("country", table.String),
			Same("region", table.String),
			{Upstream: "iso3c", Canonical: ISOColumn, Kind: table.String},
			Same("start_date", table.Date),
			Same("end_date", table.Date),
			Same("excess_deaths", table.Float),
		},
	}
}

// countriesOnly removes rows without a three-letter country code, such as
// OWID_WRL or blank-coded regional aggregates
func countriesOnly(t *table.Table) (*table.Table, error) {
	return t.Filter(func(r table.Row) bool {
		iso, ok := r.Text(ISOColumn)
		return ok && isAlpha3(iso)
	}), nil
}

func isAlpha3(code string) bool {
	if len(code) != 3 {
		return false
	}
	return strings.ToUpper(code) == code && !strings.ContainsAny(code, "_0123456789")
}

// latestPerCountry keeps one row per ISO: the one with the largest value
// of col not exceeding limit
func latestPerCountry(t *table.Table, col string, limit float64) (*table.Table, error) {
	groups, err := t.GroupBy(ISOColumn)
	if err != nil {
		return nil, err
	}
	var keep []int
	for _, g := range groups {
		best, bestVal := -1, 0.0
		for _, i := range g.Rows {
			v, ok := t.Float(i, col)
			if !ok || v > limit {
				continue
			}
			if best < 0 || v > bestVal {
				best, bestVal = i, v
			}
		}
		if best >= 0 {
			keep = append(keep, best)
		}
	}
	return t.Take(keep), nil
}
