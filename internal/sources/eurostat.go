package sources

import (
	"fmt"
	"strconv"
	"strings"

	"covid19datasets/internal/isoweek"
	"covid19datasets/internal/table"
)

// eurostatGeo maps Eurostat country codes (ISO alpha-2, except EL and UK)
// to ISO alpha-3
var eurostatGeo = map[string]string{
	"AD": "AND", "AL": "ALB", "AM": "ARM", "AT": "AUT", "BE": "BEL",
	"BG": "BGR", "CH": "CHE", "CY": "CYP", "CZ": "CZE", "DE": "DEU",
	"DK": "DNK", "EE": "EST", "EL": "GRC", "ES": "ESP", "FI": "FIN",
	"FR": "FRA", "GE": "GEO", "HR": "HRV", "HU": "HUN", "IE": "IRL",
	"IS": "ISL", "IT": "ITA", "LI": "LIE", "LT": "LTU", "LU": "LUX",
	"LV": "LVA", "ME": "MNE", "MT": "MLT", "NL": "NLD", "NO": "NOR",
	"PL": "POL", "PT": "PRT", "RO": "ROU", "RS": "SRB", "SE": "SWE",
	"SI": "SVN", "SK": "SVK", "UK": "GBR",
}

// Eurostat reads weekly deaths by sex and age group from an SDMX-CSV
// export. Rows are country level only; TIME_PERIOD ("2020-W07") is split
// into Year and Week and the age total is labelled "Total".
func Eurostat() Spec {
	return Spec{
		Name:    EurostatName,
		Decoder: CSVDecoder{},
		Schema: Schema{
			Same("geo", table.String),
			{Upstream: "sex", Canonical: "SEX", Kind: table.String},
			{Upstream: "age", Canonical: "AGE", Kind: table.String},
			Same("TIME_PERIOD", table.String),
			{Upstream: "OBS_VALUE", Canonical: "deaths", Kind: table.Float},
		},
		Transform: eurostatWeekly,
	}
}

func eurostatWeekly(t *table.Table) (*table.Table, error) {
	out := table.New(
		table.Column{Name: ISOColumn, Kind: table.String},
		table.Column{Name: "Year", Kind: table.Float},
		table.Column{Name: "Week", Kind: table.Float},
		table.Column{Name: "SEX", Kind: table.String},
		table.Column{Name: "AGE", Kind: table.String},
		table.Column{Name: "deaths", Kind: table.Float},
	)
	var err error
	t.Each(func(r table.Row) {
		if err != nil {
			return
		}
		geo, _ := r.Text("geo")
		iso, ok := eurostatGeo[geo]
		if !ok {
			return
		}
		period, _ := r.Text("TIME_PERIOD")
		year, week, perr := ParseWeek(period)
		if perr != nil {
			return
		}
		age := r.Get("AGE")
		if age == "TOTAL" {
			age = "Total"
		}
		err = out.Append(iso, year, week, r.Get("SEX"), age, r.Get("deaths"))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParseWeek parses an ISO week label of the form "2020-W07" (or "2020W07")
func ParseWeek(label string) (year, week int, err error) {
	y, w, ok := strings.Cut(label, "W")
	if !ok {
		return 0, 0, fmt.Errorf("week label %q: missing W", label)
	}
	year, err = strconv.Atoi(strings.TrimSuffix(y, "-"))
	if err != nil {
		return 0, 0, fmt.Errorf("week label %q: %w", label, err)
	}
	week, err = strconv.Atoi(w)
	if err != nil {
		return 0, 0, fmt.Errorf("week label %q: %w", label, err)
	}
	if err := isoweek.Validate(year, week); err != nil {
		return 0, 0, err
	}
	return year, week, nil
}
