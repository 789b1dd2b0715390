package sources

import (
	"fmt"
	"regexp"

	"covid19datasets/internal/table"
)

// WorldBankSeries are the DataBank indicators exposed as columns, in order
var WorldBankSeries = []string{
	"Population, total",
	"Population density (people per sq. km of land area)",
	"Population ages 65 and above (% of total population)",
	"Urban population (% of total population)",
	"GDP per capita (current US$)",
	"Current health expenditure (% of GDP)",
	"Hospital beds (per 1,000 people)",
	"Physicians (per 1,000 people)",
	"Smoking prevalence, females (% of adults)",
	"Smoking prevalence, males (% of adults)",
	"Diabetes (% of population ages 20 to 79)",
}

// worldBankAggregates are DataBank region and income-group codes
var worldBankAggregates = map[string]bool{
	"AFE": true, "AFW": true, "ARB": true, "CEB": true, "CSS": true,
	"EAP": true, "EAR": true, "EAS": true, "ECA": true, "ECS": true,
	"EMU": true, "EUU": true, "FCS": true, "HIC": true, "HPC": true,
	"IBD": true, "IBT": true, "IDA": true, "IDB": true, "IDX": true,
	"LAC": true, "LCN": true, "LDC": true, "LIC": true, "LMC": true,
	"LMY": true, "LTE": true, "MEA": true, "MIC": true, "MNA": true,
	"NAC": true, "OED": true, "OSS": true, "PRE": true, "PSS": true,
	"PST": true, "SAS": true, "SSA": true, "SSF": true, "SST": true,
	"TEA": true, "TEC": true, "TLA": true, "TMN": true, "TSA": true,
	"TSS": true, "UMC": true, "WLD": true, "INX": true,
}

var yearColumn = regexp.MustCompile(`^\d{4} \[YR\d{4}\]$`)

// WorldBank reads a DataBank XLSX export (one row per country and series,
// one column per year) and pivots it to one row per country holding the
// most recent value of every series in WorldBankSeries
func WorldBank() Spec {
	return Spec{
		Name:    WorldBankName,
		Decoder: XLSXDecoder{},
		Prepare: pivotWorldBank,
		Schema:  worldBankSchema(),
	}
}

func worldBankSchema() Schema {
	schema := Schema{
		Same(ISOColumn, table.String),
		Same("country", table.String),
	}
	for _, s := range WorldBankSeries {
		schema = append(schema, Same(s, table.Float))
	}
	return schema
}

// pivotWorldBank turns the long DataBank layout into a wide text table
func pivotWorldBank(raw *table.Table) (*table.Table, error) {
	for _, name := range []string{"Country Name", "Country Code", "Series Name"} {
		if !raw.Has(name) {
			return nil, fmt.Errorf("column %q: %w", name, ErrSchemaMismatch)
		}
	}

	// year columns in sheet order; DataBank lists oldest first
	var years []string
	for _, name := range raw.Names() {
		if yearColumn.MatchString(name) {
			years = append(years, name)
		}
	}

	wanted := make(map[string]int, len(WorldBankSeries))
	cols := []table.Column{
		{Name: ISOColumn, Kind: table.String},
		{Name: "country", Kind: table.String},
	}
	for i, s := range WorldBankSeries {
		wanted[s] = i
		cols = append(cols, table.Column{Name: s, Kind: table.String})
	}

	out := table.New(cols...)
	rows := make(map[string][]any)
	var order []string
	for i := 0; i < raw.Len(); i++ {
		code, _ := raw.Text(i, "Country Code")
		series, _ := raw.Text(i, "Series Name")
		if !isAlpha3(code) || worldBankAggregates[code] {
			continue
		}
		row, ok := rows[code]
		if !ok {
			name, _ := raw.Text(i, "Country Name")
			row = make([]any, len(cols))
			row[0], row[1] = code, name
			for j := 2; j < len(row); j++ {
				row[j] = ""
			}
			rows[code] = row
			order = append(order, code)
		}
		if at, ok := wanted[series]; ok {
			row[at+2] = latestValue(raw, i, years)
		}
	}

	for _, code := range order {
		if err := out.Append(rows[code]...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// latestValue returns the most recent year cell holding a number. DataBank
// writes ".." for missing values.
func latestValue(raw *table.Table, i int, years []string) string {
	for j := len(years) - 1; j >= 0; j-- {
		v, _ := raw.Text(i, years[j])
		if v != "" && v != ".." {
			return v
		}
	}
	return ""
}
