package config

import "time"

// Application constants
const (
	AppName    = "covid19datasets"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable: C19_SERVER_PORT, ...
	EnvPrefix = "C19"

	DefaultHTTPTimeout = 2 * time.Minute
)

// Default upstream locations
const (
	DefaultOxfordPolicyURL   = "https://raw.githubusercontent.com/OxCGRT/covid-policy-tracker/master/data/OxCGRT_latest.csv"
	DefaultOWIDCasesURL      = "https://covid.ourworldindata.org/data/owid-covid-data.csv"
	DefaultOWIDMedianAgesURL = "https://ourworldindata.org/grapher/median-age.csv"
	DefaultHMDURL            = "https://www.mortality.org/Public/STMF/Outputs/stmf.csv"
	DefaultEurostatURL       = "https://ec.europa.eu/eurostat/api/dissemination/sdmx/2.1/data/demo_r_mwk_10/?format=SDMX-CSV"
	DefaultEconomistURL      = "https://raw.githubusercontent.com/TheEconomist/covid-19-excess-deaths-tracker/master/output-data/excess-deaths/all_weekly_excess_deaths.csv"
)

var configLocations = []string{
	"config.yaml",
	"configs/config.yaml",
	"../configs/config.yaml",
}
