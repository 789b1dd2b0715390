package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Sources   SourcesConfig   `yaml:"sources" envconfig:"SOURCES"`
	Fetch     FetchConfig     `yaml:"fetch" envconfig:"FETCH"`
	Mortality MortalityConfig `yaml:"mortality" envconfig:"MORTALITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Postgres  PostgresConfig  `yaml:"postgres" envconfig:"POSTGRES"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
}

// SourcesConfig holds the location of every upstream dataset. A location is
// either an http(s) URL or a local file path.
type SourcesConfig struct {
	OxfordPolicy   string `yaml:"oxford_policy" envconfig:"OXFORD_POLICY" validate:"required"`
	MaskPolicies   string `yaml:"mask_policies" envconfig:"MASK_POLICIES" validate:"required"`
	OWIDCases      string `yaml:"owid_cases" envconfig:"OWID_CASES" validate:"required"`
	OWIDMedianAges string `yaml:"owid_median_ages" envconfig:"OWID_MEDIAN_AGES" validate:"required"`
	WorldBank      string `yaml:"world_bank" envconfig:"WORLD_BANK" validate:"required"`
	Mobility       string `yaml:"mobility" envconfig:"MOBILITY" validate:"required"`
	HMD            string `yaml:"hmd" envconfig:"HMD" validate:"required"`
	Eurostat       string `yaml:"eurostat" envconfig:"EUROSTAT" validate:"required"`
	Economist      string `yaml:"economist" envconfig:"ECONOMIST" validate:"required"`
}

// FetchConfig controls how upstream resources are read
type FetchConfig struct {
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND" validate:"gt=0"`
	Burst             int           `yaml:"burst" envconfig:"BURST" validate:"min=1"`
	UserAgent         string        `yaml:"user_agent" envconfig:"USER_AGENT"`
}

// MortalityConfig holds the excess-mortality parameters
type MortalityConfig struct {
	CurrentYear      int      `yaml:"current_year" envconfig:"CURRENT_YEAR" validate:"min=1900,max=2100"`
	ReferenceYears   int      `yaml:"reference_years" envconfig:"REFERENCE_YEARS" validate:"min=1,max=30"`
	EconomistExclude []string `yaml:"economist_exclude" envconfig:"ECONOMIST_EXCLUDE" validate:"dive,len=3,uppercase"`
	EurostatExclude  []string `yaml:"eurostat_exclude" envconfig:"EUROSTAT_EXCLUDE" validate:"dive,len=3,uppercase"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	Prewarm         bool            `yaml:"prewarm" envconfig:"PREWARM"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"required_if=Enabled true"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"required_if=Enabled true"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"oneof=prometheus none"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"min=0,max=1"`
}

// PostgresConfig configures the optional database sink. An empty URL
// disables it.
type PostgresConfig struct {
	URL      string `yaml:"url" envconfig:"URL"`
	Table    string `yaml:"table" envconfig:"TABLE" validate:"required_with=URL"`
	MaxConns int    `yaml:"max_conns" envconfig:"MAX_CONNS"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	ExportDir string `yaml:"export_dir" envconfig:"EXPORT_DIR" validate:"required"`
}

// Load builds the configuration from defaults, then the YAML file at path
// (or the first file found in the usual locations when path is empty),
// then environment variables prefixed with EnvPrefix. The result is
// validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file
// keep their current value
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks the configuration against its struct constraints
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	for _, location := range configLocations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Sources: SourcesConfig{
			OxfordPolicy:   DefaultOxfordPolicyURL,
			MaskPolicies:   "data/mask_policies.csv",
			OWIDCases:      DefaultOWIDCasesURL,
			OWIDMedianAges: DefaultOWIDMedianAgesURL,
			WorldBank:      "data/world_bank_indicators.xlsx",
			Mobility:       "data/mobility.csv",
			HMD:            DefaultHMDURL,
			Eurostat:       DefaultEurostatURL,
			Economist:      DefaultEconomistURL,
		},
		Fetch: FetchConfig{
			Timeout:           DefaultHTTPTimeout,
			RequestsPerSecond: 2,
			Burst:             1,
			UserAgent:         AppName + "/" + AppVersion,
		},
		Mortality: MortalityConfig{
			CurrentYear:      2020,
			ReferenceYears:   5,
			EconomistExclude: []string{"AUT", "BEL", "CHE", "DNK", "NOR"},
			EurostatExclude:  []string{"ESP", "PRT", "SWE"},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "stdout",
			FilePath: "logs/app.log",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			Prewarm:         true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   10,
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
		Postgres: PostgresConfig{
			Table:    "combined",
			MaxConns: 4,
		},
		Paths: PathsConfig{
			ExportDir: "data/exports",
		},
	}
}
