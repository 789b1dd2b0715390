package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2020, cfg.Mortality.CurrentYear)
	assert.Equal(t, 5, cfg.Mortality.ReferenceYears)
	assert.Equal(t, []string{"ESP", "PRT", "SWE"}, cfg.Mortality.EurostatExclude)
	assert.Equal(t, []string{"AUT", "BEL", "CHE", "DNK", "NOR"}, cfg.Mortality.EconomistExclude)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		env         map[string]string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "file overrides defaults",
			file: `
sources:
  hmd: testdata/stmf.csv
fetch:
  timeout: 5s
mortality:
  current_year: 2021
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "testdata/stmf.csv", cfg.Sources.HMD)
				assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
				assert.Equal(t, 2021, cfg.Mortality.CurrentYear)
				// untouched keys keep defaults
				assert.Equal(t, DefaultOWIDCasesURL, cfg.Sources.OWIDCases)
				assert.Equal(t, 5, cfg.Mortality.ReferenceYears)
			},
		},
		{
			name: "environment overrides file",
			file: `
mortality:
  current_year: 2021
`,
			env: map[string]string{
				"C19_MORTALITY_CURRENT_YEAR":     "2022",
				"C19_MORTALITY_EUROSTAT_EXCLUDE": "ESP,PRT",
				"C19_SERVER_PORT":                "9090",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 2022, cfg.Mortality.CurrentYear)
				assert.Equal(t, []string{"ESP", "PRT"}, cfg.Mortality.EurostatExclude)
				assert.Equal(t, 9090, cfg.Server.Port)
			},
		},
		{
			name: "invalid exclusion code",
			env: map[string]string{
				"C19_MORTALITY_ECONOMIST_EXCLUDE": "AUT,be",
			},
			wantErr: true,
		},
		{
			name:    "invalid log level",
			file:    "logging:\n  level: verbose\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "sources: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeConfigFile(t, tt.file)

			cfg, err := Load(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

func TestValidateReportsField(t *testing.T) {
	cfg := Default()
	cfg.Sources.HMD = ""
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.Sources.HMD")
	assert.Contains(t, err.Error(), "Config.Server.Port")
}
