package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputName(t *testing.T) {
	tests := []struct {
		provider string
		daily    bool
		want     string
	}{
		{"hmd", false, "excess_mortality_hmd_weekly"},
		{"eurostat", true, "excess_mortality_eurostat_daily"},
		{"economist", false, "excess_mortality_economist_weekly"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, outputName(tt.provider, tt.daily))
	}
}
