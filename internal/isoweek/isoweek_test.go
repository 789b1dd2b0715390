package isoweek

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLastDay(t *testing.T) {
	tests := []struct {
		name string
		year int
		week int
		want string
	}{
		{"2020 week 1 starts in December", 2020, 1, "2020-01-05"},
		{"2020 week 10", 2020, 10, "2020-03-08"},
		{"2020 week 53", 2020, 53, "2021-01-03"},
		{"2021 week 1", 2021, 1, "2021-01-10"},
		{"2015 week 1", 2015, 1, "2015-01-04"},
		{"2019 week 52", 2019, 52, "2019-12-29"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LastDay(tt.year, tt.week)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
			assert.Equal(t, time.Sunday, got.Weekday())

			y, w := got.ISOWeek()
			assert.Equal(t, tt.year, y)
			assert.Equal(t, tt.week, w)
		})
	}
}

func TestFirstDay(t *testing.T) {
	assert.Equal(t, "2019-12-30", FirstDay(2020, 1).Format("2006-01-02"))
	assert.Equal(t, time.Monday, FirstDay(2020, 23).Weekday())
}

func TestWeeksInYear(t *testing.T) {
	assert.Equal(t, 53, WeeksInYear(2020))
	assert.Equal(t, 52, WeeksInYear(2019))
	assert.Equal(t, 53, WeeksInYear(2015))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(2020, 53))
	assert.Error(t, Validate(2019, 53))
	assert.Error(t, Validate(2020, 0))
}
