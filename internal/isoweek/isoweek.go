// Package isoweek converts ISO-8601 (year, week) pairs to calendar dates.
// Weeks start on Monday; week 1 is the week holding the year's first
// Thursday, so it may begin in late December of the previous year.
package isoweek

import (
	"fmt"
	"time"
)

// FirstDay returns the Monday of ISO week `week` of `year`
func FirstDay(year, week int) time.Time {
	// January 4th always falls in week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7 // days since Monday
	monday := jan4.AddDate(0, 0, -offset)
	return monday.AddDate(0, 0, 7*(week-1))
}

// LastDay returns the Sunday closing ISO week `week` of `year`
func LastDay(year, week int) time.Time {
	return FirstDay(year, week).AddDate(0, 0, 6)
}

// WeeksInYear returns 52 or 53
func WeeksInYear(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// Validate reports whether week is a valid ISO week number for year
func Validate(year, week int) error {
	if week < 1 || week > WeeksInYear(year) {
		return fmt.Errorf("week %d out of range for %d (1-%d)", week, year, WeeksInYear(year))
	}
	return nil
}
