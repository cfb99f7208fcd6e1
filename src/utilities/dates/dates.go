// Package dates holds the calendar-date helpers shared by the feed and
// analysis packages. All dates in this pipeline are day-resolution and
// normalized to midnight UTC so that subtraction yields whole days.
package dates

import (
	"errors"
	"strings"
	"time"
)

const layout = "2006-01-02"

// Parse accepts "YYYY-MM-DD" or any ISO timestamp with that prefix
// (e.g. "2025-01-06T00:00:00+0000") and returns the date at midnight UTC.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	return time.Parse(layout, s)
}

// Format renders a date as "YYYY-MM-DD".
func Format(t time.Time) string {
	return t.Format(layout)
}

// Days returns the whole number of days from a to b. Both values are
// expected to be midnight UTC, so the division is exact.
func Days(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
