package timeutil

import (
	"time"
)

const DateLayout = "2006-01-02"

// Location loads the named zone, falling back to UTC when it is empty or invalid
func Location(timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StartOfDay returns midnight of t's calendar day in t's location
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Today returns the start of now's calendar day in the given timezone
func Today(now time.Time, timezone string) time.Time {
	return StartOfDay(now.In(Location(timezone)))
}

// ParseDate parses a YYYY-MM-DD date string as the start of that day in the
// given timezone
func ParseDate(dateStr, timezone string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, dateStr, Location(timezone))
}
