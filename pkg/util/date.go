package util

import (
	"strconv"
	"time"
)

// DateLayout is the calendar date format used by macro data sources.
const DateLayout = "2006-01-02"

// ParseTime tries RFC3339, RFC3339Nano, a calendar date and unix seconds.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseDate parses a calendar date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// DayUTC truncates t to midnight of its UTC calendar day.
func DayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// UnixDay converts unix seconds to midnight UTC of that day.
func UnixDay(ts int64) time.Time {
	return DayUTC(time.Unix(ts, 0))
}

// FormatDate renders t as a calendar date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
