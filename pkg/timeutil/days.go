package timeutil

import "time"

// StartOfDay returns the start of the day (00:00:00) in UTC.
// Streak accounting treats a "day" as a UTC calendar day.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole UTC days between a and b.
// Negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(StartOfDay(b).Sub(StartOfDay(a)).Hours() / 24)
}

// FormatSeconds renders a second count as "1h23m45s" for logs and digests.
func FormatSeconds(sec int) string {
	return (time.Duration(sec) * time.Second).String()
}
