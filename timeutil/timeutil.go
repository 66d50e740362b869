package timeutil

import (
	"fmt"
	"time"
)

// DefaultWindow is the shared default for both the release settle window
// and the recheck interval.
const DefaultWindow = 7 * 24 * time.Hour

func ParseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

func FormatRFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Settled reports whether release is strictly older than now minus window.
func Settled(release, now time.Time, window time.Duration) bool {
	return release.Before(now.Add(-window))
}

// NextDue returns the earliest time a new check may run after last.
func NextDue(last time.Time, interval time.Duration) time.Time {
	return last.Add(interval)
}

// Due reports whether now has reached last plus interval.
func Due(last, now time.Time, interval time.Duration) bool {
	return !now.Before(NextDue(last, interval))
}
