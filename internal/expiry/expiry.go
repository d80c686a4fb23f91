// Package expiry classifies per-vehicle expiry timestamps against the
// 30-minute notification window. The evaluator is stateless: every
// qualifying change-feed delivery is evaluated on its own, with no memory
// of earlier firings.
package expiry

import (
	"fmt"
	"time"
)

// Layout is the civil date-time format delivered by the change feed.
const Layout = "2006-01-02 15:04:05"

// Window is how far ahead of the expiry time a notification fires.
const Window = 30 * time.Minute

// Parse interprets raw as a civil date-time in loc.
func Parse(raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse expiry time %q: %w", raw, err)
	}
	return t, nil
}

// Evaluate returns the time remaining until expiresAt and whether it falls
// inside the notification window: 0 < remaining <= Window. The upper bound
// is inclusive, so exactly 30 minutes out fires; an already-past or
// exactly-due expiry does not.
func Evaluate(expiresAt, now time.Time) (time.Duration, bool) {
	remaining := expiresAt.Sub(now)
	return remaining, remaining > 0 && remaining <= Window
}

// RemainingMinutes truncates remaining to whole minutes.
func RemainingMinutes(remaining time.Duration) int {
	return int(remaining / time.Minute)
}
