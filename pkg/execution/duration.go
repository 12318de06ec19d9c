// Package execution derives display values and retry decisions from execution records.
package execution

import (
	"fmt"
	"time"
)

// FormatDuration renders d as "<ms>ms" under a second, "<s>s" under a minute
// and "<m>m <s>s" otherwise. Negative durations render as "0ms".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int64(d/time.Second))
	}

	minutes := int64(d / time.Minute)
	seconds := int64((d % time.Minute) / time.Second)

	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

// Elapsed returns the time between start and finish. A nil finish means the run is
// still going and the duration is measured against now.
func Elapsed(start time.Time, finish *time.Time, now time.Time) time.Duration {
	end := now
	if finish != nil {
		end = *finish
	}

	return end.Sub(start)
}

// DurationAt formats the duration of a run as observed at now.
func DurationAt(start time.Time, finish *time.Time, now time.Time) string {
	return FormatDuration(Elapsed(start, finish, now))
}

// DurationOf formats the duration of a run using the wall clock for unfinished runs.
func DurationOf(start time.Time, finish *time.Time) string {
	return DurationAt(start, finish, time.Now())
}
