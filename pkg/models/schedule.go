package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned when a cron expression does not parse.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Cron expressions use the standard 5-field format (minute hour day month weekday)
// and accept descriptors such as @hourly.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCronSchedule parses a cron trigger expression.
func ParseCronSchedule(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidSchedule)
	}

	schedule, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	return schedule, nil
}

// NextRun returns the first activation of expr strictly after from, in UTC.
func NextRun(expr string, from time.Time) (time.Time, error) {
	schedule, err := ParseCronSchedule(expr)
	if err != nil {
		return time.Time{}, err
	}

	return schedule.Next(from.UTC()), nil
}
