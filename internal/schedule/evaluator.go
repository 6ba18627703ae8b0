// Package schedule implements the pure due-now predicate and next-run
// recomputation the scheduler loop (internal/gateway) evaluates each tick.
package schedule

import (
	"time"

	"github.com/relay-bss/batchmender/models"
)

// IsDue reports whether s should fire at nowUTC: it must be active, its
// next execution must have come due, and the local time-of-day must fall
// inside the execution window. Invalid timezone strings
// are silently treated as UTC; timezone-naive next_execution_at values are
// interpreted as UTC (both already true of models.Schedule's *time.Time,
// which is always stored as UTC instants).
func IsDue(s models.Schedule, nowUTC time.Time) bool {
	if !s.Active {
		return false
	}
	if s.NextExecutionAt == nil || s.NextExecutionAt.After(nowUTC) {
		return false
	}
	loc := resolveLocation(s.Timezone)
	localNow := nowUTC.In(loc)
	return inWindow(localNow, s.WindowStart, s.WindowEnd)
}

func resolveLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// inWindow reports whether now's time-of-day falls within [start, end]
// (inclusive), in local's own timezone, with start>end meaning the window
// crosses midnight.
func inWindow(now time.Time, start, end string) bool {
	startOfDay := timeOfDay(start)
	endOfDay := timeOfDay(end)
	nowOfDay := now.Hour()*3600 + now.Minute()*60 + now.Second()

	if startOfDay == endOfDay {
		return nowOfDay == startOfDay
	}
	if startOfDay < endOfDay {
		return nowOfDay >= startOfDay && nowOfDay <= endOfDay
	}
	// Midnight-crossing: [start, 24:00) ∪ [00:00, end].
	return nowOfDay >= startOfDay || nowOfDay <= endOfDay
}

// timeOfDay parses "HH:MM:SS" into seconds since midnight; an unparsable
// value is treated as midnight.
func timeOfDay(s string) int {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return 0
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// NextExecutionAt recomputes schedule.next_execution_at after a run,
// evaluated at completedAt (UTC): once -> nil; daily -> tomorrow at
// window_start; weekdays -> next non-weekend day at window_start; weekly ->
// today+7d at window_start; anything else (including "custom" with no
// parseable expression) defaults to daily.
func NextExecutionAt(s models.Schedule, completedAt time.Time) *time.Time {
	loc := resolveLocation(s.Timezone)
	local := completedAt.In(loc)

	switch s.Recurrence {
	case models.RecurrenceOnce:
		return nil
	case models.RecurrenceCustom:
		if next, ok := nextFromCron(s.RecurrenceExpr, local); ok {
			utc := next.UTC()
			return &utc
		}
		return dailyAt(local, s.WindowStart)
	case models.RecurrenceWeekdays:
		return nextWeekdayAt(local, s.WindowStart)
	case models.RecurrenceWeekly:
		return atWindowStart(local.AddDate(0, 0, 7), s.WindowStart)
	case models.RecurrenceDaily:
		return dailyAt(local, s.WindowStart)
	default:
		return dailyAt(local, s.WindowStart)
	}
}

func dailyAt(local time.Time, windowStart string) *time.Time {
	return atWindowStart(local.AddDate(0, 0, 1), windowStart)
}

func nextWeekdayAt(local time.Time, windowStart string) *time.Time {
	day := local.AddDate(0, 0, 1)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return atWindowStart(day, windowStart)
}

func atWindowStart(day time.Time, windowStart string) *time.Time {
	t, err := time.Parse("15:04:05", windowStart)
	if err != nil {
		t = time.Time{}
	}
	next := time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, day.Location()).UTC()
	return &next
}
