package schedule

import (
	"time"

	"github.com/robfig/cron/v3"
)

// nextFromCron parses a standard 5-field cron expression and returns the
// next activation after from. Only the `custom` recurrence kind carries a
// cron expression; the fixed daily/weekly/weekdays rules never do.
func nextFromCron(expr string, from time.Time) (time.Time, bool) {
	if expr == "" {
		return time.Time{}, false
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, false
	}
	return sched.Next(from), true
}
