package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relay-bss/batchmender/models"
)

func baseSchedule() models.Schedule {
	// A fixed instant earlier than every "now" these tests use, both the
	// fixed 2026-07-30/31 instants and time.Now().
	due := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	return models.Schedule{
		ID:              "sched-1",
		Active:          true,
		WindowStart:     "00:00:00",
		WindowEnd:       "06:00:00",
		Timezone:        "UTC",
		NextExecutionAt: &due,
	}
}

func TestIsDueRequiresActive(t *testing.T) {
	s := baseSchedule()
	s.Active = false
	assert.False(t, IsDue(s, time.Now().UTC()))
}

func TestIsDueRequiresNextExecutionAtInPast(t *testing.T) {
	s := baseSchedule()
	future := time.Now().UTC().Add(time.Hour)
	s.NextExecutionAt = &future
	s.WindowStart, s.WindowEnd = "00:00:00", "23:59:59"
	assert.False(t, IsDue(s, time.Now().UTC()))
}

func TestIsDueRequiresNextExecutionAtSet(t *testing.T) {
	s := baseSchedule()
	s.NextExecutionAt = nil
	assert.False(t, IsDue(s, time.Now().UTC()))
}

// TestIsDueEqualStartEndMatchesExactInstant: for a window with
// start == end, is_due is true iff the current time-of-day exactly equals
// start.
func TestIsDueEqualStartEndMatchesExactInstant(t *testing.T) {
	s := baseSchedule()
	s.WindowStart, s.WindowEnd = "09:30:00", "09:30:00"

	onTheDot := time.Date(2026, 7, 31, 9, 30, 0, 0, time.UTC)
	assert.True(t, IsDue(s, onTheDot))

	offByOne := time.Date(2026, 7, 31, 9, 30, 1, 0, time.UTC)
	assert.False(t, IsDue(s, offByOne))
}

// TestIsDueMidnightCrossingWindow: for [22:00, 06:00], IsDue is
// true at 23:30 and at 03:00, false at 12:00 (all in tz).
func TestIsDueMidnightCrossingWindow(t *testing.T) {
	s := baseSchedule()
	s.WindowStart, s.WindowEnd = "22:00:00", "06:00:00"

	atNight := time.Date(2026, 7, 31, 23, 30, 0, 0, time.UTC)
	assert.True(t, IsDue(s, atNight))

	earlyMorning := time.Date(2026, 7, 31, 3, 0, 0, 0, time.UTC)
	assert.True(t, IsDue(s, earlyMorning))

	midday := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	assert.False(t, IsDue(s, midday))
}

// TestIsDueKualaLumpurTimezone: a schedule with window [00:00, 06:00] in
// Asia/Kuala_Lumpur (UTC+8, no DST) is due at 18:00 UTC on day D, which is
// 02:00 on day D+1 in KL.
func TestIsDueKualaLumpurTimezone(t *testing.T) {
	s := baseSchedule()
	s.Timezone = "Asia/Kuala_Lumpur"
	s.WindowStart, s.WindowEnd = "00:00:00", "06:00:00"
	nowUTC := time.Date(2026, 7, 30, 18, 0, 0, 0, time.UTC)
	assert.True(t, IsDue(s, nowUTC))
}

func TestIsDueInvalidTimezoneFallsBackToUTC(t *testing.T) {
	s := baseSchedule()
	s.Timezone = "Not/A_Real_Zone"
	s.WindowStart, s.WindowEnd = "00:00:00", "23:59:59"
	assert.True(t, IsDue(s, time.Now().UTC()))
}

func TestIsDueOutsideWindowIsFalse(t *testing.T) {
	s := baseSchedule()
	s.WindowStart, s.WindowEnd = "00:00:00", "06:00:00"
	outside := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	assert.False(t, IsDue(s, outside))
}

func TestNextExecutionAtOnceIsNil(t *testing.T) {
	s := baseSchedule()
	s.Recurrence = models.RecurrenceOnce
	assert.Nil(t, NextExecutionAt(s, time.Now().UTC()))
}

func TestNextExecutionAtDailyIsTomorrowAtWindowStart(t *testing.T) {
	s := baseSchedule()
	s.Recurrence = models.RecurrenceDaily
	s.WindowStart = "03:00:00"
	completed := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	next := NextExecutionAt(s, completed)
	if assert.NotNil(t, next) {
		assert.Equal(t, time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC), next.UTC())
	}
}

func TestNextExecutionAtWeekdaysSkipsWeekend(t *testing.T) {
	s := baseSchedule()
	s.Recurrence = models.RecurrenceWeekdays
	s.WindowStart = "03:00:00"
	// 2026-07-31 is a Friday; the next weekday is Monday 2026-08-03.
	completed := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	next := NextExecutionAt(s, completed)
	if assert.NotNil(t, next) {
		assert.Equal(t, time.Monday, next.Weekday())
		assert.Equal(t, time.Date(2026, 8, 3, 3, 0, 0, 0, time.UTC), next.UTC())
	}
}

func TestNextExecutionAtWeeklyIsPlusSevenDays(t *testing.T) {
	s := baseSchedule()
	s.Recurrence = models.RecurrenceWeekly
	s.WindowStart = "03:00:00"
	completed := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	next := NextExecutionAt(s, completed)
	if assert.NotNil(t, next) {
		assert.Equal(t, time.Date(2026, 8, 7, 3, 0, 0, 0, time.UTC), next.UTC())
	}
}

func TestNextExecutionAtUnknownRecurrenceDefaultsToDaily(t *testing.T) {
	s := baseSchedule()
	s.Recurrence = models.Recurrence("nonsense")
	s.WindowStart = "03:00:00"
	completed := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	next := NextExecutionAt(s, completed)
	if assert.NotNil(t, next) {
		assert.Equal(t, time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC), next.UTC())
	}
}

func TestNextExecutionAtCustomUsesCronExpression(t *testing.T) {
	s := baseSchedule()
	s.Recurrence = models.RecurrenceCustom
	s.RecurrenceExpr = "0 4 * * *" // every day at 04:00
	completed := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	next := NextExecutionAt(s, completed)
	if assert.NotNil(t, next) {
		assert.Equal(t, time.Date(2026, 8, 1, 4, 0, 0, 0, time.UTC), next.UTC())
	}
}

func TestNextExecutionAtCustomFallsBackToDailyWhenUnparseable(t *testing.T) {
	s := baseSchedule()
	s.Recurrence = models.RecurrenceCustom
	s.RecurrenceExpr = "not a cron expression"
	s.WindowStart = "03:00:00"
	completed := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	next := NextExecutionAt(s, completed)
	if assert.NotNil(t, next) {
		assert.Equal(t, time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC), next.UTC())
	}
}
