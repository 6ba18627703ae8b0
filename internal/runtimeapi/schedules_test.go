package runtimeapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-bss/batchmender/models"
)

// TestParseScheduleRoundTripsRecognisedFields checks the round-trip property:
// parse(encode(schedule)) preserves identity for the recognised fields.
func TestParseScheduleRoundTripsRecognisedFields(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "sched-1",
		"name": "Nightly Solution Cleanup",
		"isActive": true,
		"category": "SolutionEmpty",
		"recurrencePattern": "daily",
		"windowStartTime": "22:00:00",
		"windowEndTime": "06:00:00",
		"timezone": "Asia/Kuala_Lumpur",
		"maxBatchSize": 50,
		"totalExecutions": 3,
		"successfulExecutions": 2,
		"failedExecutions": 1,
		"nextExecutionDate": "2026-08-01T22:00:00Z"
	}`)

	sched, err := ParseSchedule(raw)
	require.NoError(t, err)
	assert.Equal(t, "sched-1", sched.ID)
	assert.Equal(t, "Nightly Solution Cleanup", sched.Name)
	assert.True(t, sched.Active)
	assert.Equal(t, models.CategorySolutionEmpty, sched.Category)
	assert.Equal(t, models.RecurrenceDaily, sched.Recurrence)
	assert.Equal(t, "22:00:00", sched.WindowStart)
	assert.Equal(t, "06:00:00", sched.WindowEnd)
	assert.Equal(t, "Asia/Kuala_Lumpur", sched.Timezone)
	assert.Equal(t, 50, sched.MaxBatchSize)
	assert.Equal(t, 3, sched.TotalExecutions)
	require.NotNil(t, sched.NextExecutionAt)
}

func TestParseScheduleMissingIDFails(t *testing.T) {
	_, err := ParseSchedule(json.RawMessage(`{"name":"no id"}`))
	assert.Error(t, err)
}

func TestParseScheduleAppliesDefaults(t *testing.T) {
	sched, err := ParseSchedule(json.RawMessage(`{"id":"sched-2"}`))
	require.NoError(t, err)
	assert.Equal(t, "00:00:00", sched.WindowStart)
	assert.Equal(t, "06:00:00", sched.WindowEnd)
	assert.Equal(t, "UTC", sched.Timezone)
	assert.Equal(t, 100, sched.MaxBatchSize)
	assert.Equal(t, models.CategorySolutionEmpty, sched.Category)
	assert.Equal(t, models.RecurrenceDaily, sched.Recurrence)
}
