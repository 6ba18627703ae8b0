package runtimeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relay-bss/batchmender/models"
)

// ListActiveSchedules returns every schedule with isActive=true. Parsing raw
// records into models.Schedule is the caller's responsibility (per-record
// parse failures must not abort a whole scheduler tick) — this method just
// fetches and decodes the wire envelope.
func (c *Client) ListActiveSchedules(ctx context.Context) ([]json.RawMessage, error) {
	body, err := c.do(ctx, timeoutStandard, "GET", "/schedules?isActive=true", nil)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decoding schedule list: %w", err)
	}
	return items, nil
}

// ListSchedules returns every schedule, active or not (`scheduler list`,
// `scheduler export`); ListActiveSchedules is the narrower view the
// scheduler loop itself uses.
func (c *Client) ListSchedules(ctx context.Context) ([]json.RawMessage, error) {
	body, err := c.do(ctx, timeoutStandard, "GET", "/schedules", nil)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decoding schedule list: %w", err)
	}
	return items, nil
}

// UpdateSchedule applies a partial, merge-style patch to a schedule.
func (c *Client) UpdateSchedule(ctx context.Context, id string, patch map[string]any) error {
	_, err := c.do(ctx, timeoutStandard, "PATCH", "/schedules/"+id, patch)
	return err
}

// ScheduleDraft is the caller-supplied shape for a new schedule (`scheduler
// add`, `scheduler import`); the runtime assigns the id.
type ScheduleDraft struct {
	Name              string
	Category          models.ScheduleCategory
	Recurrence        models.Recurrence
	RecurrenceExpr    string
	WindowStart       string
	WindowEnd         string
	Timezone          string
	MaxBatchSize      int
	SelectionCriteria map[string]any
	Active            bool
}

// CreateSchedule creates a new schedule and locates its assigned id via the
// same "create then locate" idiom as CreateTrackingEntity: the
// runtime's generic create endpoint does not echo the id back, so this
// re-lists schedules and matches on name after the create call.
func (c *Client) CreateSchedule(ctx context.Context, draft ScheduleDraft) (string, error) {
	criteria, err := json.Marshal(draft.SelectionCriteria)
	if err != nil {
		criteria = []byte("{}")
	}
	payload := map[string]any{
		"name":               draft.Name,
		"isActive":           draft.Active,
		"category":           draft.Category,
		"recurrencePattern":  draft.Recurrence,
		"recurrenceExpr":     draft.RecurrenceExpr,
		"windowStartTime":    draft.WindowStart,
		"windowEndTime":      draft.WindowEnd,
		"timezone":           draft.Timezone,
		"maxBatchSize":       draft.MaxBatchSize,
		"selectionCriteria":  string(criteria),
	}
	if _, err := c.do(ctx, timeoutStandard, "POST", "/schedules", payload); err != nil {
		return "", err
	}

	raws, err := c.ListSchedules(ctx)
	if err != nil {
		return "", fmt.Errorf("locating created schedule: %w", err)
	}
	for _, raw := range raws {
		sched, perr := ParseSchedule(raw)
		if perr != nil {
			continue
		}
		if sched.Name == draft.Name {
			return sched.ID, nil
		}
	}
	return "", fmt.Errorf("could not locate created schedule %q", draft.Name)
}

// DeleteSchedule removes a schedule (`scheduler remove`).
func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	_, err := c.do(ctx, timeoutStandard, "DELETE", "/schedules/"+id, nil)
	return err
}

// GetSchedule fetches and parses a single schedule by id, used by the
// façade's POST /execute/{schedule_id} to bypass the due-now predicate for a
// manually-triggered run.
func (c *Client) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	body, err := c.do(ctx, timeoutStandard, "GET", "/schedules/"+id, nil)
	if err != nil {
		return nil, err
	}
	return ParseSchedule(body)
}

// ParseSchedule decodes one raw schedule record into models.Schedule,
// following the same tolerant defaults as the upstream's own parser:
// malformed dates fall back to nil rather than aborting, window times
// default to 00:00:00/06:00:00, and timezone defaults to UTC.
func ParseSchedule(raw json.RawMessage) (*models.Schedule, error) {
	var rs rawSchedule
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("decoding schedule: %w", err)
	}
	if rs.ID == "" {
		return nil, fmt.Errorf("schedule missing id")
	}

	windowStart := rs.WindowStartTime
	if windowStart == "" {
		windowStart = "00:00:00"
	}
	windowEnd := rs.WindowEndTime
	if windowEnd == "" {
		windowEnd = "06:00:00"
	}
	tz := rs.Timezone
	if tz == "" {
		tz = "UTC"
	}
	maxBatch := rs.MaxBatchSize
	if maxBatch == 0 {
		maxBatch = 100
	}
	category := rs.Category
	if category == "" {
		category = "SolutionEmpty"
	}
	recurrence := rs.RecurrencePattern
	if recurrence == "" {
		recurrence = "daily"
	}

	var criteria map[string]any
	if len(rs.SelectionCriteria) > 0 {
		// Accept either a JSON object or a JSON-encoded string of one,
		// mirroring the characteristic-list drift handled elsewhere.
		if err := json.Unmarshal(rs.SelectionCriteria, &criteria); err != nil {
			var encoded string
			if err2 := json.Unmarshal(rs.SelectionCriteria, &encoded); err2 == nil && encoded != "" {
				_ = json.Unmarshal([]byte(encoded), &criteria)
			}
		}
	}

	sched := &models.Schedule{
		ID:                   rs.ID,
		Name:                 rs.Name,
		Active:               rs.IsActive,
		Category:             models.ScheduleCategory(category),
		Recurrence:           models.Recurrence(recurrence),
		RecurrenceExpr:       rs.RecurrenceExpr,
		WindowStart:          windowStart,
		WindowEnd:            windowEnd,
		Timezone:             tz,
		MaxBatchSize:         maxBatch,
		SelectionCriteria:    criteria,
		TotalExecutions:      rs.TotalExecutions,
		SuccessfulExecutions: rs.SuccessfulExecutions,
		FailedExecutions:     rs.FailedExecutions,
		LastExecutionID:      rs.LastExecutionID,
	}

	if t, ok := parseFlexibleTime(rs.LastExecutionDate); ok {
		sched.LastExecutionAt = &t
	}
	if t, ok := parseFlexibleTime(rs.NextExecutionDate); ok {
		sched.NextExecutionAt = &t
	}

	return sched, nil
}

func parseFlexibleTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
