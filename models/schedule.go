package models

import "time"

// ScheduleCategory selects which remediation variant a schedule drives.
type ScheduleCategory string

const (
	CategorySolutionEmpty      ScheduleCategory = "SolutionEmpty"
	CategoryPartialDataMissing ScheduleCategory = "PartialDataMissing"
)

// Recurrence is how often a schedule re-arms itself after a run.
type Recurrence string

const (
	RecurrenceOnce     Recurrence = "once"
	RecurrenceDaily    Recurrence = "daily"
	RecurrenceWeekdays Recurrence = "weekdays"
	RecurrenceWeekly   Recurrence = "weekly"
	RecurrenceCustom   Recurrence = "custom"
)

// Schedule is a declarative recurrence rule evaluated each scheduler tick
// and materialised into tracking entities when due. It is owned by the
// runtime API; this process only reads it and writes back through
// UpdateSchedule.
type Schedule struct {
	ID       string           `json:"id" yaml:"id"`
	Name     string           `json:"name" yaml:"name"`
	Active   bool             `json:"active" yaml:"active"`
	Category ScheduleCategory `json:"category" yaml:"category"`

	Recurrence Recurrence `json:"recurrence" yaml:"recurrence"`
	// RecurrenceExpr is a cron expression, only consulted when Recurrence ==
	// RecurrenceCustom.
	RecurrenceExpr string `json:"recurrence_expr,omitempty" yaml:"recurrence_expr,omitempty"`

	// WindowStart and WindowEnd are times-of-day in "HH:MM:SS" form, in
	// Timezone. If WindowStart > WindowEnd the window crosses midnight.
	WindowStart string `json:"window_start_time" yaml:"window_start_time"`
	WindowEnd   string `json:"window_end_time" yaml:"window_end_time"`
	Timezone    string `json:"timezone" yaml:"timezone"`

	MaxBatchSize      int            `json:"max_batch_size" yaml:"max_batch_size"`
	SelectionCriteria map[string]any `json:"selection_criteria,omitempty" yaml:"selection_criteria,omitempty"`

	TotalExecutions      int        `json:"total_executions" yaml:"total_executions"`
	SuccessfulExecutions int        `json:"successful_executions" yaml:"successful_executions"`
	FailedExecutions     int        `json:"failed_executions" yaml:"failed_executions"`
	LastExecutionID      string     `json:"last_execution_id,omitempty" yaml:"last_execution_id,omitempty"`
	LastExecutionAt      *time.Time `json:"last_execution_at,omitempty" yaml:"last_execution_at,omitempty"`
	NextExecutionAt      *time.Time `json:"next_execution_at,omitempty" yaml:"next_execution_at,omitempty"`
}

// TrackingEntityState is the lifecycle state of a batch job record.
type TrackingEntityState string

const (
	TrackingPending    TrackingEntityState = "pending"
	TrackingInProgress TrackingEntityState = "inProgress"
	TrackingCompleted  TrackingEntityState = "completed"
	TrackingFailed     TrackingEntityState = "failed"
	TrackingCancelled  TrackingEntityState = "cancelled"
)

// BatchSummary holds the aggregate counters for one tracking entity.
// Invariant: Pending + Successful + Failed + Skipped + NotImpacted == Total
// at every observation.
type BatchSummary struct {
	Total       int `json:"total"`
	Pending     int `json:"pending"`
	Successful  int `json:"successful"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
	NotImpacted int `json:"not_impacted,omitempty"`
}

// TrackingEntity is the durable per-execution audit record ("batch job").
type TrackingEntity struct {
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	Category          ScheduleCategory    `json:"category"`
	State             TrackingEntityState `json:"state"`
	ParentScheduleID  string              `json:"parent_schedule_id,omitempty"`
	RequestedQuantity int                 `json:"requested_quantity"`
	ActualQuantity    int                 `json:"actual_quantity"`
	CurrentItemID     string              `json:"current_item_id,omitempty"`
	CurrentItemState  string              `json:"current_item_state,omitempty"`
	Summary           BatchSummary        `json:"summary"`
	CreatedAt         time.Time           `json:"created_at"`
	CompletedAt       *time.Time          `json:"completed_at,omitempty"`
}
